package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ObjectStore is the file backend for medical records.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	PublicURL(key string) string
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFileName keeps the base name and replaces anything outside [A-Za-z0-9._-].
func SanitizeFileName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	base = unsafeChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		return "file"
	}
	return base
}

// RecordKey builds patient-docs/<patient>/<unix millis>_<name>.
func RecordKey(patientID uuid.UUID, at time.Time, fileName string) string {
	return fmt.Sprintf("patient-docs/%s/%d_%s", patientID, at.UnixMilli(), SanitizeFileName(fileName))
}
