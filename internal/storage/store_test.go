package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "blood_test.pdf", SanitizeFileName("blood test.pdf"))
	assert.Equal(t, "passwd", SanitizeFileName("../../etc/passwd"))
	assert.Equal(t, "scan.png", SanitizeFileName(`C:\Users\me\scan.png`))
	assert.Equal(t, "file", SanitizeFileName("..."))
	assert.Equal(t, "r_sum_.pdf", SanitizeFileName("résumé.pdf"))
}

func TestRecordKeyIsNamespacedByPatientAndTime(t *testing.T) {
	patientID := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	at := time.UnixMilli(1760000000123)

	key := RecordKey(patientID, at, "x-ray.jpg")
	assert.Equal(t, "patient-docs/11111111-2222-3333-4444-555555555555/1760000000123_x-ray.jpg", key)
}

func TestMinioStoreSignsWithoutNetwork(t *testing.T) {
	store, err := NewMinioStore(MinioConfig{
		Endpoint:  "localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "ehr-files",
		Region:    "us-east-1",
	})
	require.NoError(t, err)

	signed, err := store.SignedURL(context.Background(), "patient-docs/p/1_a.pdf", 2*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, signed, "http://localhost:9000/ehr-files/patient-docs/p/1_a.pdf")
	assert.Contains(t, signed, "X-Amz-Expires=120")

	assert.Equal(t, "/ehr-files/patient-docs/p/1_a.pdf", store.PublicURL("patient-docs/p/1_a.pdf"))
}
