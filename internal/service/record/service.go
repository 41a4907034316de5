package record

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/careportal/internal/model"
	"github.com/jwalitptl/careportal/internal/repository"
	"github.com/jwalitptl/careportal/internal/service/event"
	"github.com/jwalitptl/careportal/internal/service/profile"
	"github.com/jwalitptl/careportal/internal/storage"
	apperrors "github.com/jwalitptl/careportal/pkg/errors"
	"github.com/jwalitptl/careportal/pkg/logger"
	"github.com/jwalitptl/careportal/pkg/metrics"
)

const (
	defaultPatientURLExpiry = 120 * time.Second
	defaultDoctorURLExpiry  = time.Hour
)

type Config struct {
	PatientURLExpiry time.Duration
	DoctorURLExpiry  time.Duration
	Now              func() time.Time
}

type Service struct {
	repo     repository.RecordRepository
	profiles repository.ProfileRepository
	store    storage.ObjectStore
	events   event.Emitter
	metrics  *metrics.Metrics
	logger   *logger.Logger
	cfg      Config
}

func NewService(repo repository.RecordRepository, profiles repository.ProfileRepository, store storage.ObjectStore,
	events event.Emitter, m *metrics.Metrics, log *logger.Logger, cfg Config) *Service {
	if cfg.PatientURLExpiry <= 0 {
		cfg.PatientURLExpiry = defaultPatientURLExpiry
	}
	if cfg.DoctorURLExpiry <= 0 {
		cfg.DoctorURLExpiry = defaultDoctorURLExpiry
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		repo:     repo,
		profiles: profiles,
		store:    store,
		events:   events,
		metrics:  m,
		logger:   log,
		cfg:      cfg,
	}
}

// Upload is one file sent by a patient for themselves or by a doctor for a patient.
type Upload struct {
	PatientID    uuid.UUID
	UploaderID   uuid.UUID
	UploaderRole model.Role
	FileName     string
	ContentType  string
	Size         int64
	Body         io.Reader
	// Summary defaults to the file name.
	Summary string
}

func (s *Service) Upload(ctx context.Context, up Upload) (*model.Record, error) {
	if up.Body == nil || up.Size <= 0 || strings.TrimSpace(up.FileName) == "" {
		return nil, apperrors.NewBadRequest("a non-empty file is required", nil)
	}
	if err := profile.RequireRole(ctx, s.profiles, up.PatientID, model.RolePatient); err != nil {
		return nil, err
	}

	key := storage.RecordKey(up.PatientID, s.cfg.Now(), up.FileName)
	if err := s.store.Upload(ctx, key, up.Body, up.Size, up.ContentType); err != nil {
		s.countUpload(up.UploaderRole, "error")
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}

	summary := strings.TrimSpace(up.Summary)
	if summary == "" {
		summary = up.FileName
	}
	fileName, fileType, size := up.FileName, up.ContentType, up.Size

	// A patient's own upload names the patient as the doctor of record.
	rec := &model.Record{
		PatientID: up.PatientID,
		DoctorID:  up.UploaderID,
		FilePath:  &key,
		FileName:  &fileName,
		FileType:  &fileType,
		FileSize:  &size,
		Summary:   summary,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		s.countUpload(up.UploaderRole, "error")
		s.logger.Error(err, "record row not written for uploaded object", "key", key)
		return nil, fmt.Errorf("failed to save record: %w", err)
	}
	s.countUpload(up.UploaderRole, "ok")

	err := s.events.Emit(ctx, model.EventRecordUploaded, model.RecordEvent{
		RecordID:   rec.ID,
		PatientID:  rec.PatientID,
		UploaderID: up.UploaderID,
		FileName:   fileName,
	})
	if err != nil {
		s.logger.Warn(err, "failed to publish record event", "record_id", rec.ID.String())
	}
	return rec, nil
}

// UploadHistory stores a past medical history document.
func (s *Service) UploadHistory(ctx context.Context, up Upload) (*model.Record, error) {
	up.Summary = model.PastMedicalHistorySummary
	return s.Upload(ctx, up)
}

// List returns the patient's records newest first. Rows with a file get a signed
// download URL valid for the audience's window; rows whose signing fails are
// returned without one.
func (s *Service) List(ctx context.Context, patientID uuid.UUID, audience model.Role) ([]*model.Record, error) {
	if audience == model.RoleDoctor {
		if err := profile.RequireRole(ctx, s.profiles, patientID, model.RolePatient); err != nil {
			return nil, err
		}
	}

	records, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	expiry := s.expiryFor(audience)
	var wg sync.WaitGroup
	for _, rec := range records {
		if !rec.HasFile() {
			continue
		}
		wg.Add(1)
		go func(rec *model.Record) {
			defer wg.Done()
			signed, err := s.store.SignedURL(ctx, *rec.FilePath, expiry)
			if err != nil {
				s.metrics.SignedURLFailures.Inc()
				s.logger.Warn(err, "failed to sign record url", "record_id", rec.ID.String())
				return
			}
			rec.DownloadURL = signed
		}(rec)
	}
	wg.Wait()

	return records, nil
}

func (s *Service) expiryFor(audience model.Role) time.Duration {
	if audience == model.RoleDoctor {
		return s.cfg.DoctorURLExpiry
	}
	return s.cfg.PatientURLExpiry
}

func (s *Service) countUpload(role model.Role, status string) {
	s.metrics.RecordUploads.WithLabelValues(string(role), status).Inc()
}
