package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/careportal/internal/model"
	"github.com/jwalitptl/careportal/internal/repository"
	apperrors "github.com/jwalitptl/careportal/pkg/errors"
	"github.com/jwalitptl/careportal/pkg/security"
)

const doctorsCacheKey = "doctors"

type Service struct {
	repo         repository.ProfileRepository
	appointments repository.AppointmentRepository
	cache        *cache.Cache
	now          func() time.Time
}

func NewService(repo repository.ProfileRepository, appointments repository.AppointmentRepository, doctorsTTL time.Duration) *Service {
	if doctorsTTL <= 0 {
		doctorsTTL = 5 * time.Minute
	}
	return &Service{
		repo:         repo,
		appointments: appointments,
		cache:        cache.New(doctorsTTL, 2*doctorsTTL),
		now:          time.Now,
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	profile, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("profile", err)
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

// Update applies the editable fields and returns the stored profile.
func (s *Service) Update(ctx context.Context, id uuid.UUID, update model.ProfileUpdate) (*model.Profile, error) {
	if update.Empty() {
		return nil, apperrors.NewBadRequest("no editable profile fields were provided", nil)
	}
	if update.Phone != nil && *update.Phone != "" && !security.IsPhoneNumber(*update.Phone) {
		return nil, apperrors.NewBadRequest("phone must be exactly 10 digits", nil)
	}
	if update.Gender != nil {
		g := strings.ToLower(strings.TrimSpace(*update.Gender))
		if g != "male" && g != "female" && g != "other" {
			return nil, apperrors.NewBadRequest("gender must be male, female or other", nil)
		}
		update.Gender = &g
	}

	if err := s.repo.Update(ctx, id, update); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("profile", err)
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return s.Get(ctx, id)
}

// ListDoctors returns the doctor directory, cached in-process.
func (s *Service) ListDoctors(ctx context.Context) ([]*model.DoctorSummary, error) {
	if cached, ok := s.cache.Get(doctorsCacheKey); ok {
		return cached.([]*model.DoctorSummary), nil
	}

	doctors, err := s.repo.ListDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	s.cache.SetDefault(doctorsCacheKey, doctors)
	return doctors, nil
}

// ListPatientsForDoctor returns the doctor's patients, each with their
// appointments with this doctor.
func (s *Service) ListPatientsForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.PatientSummary, error) {
	patients, err := s.repo.ListPatientsForDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}

	appointments, err := s.appointments.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}

	now := s.now()
	byPatient := make(map[uuid.UUID][]*model.Appointment, len(patients))
	for _, a := range appointments {
		a.DisplayStatus = a.DisplayStatusAt(now)
		byPatient[a.PatientID] = append(byPatient[a.PatientID], a)
	}
	for _, p := range patients {
		p.Appointments = byPatient[p.ID]
		if p.Appointments == nil {
			p.Appointments = []*model.Appointment{}
		}
	}
	return patients, nil
}
