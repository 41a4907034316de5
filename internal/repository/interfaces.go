package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/careportal/internal/model"
)

// ErrNotFound is returned when a row does not exist or is not visible to the caller.
var ErrNotFound = errors.New("not found")

// All repository interfaces in one file
type (
	UserRepository interface {
		// CreateWithProfile writes the login and its profile atomically.
		CreateWithProfile(ctx context.Context, user *model.User, profile *model.Profile) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		UpdateRole(ctx context.Context, id uuid.UUID, role model.Role) error
		UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
		MarkEmailVerified(ctx context.Context, id uuid.UUID) error
		TouchSignIn(ctx context.Context, id uuid.UUID, at time.Time) error
	}

	TokenRepository interface {
		Store(ctx context.Context, userID uuid.UUID, token string, purpose model.TokenPurpose, expiresAt time.Time) error
		// Consume marks an unexpired, unused token as used and returns its owner.
		Consume(ctx context.Context, token string, purpose model.TokenPurpose) (uuid.UUID, error)
	}

	ProfileRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Profile, error)
		Update(ctx context.Context, id uuid.UUID, update model.ProfileUpdate) error
		ListDoctors(ctx context.Context) ([]*model.DoctorSummary, error)
		ListPatientsForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.PatientSummary, error)
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error)
		ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Appointment, error)
		// ListDoctorWindow returns the doctor's non-cancelled appointments in [from, to).
		ListDoctorWindow(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error)
		FindUpcomingByPatient(ctx context.Context, patientID uuid.UUID) (*model.Appointment, error)
		ExistsUpcomingAt(ctx context.Context, doctorID uuid.UUID, at time.Time) (bool, error)
		// Cancel and Reschedule only touch rows where actorID is the patient or the doctor.
		Cancel(ctx context.Context, id, actorID uuid.UUID) (*model.Appointment, error)
		Reschedule(ctx context.Context, id, actorID uuid.UUID, at time.Time) (*model.Appointment, error)
		CompletePast(ctx context.Context, now time.Time) (int64, error)
	}

	RecordRepository interface {
		Create(ctx context.Context, record *model.Record) error
		FindByPair(ctx context.Context, patientID, doctorID uuid.UUID) (*model.Record, error)
		Touch(ctx context.Context, id, doctorID uuid.UUID) error
		ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Record, error)
	}
)
