package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/careportal/internal/model"
	"github.com/jwalitptl/careportal/internal/repository"
	"github.com/jwalitptl/careportal/internal/service/event"
	"github.com/jwalitptl/careportal/internal/service/profile"
	apperrors "github.com/jwalitptl/careportal/pkg/errors"
	"github.com/jwalitptl/careportal/pkg/logger"
	"github.com/jwalitptl/careportal/pkg/metrics"
)

const slotTakenMessage = "This time slot is already booked for the doctor. Please choose a different slot."

type Config struct {
	// Location is the clinic's time zone. Dates and slot labels are read in it.
	Location *time.Location
	Now      func() time.Time
}

type Service struct {
	repo     repository.AppointmentRepository
	records  repository.RecordRepository
	profiles repository.ProfileRepository
	events   event.Emitter
	metrics  *metrics.Metrics
	logger   *logger.Logger
	loc      *time.Location
	now      func() time.Time
}

func NewService(repo repository.AppointmentRepository, records repository.RecordRepository,
	profiles repository.ProfileRepository, events event.Emitter, m *metrics.Metrics, log *logger.Logger, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		repo:     repo,
		records:  records,
		profiles: profiles,
		events:   events,
		metrics:  m,
		logger:   log,
		loc:      cfg.Location,
		now:      cfg.Now,
	}
}

// BookingInput is a booking made either by the patient or by a doctor on the
// patient's behalf.
type BookingInput struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Date      string
	Time      string
	Reason    string
	BookedBy  model.Role
}

func (in BookingInput) actorID() uuid.UUID {
	if in.BookedBy == model.RoleDoctor {
		return in.DoctorID
	}
	return in.PatientID
}

// AvailableSlots returns the slot labels on date that the doctor has not been booked for.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error) {
	start, err := dayStart(date, s.loc)
	if err != nil {
		return nil, apperrors.NewBadRequest("date must be in YYYY-MM-DD format", err)
	}

	booked, err := s.repo.ListDoctorWindow(ctx, doctorID, start, start.Add(24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to list booked appointments: %w", err)
	}

	taken := make(map[string]struct{}, len(booked))
	for _, a := range booked {
		taken[a.Date.In(s.loc).Format(slotLayout)] = struct{}{}
	}

	available := make([]string, 0, len(GenerateTimeSlots()))
	for _, slot := range GenerateTimeSlots() {
		if _, ok := taken[slot]; !ok {
			available = append(available, slot)
		}
	}
	return available, nil
}

func (s *Service) Book(ctx context.Context, in BookingInput) (*model.Appointment, error) {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		s.reject("invalid")
		return nil, apperrors.NewBadRequest("reason is required", nil)
	}

	at, err := s.resolveSlot(in.Date, in.Time)
	if err != nil {
		s.reject("invalid")
		return nil, err
	}

	if err := s.checkParties(ctx, in.PatientID, in.DoctorID); err != nil {
		s.reject("invalid")
		return nil, err
	}

	existing, err := s.repo.FindUpcomingByPatient(ctx, in.PatientID)
	switch {
	case err == nil:
		s.reject("patient_has_upcoming")
		return nil, apperrors.NewConflict(s.patientConflictMessage(existing, in.BookedBy))
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("failed to check patient appointments: %w", err)
	}

	taken, err := s.repo.ExistsUpcomingAt(ctx, in.DoctorID, at)
	if err != nil {
		return nil, fmt.Errorf("failed to check doctor availability: %w", err)
	}
	if taken {
		s.reject("slot_taken")
		return nil, apperrors.NewConflict(slotTakenMessage)
	}

	appt := &model.Appointment{
		PatientID: in.PatientID,
		DoctorID:  in.DoctorID,
		Date:      at.UTC(),
		Reason:    reason,
		Status:    model.AppointmentStatusUpcoming,
	}
	if err := s.repo.Create(ctx, appt); err != nil {
		return nil, fmt.Errorf("failed to book appointment: %w", err)
	}
	s.metrics.AppointmentsBooked.Inc()

	s.linkRecord(ctx, appt)
	s.emit(ctx, model.EventAppointmentBooked, appt, in.actorID())

	appt.DisplayStatus = appt.DisplayStatusAt(s.now())
	return appt, nil
}

// checkParties requires a patient account on one side and a doctor account on the other.
func (s *Service) checkParties(ctx context.Context, patientID, doctorID uuid.UUID) error {
	if err := profile.RequireRole(ctx, s.profiles, doctorID, model.RoleDoctor); err != nil {
		return err
	}
	return profile.RequireRole(ctx, s.profiles, patientID, model.RolePatient)
}

// List returns the caller's appointments, as patient or as doctor, narrowed by filter.
func (s *Service) List(ctx context.Context, userID uuid.UUID, role model.Role, filter model.AppointmentFilter) ([]*model.Appointment, error) {
	var (
		appointments []*model.Appointment
		err          error
	)
	if role == model.RoleDoctor {
		appointments, err = s.repo.ListByDoctor(ctx, userID)
	} else {
		appointments, err = s.repo.ListByPatient(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}

	now := s.now()
	filtered := make([]*model.Appointment, 0, len(appointments))
	for _, a := range appointments {
		a.DisplayStatus = a.DisplayStatusAt(now)
		if filter.Matches(a.DisplayStatus) {
			filtered = append(filtered, a)
		}
	}
	return filtered, nil
}

// Cancel marks the appointment cancelled. Cancelling twice is not an error.
func (s *Service) Cancel(ctx context.Context, id, actorID uuid.UUID) (*model.Appointment, error) {
	appt, err := s.repo.Cancel(ctx, id, actorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("appointment", err)
		}
		return nil, fmt.Errorf("failed to cancel appointment: %w", err)
	}
	s.metrics.AppointmentsCancelled.Inc()
	s.emit(ctx, model.EventAppointmentCancelled, appt, actorID)

	appt.DisplayStatus = appt.DisplayStatusAt(s.now())
	return appt, nil
}

// Reschedule moves the appointment to a new slot. The booking conflict checks are not re-run.
func (s *Service) Reschedule(ctx context.Context, id, actorID uuid.UUID, date, slot string) (*model.Appointment, error) {
	at, err := s.resolveSlot(date, slot)
	if err != nil {
		return nil, err
	}

	appt, err := s.repo.Reschedule(ctx, id, actorID, at.UTC())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, s.explainMissing(ctx, id, actorID)
		}
		return nil, fmt.Errorf("failed to reschedule appointment: %w", err)
	}
	s.metrics.AppointmentsRescheduled.Inc()
	s.emit(ctx, model.EventAppointmentRescheduled, appt, actorID)

	appt.DisplayStatus = appt.DisplayStatusAt(s.now())
	return appt, nil
}

// CompletePast marks upcoming appointments whose time has passed as completed.
func (s *Service) CompletePast(ctx context.Context) (int64, error) {
	n, err := s.repo.CompletePast(ctx, s.now())
	if err != nil {
		return 0, err
	}
	s.metrics.AppointmentsCompleted.Add(float64(n))
	return n, nil
}

func (s *Service) resolveSlot(date, slot string) (time.Time, error) {
	start, err := dayStart(date, s.loc)
	if err != nil {
		return time.Time{}, apperrors.NewBadRequest("date must be in YYYY-MM-DD format", err)
	}

	now := s.now().In(s.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	if start.Before(today) {
		return time.Time{}, apperrors.NewBadRequest("appointment date cannot be in the past", nil)
	}

	at, err := slotInstant(date, slot, s.loc)
	if err != nil {
		return time.Time{}, apperrors.NewBadRequest("time must be a half-hour slot between 09:00 and 14:00", err)
	}
	if !at.After(now) {
		return time.Time{}, apperrors.NewBadRequest("selected time has already passed", nil)
	}
	return at, nil
}

// explainMissing tells a cancelled appointment apart from one the caller cannot see.
func (s *Service) explainMissing(ctx context.Context, id, actorID uuid.UUID) error {
	appt, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("appointment", err)
		}
		return fmt.Errorf("failed to get appointment: %w", err)
	}
	if appt.PatientID != actorID && appt.DoctorID != actorID {
		return apperrors.NewNotFound("appointment", repository.ErrNotFound)
	}
	if appt.IsCancelled() {
		return apperrors.NewConflict("Cancelled appointments cannot be rescheduled.")
	}
	return apperrors.NewNotFound("appointment", repository.ErrNotFound)
}

func (s *Service) patientConflictMessage(existing *model.Appointment, bookedBy model.Role) string {
	date := existing.Date.In(s.loc).Format(dateLayout)
	if bookedBy == model.RoleDoctor {
		return fmt.Sprintf("This patient already has an upcoming appointment on %s. Please cancel or reschedule the existing appointment before booking a new one.", date)
	}
	return fmt.Sprintf("You already have an upcoming appointment on %s. Please cancel or reschedule your existing appointment before booking a new one.", date)
}

// linkRecord keeps one record row per patient and doctor pair. Failures never undo the booking.
func (s *Service) linkRecord(ctx context.Context, appt *model.Appointment) {
	if err := s.upsertRecord(ctx, appt); err != nil {
		s.metrics.CompanionRecordFailures.Inc()
		s.logger.Error(err, "failed to link record to appointment",
			"appointment_id", appt.ID.String(),
			"patient_id", appt.PatientID.String(),
			"doctor_id", appt.DoctorID.String(),
		)
	}
}

func (s *Service) upsertRecord(ctx context.Context, appt *model.Appointment) error {
	existing, err := s.records.FindByPair(ctx, appt.PatientID, appt.DoctorID)
	switch {
	case err == nil:
		return s.records.Touch(ctx, existing.ID, appt.DoctorID)
	case errors.Is(err, repository.ErrNotFound):
		return s.records.Create(ctx, &model.Record{
			PatientID: appt.PatientID,
			DoctorID:  appt.DoctorID,
			Summary:   appt.Reason,
		})
	default:
		return err
	}
}

func (s *Service) emit(ctx context.Context, eventType model.EventType, appt *model.Appointment, actorID uuid.UUID) {
	err := s.events.Emit(ctx, eventType, model.AppointmentEvent{
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		DoctorID:      appt.DoctorID,
		Date:          appt.Date,
		Reason:        appt.Reason,
		ActorID:       actorID,
	})
	if err != nil {
		s.logger.Warn(err, "failed to publish appointment event", "type", string(eventType), "appointment_id", appt.ID.String())
	}
}

func (s *Service) reject(reason string) {
	s.metrics.BookingRejections.WithLabelValues(reason).Inc()
}
