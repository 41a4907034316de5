package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/careportal/internal/model"
)

const appointmentColumns = `id, patient_id, doctor_id, date, reason, status, cancelled, created_at, updated_at`

const appointmentColumnsA = `a.id, a.patient_id, a.doctor_id, a.date, a.reason, a.status, a.cancelled, a.created_at, a.updated_at`

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, patient_id, doctor_id, date, reason,
			status, cancelled, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	now := time.Now().UTC()
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	appointment.CreatedAt = now
	appointment.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		appointment.ID,
		appointment.PatientID,
		appointment.DoctorID,
		appointment.Date.UTC(),
		appointment.Reason,
		appointment.Status,
		appointment.Cancelled,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumnsA + `, COALESCE(d.full_name, 'Unknown Doctor') AS doctor_name
		FROM appointments a
		LEFT JOIN profiles d ON d.id = a.doctor_id
		WHERE a.patient_id = $1
		ORDER BY a.date ASC
	`
	appointments := []*model.Appointment{}
	if err := r.db.SelectContext(ctx, &appointments, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list patient appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumnsA + `, COALESCE(p.full_name, 'Unknown Patient') AS patient_name
		FROM appointments a
		LEFT JOIN profiles p ON p.id = a.patient_id
		WHERE a.doctor_id = $1
		ORDER BY a.date ASC
	`
	appointments := []*model.Appointment{}
	if err := r.db.SelectContext(ctx, &appointments, query, doctorID); err != nil {
		return nil, fmt.Errorf("failed to list doctor appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListDoctorWindow(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1
		AND date >= $2 AND date < $3
		AND status <> 'cancelled' AND cancelled = FALSE
		ORDER BY date ASC
	`
	appointments := []*model.Appointment{}
	if err := r.db.SelectContext(ctx, &appointments, query, doctorID, from.UTC(), to.UTC()); err != nil {
		return nil, fmt.Errorf("failed to list booked slots: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) FindUpcomingByPatient(ctx context.Context, patientID uuid.UUID) (*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE patient_id = $1 AND status = 'upcoming'
		ORDER BY date ASC
		LIMIT 1
	`
	var appointment model.Appointment
	if err := r.db.GetContext(ctx, &appointment, query, patientID); err != nil {
		return nil, notFound(err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) ExistsUpcomingAt(ctx context.Context, doctorID uuid.UUID, at time.Time) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM appointments WHERE doctor_id = $1 AND date = $2 AND status = 'upcoming')`
	if err := r.db.GetContext(ctx, &exists, query, doctorID, at.UTC()); err != nil {
		return false, fmt.Errorf("failed to check doctor availability: %w", err)
	}
	return exists, nil
}

func (r *appointmentRepository) Cancel(ctx context.Context, id, actorID uuid.UUID) (*model.Appointment, error) {
	query := `
		UPDATE appointments
		SET status = 'cancelled', cancelled = TRUE, updated_at = NOW()
		WHERE id = $1 AND (patient_id = $2 OR doctor_id = $2)
		RETURNING ` + appointmentColumns
	var appointment model.Appointment
	if err := r.db.GetContext(ctx, &appointment, query, id, actorID); err != nil {
		return nil, notFound(err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) Reschedule(ctx context.Context, id, actorID uuid.UUID, at time.Time) (*model.Appointment, error) {
	query := `
		UPDATE appointments
		SET date = $3, updated_at = NOW()
		WHERE id = $1 AND (patient_id = $2 OR doctor_id = $2)
		AND status <> 'cancelled' AND cancelled = FALSE
		RETURNING ` + appointmentColumns
	var appointment model.Appointment
	if err := r.db.GetContext(ctx, &appointment, query, id, actorID, at.UTC()); err != nil {
		return nil, notFound(err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) CompletePast(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE appointments
		SET status = 'completed', updated_at = NOW()
		WHERE status = 'upcoming' AND cancelled = FALSE AND date < $1
	`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to complete past appointments: %w", err)
	}
	return result.RowsAffected()
}
