package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jwalitptl/careportal/internal/model"
)

const profileColumns = `p.id, p.full_name, p.email, p.role, p.phone, p.address, p.dob, p.gender,
	p.allergies, p.past_medical_history, p.emergency_contact_name, p.emergency_contact_phone,
	p.insurance_provider, p.insurance_policy_number, p.created_at, p.updated_at`

func (r *profileRepository) Get(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.GetContext(ctx, &profile, `SELECT `+profileColumns+` FROM profiles p WHERE p.id = $1`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &profile, nil
}

// Update writes only the allow-listed columns present in update.
func (r *profileRepository) Update(ctx context.Context, id uuid.UUID, update model.ProfileUpdate) error {
	var (
		sets []string
		args []interface{}
	)
	add := func(column string, value *string) {
		if value == nil {
			return
		}
		args = append(args, *value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("phone", update.Phone)
	add("address", update.Address)
	add("gender", update.Gender)
	add("allergies", update.Allergies)
	add("past_medical_history", update.PastMedicalHistory)

	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf(
		"UPDATE profiles SET %s, updated_at = NOW() WHERE id = $%d",
		strings.Join(sets, ", "), len(args),
	)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return expectAffected(result)
}

func (r *profileRepository) ListDoctors(ctx context.Context) ([]*model.DoctorSummary, error) {
	doctors := []*model.DoctorSummary{}
	if err := r.db.SelectContext(ctx, &doctors, `SELECT id, full_name, email FROM get_doctors()`); err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	return doctors, nil
}

func (r *profileRepository) ListPatientsForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.PatientSummary, error) {
	query := `
		SELECT ` + profileColumns + `,
			(SELECT COUNT(*) FROM records rec WHERE rec.patient_id = p.id AND rec.file_path IS NOT NULL) AS record_count
		FROM profiles p
		WHERE p.id IN (
			SELECT DISTINCT patient_id
			FROM appointments
			WHERE doctor_id = $1 AND status = ANY($2) AND cancelled = FALSE
		)
		ORDER BY p.full_name ASC
	`
	statuses := pq.Array([]string{
		string(model.AppointmentStatusUpcoming),
		string(model.AppointmentStatusCompleted),
	})

	patients := []*model.PatientSummary{}
	if err := r.db.SelectContext(ctx, &patients, query, doctorID, statuses); err != nil {
		return nil, fmt.Errorf("failed to list patients for doctor: %w", err)
	}
	return patients, nil
}
