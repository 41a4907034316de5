package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/careportal/internal/model"
)

const recordColumns = `id, patient_id, doctor_id, file_path, file_name, file_type, file_size, summary, ai_summary, created_at, updated_at`

func (r *recordRepository) Create(ctx context.Context, record *model.Record) error {
	now := time.Now().UTC()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.CreatedAt = now
	record.UpdatedAt = now

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO records (`+recordColumns+`)
		VALUES (
			:id, :patient_id, :doctor_id, :file_path, :file_name, :file_type,
			:file_size, :summary, :ai_summary, :created_at, :updated_at
		)
	`, record)
	if err != nil {
		return fmt.Errorf("failed to create record: %w", err)
	}
	return nil
}

// FindByPair returns the most recently touched record linking patient and doctor.
func (r *recordRepository) FindByPair(ctx context.Context, patientID, doctorID uuid.UUID) (*model.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM records
		WHERE patient_id = $1 AND doctor_id = $2
		ORDER BY updated_at DESC
		LIMIT 1
	`
	var record model.Record
	if err := r.db.GetContext(ctx, &record, query, patientID, doctorID); err != nil {
		return nil, notFound(err)
	}
	return &record, nil
}

func (r *recordRepository) Touch(ctx context.Context, id, doctorID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE records SET doctor_id = $1, updated_at = NOW() WHERE id = $2`, doctorID, id)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	return expectAffected(result)
}

func (r *recordRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Record, error) {
	query := `
		SELECT r.id, r.patient_id, r.doctor_id, r.file_path, r.file_name, r.file_type, r.file_size,
			r.summary, r.ai_summary, r.created_at, r.updated_at,
			COALESCE(d.full_name, '') AS doctor_name
		FROM records r
		LEFT JOIN profiles d ON d.id = r.doctor_id
		WHERE r.patient_id = $1
		ORDER BY r.created_at DESC
	`
	records := []*model.Record{}
	if err := r.db.SelectContext(ctx, &records, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return records, nil
}
