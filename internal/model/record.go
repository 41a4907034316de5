package model

import (
	"github.com/google/uuid"
)

// PastMedicalHistorySummary labels records uploaded through the history form.
const PastMedicalHistorySummary = "Past Medical History"

// Record is either an uploaded file's metadata or, when FilePath is nil, the
// care link written alongside a booking.
type Record struct {
	Base
	PatientID   uuid.UUID `json:"patient_id" db:"patient_id"`
	DoctorID    uuid.UUID `json:"doctor_id" db:"doctor_id"`
	FilePath    *string   `json:"file_path,omitempty" db:"file_path"`
	FileName    *string   `json:"file_name,omitempty" db:"file_name"`
	FileType    *string   `json:"file_type,omitempty" db:"file_type"`
	FileSize    *int64    `json:"file_size,omitempty" db:"file_size"`
	Summary     string    `json:"summary" db:"summary"`
	AISummary   *string   `json:"ai_summary" db:"ai_summary"`
	DoctorName  string    `json:"doctor_name,omitempty" db:"doctor_name"`
	DownloadURL string    `json:"download_url,omitempty" db:"-"`
}

func (r *Record) HasFile() bool {
	return r.FilePath != nil && *r.FilePath != ""
}
