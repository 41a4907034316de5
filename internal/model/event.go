package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventAppointmentBooked      EventType = "appointment.booked"
	EventAppointmentCancelled   EventType = "appointment.cancelled"
	EventAppointmentRescheduled EventType = "appointment.rescheduled"
	EventRecordUploaded         EventType = "record.uploaded"
)

type Event struct {
	ID         uuid.UUID       `json:"id"`
	Type       EventType       `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

type AppointmentEvent struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	Date          time.Time `json:"date"`
	Reason        string    `json:"reason,omitempty"`
	ActorID       uuid.UUID `json:"actor_id"`
}

type RecordEvent struct {
	RecordID   uuid.UUID `json:"record_id"`
	PatientID  uuid.UUID `json:"patient_id"`
	UploaderID uuid.UUID `json:"uploader_id"`
	FileName   string    `json:"file_name"`
}
