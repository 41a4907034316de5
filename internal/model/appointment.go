package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusUpcoming  AppointmentStatus = "upcoming"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// DisplayStatus is what a user sees, derived from the stored status and the clock.
type DisplayStatus string

const (
	DisplayUpcoming  DisplayStatus = "Upcoming"
	DisplayCompleted DisplayStatus = "Completed"
	DisplayCancelled DisplayStatus = "Cancelled"
)

type Appointment struct {
	Base
	PatientID     uuid.UUID         `json:"patient_id" db:"patient_id"`
	DoctorID      uuid.UUID         `json:"doctor_id" db:"doctor_id"`
	Date          time.Time         `json:"date" db:"date"`
	Reason        string            `json:"reason" db:"reason"`
	Status        AppointmentStatus `json:"status" db:"status"`
	Cancelled     bool              `json:"cancelled" db:"cancelled"`
	PatientName   string            `json:"patient_name,omitempty" db:"patient_name"`
	DoctorName    string            `json:"doctor_name,omitempty" db:"doctor_name"`
	DisplayStatus DisplayStatus     `json:"display_status,omitempty" db:"-"`
}

func (a *Appointment) IsCancelled() bool {
	return a.Cancelled || a.Status == AppointmentStatusCancelled
}

// DisplayStatusAt: cancellation wins, otherwise the date decides.
func (a *Appointment) DisplayStatusAt(now time.Time) DisplayStatus {
	switch {
	case a.IsCancelled():
		return DisplayCancelled
	case a.Date.After(now):
		return DisplayUpcoming
	default:
		return DisplayCompleted
	}
}

type AppointmentFilter string

const (
	FilterAll       AppointmentFilter = "all"
	FilterUpcoming  AppointmentFilter = "upcoming"
	FilterCompleted AppointmentFilter = "completed"
	FilterCancelled AppointmentFilter = "cancelled"
)

func ParseAppointmentFilter(s string) (AppointmentFilter, error) {
	switch f := AppointmentFilter(s); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterUpcoming, FilterCompleted, FilterCancelled:
		return f, nil
	default:
		return "", fmt.Errorf("unknown appointment filter %q", s)
	}
}

func (f AppointmentFilter) Matches(s DisplayStatus) bool {
	switch f {
	case FilterUpcoming:
		return s == DisplayUpcoming
	case FilterCompleted:
		return s == DisplayCompleted
	case FilterCancelled:
		return s == DisplayCancelled
	default:
		return true
	}
}

// SlotSelection is a calendar date (YYYY-MM-DD) plus a half-hour slot label (HH:MM).
type SlotSelection struct {
	Date string `json:"date" binding:"required,caldate"`
	Time string `json:"time" binding:"required,timeslot"`
}

type BookAppointmentRequest struct {
	DoctorID uuid.UUID `json:"doctor_id" binding:"required"`
	SlotSelection
	Reason string `json:"reason" binding:"required"`
}

type DoctorBookingRequest struct {
	SlotSelection
	Reason string `json:"reason" binding:"required"`
}

type RescheduleRequest struct {
	SlotSelection
}
