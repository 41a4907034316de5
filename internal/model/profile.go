package model

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor
}

type Profile struct {
	Base
	FullName              string     `json:"full_name" db:"full_name"`
	Email                 string     `json:"email" db:"email"`
	Role                  Role       `json:"role" db:"role"`
	Phone                 string     `json:"phone" db:"phone"`
	Address               string     `json:"address" db:"address"`
	DOB                   *time.Time `json:"dob,omitempty" db:"dob"`
	Gender                string     `json:"gender" db:"gender"`
	Allergies             string     `json:"allergies" db:"allergies"`
	PastMedicalHistory    string     `json:"past_medical_history" db:"past_medical_history"`
	EmergencyContactName  string     `json:"emergency_contact_name" db:"emergency_contact_name"`
	EmergencyContactPhone string     `json:"emergency_contact_phone" db:"emergency_contact_phone"`
	InsuranceProvider     string     `json:"insurance_provider" db:"insurance_provider"`
	InsurancePolicyNumber string     `json:"insurance_policy_number" db:"insurance_policy_number"`
}

// ProfileUpdate holds the only profile fields a user may change themselves.
// Name, email and date of birth are fixed at sign-up.
type ProfileUpdate struct {
	Phone              *string `json:"phone" binding:"omitempty,phone10"`
	Address            *string `json:"address" binding:"omitempty,max=500"`
	Gender             *string `json:"gender" binding:"omitempty,oneof=male female other"`
	Allergies          *string `json:"allergies" binding:"omitempty,max=2000"`
	PastMedicalHistory *string `json:"past_medical_history" binding:"omitempty,max=5000"`
}

func (u ProfileUpdate) Empty() bool {
	return u.Phone == nil && u.Address == nil && u.Gender == nil &&
		u.Allergies == nil && u.PastMedicalHistory == nil
}

type DoctorSummary struct {
	ID       uuid.UUID `json:"id" db:"id"`
	FullName string    `json:"full_name" db:"full_name"`
	Email    string    `json:"email" db:"email"`
}

// PatientSummary is one row of a doctor's patient list.
type PatientSummary struct {
	Profile
	RecordCount  int            `json:"record_count" db:"record_count"`
	Appointments []*Appointment `json:"appointments" db:"-"`
}
