package model

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	Base
	Email         string     `json:"email" db:"email"`
	PasswordHash  string     `json:"-" db:"password_hash"`
	Role          Role       `json:"role" db:"role"`
	EmailVerified bool       `json:"email_verified" db:"email_verified"`
	LastSignInAt  *time.Time `json:"last_sign_in_at,omitempty" db:"last_sign_in_at"`
}

type TokenPurpose string

const (
	TokenPurposeVerify TokenPurpose = "verify"
	TokenPurposeReset  TokenPurpose = "reset"
)

type SignUpRequest struct {
	Email                 string `json:"email" binding:"required,email"`
	Password              string `json:"password" binding:"required,strongpassword"`
	FullName              string `json:"full_name" binding:"required,max=200"`
	DOB                   string `json:"dob" binding:"required,caldate"`
	Phone                 string `json:"phone" binding:"required,phone10"`
	Address               string `json:"address" binding:"required,max=500"`
	Gender                string `json:"gender" binding:"required,oneof=male female other"`
	EmergencyContactName  string `json:"emergency_contact_name"`
	EmergencyContactPhone string `json:"emergency_contact_phone" binding:"omitempty,phone10"`
	InsuranceProvider     string `json:"insurance_provider"`
	InsurancePolicyNumber string `json:"insurance_policy_number"`
	Allergies             string `json:"allergies"`
	PastMedicalHistory    string `json:"past_medical_history"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,strongpassword"`
}

type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Role         Role      `json:"role"`
}

// Session is the authenticated caller as resolved from an access token.
type Session struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}
