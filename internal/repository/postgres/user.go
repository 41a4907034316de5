package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/careportal/internal/model"
	"github.com/jwalitptl/careportal/internal/repository"
)

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

func (r *userRepository) CreateWithProfile(ctx context.Context, user *model.User, profile *model.Profile) error {
	now := time.Now().UTC()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Email = strings.ToLower(user.Email)
	user.CreatedAt, user.UpdatedAt = now, now
	profile.ID = user.ID
	profile.Email = user.Email
	profile.CreatedAt, profile.UpdatedAt = now, now

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, email, password_hash, role, email_verified, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, user.ID, user.Email, user.PasswordHash, user.Role, user.EmailVerified, user.CreatedAt, user.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO profiles (
				id, full_name, email, role, phone, address, dob, gender,
				allergies, past_medical_history, emergency_contact_name,
				emergency_contact_phone, insurance_provider, insurance_policy_number,
				created_at, updated_at
			) VALUES (
				:id, :full_name, :email, :role, :phone, :address, :dob, :gender,
				:allergies, :past_medical_history, :emergency_contact_name,
				:emergency_contact_phone, :insurance_provider, :insurance_policy_number,
				:created_at, :updated_at
			)
		`, profile)
		if err != nil {
			return fmt.Errorf("failed to create profile: %w", err)
		}
		return nil
	})
}

const userColumns = `id, email, password_hash, COALESCE(role, '') AS role, email_verified, last_sign_in_at, created_at, updated_at`

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	err := r.GetDB().GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.GetDB().GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email))
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *userRepository) UpdateRole(ctx context.Context, id uuid.UUID, role model.Role) error {
	return r.exec(ctx, `UPDATE users SET role = $1, updated_at = NOW() WHERE id = $2`, role, id)
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return r.exec(ctx, `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`, passwordHash, id)
}

func (r *userRepository) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, `UPDATE users SET email_verified = TRUE, updated_at = NOW() WHERE id = $1`, id)
}

func (r *userRepository) TouchSignIn(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.exec(ctx, `UPDATE users SET last_sign_in_at = $1 WHERE id = $2`, at, id)
}

func (r *userRepository) exec(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.GetDB().ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return expectAffected(result)
}
