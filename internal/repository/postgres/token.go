package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/careportal/internal/model"
	"github.com/jwalitptl/careportal/internal/repository"
)

type tokenRepository struct {
	BaseRepository
}

func NewTokenRepository(base BaseRepository) repository.TokenRepository {
	return &tokenRepository{base}
}

// Store replaces any outstanding token of the same purpose for the user.
func (r *tokenRepository) Store(ctx context.Context, userID uuid.UUID, token string, purpose model.TokenPurpose, expiresAt time.Time) error {
	query := `
		INSERT INTO user_tokens (user_id, token, purpose, expires_at, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id, purpose) DO UPDATE
		SET token = EXCLUDED.token, expires_at = EXCLUDED.expires_at, used_at = NULL, created_at = NOW()
	`
	if _, err := r.GetDB().ExecContext(ctx, query, userID, token, purpose, expiresAt); err != nil {
		return fmt.Errorf("failed to store %s token: %w", purpose, err)
	}
	return nil
}

func (r *tokenRepository) Consume(ctx context.Context, token string, purpose model.TokenPurpose) (uuid.UUID, error) {
	var userID uuid.UUID
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &userID, `
			SELECT user_id
			FROM user_tokens
			WHERE token = $1
			AND purpose = $2
			AND expires_at > NOW()
			AND used_at IS NULL
			FOR UPDATE
		`, token, purpose)
		if err != nil {
			return notFound(err)
		}

		_, err = tx.ExecContext(ctx, `UPDATE user_tokens SET used_at = NOW() WHERE token = $1`, token)
		if err != nil {
			return fmt.Errorf("failed to invalidate token: %w", err)
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return userID, nil
}
