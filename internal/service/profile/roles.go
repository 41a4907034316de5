package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/careportal/internal/model"
	"github.com/jwalitptl/careportal/internal/repository"
	apperrors "github.com/jwalitptl/careportal/pkg/errors"
)

// RequireRole fails unless id is an existing profile with the given role.
// Unknown ids are NotFound, ids of the other role are BadRequest.
func RequireRole(ctx context.Context, repo repository.ProfileRepository, id uuid.UUID, role model.Role) error {
	p, err := repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound(string(role), err)
		}
		return fmt.Errorf("failed to look up %s: %w", role, err)
	}
	if p.Role != role {
		return apperrors.NewBadRequest(fmt.Sprintf("the selected %s is not a %s account", role, role), nil)
	}
	return nil
}
