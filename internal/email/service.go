package email

import (
	"context"
)

type Service interface {
	SendVerification(ctx context.Context, to string, link string) error
	SendPasswordReset(ctx context.Context, to string, link string) error
	SendCustom(ctx context.Context, to string, subject string, content string) error
}
