package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/careportal/internal/email"
	"github.com/jwalitptl/careportal/internal/model"
	"github.com/jwalitptl/careportal/internal/repository"
	"github.com/jwalitptl/careportal/pkg/auth"
	apperrors "github.com/jwalitptl/careportal/pkg/errors"
	"github.com/jwalitptl/careportal/pkg/logger"
	"github.com/jwalitptl/careportal/pkg/security"
)

var (
	ErrInvalidCredentials = apperrors.Unauthorized("invalid email or password")
	ErrEmailNotVerified   = apperrors.Forbidden("please confirm your email address before signing in")
	ErrInvalidSession     = apperrors.Unauthorized("session is invalid or has expired")
)

const (
	defaultVerifyTokenExpiry = 48 * time.Hour
	defaultResetTokenExpiry  = time.Hour
	defaultSessionTTL        = 7 * 24 * time.Hour
)

type Config struct {
	SiteURL              string
	RequireVerifiedEmail bool
	VerifyTokenTTL       time.Duration
	ResetTokenTTL        time.Duration
	// SessionTTL is the refresh token lifetime. A user's sign-out cutoff is
	// kept this long so every token issued before it stays rejected.
	SessionTTL time.Duration
}

type Service struct {
	userRepo    repository.UserRepository
	tokenRepo   repository.TokenRepository
	profileRepo repository.ProfileRepository
	jwtSvc      auth.JWTService
	hasher      security.PasswordHasher
	emailSvc    email.Service
	logger      *logger.Logger
	cfg         Config

	// revoked holds the jti of spent tokens and, under "user:<id>", the time
	// before which all of that user's tokens are void.
	revoked *cache.Cache
}

func NewService(userRepo repository.UserRepository, tokenRepo repository.TokenRepository,
	profileRepo repository.ProfileRepository, jwtSvc auth.JWTService, hasher security.PasswordHasher,
	emailSvc email.Service, log *logger.Logger, cfg Config) *Service {
	if cfg.VerifyTokenTTL == 0 {
		cfg.VerifyTokenTTL = defaultVerifyTokenExpiry
	}
	if cfg.ResetTokenTTL == 0 {
		cfg.ResetTokenTTL = defaultResetTokenExpiry
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	cfg.SiteURL = strings.TrimRight(cfg.SiteURL, "/")
	return &Service{
		userRepo:    userRepo,
		tokenRepo:   tokenRepo,
		profileRepo: profileRepo,
		jwtSvc:      jwtSvc,
		hasher:      hasher,
		emailSvc:    emailSvc,
		logger:      log,
		cfg:         cfg,
		revoked:     cache.New(cache.NoExpiration, 10*time.Minute),
	}
}

// SignUp creates a patient account and sends the email confirmation link.
func (s *Service) SignUp(ctx context.Context, req *model.SignUpRequest) (*model.User, error) {
	emailAddr := normalizeEmail(req.Email)
	if _, err := s.userRepo.GetByEmail(ctx, emailAddr); err == nil {
		return nil, apperrors.NewConflict("an account with this email already exists")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	dob, err := time.Parse("2006-01-02", req.DOB)
	if err != nil {
		return nil, apperrors.NewBadRequest("dob must be in YYYY-MM-DD format", err)
	}

	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:        emailAddr,
		PasswordHash: hash,
		Role:         model.RolePatient,
	}
	profile := &model.Profile{
		FullName:              strings.TrimSpace(req.FullName),
		Role:                  model.RolePatient,
		Phone:                 req.Phone,
		Address:               req.Address,
		DOB:                   &dob,
		Gender:                req.Gender,
		Allergies:             req.Allergies,
		PastMedicalHistory:    req.PastMedicalHistory,
		EmergencyContactName:  req.EmergencyContactName,
		EmergencyContactPhone: req.EmergencyContactPhone,
		InsuranceProvider:     req.InsuranceProvider,
		InsurancePolicyNumber: req.InsurancePolicyNumber,
	}
	if err := s.userRepo.CreateWithProfile(ctx, user, profile); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	if err := s.sendVerification(ctx, user); err != nil {
		s.logger.Warn(err, "failed to send verification email", "user_id", user.ID.String())
	}
	return user, nil
}

func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	userID, err := s.tokenRepo.Consume(ctx, token, model.TokenPurposeVerify)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewBadRequest("verification link is invalid or has expired", err)
		}
		return fmt.Errorf("failed to consume verification token: %w", err)
	}
	if err := s.userRepo.MarkEmailVerified(ctx, userID); err != nil {
		return fmt.Errorf("failed to verify email: %w", err)
	}
	return nil
}

// ResendVerification mails a fresh confirmation link to an unverified account.
// Like ForgotPassword it never reports whether the account exists.
func (s *Service) ResendVerification(ctx context.Context, emailAddr string) error {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(emailAddr))
	if err != nil || user.EmailVerified {
		return nil
	}
	if err := s.sendVerification(ctx, user); err != nil {
		s.logger.Warn(err, "failed to resend verification email", "user_id", user.ID.String())
	}
	return nil
}

func (s *Service) Login(ctx context.Context, emailAddr, password string) (*model.TokenResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(emailAddr))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	if s.cfg.RequireVerifiedEmail && !user.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	if !user.Role.Valid() {
		if err := s.backfillRole(ctx, user); err != nil {
			return nil, err
		}
	}

	if err := s.userRepo.TouchSignIn(ctx, user.ID, time.Now().UTC()); err != nil {
		s.logger.Warn(err, "failed to record sign-in", "user_id", user.ID.String())
	}

	return s.generateTokens(user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (*model.TokenResponse, error) {
	claims, err := s.jwtSvc.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidSession
	}
	userID, _ := claims.UserID()
	if s.isRevoked(claims.ID) || s.signedOut(userID, claims) {
		return nil, ErrInvalidSession
	}

	user, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	// one refresh token, one exchange
	s.revoke(claims.ID, claims.ExpiresAt.Time)
	return s.generateTokens(user)
}

// Logout ends every session of the token's owner, refresh tokens included.
func (s *Service) Logout(_ context.Context, accessToken string) error {
	claims, err := s.jwtSvc.ValidateToken(accessToken)
	if err != nil {
		return nil
	}
	s.revoke(claims.ID, claims.ExpiresAt.Time)
	if userID, err := claims.UserID(); err == nil {
		s.signOutAll(userID)
	}
	return nil
}

// ForgotPassword never reports whether the account exists.
func (s *Service) ForgotPassword(ctx context.Context, emailAddr string) error {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(emailAddr))
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Error(err, "failed to look up user for password reset")
		}
		return nil
	}

	token, err := s.issueToken(ctx, user.ID, model.TokenPurposeReset, s.cfg.ResetTokenTTL)
	if err != nil {
		s.logger.Error(err, "failed to issue reset token", "user_id", user.ID.String())
		return nil
	}
	if err := s.emailSvc.SendPasswordReset(ctx, user.Email, s.link("/auth/reset-password", token)); err != nil {
		s.logger.Warn(err, "failed to send password reset email", "user_id", user.ID.String())
	}
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}

	userID, err := s.tokenRepo.Consume(ctx, token, model.TokenPurposeReset)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewBadRequest("reset link is invalid or has expired", err)
		}
		return fmt.Errorf("failed to consume reset token: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	s.signOutAll(userID)
	return nil
}

// ValidateToken resolves an access token to a session. The role falls back to the
// profile row when the token carries none.
func (s *Service) ValidateToken(ctx context.Context, token string) (*model.Session, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return nil, ErrInvalidSession
	}
	userID, _ := claims.UserID()
	if s.isRevoked(claims.ID) || s.signedOut(userID, claims) {
		return nil, ErrInvalidSession
	}

	session := &model.Session{
		UserID:    userID,
		Email:     claims.Email,
		Role:      claims.Role,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}

	if !session.Role.Valid() {
		profile, err := s.profileRepo.Get(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve role: %w", err)
		}
		session.Role = profile.Role
	}
	return session, nil
}

// CreateDoctor provisions a doctor account. Sign-up only ever creates patients.
func (s *Service) CreateDoctor(ctx context.Context, emailAddr, password, fullName string) (*model.User, error) {
	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:         normalizeEmail(emailAddr),
		PasswordHash:  hash,
		Role:          model.RoleDoctor,
		EmailVerified: true,
	}
	profile := &model.Profile{
		FullName: strings.TrimSpace(fullName),
		Role:     model.RoleDoctor,
	}
	if err := s.userRepo.CreateWithProfile(ctx, user, profile); err != nil {
		return nil, fmt.Errorf("failed to create doctor: %w", err)
	}
	return user, nil
}

func (s *Service) backfillRole(ctx context.Context, user *model.User) error {
	profile, err := s.profileRepo.Get(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to get profile: %w", err)
	}
	if !profile.Role.Valid() {
		return apperrors.Forbidden("account has no role assigned")
	}
	if err := s.userRepo.UpdateRole(ctx, user.ID, profile.Role); err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	user.Role = profile.Role
	return nil
}

func (s *Service) generateTokens(user *model.User) (*model.TokenResponse, error) {
	accessToken, claims, err := s.jwtSvc.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refreshToken, err := s.jwtSvc.GenerateRefreshToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return &model.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    claims.ExpiresAt.Time,
		Role:         user.Role,
	}, nil
}

func (s *Service) sendVerification(ctx context.Context, user *model.User) error {
	token, err := s.issueToken(ctx, user.ID, model.TokenPurposeVerify, s.cfg.VerifyTokenTTL)
	if err != nil {
		return err
	}
	return s.emailSvc.SendVerification(ctx, user.Email, s.link("/auth/callback", token))
}

func (s *Service) issueToken(ctx context.Context, userID uuid.UUID, purpose model.TokenPurpose, ttl time.Duration) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	token := hex.EncodeToString(buf)
	if err := s.tokenRepo.Store(ctx, userID, token, purpose, time.Now().Add(ttl)); err != nil {
		return "", fmt.Errorf("failed to store token: %w", err)
	}
	return token, nil
}

func (s *Service) link(path, token string) string {
	return s.cfg.SiteURL + path + "?token=" + url.QueryEscape(token)
}

func (s *Service) hashPassword(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, security.ErrWeakPassword) {
			return "", apperrors.NewBadRequest(security.ErrWeakPassword.Error(), err)
		}
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

func (s *Service) revoke(jti string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if jti == "" || ttl <= 0 {
		return
	}
	s.revoked.Set(jti, struct{}{}, ttl)
}

func (s *Service) isRevoked(jti string) bool {
	_, found := s.revoked.Get(jti)
	return found
}

func (s *Service) signOutAll(userID uuid.UUID) {
	s.revoked.Set("user:"+userID.String(), time.Now(), s.cfg.SessionTTL)
}

// signedOut reports whether the token was issued before its owner's last cutoff.
func (s *Service) signedOut(userID uuid.UUID, claims *auth.Claims) bool {
	v, found := s.revoked.Get("user:" + userID.String())
	if !found {
		return false
	}
	cutoff := v.(time.Time)
	return claims.IssuedAt == nil || !claims.IssuedAt.Time.After(cutoff)
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
