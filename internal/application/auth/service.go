package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-premium-api/internal/application/emailgate"
	"github.com/go-premium-api/internal/application/entitlement"
	"github.com/go-premium-api/internal/application/otp"
	"github.com/go-premium-api/internal/domain"
)

type RequestCodeRequest struct {
	Email string `json:"email" validate:"required"`
}

// LoginRequest only requires a code; a malformed one is rejected like any
// other wrong code.
type LoginRequest struct {
	Email string `json:"email" validate:"required"`
	Code  string `json:"code" validate:"required"`
}

type ConfirmEmailRequest struct {
	Email string `json:"email" validate:"required"`
	Code  string `json:"code" validate:"required,otp"`
}

// StatusResult is what an unauthenticated caller may learn about an address.
type StatusResult struct {
	Email         string     `json:"email"`
	Premium       bool       `json:"premium"`
	EmailVerified bool       `json:"email_verified"`
	ActivatedAt   *time.Time `json:"activated_at,omitempty"`
}

// Mailer delivers codes to the address they were issued for.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

// TokenSigner issues the bearer credential handed out after login.
type TokenSigner interface {
	Sign(email string) (string, error)
}

type Service interface {
	// RequestLoginCode issues and mails a login code. The code itself is only
	// returned when the service runs in development mode.
	RequestLoginCode(ctx context.Context, email string) (devCode string, err error)
	Login(ctx context.Context, req LoginRequest) (token string, err error)
	RequestEmailConfirmation(ctx context.Context, email string) (devCode string, err error)
	ConfirmEmail(ctx context.Context, req ConfirmEmailRequest) error
	Status(ctx context.Context, email string) (*StatusResult, error)
}

type ServiceDeps struct {
	Codes        otp.Service
	Gate         emailgate.Service
	Entitlements entitlement.Service
	Mailer       Mailer
	Signer       TokenSigner
	DevMode      bool
}

type service struct {
	codes        otp.Service
	gate         emailgate.Service
	entitlements entitlement.Service
	mailer       Mailer
	signer       TokenSigner
	devMode      bool
}

func NewService(deps ServiceDeps) Service {
	return &service{
		codes:        deps.Codes,
		gate:         deps.Gate,
		entitlements: deps.Entitlements,
		mailer:       deps.Mailer,
		signer:       deps.Signer,
		devMode:      deps.DevMode,
	}
}

func (s *service) RequestLoginCode(ctx context.Context, email string) (string, error) {
	return s.sendCode(ctx, email, domain.PurposeLogin, "Your login code")
}

func (s *service) RequestEmailConfirmation(ctx context.Context, email string) (string, error) {
	return s.sendCode(ctx, email, domain.PurposeEmail, "Confirm your email")
}

func (s *service) sendCode(ctx context.Context, email string, purpose domain.CodePurpose, subject string) (string, error) {
	c, err := s.codes.Issue(ctx, email, purpose)
	if err != nil {
		return "", err
	}
	body := fmt.Sprintf("Your code: %s\r\n\r\nIt expires at %s UTC.", c.Code, c.ExpiresAt.UTC().Format("15:04"))
	if err := s.mailer.SendEmail(c.Identity, subject, body); err != nil {
		if s.devMode {
			slog.Warn("code mail not delivered; returning code in development mode", "identity", c.Identity, "err", err)
			return c.Code, nil
		}
		return "", fmt.Errorf("send code: %w", err)
	}
	if s.devMode {
		return c.Code, nil
	}
	return "", nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (string, error) {
	ok, err := s.codes.Verify(ctx, req.Email, domain.PurposeLogin, req.Code)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("invalid or expired code: %w", domain.ErrUnauthorized)
	}

	entitled, err := s.entitlements.IsEntitled(ctx, req.Email)
	if err != nil {
		return "", err
	}
	if !entitled {
		return "", fmt.Errorf("premium required: %w", domain.ErrForbidden)
	}

	token, err := s.signer.Sign(domain.NormalizeEmail(req.Email))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

func (s *service) ConfirmEmail(ctx context.Context, req ConfirmEmailRequest) error {
	ok, err := s.codes.Verify(ctx, req.Email, domain.PurposeEmail, req.Code)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("invalid or expired code: %w", domain.ErrUnauthorized)
	}
	return s.gate.MarkVerified(ctx, req.Email)
}

func (s *service) Status(ctx context.Context, email string) (*StatusResult, error) {
	email = domain.NormalizeEmail(email)
	if !domain.ValidEmail(email) {
		return nil, fmt.Errorf("invalid email: %w", domain.ErrBadRequest)
	}
	res := &StatusResult{Email: email}

	e, err := s.entitlements.Get(ctx, email)
	switch {
	case err == nil:
		res.Premium = true
		at := e.ActivatedAt
		res.ActivatedAt = &at
	case errors.Is(err, domain.ErrNotFound):
	default:
		return nil, err
	}

	verified, err := s.gate.IsVerified(ctx, email)
	if err != nil {
		return nil, err
	}
	res.EmailVerified = verified
	return res, nil
}
