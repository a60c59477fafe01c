package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"golang.org/x/crypto/bcrypt"

	"acme/internal/core"
	"acme/internal/log"
	"acme/internal/metrics"
	"acme/internal/validation"
)

// Sign-in outcomes, used as metric labels.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeError              = "error"
)

// UserFinder looks a user up by email. A missing user is nil, nil.
type UserFinder interface {
	FindUserByEmail(ctx context.Context, email string) (*core.User, error)
}

var credentialsSchema = validation.Schema{
	FailureMessage: MsgInvalidCredentials,
	Fields: []validation.Field{
		{Name: "email", Checks: []validation.Check{
			validation.Required("email is required"),
			validation.Contains("@", "email is invalid"),
		}},
		{Name: "password", Checks: []validation.Check{
			validation.MinLength(6, "password must be at least 6 characters"),
		}},
	},
}

// CredentialsProvider checks an email and password against stored bcrypt
// hashes.
type CredentialsProvider struct {
	users   UserFinder
	logger  *log.Logger
	metrics *metrics.Metrics
}

func NewCredentialsProvider(users UserFinder, logger *log.Logger, m *metrics.Metrics) *CredentialsProvider {
	return &CredentialsProvider{
		users:   users,
		logger:  logger.WithComponent(log.ComponentAuth),
		metrics: m,
	}
}

// SignIn verifies creds. Malformed input, an unknown email and a wrong
// password are all CredentialsSignin; a store failure is a CallbackRouteError.
func (p *CredentialsProvider) SignIn(ctx context.Context, scheme string, creds Credentials) error {
	if scheme != SchemeCredentials {
		return &Error{Type: Configuration, Err: fmt.Errorf("unsupported scheme %q", scheme)}
	}

	res := validation.Validate(credentialsSchema, url.Values{
		"email":    {creds.Email},
		"password": {creds.Password},
	})
	if !res.OK() {
		return p.reject(ctx, "malformed credentials")
	}

	user, err := p.users.FindUserByEmail(ctx, res.String("email"))
	if err != nil {
		p.metrics.SignIn(OutcomeError)
		p.logger.ErrorContext(ctx, "User lookup failed",
			log.NewFields().WithOperation(log.OpSignIn).WithError(err).WithErrorType(log.ErrorTypeDatabase).ToSlice()...)
		return &Error{Type: CallbackRouteError, Err: fmt.Errorf("find user: %w", err)}
	}
	if user == nil {
		return p.reject(ctx, "unknown user")
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(res.String("password")))
	switch {
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return p.reject(ctx, "password mismatch")
	case err != nil:
		p.metrics.SignIn(OutcomeError)
		p.logger.ErrorContext(ctx, "Stored password hash unusable",
			log.NewFields().WithOperation(log.OpSignIn).WithError(err).WithErrorType(log.ErrorTypeAuth).ToSlice()...)
		return &Error{Type: CallbackRouteError, Err: err}
	}

	p.metrics.SignIn(OutcomeSuccess)
	p.logger.InfoContext(ctx, "User signed in", "user_id", user.ID)
	return nil
}

func (p *CredentialsProvider) reject(ctx context.Context, reason string) error {
	p.metrics.SignIn(OutcomeInvalidCredentials)
	p.logger.InfoContext(ctx, "Sign-in rejected", "reason", reason)
	return &Error{Type: CredentialsSignin}
}
