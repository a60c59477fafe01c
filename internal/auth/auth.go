// Package auth maps credential sign-in attempts to user-facing messages.
package auth

import (
	"context"
	"errors"
	"fmt"

	"acme/internal/validation"
)

// SchemeCredentials is the email/password sign-in scheme.
const SchemeCredentials = "credentials"

// ErrorType classifies an authentication failure.
type ErrorType string

const (
	CredentialsSignin  ErrorType = "CredentialsSignin"
	Configuration      ErrorType = "Configuration"
	CallbackRouteError ErrorType = "CallbackRouteError"
)

// User-facing sign-in messages.
const (
	MsgInvalidCredentials = "Invalid credentials."
	MsgSomethingWrong     = "Something went wrong."
)

// Error is an authentication failure of a known type. Anything that is not
// an *Error is treated as fatal by Authenticate.
type Error struct {
	Type ErrorType
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Type, e.Err)
	}
	return string(e.Type)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Credentials is the submitted email and password.
type Credentials struct {
	Email    string
	Password string
}

// Provider is the identity collaborator.
type Provider interface {
	SignIn(ctx context.Context, scheme string, creds Credentials) error
}

// Authenticate signs in with the email and password of form. It returns ""
// on success, a message for a known auth failure, and the error itself for
// anything else.
func Authenticate(ctx context.Context, p Provider, form validation.Values) (string, error) {
	creds := Credentials{Email: form.Get("email"), Password: form.Get("password")}

	err := p.SignIn(ctx, SchemeCredentials, creds)
	if err == nil {
		return "", nil
	}

	var authErr *Error
	if !errors.As(err, &authErr) {
		return "", err
	}
	if authErr.Type == CredentialsSignin {
		return MsgInvalidCredentials, nil
	}
	return MsgSomethingWrong, nil
}
