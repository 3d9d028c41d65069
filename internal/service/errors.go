package service

import (
	"errors"
	"fmt"
)

// AuthErrorKind classifies an authentication failure.
type AuthErrorKind string

const (
	AuthInvalidCredentials AuthErrorKind = "invalid credentials"
	AuthDuplicateUser      AuthErrorKind = "user already registered"
	AuthSessionExpired     AuthErrorKind = "session expired"
	AuthNotAuthenticated   AuthErrorKind = "not logged in"
	AuthEmailNotConfirmed  AuthErrorKind = "email not confirmed"
	AuthTransient          AuthErrorKind = "auth service unavailable"
	AuthUnknown            AuthErrorKind = "auth error"
)

// AuthError is returned by AuthService calls and by the session manager.
type AuthError struct {
	Op   string
	Kind AuthErrorKind
	Err  error
}

func (e *AuthError) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Err }

// StoreErrorKind classifies a record operation failure.
type StoreErrorKind string

const (
	StoreTransient        StoreErrorKind = "store unavailable"
	StorePermissionDenied StoreErrorKind = "permission denied"
	StoreNotFound         StoreErrorKind = "not found"
	StoreValidation       StoreErrorKind = "invalid record"
	StoreUnknown          StoreErrorKind = "store error"
)

// StoreError is returned by RecordService calls and by the project manager.
type StoreError struct {
	Op   string
	Kind StoreErrorKind
	Err  error
}

func (e *StoreError) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StoreError) Unwrap() error { return e.Err }

// NewAuthError builds an AuthError with a formatted cause.
func NewAuthError(op string, kind AuthErrorKind, format string, args ...any) *AuthError {
	return &AuthError{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// NewStoreError builds a StoreError with a formatted cause.
func NewStoreError(op string, kind StoreErrorKind, format string, args ...any) *StoreError {
	return &StoreError{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// IsAuthKind reports whether err wraps an AuthError of the given kind.
func IsAuthKind(err error, kind AuthErrorKind) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Kind == kind
}

// IsStoreKind reports whether err wraps a StoreError of the given kind.
func IsStoreKind(err error, kind StoreErrorKind) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Kind == kind
}

// IsTransient reports whether err is a network, timeout or server-side failure
// that may succeed if retried.
func IsTransient(err error) bool {
	return IsAuthKind(err, AuthTransient) || IsStoreKind(err, StoreTransient)
}
