package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"projectdesk/internal/service"
)

func TestParseAPIError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
		wantMsg  string
	}{
		{"gotrue msg", 400, `{"code":400,"error_code":"invalid_credentials","msg":"Invalid login credentials"}`, "invalid_credentials", "Invalid login credentials"},
		{"gotrue oauth", 400, `{"error":"invalid_grant","error_description":"Invalid Refresh Token"}`, "invalid_grant", "Invalid Refresh Token"},
		{"postgrest", 403, `{"code":"42501","message":"new row violates row-level security policy","details":null,"hint":null}`, "42501", "new row violates row-level security policy"},
		{"plain text", 502, `bad gateway`, "", "bad gateway"},
		{"empty", 503, ``, "", "Service Unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := parseAPIError(tt.status, []byte(tt.body))
			assert.Equal(t, tt.status, e.Status)
			assert.Equal(t, tt.wantCode, e.Code)
			assert.Equal(t, tt.wantMsg, e.Message)
		})
	}
}

func TestWrapAuthError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want service.AuthErrorKind
	}{
		{"invalid credentials", &apiError{Status: 400, Code: "invalid_credentials"}, service.AuthInvalidCredentials},
		{"invalid grant", &apiError{Status: 400, Code: "invalid_grant"}, service.AuthInvalidCredentials},
		{"duplicate", &apiError{Status: 422, Code: "user_already_exists"}, service.AuthDuplicateUser},
		{"duplicate by message", &apiError{Status: 400, Message: "User already registered"}, service.AuthDuplicateUser},
		{"unconfirmed", &apiError{Status: 400, Code: "email_not_confirmed"}, service.AuthEmailNotConfirmed},
		{"refresh revoked", &apiError{Status: 400, Code: "refresh_token_not_found"}, service.AuthSessionExpired},
		{"unauthorized", &apiError{Status: 401}, service.AuthSessionExpired},
		{"weak password", &apiError{Status: 422, Code: "weak_password"}, service.AuthInvalidCredentials},
		{"server error", &apiError{Status: 500}, service.AuthTransient},
		{"rate limited", &apiError{Status: 429}, service.AuthTransient},
		{"timeout", fmt.Errorf("do request: %w", context.DeadlineExceeded), service.AuthTransient},
		{"unexpected", errors.New("decode response: EOF"), service.AuthUnknown},
		{"teapot", &apiError{Status: http.StatusTeapot}, service.AuthUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrapAuthError("op", tt.err)
			assert.True(t, service.IsAuthKind(err, tt.want), "got %v", err)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.NoError(t, wrapAuthError("op", nil))
	already := service.NewAuthError("inner", service.AuthNotAuthenticated, "x")
	assert.Same(t, already, wrapAuthError("outer", already))
}

func TestWrapStoreError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want service.StoreErrorKind
	}{
		{"rls", &apiError{Status: 403, Code: "42501"}, service.StorePermissionDenied},
		{"jwt expired", &apiError{Status: 401, Code: "PGRST301"}, service.StorePermissionDenied},
		{"not found", &apiError{Status: 406, Code: "PGRST116"}, service.StoreNotFound},
		{"check violation", &apiError{Status: 400, Code: "23514"}, service.StoreValidation},
		{"bad date", &apiError{Status: 400, Code: "22007"}, service.StoreValidation},
		{"conflict", &apiError{Status: 409}, service.StoreValidation},
		{"unavailable", &apiError{Status: 503}, service.StoreTransient},
		{"canceled", context.Canceled, service.StoreTransient},
		{"session gone", &service.AuthError{Op: "authorize", Kind: service.AuthNotAuthenticated}, service.StorePermissionDenied},
		{"unexpected", errors.New("boom"), service.StoreUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrapStoreError("op", tt.err)
			assert.True(t, service.IsStoreKind(err, tt.want), "got %v", err)
		})
	}
	assert.NoError(t, wrapStoreError("op", nil))
}
