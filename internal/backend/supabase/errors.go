package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"projectdesk/internal/service"
)

// apiError is a non-2xx response from GoTrue or PostgREST.
type apiError struct {
	Status  int
	Code    string // GoTrue error_code / error, or PostgREST code
	Message string
}

func (e *apiError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("HTTP %d: %s (%s)", e.Status, e.Message, e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// parseAPIError reads the error shapes GoTrue and PostgREST emit:
//
//	{"code":400,"error_code":"invalid_credentials","msg":"..."}
//	{"error":"invalid_grant","error_description":"..."}
//	{"code":"42501","message":"...","details":null,"hint":null}
func parseAPIError(status int, body []byte) *apiError {
	e := &apiError{Status: status}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		e.Message = strings.TrimSpace(string(body))
		if e.Message == "" {
			e.Message = http.StatusText(status)
		}
		return e
	}

	e.Code = firstString(raw, "error_code", "code", "error")
	e.Message = firstString(raw, "msg", "message", "error_description", "error")
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// isTransient reports network failures, timeouts, throttling and server errors.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	// *url.Error from the transport implements net.Error.
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.Status >= 500 || ae.Status == http.StatusTooManyRequests
	}
	return false
}

// wrapAuthError classifies a GoTrue failure.
func wrapAuthError(op string, err error) error {
	if err == nil {
		return nil
	}
	var already *service.AuthError
	if errors.As(err, &already) {
		return err
	}
	if isTransient(err) {
		return &service.AuthError{Op: op, Kind: service.AuthTransient, Err: err}
	}

	var ae *apiError
	if !errors.As(err, &ae) {
		return &service.AuthError{Op: op, Kind: service.AuthUnknown, Err: err}
	}

	kind := service.AuthUnknown
	msg := strings.ToLower(ae.Message)
	switch {
	case ae.Code == "user_already_exists" || ae.Code == "email_exists" || strings.Contains(msg, "already registered"):
		kind = service.AuthDuplicateUser
	case ae.Code == "email_not_confirmed" || strings.Contains(msg, "email not confirmed"):
		kind = service.AuthEmailNotConfirmed
	case ae.Code == "invalid_credentials" || ae.Code == "invalid_grant":
		kind = service.AuthInvalidCredentials
	case ae.Code == "session_not_found" || ae.Code == "refresh_token_not_found" ||
		ae.Code == "bad_jwt" || ae.Status == http.StatusUnauthorized || ae.Status == http.StatusForbidden:
		kind = service.AuthSessionExpired
	case ae.Status == http.StatusBadRequest || ae.Status == http.StatusUnprocessableEntity:
		kind = service.AuthInvalidCredentials
	}
	return &service.AuthError{Op: op, Kind: kind, Err: ae}
}

// wrapStoreError classifies a PostgREST failure.
func wrapStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var already *service.StoreError
	if errors.As(err, &already) {
		return err
	}
	var authErr *service.AuthError
	if errors.As(err, &authErr) {
		return &service.StoreError{Op: op, Kind: service.StorePermissionDenied, Err: err}
	}
	if isTransient(err) {
		return &service.StoreError{Op: op, Kind: service.StoreTransient, Err: err}
	}

	var ae *apiError
	if !errors.As(err, &ae) {
		return &service.StoreError{Op: op, Kind: service.StoreUnknown, Err: err}
	}

	kind := service.StoreUnknown
	switch {
	case ae.Code == "42501" || strings.HasPrefix(ae.Code, "PGRST30") ||
		ae.Status == http.StatusUnauthorized || ae.Status == http.StatusForbidden:
		kind = service.StorePermissionDenied
	case ae.Code == "PGRST116" || ae.Status == http.StatusNotFound:
		kind = service.StoreNotFound
	case strings.HasPrefix(ae.Code, "23") || strings.HasPrefix(ae.Code, "22") ||
		ae.Status == http.StatusBadRequest || ae.Status == http.StatusConflict || ae.Status == http.StatusUnprocessableEntity:
		kind = service.StoreValidation
	}
	return &service.StoreError{Op: op, Kind: kind, Err: ae}
}
