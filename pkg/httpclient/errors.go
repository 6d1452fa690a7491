package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/siyana/storefront/pkg/errors"
)

// UpstreamError describes a non-2xx answer from a third-party API.
type UpstreamError struct {
	Service string
	Status  int
	Code    string
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s returned %d (%s): %s", e.Service, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%s returned %d: %s", e.Service, e.Status, e.Message)
}

// Unwrap classifies the failure against the sentinel errors so callers can
// use errors.Is without knowing the upstream.
func (e *UpstreamError) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized:
		return apperrors.ErrUnauthorized
	case e.Status == http.StatusForbidden:
		return apperrors.ErrForbidden
	case e.Status == http.StatusNotFound:
		return apperrors.ErrNotFound
	case e.Status == http.StatusTooManyRequests:
		return apperrors.ErrTooManyRequests
	case e.Status >= 500:
		return apperrors.ErrStoreUnavailable
	case e.Status >= 400:
		return apperrors.ErrInvalidInput
	default:
		return nil
	}
}

// Temporary reports whether a retry later could succeed.
func (e *UpstreamError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// errorEnvelope covers both the storefront envelope ({"error":{"code":"X"}})
// and the Graph API shape ({"error":{"code":131047,"message":...}}).
type errorEnvelope struct {
	Error *struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
		Type    string          `json:"type"`
	} `json:"error"`
}

// ParseResponseError consumes and closes the body of a non-2xx response and
// returns it as an *UpstreamError.
func ParseResponseError(resp *http.Response, service string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &UpstreamError{Service: service, Status: resp.StatusCode, Message: "unreadable body: " + err.Error()}
	}

	upErr := &UpstreamError{Service: service, Status: resp.StatusCode, Message: string(body)}

	var env errorEnvelope
	if json.Unmarshal(body, &env) == nil && env.Error != nil {
		upErr.Message = env.Error.Message
		upErr.Code = rawCode(env.Error.Code)
		if upErr.Code == "" {
			upErr.Code = env.Error.Type
		}
	}
	return upErr
}

func rawCode(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

// IsClientError reports whether status is a 4xx.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
