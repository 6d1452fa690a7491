package httpclient

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/siyana/storefront/pkg/errors"
)

func response(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestParseResponseError_GraphAPIShape(t *testing.T) {
	err := ParseResponseError(response(http.StatusBadRequest,
		`{"error":{"message":"Recipient not in allowed list","type":"OAuthException","code":131030}}`), "whatsapp")

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "131030", upErr.Code)
	assert.Equal(t, "Recipient not in allowed list", upErr.Message)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.False(t, upErr.Temporary())
}

func TestParseResponseError_EnvelopeShape(t *testing.T) {
	err := ParseResponseError(response(http.StatusNotFound,
		`{"error":{"code":"NOT_FOUND","message":"no such order"}}`), "orders")

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "NOT_FOUND", upErr.Code)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestParseResponseError_PlainBody(t *testing.T) {
	err := ParseResponseError(response(http.StatusServiceUnavailable, "upstream down"), "whatsapp")

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "upstream down", upErr.Message)
	assert.True(t, upErr.Temporary())
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
	assert.Equal(t, "whatsapp returned 503: upstream down", err.Error())
}

func TestUpstreamError_StatusClassification(t *testing.T) {
	tests := []struct {
		status   int
		sentinel error
	}{
		{http.StatusUnauthorized, apperrors.ErrUnauthorized},
		{http.StatusForbidden, apperrors.ErrForbidden},
		{http.StatusTooManyRequests, apperrors.ErrTooManyRequests},
		{http.StatusUnprocessableEntity, apperrors.ErrInvalidInput},
		{http.StatusBadGateway, apperrors.ErrStoreUnavailable},
	}
	for _, tt := range tests {
		err := &UpstreamError{Service: "x", Status: tt.status}
		assert.ErrorIs(t, err, tt.sentinel, http.StatusText(tt.status))
	}
	assert.True(t, IsClientError(http.StatusConflict))
	assert.False(t, IsClientError(http.StatusOK))
}
