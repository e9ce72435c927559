package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIs_MatchesKindSentinels(t *testing.T) {
	err := fmt.Errorf("load: %w", New(KindDataNotFound, "species not found: daisy"))

	assert.True(t, errors.Is(err, ErrDataNotFound))
	assert.False(t, errors.Is(err, ErrDataLoad))
	// Specific sentinels match by identity only.
	assert.False(t, errors.Is(New(KindAuthentication, "other"), ErrInactive))
	assert.True(t, errors.Is(fmt.Errorf("auth: %w", ErrInactive), ErrInactive))
	assert.True(t, errors.Is(ErrInactive, ErrAuthentication))
}

func TestKindOf(t *testing.T) {
	kind, ok := KindOf(fmt.Errorf("wrapped: %w", Newf(KindValidation, "limit %d", 0)))
	assert.True(t, ok)
	assert.Equal(t, KindValidation, kind)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestMapErrorToHTTP(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedCode int
		expectedKind string
		expectedMsg  string
	}{
		{name: "wrong password", err: ErrWrongPassword, expectedCode: http.StatusUnauthorized, expectedKind: "AUTHENTICATION_ERROR", expectedMsg: "incorrect email or password"},
		{name: "inactive", err: ErrInactive, expectedCode: http.StatusForbidden, expectedKind: "AUTHENTICATION_ERROR"},
		{name: "invalid token hides cause", err: Wrap(KindInvalidToken, errors.New("signature mismatch")), expectedCode: http.StatusUnauthorized, expectedKind: "INVALID_TOKEN", expectedMsg: "could not validate credentials"},
		{name: "authorization", err: New(KindAuthorization, "access denied to species virginica"), expectedCode: http.StatusForbidden, expectedKind: "AUTHORIZATION_ERROR"},
		{name: "not found", err: ErrDataNotFound, expectedCode: http.StatusNotFound, expectedKind: "DATA_NOT_FOUND"},
		{name: "data load", err: New(KindDataLoad, "missing columns"), expectedCode: http.StatusInternalServerError, expectedKind: "DATA_LOAD_ERROR"},
		{name: "validation", err: ErrValidation, expectedCode: http.StatusBadRequest, expectedKind: "VALIDATION_ERROR"},
		{name: "conflict", err: ErrConflict, expectedCode: http.StatusConflict, expectedKind: "CONFLICT"},
		{name: "rate limited", err: ErrRateLimited, expectedCode: http.StatusTooManyRequests, expectedKind: "RATE_LIMITED"},
		{name: "untagged", err: errors.New("db down"), expectedCode: http.StatusInternalServerError, expectedKind: "INTERNAL_ERROR", expectedMsg: "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpErr := MapErrorToHTTP(tt.err)
			assert.Equal(t, tt.expectedCode, httpErr.StatusCode)
			assert.Equal(t, tt.expectedKind, httpErr.Code)
			if tt.expectedMsg != "" {
				assert.Equal(t, tt.expectedMsg, httpErr.Message)
			}
			resp := httpErr.ToErrorResponse()
			assert.Equal(t, httpErr.Message, resp.Error)
		})
	}
}
