package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_HTTPStatus(t *testing.T) {
	tests := []struct {
		kind   Kind
		status int
		code   string
	}{
		{KindValidation, http.StatusBadRequest, "INVALID_REQUEST"},
		{KindNotFound, http.StatusNotFound, "NOT_FOUND"},
		{KindForbidden, http.StatusForbidden, "FORBIDDEN"},
		{KindAuth, http.StatusUnauthorized, "UNAUTHORIZED"},
		{KindNotAcceptable, http.StatusNotAcceptable, "NOT_ACCEPTABLE"},
		{KindConflict, http.StatusConflict, "CONFLICT"},
		{KindUnavailable, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{KindInternal, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, code := tt.kind.HTTPStatus()
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.code, tt.kind.String())
		})
	}
}

func TestFrom_TypedErrorSurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("login: %w", Auth("invalid credentials"))

	e := From(wrapped)
	assert.Equal(t, KindAuth, e.Kind)
	assert.Equal(t, "invalid credentials", e.Message)
	assert.True(t, IsKind(wrapped, KindAuth))
}

func TestFrom_UntypedBecomesInternal(t *testing.T) {
	cause := errors.New("connection reset")

	e := From(cause)
	assert.Equal(t, KindInternal, e.Kind)
	require.ErrorIs(t, e, cause)
	assert.False(t, IsKind(cause, KindInternal))
}

func TestError_MessageIncludesCause(t *testing.T) {
	e := Unavailable("session store unavailable", errors.New("dial tcp: refused"))
	assert.Equal(t, "session store unavailable: dial tcp: refused", e.Error())
	assert.Equal(t, "csrf mismatch", Auth("csrf mismatch").Error())
}
