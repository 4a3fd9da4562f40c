package validate

import (
	"testing"

	"github.com/nekonik/registry/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	UserName string `json:"user_name" validate:"required,min=3,max=32,username"`
	Email    string `json:"email"     validate:"required,email"`
}

func TestStruct_Valid(t *testing.T) {
	assert.NoError(t, New().Struct(signup{UserName: "alice_01", Email: "alice@x.com"}))
}

func TestStruct_ReportsJSONFieldNames(t *testing.T) {
	err := New().Struct(signup{UserName: "al", Email: "not-an-email"})
	require.Error(t, err)

	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, apperr.KindValidation, e.Kind)
	assert.Equal(t, "must be at least 3 characters", e.Details["user_name"])
	assert.Equal(t, "must be a valid email address", e.Details["email"])
	assert.Equal(t, "user_name must be at least 3 characters", e.Message)
}

func TestStruct_UsernameCharset(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"alice", true},
		{"Alice_2", true},
		{"alice-2", false},
		{"al ice", false},
		{"alicé", false},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(signup{UserName: tt.name, Email: "a@x.com"})
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, apperr.KindValidation))
		})
	}
}

func TestStruct_Required(t *testing.T) {
	err := New().Struct(signup{})

	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "is required", e.Details["user_name"])
	assert.Equal(t, "is required", e.Details["email"])
}
