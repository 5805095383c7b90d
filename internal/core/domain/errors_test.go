package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name:     "error without details",
			err:      NewDomainError("SK-TEST-1000", "test message"),
			expected: "[SK-TEST-1000] test message",
		},
		{
			name:     "error with details",
			err:      NewDomainError("SK-TEST-1001", "test message").WithDetails("extra info"),
			expected: "[SK-TEST-1001] test message: extra info",
		},
		{
			name:     "error with formatted details",
			err:      ErrUnknownField.WithDetailsf("%s.%s", "Player", "hp"),
			expected: "[SK-FIELD-4040] unknown field: Player.hp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	err1 := NewDomainError("SK-TEST-1000", "message 1")
	err2 := NewDomainError("SK-TEST-1000", "message 2") // Same code, different message
	err3 := NewDomainError("SK-TEST-1001", "message 1") // Different code

	assert.ErrorIs(t, err1, err2)
	assert.NotErrorIs(t, err1, err3)
	assert.NotErrorIs(t, err1, fmt.Errorf("some error"))

	// Details and causes never affect matching.
	detailed := ErrDecode.WithDetails(`key "Player.hp"`).WithCause(errors.New("eof"))
	assert.ErrorIs(t, detailed, ErrDecode)
	assert.ErrorIs(t, fmt.Errorf("load: %w", detailed), ErrDecode)
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying cause")
	err := NewDomainError("SK-TEST-1000", "wrapper").WithCause(cause)

	assert.Same(t, cause, errors.Unwrap(err))
	assert.ErrorIs(t, err, cause)

	assert.Nil(t, errors.Unwrap(NewDomainError("SK-TEST-1000", "no cause")))
}

func TestDomainError_WithDetailsDoesNotMutate(t *testing.T) {
	original := NewDomainError("SK-TEST-1000", "original message")
	withDetails := original.WithDetails("additional details")

	assert.Empty(t, original.Details)
	assert.Equal(t, "additional details", withDetails.Details)
	assert.Equal(t, original.Code, withDetails.Code)
	assert.Equal(t, original.Message, withDetails.Message)

	withCause := original.WithCause(errors.New("root"))
	assert.Nil(t, original.Cause)
	require.NotNil(t, withCause.Cause)
	assert.Equal(t, original.Code, withCause.Code)
}

func TestIsDomainError(t *testing.T) {
	assert.True(t, IsDomainError(ErrNotFound, "SK-SAVE-4040"))
	assert.True(t, IsDomainError(ErrNotFound, ""))
	assert.False(t, IsDomainError(ErrNotFound, "SK-SAVE-9999"))
	assert.False(t, IsDomainError(fmt.Errorf("regular error"), "SK-SAVE-4040"))

	wrapped := fmt.Errorf("wrapped: %w", ErrNotFound)
	assert.True(t, IsDomainError(wrapped, "SK-SAVE-4040"))
}

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"domain error", ErrInvalidType, "SK-TYPE-4000"},
		{"wrapped domain error", fmt.Errorf("wrapped: %w", ErrUnsupportedValue), "SK-CODEC-4220"},
		{"regular error", fmt.Errorf("regular error"), ""},
		{"nil error", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetErrorCode(tt.err))
		})
	}
}

func TestPredefinedErrorsAreDistinct(t *testing.T) {
	all := []*DomainError{
		ErrInvalidType, ErrUnknownField, ErrCapture, ErrDecode, ErrUnsupportedValue,
		ErrNotFound, ErrNoPriorSave, ErrStorage, ErrInvalidConfig,
	}
	seen := make(map[string]bool, len(all))
	for _, e := range all {
		require.NotEmpty(t, e.Code)
		assert.False(t, seen[e.Code], "duplicate code %s", e.Code)
		seen[e.Code] = true
	}
}
