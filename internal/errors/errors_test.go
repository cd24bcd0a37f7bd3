package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorType_Constants(t *testing.T) {
	tests := []struct {
		name     string
		errType  ErrorType
		expected string
	}{
		{"load error type", ErrTypeLoad, "LOAD"},
		{"normalization error type", ErrTypeNormalization, "NORMALIZATION"},
		{"numeric error type", ErrTypeNumeric, "NUMERIC"},
		{"storage error type", ErrTypeStorage, "STORAGE"},
		{"validation error type", ErrTypeValidation, "VALIDATION"},
		{"config error type", ErrTypeConfig, "CONFIG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.errType))
		})
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name        string
		appError    *AppError
		wantMessage string
	}{
		{
			name:        "error without cause",
			appError:    &AppError{Type: ErrTypeLoad, Message: "sheet not found"},
			wantMessage: "[LOAD] sheet not found",
		},
		{
			name: "error with cause",
			appError: &AppError{
				Type:    ErrTypeNormalization,
				Message: "scale column pm25",
				Cause:   fmt.Errorf("zero variance"),
			},
			wantMessage: "[NORMALIZATION] scale column pm25: zero variance",
		},
		{
			name:        "error with empty message",
			appError:    &AppError{Type: ErrTypeValidation},
			wantMessage: "[VALIDATION] ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMessage, tt.appError.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("singular matrix")
	err := NewNumericError("vif computation", cause)

	assert.Same(t, cause, err.Unwrap())
	assert.True(t, errors.Is(err, cause))
	assert.Nil(t, NewValidationError("bad").Unwrap())
}

func TestAppError_WithContext(t *testing.T) {
	err := NewLoadError("duplicate index", nil).
		WithContext("entity", "Hanoi").
		WithContext("period", 2019)

	require.Len(t, err.Context, 2)
	assert.Equal(t, "Hanoi", err.Context["entity"])
	assert.Equal(t, 2019, err.Context["period"])

	bare := &AppError{Type: ErrTypeStorage}
	bare.WithContext("path", "out.xlsx")
	assert.Equal(t, "out.xlsx", bare.Context["path"])
}

func TestIsType(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		errType ErrorType
		want    bool
	}{
		{"direct match", NewLoadError("x", nil), ErrTypeLoad, true},
		{"wrapped match", fmt.Errorf("step load: %w", NewLoadError("x", nil)), ErrTypeLoad, true},
		{"other type", NewConfigError("x", nil), ErrTypeLoad, false},
		{"plain error", errors.New("x"), ErrTypeLoad, false},
		{"nil error", nil, ErrTypeLoad, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsType(tt.err, tt.errType))
		})
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want ErrorType
	}{
		{"load", NewLoadError("m", nil), ErrTypeLoad},
		{"normalization", NewNormalizationError("m", nil), ErrTypeNormalization},
		{"numeric", NewNumericError("m", nil), ErrTypeNumeric},
		{"storage", NewStorageError("m", nil), ErrTypeStorage},
		{"validation", NewValidationError("m"), ErrTypeValidation},
		{"config", NewConfigError("m", nil), ErrTypeConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Type)
			assert.Equal(t, "m", tt.err.Message)
			assert.NotNil(t, tt.err.Context)
		})
	}
}
