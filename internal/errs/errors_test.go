package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, ""},
		{"plain error", errors.New("boom"), CodeUnknown},
		{"not found", NotFound("user not found"), CodeNotFound},
		{"forbidden", Forbidden("not a member"), CodeForbidden},
		{"wrapped unavailable", fmt.Errorf("send: %w", Unavailable("store", cause)), CodeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Unavailable("insert message", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "insert message: connection refused", err.Error())
	assert.True(t, Is(err, CodeUnavailable))
	assert.False(t, Is(err, CodeNotFound))
}
