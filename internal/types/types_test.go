package types_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MereWhiplash/pubembed/internal/types"
)

func TestPublication_Blank(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"", true},
		{"   ", true},
		{"\t\n ", true},
		{"hello", false},
		{"  hello  ", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, types.Publication{Text: tt.text}.Blank(), "%q", tt.text)
	}
}

func TestValidationError(t *testing.T) {
	err := fmt.Errorf("embed: %w", &types.ValidationError{Message: "text must not be empty"})

	assert.True(t, errors.Is(err, types.ErrValidation))
	assert.False(t, errors.Is(err, types.ErrGeneration))

	var vErr *types.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "text must not be empty", vErr.Message)
}
