package llmerrors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyContextErrors(t *testing.T) {
	classified := Classify(context.DeadlineExceeded)
	require.NotNil(t, classified)
	assert.Equal(t, ErrorTypeTransient, classified.Type)
	assert.True(t, IsTransient(classified))
}

func TestClassifyEOF(t *testing.T) {
	classified := Classify(fmt.Errorf("read response: %w", io.EOF))
	require.NotNil(t, classified)
	assert.Equal(t, ErrorTypeTransient, classified.Type)
}

func TestClassifyByMessage(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"rate limit", errors.New("429 rate limit exceeded"), ErrorTypeRateLimit},
		{"auth", errors.New("401 unauthorized"), ErrorTypeAuth},
		{"server error", errors.New("upstream returned 503"), ErrorTypeTransient},
		{"bad prompt", errors.New("context length exceeded"), ErrorTypeBadPrompt},
		{"unknown", errors.New("something odd happened"), ErrorTypeUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			classified := Classify(tc.err)
			require.NotNil(t, classified)
			assert.Equal(t, tc.want, classified.Type)
		})
	}
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(NewError(ErrorTypeRateLimit, "slow down")))
	assert.True(t, IsTransient(NewError(ErrorTypeTransient, "flaky")))
	assert.True(t, IsTransient(NewError(ErrorTypeEmptyResponse, "no content")))
	assert.False(t, IsTransient(NewError(ErrorTypeAuth, "bad key")))
	assert.False(t, IsTransient(NewError(ErrorTypeBadPrompt, "too long")))
	assert.False(t, IsTransient(NewError(ErrorTypeUnknown, "???")))
}

func TestClassifyPreservesClassification(t *testing.T) {
	original := NewError(ErrorTypeAuth, "bad key")
	wrapped := fmt.Errorf("calling provider: %w", original)

	classified := Classify(wrapped)
	assert.Equal(t, ErrorTypeAuth, classified.Type)
	assert.False(t, IsTransient(wrapped))
}

func TestErrorString(t *testing.T) {
	err := NewError(ErrorTypeRateLimit, "slow down")
	assert.Contains(t, err.Error(), "rate_limit")
	assert.Contains(t, err.Error(), "slow down")
}
