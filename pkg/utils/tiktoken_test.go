package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountTokens(t *testing.T) {
	tc, err := NewTokenCounter()
	require.NoError(t, err)

	assert.Equal(t, 0, tc.CountTokens(""))
	assert.Greater(t, tc.CountTokens("the governing law is Swiss law"), 0)

	short := tc.CountTokens("seat")
	long := tc.CountTokens(strings.Repeat("seat of arbitration ", 50))
	assert.Greater(t, long, short)
}

func TestNilCounterFallback(t *testing.T) {
	var tc *TokenCounter
	assert.Equal(t, 2, tc.CountTokens("12345678"))
}
