package ollama

import (
	"errors"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"

	"seatdesk/pkg/llmerrors"
)

func TestStopReason(t *testing.T) {
	assert.Equal(t, "incomplete", stopReason(&api.ChatResponse{Done: false}))
	assert.Equal(t, "end_turn", stopReason(&api.ChatResponse{Done: true, DoneReason: "stop"}))
	assert.Equal(t, "end_turn", stopReason(&api.ChatResponse{Done: true}))
	assert.Equal(t, "max_tokens", stopReason(&api.ChatResponse{Done: true, DoneReason: "length"}))
}

func TestClassifyError(t *testing.T) {
	err := classifyError(errors.New("dial tcp: connection refused"))
	assert.True(t, llmerrors.IsTransient(err))

	err = classifyError(errors.New(`model "nope" not found`))
	assert.False(t, llmerrors.IsTransient(err))
}

func TestNewClientBadURLFallsBack(t *testing.T) {
	c := NewClient("::not a url::", "llama3.1")
	assert.NotNil(t, c.client)
	assert.Equal(t, "llama3.1", c.ModelName())
}
