package completion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLooseJSONStrict(t *testing.T) {
	out, err := DecodeLooseJSON(`{"current_seat": "London", "proposed_seats": ["Paris"]}`)
	require.NoError(t, err)
	assert.Equal(t, "London", out["current_seat"])
}

func TestDecodeLooseJSONFenced(t *testing.T) {
	raw := "Here is the extraction:\n```json\n{\"governing_law\": \"Swiss law\"}\n```\nDone."
	out, err := DecodeLooseJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, "Swiss law", out["governing_law"])
}

func TestDecodeLooseJSONNested(t *testing.T) {
	raw := `prefix {"a": {"b": 1}, "c": "x"} suffix`
	out, err := DecodeLooseJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, "x", out["c"])
}

func TestDecodeLooseJSONNoObject(t *testing.T) {
	_, err := DecodeLooseJSON("no structured content here")
	assert.Error(t, err)

	_, err = DecodeLooseJSON("")
	assert.Error(t, err)
}

func TestDecodeLooseJSONMalformed(t *testing.T) {
	_, err := DecodeLooseJSON(`{"current_seat": London}`)
	assert.Error(t, err)
}
