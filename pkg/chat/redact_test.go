package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactSecrets(t *testing.T) {
	key := "sk-" + strings.Repeat("a", 48)
	out := RedactSecrets("my key is " + key + " please keep it safe")
	assert.NotContains(t, out, key)
	assert.Contains(t, out, "[redacted]")
	assert.Contains(t, out, redactionNote)
}

func TestRedactSecretsCleanText(t *testing.T) {
	text := "the seat of arbitration is Geneva"
	assert.Equal(t, text, RedactSecrets(text))
}

func TestNormalizeMessageTruncates(t *testing.T) {
	long := strings.Repeat("x", MaxMessageChars+100)
	out := normalizeMessage(long)
	assert.Len(t, out, MaxMessageChars)
	assert.True(t, strings.HasSuffix(out, TruncationSuffix))
}

func TestNormalizeMessageEmpty(t *testing.T) {
	assert.Equal(t, "", normalizeMessage("   \n\t  "))
}
