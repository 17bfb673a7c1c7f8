package chat

import (
	"regexp"
	"strings"
)

// Credential-looking strings pasted into the case chat are redacted before
// persistence; chat transcripts are long-lived and get fed back to the
// completion service.
//
//nolint:gochecknoglobals // Fixed pattern table, compiled once
var secretPatterns = func() []*regexp.Regexp {
	patterns := []string{
		// OpenAI / Anthropic API keys
		`sk-[A-Za-z0-9]{48}`,
		`sk-proj-[A-Za-z0-9_-]{48,}`,
		`sk-ant-[A-Za-z0-9_-]{95,}`,

		// AWS access keys
		`AKIA[0-9A-Z]{16}`,

		// Generic key/secret assignments
		`api[_-]?key[_-]?[:=]\s*['\"]?[A-Za-z0-9_-]{20,}['\"]?`,
		`secret[_-]?[:=]\s*['\"]?[A-Za-z0-9_-]{20,}['\"]?`,
		`Bearer\s+[A-Za-z0-9_-]{20,}`,

		// GitHub tokens
		`gh[opurs]_[A-Za-z0-9]{36}`,

		// PEM private keys
		`-----BEGIN\s+(?:RSA|DSA|EC|OPENSSH|PGP)\s+PRIVATE\s+KEY-----`,
	}
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}()

const redactionNote = " (Note: content redacted)"

// RedactSecrets replaces credential-looking substrings with a placeholder
// and appends a note when anything was redacted.
func RedactSecrets(text string) string {
	redacted := text
	hit := false
	for _, pattern := range secretPatterns {
		if pattern.MatchString(redacted) {
			redacted = pattern.ReplaceAllString(redacted, "[redacted]")
			hit = true
		}
	}
	if hit && !strings.HasSuffix(redacted, redactionNote) {
		redacted += redactionNote
	}
	return redacted
}
