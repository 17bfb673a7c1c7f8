// Package chat implements the conversation engine: message intake, assistant
// replies, intake extraction, and report-generation triggering.
package chat

import (
	"regexp"
	"strings"
)

// Cheap regex/keyword extraction so intake fields still fill in when the
// completion service is unavailable or vague.
var (
	seatPattern   = regexp.MustCompile(`(?i)\b(?:seat|place)\s+of\s+arbitration\b[^\n\r]{0,120}`)
	govLawPattern = regexp.MustCompile(`(?i)\b(?:governing law|governed by|laws? of)\b[^\n\r]{0,140}`)
	clausePattern = regexp.MustCompile(`(?is)\barbitration\b.{0,500}`)
	spacePattern  = regexp.MustCompile(`\s+`)
)

// institutionKeywords are matched as whole words, first hit wins.
//
//nolint:gochecknoglobals // Fixed keyword table
var institutionKeywords = []string{
	"LCIA", "ICC", "UNCITRAL", "SIAC", "HKIAC", "ICDR", "SCC", "VIAC",
}

const (
	maxFragmentHits  = 3
	fragmentContext  = 140
	maxClauseExcerpt = 1200
)

func cleanWhitespace(s string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

// findFragments returns cleaned text fragments around each pattern match,
// with surrounding context, deduplicated.
func findFragments(text string, pattern *regexp.Regexp, maxHits int) []string {
	var hits []string
	for _, loc := range pattern.FindAllStringIndex(text, -1) {
		start := loc[0] - fragmentContext
		if start < 0 {
			start = 0
		}
		end := loc[1] + fragmentContext
		if end > len(text) {
			end = len(text)
		}
		frag := cleanWhitespace(text[start:end])
		if frag == "" {
			continue
		}
		seen := false
		for _, h := range hits {
			if h == frag {
				seen = true
				break
			}
		}
		if !seen {
			hits = append(hits, frag)
		}
		if len(hits) >= maxHits {
			break
		}
	}
	return hits
}

// HeuristicExtract pulls intake hints out of free text with regexes and
// keyword matching. Values are noisy fragments, not clean answers; they are
// overridden by structured extraction when that succeeds.
func HeuristicExtract(text string) map[string]any {
	out := make(map[string]any)

	if hits := findFragments(text, seatPattern, maxFragmentHits); len(hits) > 0 {
		out["current_seat"] = hits[0]
	}
	if hits := findFragments(text, govLawPattern, maxFragmentHits); len(hits) > 0 {
		out["governing_law"] = hits[0]
	}

	for _, key := range institutionKeywords {
		wordPattern := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(key) + `\b`)
		if wordPattern.MatchString(text) {
			out["institution_rules"] = key
			break
		}
	}

	// Clause excerpts are only guessed from text that names the seat or
	// place of arbitration; plain chat mentions of "arbitration" are not
	// agreement text.
	if seatPattern.MatchString(text) {
		if m := clausePattern.FindString(text); m != "" {
			excerpt := cleanWhitespace(m)
			if len(excerpt) > maxClauseExcerpt {
				excerpt = excerpt[:maxClauseExcerpt]
			}
			out["arbitration_agreement_text"] = excerpt
		}
	}

	return out
}
