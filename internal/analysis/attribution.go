package analysis

import (
	"regexp"
	"strings"

	prose "github.com/jdkato/prose/v2"
)

// Best-effort attribution of feedback to a person. Each pattern must
// find a confident personal name; anything uncertain yields ("", false)
// rather than a placeholder.

var (
	labelPattern = regexp.MustCompile(`(?m)^\s*(?:Name|From|Customer|Author|Submitted by)\s*[:\-]\s*([A-Z][a-zA-Z'.-]+(?:\s+[A-Z][a-zA-Z'.-]+){0,2})\s*$`)

	saidPattern = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)\s+(?:said|says|mentioned|noted|reported|wrote|told us)\b`)

	signaturePattern = regexp.MustCompile(`(?i)(?:regards|thanks|thank you|best|sincerely|cheers)[,!]?\s*\n\s*([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)\s*$`)

	quoteAttributionPattern = regexp.MustCompile(`(?m)["”]\s*[-–—]\s*([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)\s*$`)

	firstLineNamePattern = regexp.MustCompile(`^([A-Z][a-z]+\s+[A-Z][a-z]+)$`)
)

// Words that match the capitalized-name shape but never are one.
var nameStopwords = map[string]struct{}{
	"The": {}, "This": {}, "That": {}, "Our": {}, "Their": {},
	"One": {}, "Someone": {}, "Everyone": {}, "Nobody": {},
	"A": {}, "An": {}, "It": {}, "They": {}, "We": {},
	"Customer": {}, "Support": {}, "Team": {}, "User": {},
}

// ExtractSourceName attempts to find the person a piece of feedback
// came from. Deterministic regex patterns run first; prose NER is the
// last resort for free-form text.
func ExtractSourceName(content string) (string, bool) {
	if name, ok := patternSourceName(content); ok {
		return name, true
	}
	return personEntity(content)
}

func patternSourceName(content string) (string, bool) {
	if m := labelPattern.FindStringSubmatch(content); m != nil {
		if name, ok := plausibleName(m[1]); ok {
			return name, true
		}
	}

	if m := signaturePattern.FindStringSubmatch(content); m != nil {
		if name, ok := plausibleName(m[1]); ok {
			return name, true
		}
	}

	if m := quoteAttributionPattern.FindStringSubmatch(content); m != nil {
		if name, ok := plausibleName(m[1]); ok {
			return name, true
		}
	}

	if m := saidPattern.FindStringSubmatch(content); m != nil {
		if name, ok := plausibleName(m[1]); ok {
			return name, true
		}
	}

	lines := strings.SplitN(strings.TrimSpace(content), "\n", 2)
	if len(lines) == 2 {
		if m := firstLineNamePattern.FindStringSubmatch(strings.TrimSpace(lines[0])); m != nil {
			if name, ok := plausibleName(m[1]); ok {
				return name, true
			}
		}
	}

	return "", false
}

func plausibleName(candidate string) (string, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return "", false
	}
	for _, word := range strings.Fields(candidate) {
		if _, stop := nameStopwords[word]; stop {
			return "", false
		}
	}
	return candidate, true
}

func personEntity(content string) (string, bool) {
	doc, err := prose.NewDocument(content, prose.WithSegmentation(false))
	if err != nil {
		return "", false
	}

	for _, ent := range doc.Entities() {
		if ent.Label != "PERSON" {
			continue
		}
		if name, ok := plausibleName(ent.Text); ok {
			return name, true
		}
	}

	return "", false
}
