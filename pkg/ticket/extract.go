// Package ticket parses tracker ticket references out of free text such as
// pull request titles and commit messages.
package ticket

import (
	"regexp"
)

// ID is a normalized tracker ticket identifier. It is always a run of digits.
type ID string

var (
	// referencePattern matches a ticket keyword followed by a run of ids,
	// e.g. "Bug: 1234, 5678 and 91011" or "issues 4 & 5".
	referencePattern = regexp.MustCompile(`(?i)\b(ticket|bug|tracker item|issue)s?:? *([\d ,+&#and]+)\b`)

	nonDigits = regexp.MustCompile(`\D+`)
)

// Extract returns the ticket ids referenced in text, deduplicated, in the
// order they first appear.
//
// A keyword is mandatory: bare numbers such as PR numbers are never treated
// as tickets. Only the first keyword run in text is considered.
func Extract(text string) []ID {
	match := referencePattern.FindStringSubmatch(text)
	if match == nil {
		return []ID{}
	}

	ids := make([]ID, 0, 4)
	seen := make(map[ID]bool)
	for _, fragment := range nonDigits.Split(match[2], -1) {
		if fragment == "" {
			continue
		}
		id := ID(fragment)
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// ExtractAll extracts ids from every text and unions them, keeping
// first-seen order across all sources.
func ExtractAll(texts ...string) []ID {
	ids := make([]ID, 0)
	seen := make(map[ID]bool)
	for _, text := range texts {
		for _, id := range Extract(text) {
			if seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// Strings converts ids to plain strings.
func Strings(ids []ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
