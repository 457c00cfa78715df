package registry

import (
	"fmt"
	"regexp"
	"strings"
)

// mentionToken matches raw Discord user-mention tokens like <@123> or <@!123>.
var mentionToken = regexp.MustCompile(`<@!?\d+>`)

// rules are a persona's compiled routing patterns. Built once at registry
// construction, never recompiled per message.
type rules struct {
	key  *regexp.Regexp // whole-word short key, case-insensitive
	name *regexp.Regexp // display name, hyphens flexible
	addr *regexp.Regexp // optional @ + flexible display name, for stripping
}

func compileRules(key, name string) (rules, error) {
	keyRe, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(key) + `\b`)
	if err != nil {
		return rules{}, fmt.Errorf("compile key pattern: %w", err)
	}

	// "OLIVIA-COO" matches OLIVIA-COO, OLIVIA COO and OLIVIACOO, any case.
	flex := flexibleName(name)
	nameRe, err := regexp.Compile(`(?i)` + flex)
	if err != nil {
		return rules{}, fmt.Errorf("compile name pattern: %w", err)
	}
	addrRe, err := regexp.Compile(`(?i)@?` + flex)
	if err != nil {
		return rules{}, fmt.Errorf("compile strip pattern: %w", err)
	}

	return rules{key: keyRe, name: nameRe, addr: addrRe}, nil
}

// flexibleName turns a display name into a pattern where each hyphen
// matches a hyphen, a space, or nothing.
func flexibleName(name string) string {
	parts := strings.Split(name, "-")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return strings.Join(parts, `[-\s]?`)
}

// strip removes user-mention tokens and all display-name variants, then
// trims surrounding whitespace. The original text is never modified; the
// relay payload carries both forms.
func (r rules) strip(text string) string {
	text = mentionToken.ReplaceAllString(text, "")
	text = r.addr.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
