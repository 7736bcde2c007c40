// Package catalog implements item-name normalization and the catalog
// index used to resolve free-text item names to catalog ids.
package catalog

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	curlyQuotes    = strings.NewReplacer("’", "'", "‘", "'")
	nonAlphanum    = regexp.MustCompile(`[^a-z0-9\s]`)
	whitespaceRuns = regexp.MustCompile(`\s+`)

	// A trailing "(123)", "[123]" or bare "123" stack decoration.
	trailingNumber = regexp.MustCompile(`\s*(?:\(|\[)?\s*\d+\s*(?:\)|\])?\s*$`)
)

// Normalize canonicalizes a display name into a comparison key: trimmed,
// lowercased, curly quotes straightened, punctuation collapsed to single
// spaces. The result is the ledger's primary key domain; it is not
// guaranteed unique across distinct catalog entries.
func Normalize(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = curlyQuotes.Replace(s)
	s = nonAlphanum.ReplaceAllString(s, " ")
	s = whitespaceRuns.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// StripStackSuffix removes a trailing "(id)", "[id]", "{id}" or "#id"
// decoration matching the given item id, for display purposes.
func StripStackSuffix(name string, id int) string {
	n := strings.TrimSpace(name)
	if n == "" || id <= 0 {
		return n
	}
	re, err := regexp.Compile(`(?:\s*[\(\[\{#]?` + strconv.Itoa(id) + `[\)\]\}]?\s*)$`)
	if err != nil {
		return n
	}
	return strings.TrimSpace(re.ReplaceAllString(n, ""))
}
