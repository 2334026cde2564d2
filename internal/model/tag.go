package model

import "strings"

// Tag is a canonical label shared by any number of documents.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CanonicalTagName trims surrounding whitespace and lowercases name. Every
// lookup and insert goes through it so "Finance" and " finance " are one tag.
func CanonicalTagName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// CanonicalTagNames canonicalizes names, drops blanks and removes duplicates
// while keeping first-seen order.
func CanonicalTagNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		c := CanonicalTagName(n)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
