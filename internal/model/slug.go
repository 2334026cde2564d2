package model

import (
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
)

// DeriveSlug builds a URL-safe slug from a filename: the extension is dropped,
// letters are lowercased and every run of characters outside [a-z0-9] becomes
// a single hyphen. When nothing usable remains the slug falls back to
// "doc-<id>".
func DeriveSlug(filename string, id int64) string {
	base := strings.TrimSpace(filename)
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(base) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	if b.Len() == 0 {
		return "doc-" + strconv.FormatInt(id, 10)
	}
	return b.String()
}

// SearchableFilename splits a filename into words for full-text indexing, so
// "Quarterly reports.pdf" yields "Quarterly reports pdf". Every run of
// characters that is neither a letter nor a digit becomes one space.
func SearchableFilename(filename string) string {
	return strings.Join(strings.FieldsFunc(filename, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}
