// Package pdfutil reads the embedded text layer of PDF files.
package pdfutil

import (
	"fmt"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// ExtractFile returns the plain text of every page in the PDF at path. Scanned
// documents without a text layer yield an empty or whitespace-only string.
func ExtractFile(path string) (text string, err error) {
	f, doc, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	// ledongthuc/pdf panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("read pdf %s: %v", path, r)
		}
	}()

	var builder strings.Builder
	total := doc.NumPage()
	for page := 1; page <= total; page++ {
		p := doc.Page(page)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", page, err)
		}
		builder.WriteString(content)
		builder.WriteString("\n")
	}
	return builder.String(), nil
}

// HasText reports whether s contains anything besides whitespace.
func HasText(s string) bool {
	return strings.TrimSpace(s) != ""
}
