// Package ocr extracts text from stored documents, reading the PDF text layer
// when there is one and falling back to the tesseract CLI.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dharsanguruparan/docvault/internal/toolrun"
)

// Tesseract runs the tesseract binary.
type Tesseract struct {
	Binary  string
	Timeout time.Duration
}

// Recognize OCRs the image or PDF at input. Tesseract writes <outBase>.txt
// next to the input; a missing sidecar means no text was recognized.
func (t Tesseract) Recognize(ctx context.Context, input, lang string) (string, error) {
	outBase := filepath.Join(filepath.Dir(input), "ocr-out")
	args := []string{input, outBase, "-l", lang, "--oem", "1", "--psm", "3"}
	if _, err := toolrun.Run(ctx, t.Timeout, t.Binary, args...); err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	data, err := os.ReadFile(outBase + ".txt")
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read tesseract output: %w", err)
	}
	return string(data), nil
}
