// Package convert renders stored documents as DOCX through headless
// LibreOffice.
package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dharsanguruparan/docvault/internal/toolrun"
)

// DocxContentType is the media type of conversion outputs.
const DocxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// LibreOffice runs `libreoffice --headless --convert-to docx`.
type LibreOffice struct {
	Binary  string
	Timeout time.Duration
}

// ToDOCX converts input into outDir and returns the path of the produced file.
// A zero exit without the expected output is an error.
func (l LibreOffice) ToDOCX(ctx context.Context, input, outDir string) (string, error) {
	args := []string{"--headless", "--convert-to", "docx", input, "--outdir", outDir}
	if _, err := toolrun.Run(ctx, l.Timeout, l.Binary, args...); err != nil {
		return "", fmt.Errorf("libreoffice: %w", err)
	}
	output := filepath.Join(outDir, OutputName(input))
	info, err := os.Stat(output)
	if err != nil {
		return "", fmt.Errorf("libreoffice produced no output for %s: %w", filepath.Base(input), err)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("libreoffice produced an empty file for %s", filepath.Base(input))
	}
	return output, nil
}

// OutputName is the file name LibreOffice gives the DOCX rendition of input.
func OutputName(input string) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".docx"
}

// ObjectKey is where the rendition of a document is stored.
func ObjectKey(documentID int64, fileName string) string {
	return fmt.Sprintf("converted/%d/%s", documentID, OutputName(fileName))
}
