package convert

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func fakeLibreOffice(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	bin := filepath.Join(t.TempDir(), "libreoffice")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return bin
}

func TestToDOCX(t *testing.T) {
	// $4 is the input and $6 the output directory.
	bin := fakeLibreOffice(t, `name=$(basename "$4"); echo docx > "$6/${name%.*}.docx"`)
	dir := t.TempDir()
	input := filepath.Join(dir, "Annual Report.pdf")
	if err := os.WriteFile(input, []byte("%PDF"), 0o600); err != nil {
		t.Fatal(err)
	}
	out := t.TempDir()
	got, err := LibreOffice{Binary: bin, Timeout: time.Second}.ToDOCX(context.Background(), input, out)
	if err != nil {
		t.Fatalf("ToDOCX: %v", err)
	}
	if got != filepath.Join(out, "Annual Report.docx") {
		t.Fatalf("output = %s", got)
	}
}

func TestToDOCXMissingOutput(t *testing.T) {
	bin := fakeLibreOffice(t, "exit 0")
	_, err := LibreOffice{Binary: bin, Timeout: time.Second}.ToDOCX(context.Background(), "in.pdf", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "no output") {
		t.Fatalf("expected missing output error, got %v", err)
	}
}

func TestToDOCXExitCode(t *testing.T) {
	bin := fakeLibreOffice(t, "echo 'source file could not be loaded' >&2; exit 1")
	_, err := LibreOffice{Binary: bin, Timeout: time.Second}.ToDOCX(context.Background(), "in.pdf", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "could not be loaded") {
		t.Fatalf("expected exit error with stderr, got %v", err)
	}
}

func TestObjectKey(t *testing.T) {
	if got := ObjectKey(12, "scans/contract.v2.pdf"); got != "converted/12/contract.v2.docx" {
		t.Fatalf("ObjectKey = %s", got)
	}
}
