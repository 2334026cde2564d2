package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"DOCVAULT_CONFIG", "DOCVAULT_ADDRESS", "DATABASE_URL", "OCR_LANG", "OCR_TIMEOUT", "LOG_FORMAT", "DOCVAULT_WORKERS"} {
		t.Setenv(key, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Address != defaultAddress || cfg.OCRLang != "sin+eng" || cfg.OCRTimeout != defaultOCRTimeout {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.UsesPostgres() {
		t.Fatalf("no DATABASE_URL should mean the in-memory store")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/docvault")
	t.Setenv("DOCVAULT_REQUEST_TIMEOUT", "5s")
	t.Setenv("DOCVAULT_WORKERS", "-1")
	t.Setenv("S3_USE_SSL", "true")
	t.Setenv("LOG_FORMAT", "JSON")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.UsesPostgres() || cfg.RequestTimeout != 5*time.Second || !cfg.S3UseSSL {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.ProcessingPool != defaultWorkerCount {
		t.Fatalf("non-positive pool should fall back to default, got %d", cfg.ProcessingPool)
	}
	if cfg.LogFormat != "json" {
		t.Fatalf("log format = %q", cfg.LogFormat)
	}
}

func TestLoadIgnoresUnparseableValues(t *testing.T) {
	t.Setenv("OCR_TIMEOUT", "soon")
	t.Setenv("REDIS_DB", "two")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OCRTimeout != defaultOCRTimeout || cfg.RedisDB != 0 {
		t.Fatalf("unexpected values: %+v", cfg)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := &Config{LogFormat: "xml"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"DOCVAULT_ADDRESS", "OCR_TIMEOUT", "S3_BUCKET", "LOG_FORMAT"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docvault.yaml")
	body := "OCR_LANG: eng\nDOCVAULT_DB_MAX_CONNS: 16\ns3_use_ssl: true\nOCR_TIMEOUT: 45s\nS3_REGION: ~\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOCVAULT_CONFIG", path)
	t.Setenv("OCR_LANG", "")
	t.Setenv("S3_REGION", "")
	t.Setenv("DOCVAULT_DB_MAX_CONNS", "")
	t.Setenv("S3_USE_SSL", "")
	t.Setenv("OCR_TIMEOUT", "10s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OCRLang != "eng" || cfg.DBMaxConns != 16 || !cfg.S3UseSSL {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.OCRTimeout != 10*time.Second {
		t.Fatalf("environment should win over the file, got %s", cfg.OCRTimeout)
	}
	if cfg.S3Region != defaultS3Region {
		t.Fatalf("null file value should keep the default, got %q", cfg.S3Region)
	}
}

func TestLoadConfigFileErrors(t *testing.T) {
	t.Setenv("DOCVAULT_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("- just\n- a list\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOCVAULT_CONFIG", path)
	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-mapping file")
	}
}
