package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(&buf, "debug", "json")
	log.WithField("document_id", 7).Debug("loaded")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %q", buf.String())
	}
	if entry["msg"] != "loaded" || entry["document_id"] != float64(7) {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestNewUnknownLevelFallsBackToInfo(t *testing.T) {
	log := NewWithOutput(&bytes.Buffer{}, "chatty", "text")
	if log.GetLevel() != logrus.InfoLevel {
		t.Fatalf("level = %s", log.GetLevel())
	}
}
