package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dharsanguruparan/docvault/internal/bootstrap"
)

func TestRootRegistersCommands(t *testing.T) {
	root := newRootCommand(&bytes.Buffer{})
	for _, name := range []string{"migrate", "search", "tags", "process", "ocr", "convert"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("command %s not registered", name)
		}
	}
}

func TestCommandsRequireDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	for _, args := range [][]string{{"search", "invoice"}, {"migrate"}, {"tags", "3"}} {
		root := newRootCommand(&bytes.Buffer{})
		root.SetErr(&bytes.Buffer{})
		root.SetArgs(args)
		if err := root.ExecuteContext(context.Background()); !errors.Is(err, bootstrap.ErrNoDatabase) {
			t.Errorf("%v: expected ErrNoDatabase, got %v", args, err)
		}
	}
}

func TestInvalidDocumentID(t *testing.T) {
	root := newRootCommand(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"process", "abc"})
	err := root.ExecuteContext(context.Background())
	if err == nil || !strings.Contains(err.Error(), "invalid document id") {
		t.Fatalf("expected id error, got %v", err)
	}
}
