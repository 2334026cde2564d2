package database

import (
	"context"
	"io/fs"
	"strings"
	"testing"
)

func TestMigrationsEmbedded(t *testing.T) {
	names, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) == 0 {
		t.Fatal("no migrations embedded")
	}
	for _, name := range names {
		data, err := fs.ReadFile(migrationFiles, name)
		if err != nil {
			t.Fatal(err)
		}
		body := string(data)
		if !strings.Contains(body, "-- +goose Up") || !strings.Contains(body, "-- +goose Down") {
			t.Errorf("%s lacks goose annotations", name)
		}
	}
}

func TestConnectRejectsBadDSN(t *testing.T) {
	if _, err := Connect(context.Background(), "postgres://%zz", 4); err == nil {
		t.Fatal("expected parse error")
	}
}
