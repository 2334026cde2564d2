package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/dharsanguruparan/docvault/internal/model"
	"github.com/dharsanguruparan/docvault/internal/queue"
	"github.com/dharsanguruparan/docvault/internal/repository"
	"github.com/dharsanguruparan/docvault/internal/s3storage"
)

type fakeObjects struct {
	files    map[string][]byte
	uploaded map[string]string
}

func (f *fakeObjects) DownloadToFile(_ context.Context, key, dest string) error {
	data, ok := f.files[key]
	if !ok {
		return fmt.Errorf("download object: %w", s3storage.ErrNotFound)
	}
	return os.WriteFile(dest, data, 0o600)
}

func (f *fakeObjects) UploadFile(_ context.Context, key, path, contentType string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	f.files[key] = data
	f.uploaded[key] = contentType
	return nil
}

type fakeConverter struct{ err error }

func (f fakeConverter) ToDOCX(_ context.Context, input, outDir string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	base := filepath.Base(input)
	out := filepath.Join(outDir, base[:len(base)-len(filepath.Ext(base))]+".docx")
	return out, os.WriteFile(out, []byte("docx"), 0o600)
}

func newProcessor(t *testing.T, conv Converter) (*Processor, *repository.MemoryStore, *fakeObjects, model.Document, string) {
	t.Helper()
	store, err := repository.NewMemoryStore()
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	doc, err := store.InsertDocument(context.Background(), model.NewDocument{Filename: "minutes.pdf", FileURL: "uploads/abc.pdf"})
	if err != nil {
		t.Fatal(err)
	}
	objects := &fakeObjects{files: map[string][]byte{"uploads/abc.pdf": []byte("%PDF")}, uploaded: map[string]string{}}
	log := logrus.New()
	log.SetOutput(io.Discard)
	tmp := t.TempDir()
	return NewProcessor(store, objects, conv, tmp, log), store, objects, doc, tmp
}

func convertTask(t *testing.T, p queue.ConvertPayload) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	return asynq.NewTask(queue.ConvertDocumentTask, data)
}

func TestHandleConvertUploadsRendition(t *testing.T) {
	p, store, objects, doc, tmp := newProcessor(t, fakeConverter{})
	task := convertTask(t, queue.ConvertPayload{DocumentID: doc.ID, ObjectKey: doc.FileURL, FileName: doc.Filename})

	if err := p.HandleConvert(context.Background(), task); err != nil {
		t.Fatalf("HandleConvert: %v", err)
	}
	want := fmt.Sprintf("converted/%d/minutes.docx", doc.ID)
	if _, ok := objects.files[want]; !ok {
		t.Fatalf("rendition not uploaded, have %v", objects.uploaded)
	}
	got, _ := store.GetDocument(context.Background(), doc.ID)
	if got.ConvertedKey == nil || *got.ConvertedKey != want {
		t.Fatalf("converted key not recorded: %+v", got)
	}
	entries, _ := os.ReadDir(tmp)
	if len(entries) != 0 {
		t.Fatalf("scratch files left behind: %v", entries)
	}
}

func TestHandleConvertSkipsRetryForPermanentFailures(t *testing.T) {
	p, _, _, doc, _ := newProcessor(t, fakeConverter{})
	tasks := map[string]*asynq.Task{
		"bad payload":    asynq.NewTask(queue.ConvertDocumentTask, []byte(`{`)),
		"missing object": convertTask(t, queue.ConvertPayload{DocumentID: doc.ID, ObjectKey: "uploads/none.pdf"}),
		"unknown doc":    convertTask(t, queue.ConvertPayload{DocumentID: 404, ObjectKey: doc.FileURL}),
	}
	for name, task := range tasks {
		t.Run(name, func(t *testing.T) {
			err := p.HandleConvert(context.Background(), task)
			if !errors.Is(err, asynq.SkipRetry) {
				t.Fatalf("expected SkipRetry, got %v", err)
			}
		})
	}
}

func TestHandleConvertRetriesConverterFailure(t *testing.T) {
	p, store, _, doc, _ := newProcessor(t, fakeConverter{err: errors.New("libreoffice: tool timed out")})
	err := p.HandleConvert(context.Background(), convertTask(t, queue.ConvertPayload{DocumentID: doc.ID, ObjectKey: doc.FileURL, FileName: doc.Filename}))
	if err == nil || errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected retryable error, got %v", err)
	}
	got, _ := store.GetDocument(context.Background(), doc.ID)
	if got.ConvertedKey != nil {
		t.Fatalf("converted key set despite failure")
	}
}

func TestSourceName(t *testing.T) {
	cases := []struct {
		payload queue.ConvertPayload
		want    string
	}{
		{queue.ConvertPayload{FileName: "Report.pdf", ObjectKey: "uploads/x"}, "Report.pdf"},
		{queue.ConvertPayload{FileName: "../../etc/passwd", ObjectKey: "uploads/x"}, "passwd"},
		{queue.ConvertPayload{ObjectKey: "uploads/raw.odt"}, "raw.odt"},
		{queue.ConvertPayload{FileName: "..", ObjectKey: "uploads/"}, "uploads"},
	}
	for _, tc := range cases {
		if got := sourceName(tc.payload); got != tc.want {
			t.Errorf("sourceName(%+v) = %q, want %q", tc.payload, got, tc.want)
		}
	}
}
