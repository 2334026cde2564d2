package documents

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/dharsanguruparan/docvault/internal/apperr"
	"github.com/dharsanguruparan/docvault/internal/model"
	"github.com/dharsanguruparan/docvault/internal/queue"
	"github.com/dharsanguruparan/docvault/internal/repository"
)

type fakeQueue struct {
	payloads []queue.ConvertPayload
	err      error
}

func (f *fakeQueue) EnqueueConvert(_ context.Context, p queue.ConvertPayload) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.payloads = append(f.payloads, p)
	return "task-1", nil
}

func newTestService(t *testing.T) (*Service, *repository.MemoryStore, *fakeQueue) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	store, err := repository.NewMemoryStore()
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	q := &fakeQueue{}
	return NewService(store, q, log), store, q
}

func upload(t *testing.T, svc *Service, filename string) model.Document {
	t.Helper()
	doc, err := svc.Upload(context.Background(), UploadInput{Filename: filename, FileURL: "uploads/" + filename, GroupID: "g", UploaderID: "u"})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	return doc
}

func strPtr(s string) *string { return &s }

func TestProcessScenario(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	doc := upload(t, svc, "Report Final.pdf")

	res, err := svc.Process(ctx, doc.ID, ProcessInput{
		ExtractedText: strPtr("revenue grew"),
		Summary:       strPtr("Q3 finance report"),
		Tags:          []string{"Finance", " finance ", "FINANCE"},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Slug != "report-final" || res.ID != doc.ID {
		t.Fatalf("unexpected result: %+v", res)
	}
	tags, _ := svc.ListTags(ctx, doc.ID)
	if len(tags) != 1 || tags[0] != "finance" {
		t.Fatalf("expected [finance], got %v", tags)
	}
	got, _ := store.GetDocument(ctx, doc.ID)
	if got.Status != model.StatusProcessed || *got.Summary != "Q3 finance report" {
		t.Fatalf("unexpected document: %+v", got)
	}
}

func TestProcessKeepsSlugAndClearsAbsentValues(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	doc := upload(t, svc, "first.txt")
	if _, err := svc.Process(ctx, doc.ID, ProcessInput{ExtractedText: strPtr("old text"), Summary: strPtr("old summary")}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	// Store a slug the filename would never produce.
	if err := store.InTx(ctx, func(q repository.Querier) error {
		return q.UpdateProcessed(ctx, doc.ID, model.ProcessUpdate{ExtractedText: strPtr("old text"), Summary: strPtr("old summary"), Slug: "custom-slug"})
	}); err != nil {
		t.Fatal(err)
	}
	res, err := svc.Process(ctx, doc.ID, ProcessInput{Tags: []string{"x"}})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Slug != "custom-slug" {
		t.Fatalf("existing slug overwritten: %q", res.Slug)
	}
	got, _ := store.GetDocument(ctx, doc.ID)
	if got.ExtractedText != nil || got.Summary != nil {
		t.Fatalf("absent fields should be stored as NULL, got text=%v summary=%v", got.ExtractedText, got.Summary)
	}
}

func TestProcessEmptyFilenameFallsBackToID(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	doc, err := store.InsertDocument(ctx, model.NewDocument{Filename: "", FileURL: "uploads/x"})
	if err != nil {
		t.Fatal(err)
	}
	res, err := svc.Process(ctx, doc.ID, ProcessInput{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if want := "doc-" + strconv.FormatInt(doc.ID, 10); res.Slug != want {
		t.Fatalf("slug = %q, want %q", res.Slug, want)
	}
}

func TestProcessUnknownDocumentHasNoSideEffects(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Process(ctx, 404, ProcessInput{Tags: []string{"orphan"}})
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	docs, _ := store.ListDocumentsByTag(ctx, "orphan")
	if len(docs) != 0 {
		t.Fatalf("unexpected documents: %v", docs)
	}
	// The first tag ever created gets id 1, so "orphan" must not exist.
	id, _ := store.GetOrCreateTag(ctx, "first")
	if id != 1 {
		t.Fatalf("tag created by failed process: first got id %d", id)
	}
}

func TestProcessTrashedDocumentConflicts(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	doc := upload(t, svc, "a.pdf")
	if _, err := svc.Process(ctx, doc.ID, ProcessInput{}); err != nil {
		t.Fatal(err)
	}
	if err := svc.Trash(ctx, doc.ID); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Process(ctx, doc.ID, ProcessInput{})
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestTrashRestoreScenario(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	doc := upload(t, svc, "a.pdf")

	if err := svc.Trash(ctx, doc.ID); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("trashing an unprocessed document should conflict, got %v", err)
	}
	if err := svc.Restore(ctx, doc.ID); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("restoring an untrashed document should conflict, got %v", err)
	}
	if _, err := svc.Process(ctx, doc.ID, ProcessInput{}); err != nil {
		t.Fatal(err)
	}
	if err := svc.Trash(ctx, doc.ID); err != nil {
		t.Fatalf("Trash: %v", err)
	}
	if err := svc.Restore(ctx, doc.ID); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	got, _ := store.GetDocument(ctx, doc.ID)
	if got.Status != model.StatusProcessed {
		t.Fatalf("status = %s, want processed", got.Status)
	}
	if err := svc.Restore(ctx, doc.ID); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("restoring a processed document should conflict, got %v", err)
	}
	if err := svc.Trash(ctx, 999); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := svc.Restore(ctx, 999); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAddTagsIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	doc := upload(t, svc, "a.pdf")
	for i := 0; i < 2; i++ {
		added, err := svc.AddTags(ctx, doc.ID, []string{"Draft", "draft "})
		if err != nil {
			t.Fatalf("AddTags: %v", err)
		}
		if len(added) != 1 || added[0] != "draft" {
			t.Fatalf("unexpected added: %v", added)
		}
	}
	tags, _ := svc.ListTags(ctx, doc.ID)
	if len(tags) != 1 {
		t.Fatalf("expected one association, got %v", tags)
	}
	if _, err := svc.AddTags(ctx, 999, []string{"x"}); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSearchValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	for _, q := range []string{"", "   "} {
		if _, err := svc.Search(context.Background(), q); apperr.KindOf(err) != apperr.KindValidation {
			t.Fatalf("Search(%q): expected validation error, got %v", q, err)
		}
	}
}

func TestSearchFindsProcessedText(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	doc := upload(t, svc, "minutes.txt")
	if _, err := svc.Process(ctx, doc.ID, ProcessInput{ExtractedText: strPtr("board approved the merger")}); err != nil {
		t.Fatal(err)
	}
	results, err := svc.Search(ctx, "  approved merger ")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != doc.ID {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestSearchMatchesWordForms(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	doc := upload(t, svc, "Quarterly reports.pdf")
	if _, err := svc.Process(ctx, doc.ID, ProcessInput{}); err != nil {
		t.Fatal(err)
	}
	for _, q := range []string{"report", "the reports"} {
		results, err := svc.Search(ctx, q)
		if err != nil {
			t.Fatalf("Search(%q): %v", q, err)
		}
		if len(results) != 1 || results[0].ID != doc.ID {
			t.Fatalf("Search(%q) = %+v", q, results)
		}
	}
}

func TestDocumentsByTagRejectsBlank(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.DocumentsByTag(context.Background(), "  "); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRequestConversion(t *testing.T) {
	svc, _, q := newTestService(t)
	ctx := context.Background()
	doc := upload(t, svc, "a.pdf")
	taskID, err := svc.RequestConversion(ctx, doc.ID)
	if err != nil {
		t.Fatalf("RequestConversion: %v", err)
	}
	if taskID != "task-1" || len(q.payloads) != 1 || q.payloads[0].ObjectKey != "uploads/a.pdf" {
		t.Fatalf("unexpected enqueue: %s %+v", taskID, q.payloads)
	}

	q.err = errors.New("redis down")
	_, err = svc.RequestConversion(ctx, doc.ID)
	if apperr.KindOf(err) != apperr.KindInternal || !strings.Contains(err.Error(), "redis") {
		t.Fatalf("expected internal error wrapping the cause, got %v", err)
	}
}
