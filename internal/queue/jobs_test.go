package queue

import (
	"encoding/json"
	"testing"

	"github.com/hibiken/asynq"
)

func TestDecodeConvert(t *testing.T) {
	data, _ := json.Marshal(ConvertPayload{DocumentID: 4, ObjectKey: "uploads/a.pdf", FileName: "a.pdf"})
	payload, err := DecodeConvert(asynq.NewTask(ConvertDocumentTask, data))
	if err != nil {
		t.Fatalf("DecodeConvert: %v", err)
	}
	if payload.DocumentID != 4 || payload.ObjectKey != "uploads/a.pdf" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestDecodeConvertRejectsIncompletePayload(t *testing.T) {
	for _, body := range []string{`{`, `{"document_id":0,"object_key":"k"}`, `{"document_id":3}`} {
		if _, err := DecodeConvert(asynq.NewTask(ConvertDocumentTask, []byte(body))); err == nil {
			t.Errorf("expected error for %s", body)
		}
	}
}
