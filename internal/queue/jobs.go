package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// ConvertDocumentTask is scheduled each time a client asks for a DOCX
	// rendition of a stored document.
	ConvertDocumentTask = "document:convert"

	convertMaxRetry = 3
)

// ConvertPayload is serialized into the task payload so the worker knows which
// object to download.
type ConvertPayload struct {
	DocumentID int64  `json:"document_id"`
	ObjectKey  string `json:"object_key"`
	FileName   string `json:"file_name"`
}

// Client enqueues conversion tasks on asynq.
type Client struct {
	client *asynq.Client
}

// NewClient wraps an asynq client.
func NewClient(client *asynq.Client) *Client {
	return &Client{client: client}
}

// EnqueueConvert enqueues a conversion job and returns its task id.
func (c *Client) EnqueueConvert(ctx context.Context, payload ConvertPayload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(ConvertDocumentTask, data)
	info, err := c.client.EnqueueContext(ctx, task, asynq.MaxRetry(convertMaxRetry), asynq.TaskID(uuid.NewString()))
	if err != nil {
		return "", fmt.Errorf("enqueue convert task: %w", err)
	}
	return info.ID, nil
}

// DecodeConvert parses a conversion task payload.
func DecodeConvert(task *asynq.Task) (ConvertPayload, error) {
	var payload ConvertPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ConvertPayload{}, fmt.Errorf("decode payload: %w", err)
	}
	if payload.DocumentID <= 0 || payload.ObjectKey == "" {
		return ConvertPayload{}, fmt.Errorf("decode payload: missing document id or object key")
	}
	return payload, nil
}
