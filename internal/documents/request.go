package documents

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/dharsanguruparan/docvault/internal/apperr"
)

// UploadInput is the metadata a client registers for an already stored file.
type UploadInput struct {
	Filename   string
	FileURL    string
	GroupID    string
	UploaderID string
}

// ProcessInput carries the optional parts of a process request. Nil text
// fields clear the stored values.
type ProcessInput struct {
	ExtractedText *string
	Summary       *string
	Tags          []string
}

// ProcessResult is returned once a document has been processed.
type ProcessResult struct {
	ID   int64  `json:"id"`
	Slug string `json:"slug"`
}

// decodeObject splits a JSON object into raw members. An empty body counts as
// an empty object.
func decodeObject(body []byte) (map[string]json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(body)) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, apperr.Validation("request body must be a JSON object")
	}
	return fields, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// optionalString reads an optional string member. Empty strings count as absent.
func optionalString(fields map[string]json.RawMessage, key string, errs *apperr.Collector) *string {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		errs.Addf("%s must be a string", key)
		return nil
	}
	if s == "" {
		return nil
	}
	return &s
}

// requiredString reads a non-blank string member.
func requiredString(fields map[string]json.RawMessage, key string, errs *apperr.Collector) string {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		errs.Addf("%s is required", key)
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		errs.Addf("%s must be a string", key)
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		errs.Addf("%s must not be blank", key)
	}
	return s
}

// reference reads an opaque identifier supplied either as a string or a number.
func reference(fields map[string]json.RawMessage, key string, errs *apperr.Collector) string {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	errs.Addf("%s must be a string or a number", key)
	return ""
}

// tagList reads an array of strings, reporting each element that is not a
// string. Blank elements are dropped.
func tagList(raw json.RawMessage, key string, errs *apperr.Collector) []string {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		errs.Addf("%s must be an array of strings", key)
		return nil
	}
	tags := make([]string, 0, len(items))
	for i, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			errs.Addf("%s[%d] must be a string", key, i)
			continue
		}
		if strings.TrimSpace(s) == "" {
			continue
		}
		tags = append(tags, s)
	}
	return tags
}

// ParseProcessRequest validates a process request body. Every violated field
// is reported in the returned validation error.
func ParseProcessRequest(body []byte) (ProcessInput, error) {
	fields, err := decodeObject(body)
	if err != nil {
		return ProcessInput{}, err
	}
	var errs apperr.Collector
	in := ProcessInput{
		ExtractedText: optionalString(fields, "extractedText", &errs),
		Summary:       optionalString(fields, "summary", &errs),
	}
	if raw, ok := fields["tags"]; ok && !isNull(raw) {
		in.Tags = tagList(raw, "tags", &errs)
	}
	if err := errs.Err(); err != nil {
		return ProcessInput{}, err
	}
	return in, nil
}

// ParseUploadRequest validates an upload request body.
func ParseUploadRequest(body []byte) (UploadInput, error) {
	fields, err := decodeObject(body)
	if err != nil {
		return UploadInput{}, err
	}
	var errs apperr.Collector
	in := UploadInput{
		Filename:   requiredString(fields, "filename", &errs),
		FileURL:    requiredString(fields, "fileUrl", &errs),
		GroupID:    reference(fields, "groupId", &errs),
		UploaderID: reference(fields, "uploaderId", &errs),
	}
	if err := errs.Err(); err != nil {
		return UploadInput{}, err
	}
	return in, nil
}

// ParseTagsRequest validates the body of an add-tags request.
func ParseTagsRequest(body []byte) ([]string, error) {
	fields, err := decodeObject(body)
	if err != nil {
		return nil, err
	}
	var errs apperr.Collector
	raw, ok := fields["tags"]
	if !ok || isNull(raw) {
		errs.Addf("tags must be an array of strings")
		return nil, errs.Err()
	}
	tags := tagList(raw, "tags", &errs)
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return tags, nil
}

// ParseSummaryRequest validates the body of a summary update. A null or
// missing summary clears the stored one.
func ParseSummaryRequest(body []byte) (*string, error) {
	fields, err := decodeObject(body)
	if err != nil {
		return nil, err
	}
	var errs apperr.Collector
	summary := optionalString(fields, "summary", &errs)
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return summary, nil
}
