package extract

import (
	"context"
	"errors"
	"fmt"
)

// PageResult is one unit of extracted content: one PDF page, one image
// analysis, or one whole text file.
type PageResult struct {
	PageNumber int     `json:"page_number"`
	Text       string  `json:"text"`
	Confidence float32 `json:"confidence,omitempty"`
	Method     string  `json:"method"` // "pdf-text" | "pdf-ocr" | "vision" | "text-read"
}

// OCRBackend extracts paged text from a document file.
type OCRBackend interface {
	ExtractPages(ctx context.Context, path string) ([]PageResult, error)
}

// VisionBackend produces a single analysis result for an image file.
type VisionBackend interface {
	Analyze(ctx context.Context, path string) (PageResult, error)
}

var errInvalidUTF8 = errors.New("content is not valid UTF-8")

// Reason classifies an extraction failure.
type Reason string

const (
	UnsupportedType Reason = "UNSUPPORTED_TYPE"
	EmptyResult     Reason = "EMPTY_RESULT"
	DecodeError     Reason = "DECODE_ERROR"
	BackendFailure  Reason = "BACKEND_FAILURE"
)

// Error is a per-item extraction failure. It never halts the run; the
// orchestrator marks the item failed and moves on.
type Error struct {
	Reason Reason
	Path   string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("extract %s: %s", e.Path, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ReasonOf returns the extraction failure reason carried by err, if any.
func ReasonOf(err error) (Reason, bool) {
	var xe *Error
	if errors.As(err, &xe) {
		return xe.Reason, true
	}
	return "", false
}
