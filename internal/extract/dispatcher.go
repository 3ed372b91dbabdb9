package extract

import (
	"context"
	"log/slog"
	"os"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/docflow/constants"
)

// Dispatcher routes a work item to the extraction strategy for its kind and
// normalizes the outcome into a page-result list. It performs no retries and
// imposes no timeout of its own; backends own both.
type Dispatcher struct {
	ocr    OCRBackend
	vision VisionBackend
	logger *slog.Logger
}

func NewDispatcher(ocr OCRBackend, vision VisionBackend, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{ocr: ocr, vision: vision, logger: logger}
}

// Dispatch extracts content from path according to kind. Failures are
// *Error values scoped to this one item.
func (d *Dispatcher) Dispatch(ctx context.Context, path string, kind constants.ItemKind) ([]PageResult, error) {
	start := time.Now()
	d.logger.Debug("extract.dispatch.start", "path", path, "kind", string(kind))

	var pages []PageResult
	var err error
	switch kind {
	case constants.PDF:
		pages, err = d.dispatchPDF(ctx, path)
	case constants.IMAGE:
		pages, err = d.dispatchImage(ctx, path)
	case constants.TEXT:
		pages, err = d.dispatchText(path)
	default:
		err = &Error{Reason: UnsupportedType, Path: path}
	}

	if err != nil {
		d.logger.Warn("extract.dispatch.failed",
			"path", path,
			"kind", string(kind),
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	d.logger.Info("extract.dispatch.ok",
		"path", path,
		"kind", string(kind),
		"pages", len(pages),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return pages, nil
}

func (d *Dispatcher) dispatchPDF(ctx context.Context, path string) ([]PageResult, error) {
	pages, err := d.ocr.ExtractPages(ctx, path)
	if err != nil {
		return nil, &Error{Reason: BackendFailure, Path: path, Err: err}
	}
	if len(pages) == 0 {
		return nil, &Error{Reason: EmptyResult, Path: path}
	}
	return pages, nil
}

func (d *Dispatcher) dispatchImage(ctx context.Context, path string) ([]PageResult, error) {
	res, err := d.vision.Analyze(ctx, path)
	if err != nil {
		return nil, &Error{Reason: BackendFailure, Path: path, Err: err}
	}
	if res.PageNumber == 0 {
		res.PageNumber = 1
	}
	return []PageResult{res}, nil
}

func (d *Dispatcher) dispatchText(path string) ([]PageResult, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Reason: DecodeError, Path: path, Err: err}
	}
	if !utf8.Valid(b) {
		return nil, &Error{Reason: DecodeError, Path: path, Err: errInvalidUTF8}
	}
	return []PageResult{{
		PageNumber: 1,
		Text:       string(b),
		Confidence: 1.0,
		Method:     "text-read",
	}}, nil
}
