package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joseph-ayodele/docflow/internal/extract"
)

// pdfText reads the embedded text layer with pdftotext. Pages come back
// separated by form feeds when -eol unix is in effect.
func (e *Extractor) pdfText(ctx context.Context, path string) ([]extract.PageResult, error) {
	args := []string{"-layout", "-enc", "UTF-8", "-eol", "unix", path, "-"}
	out, _, err := e.runner.Run(ctx, e.cfg.Pdftotext, args...)
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}

	chunks := strings.Split(string(out), "\f")
	// pdftotext emits a trailing form feed after the last page.
	if n := len(chunks); n > 0 && strings.TrimSpace(chunks[n-1]) == "" {
		chunks = chunks[:n-1]
	}
	if e.cfg.MaxPages > 0 && len(chunks) > e.cfg.MaxPages {
		chunks = chunks[:e.cfg.MaxPages]
	}

	pages := make([]extract.PageResult, 0, len(chunks))
	for i, c := range chunks {
		pages = append(pages, extract.PageResult{
			PageNumber: i + 1,
			Text:       Normalize(c),
			Confidence: 1.0,
			Method:     "pdf-text",
		})
	}
	return pages, nil
}

// pdfOCR rasterizes the document with pdftoppm and runs tesseract over
// every rendered page. A page that fails to OCR is logged and skipped;
// the document only fails when no page produced text at all.
func (e *Extractor) pdfOCR(ctx context.Context, path string) ([]extract.PageResult, error) {
	tmp, err := os.MkdirTemp("", "docflow-pp-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(tmp); rmErr != nil {
			e.logger.Warn("ocr.tmp.cleanup_failed", "dir", tmp, "error", rmErr)
		}
	}()

	prefix := filepath.Join(tmp, "page")
	args := []string{"-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", path, prefix}
	if _, _, err := e.runner.Run(ctx, e.cfg.Pdftoppm, args...); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w", err)
	}

	images, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, fmt.Errorf("list rendered pages: %w", err)
	}
	sort.Strings(images)
	if len(images) == 0 {
		return nil, nil
	}
	if e.cfg.MaxPages > 0 && len(images) > e.cfg.MaxPages {
		images = images[:e.cfg.MaxPages]
	}

	pages := make([]extract.PageResult, 0, len(images))
	var failed int
	for i, img := range images {
		text, conf, err := e.tesseract(ctx, img)
		if err != nil {
			failed++
			e.logger.Warn("ocr.page.failed", "path", path, "page", i+1, "error", err)
			continue
		}
		pages = append(pages, extract.PageResult{
			PageNumber: i + 1,
			Text:       text,
			Confidence: conf,
			Method:     "pdf-ocr",
		})
	}
	if len(pages) == 0 && failed > 0 {
		return nil, fmt.Errorf("ocr failed on all %d pages of %s", failed, path)
	}
	return pages, nil
}
