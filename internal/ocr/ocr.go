// Package ocr extracts paged text from PDF documents using poppler and
// tesseract. Documents with a usable embedded text layer go through
// pdftotext; scanned documents are rasterized and OCRed page by page.
package ocr

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/docflow/internal/extract"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit
	MinTextChars  int    // embedded text shorter than this triggers the OCR fallback

	TessdataDir         string
	EnableTSVConfidence bool

	PSM int // e.g. 6 is good for a uniform block of text
	OEM int // 1 = LSTM; leave 0 to use the default

	ProcessTimeout time.Duration // budget for the external tools, per document
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MinTextChars <= 0 {
		cfg.MinTextChars = 40
	}
	return &Extractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// ExtractPages pulls per-page text out of a PDF. The embedded text layer
// wins when it carries enough content; otherwise pages are rendered with
// pdftoppm and OCRed one by one.
func (e *Extractor) ExtractPages(ctx context.Context, path string) ([]extract.PageResult, error) {
	if e.cfg.ProcessTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.ProcessTimeout)
		defer cancel()
	}
	start := time.Now()

	pages, err := e.pdfText(ctx, path)
	if err != nil {
		e.logger.Warn("ocr.pdf.text_layer_failed", "path", path, "error", err)
	} else if chars := textChars(pages); chars >= e.cfg.MinTextChars {
		e.logger.Debug("ocr.pdf.text_layer",
			"path", path,
			"pages", len(pages),
			"chars", chars,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return pages, nil
	} else {
		e.logger.Info("ocr.pdf.fallback", "path", path, "chars", chars)
	}

	pages, err = e.pdfOCR(ctx, path)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("ocr.pdf.rasterized",
		"path", path,
		"pages", len(pages),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return pages, nil
}

func textChars(pages []extract.PageResult) int {
	n := 0
	for _, p := range pages {
		n += len(p.Text)
	}
	return n
}
