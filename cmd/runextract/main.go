package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/docflow/constants"
	"github.com/joseph-ayodele/docflow/internal/common"
	"github.com/joseph-ayodele/docflow/internal/extract"
	"github.com/joseph-ayodele/docflow/internal/ocr"
	"github.com/joseph-ayodele/docflow/internal/vision"
)

// runextract extracts one file through the same backends the daemon uses and
// prints the pages, for tuning OCR settings without a running pipeline.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runextract <file>")
		os.Exit(2)
	}
	path := os.Args[1]
	kind, ok := constants.KindForExt(filepath.Ext(path))
	if !ok {
		logger.Error("unsupported file type", "path", path, "ext", filepath.Ext(path))
		os.Exit(2)
	}

	cfg := common.LoadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	ocrx := ocr.NewExtractor(ocr.Config{
		TessdataDir:    cfg.OCR.TessdataDir,
		TesseractLang:  cfg.OCR.TesseractLang,
		DPI:            cfg.OCR.DPI,
		MaxPages:       cfg.OCR.MaxPages,
		ProcessTimeout: cfg.OCR.ProcessTimeout,
	}, logger)
	visionClient := vision.NewClient(vision.Config{
		APIKey:  cfg.Vision.APIKey,
		BaseURL: cfg.Vision.BaseURL,
		Model:   cfg.Vision.Model,
		Timeout: cfg.Vision.Timeout,
	}, logger)
	dispatcher := extract.NewDispatcher(ocrx, visionClient, logger)

	start := time.Now()
	pages, err := dispatcher.Dispatch(ctx, path, kind)
	dur := time.Since(start)

	if err != nil {
		reason, _ := extract.ReasonOf(err)
		logger.Error("extraction failed",
			"path", path, "reason", string(reason), "error", err, "duration_ms", dur.Milliseconds())
		os.Exit(1)
	}

	logger.Info("extraction OK",
		"path", path, "kind", string(kind), "pages", len(pages), "duration_ms", dur.Milliseconds())
	for _, p := range pages {
		fmt.Printf("--- page %d (%s, confidence %.2f) ---\n%s\n", p.PageNumber, p.Method, p.Confidence, p.Text)
	}
}
