package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joseph-ayodele/docflow/constants"
	"github.com/joseph-ayodele/docflow/internal/classify/openai"
	"github.com/joseph-ayodele/docflow/internal/common"
	"github.com/joseph-ayodele/docflow/internal/export"
	"github.com/joseph-ayodele/docflow/internal/extract"
	"github.com/joseph-ayodele/docflow/internal/ingest"
	"github.com/joseph-ayodele/docflow/internal/ocr"
	"github.com/joseph-ayodele/docflow/internal/orchestrator"
	"github.com/joseph-ayodele/docflow/internal/queue"
	"github.com/joseph-ayodele/docflow/internal/repository"
	"github.com/joseph-ayodele/docflow/internal/server"
	"github.com/joseph-ayodele/docflow/internal/vision"
)

func main() {
	// Structured console logger; time and level are dropped from the output.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err, "driver", cfg.Database.Driver)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	records := repository.NewRecordRepository(db, logger)
	runs := repository.NewRunRepository(db, logger)

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

	classifier := openai.NewClient(openai.Config{
		APIKey:      cfg.Classifier.APIKey,
		BaseURL:     cfg.Classifier.BaseURL,
		Model:       cfg.Classifier.Model,
		Temperature: cfg.Classifier.Temperature,
		Timeout:     cfg.Classifier.Timeout,
	}, logger)

	pipe := orchestrator.New(dispatcher, classifier, records, runs, &logListener{logger: logger}, logger,
		orchestrator.WithNotifyBuffer(cfg.Orchestrator.NotifyBuffer),
	)

	var watcher *ingest.Watcher
	if len(cfg.Ingest.WatchRoots) > 0 {
		watcher, err = ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       cfg.Ingest.WatchRoots,
			InitialScan: cfg.Ingest.InitialScan,
			SkipHidden:  cfg.Ingest.SkipHidden,
			Debounce:    cfg.Ingest.Debounce,
		}, pipe, logger)
		if err != nil {
			logger.Error("failed to start watcher", "error", err, "roots", cfg.Ingest.WatchRoots)
			os.Exit(1)
		}
	}

	exporter := export.NewService(records, logger)
	handler := server.NewHandler(pipe, records, runs, exporter, logger)
	router := server.NewRouter(handler, db, cfg.Server.RequestTimeout)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}
	go func() {
		logger.Info("docflow listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// New work is cut off front to back: API first, then the filesystem
	// watcher, then the worker itself.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	if watcher != nil {
		<-watcher.Done()
	}
	pipe.Shutdown(shutdownCtx)
}

// logListener surfaces pipeline notifications in the daemon log.
type logListener struct {
	logger *slog.Logger
}

func (l *logListener) OnStateChanged(state constants.RunState) {
	l.logger.Info("notify.state", "state", string(state))
}

func (l *logListener) OnProgress(p orchestrator.Progress) {
	l.logger.Debug("notify.progress",
		"processed", p.Processed,
		"failed", p.Failed,
		"skipped", p.Skipped,
		"pending", p.Pending,
		"eta_ms", p.ETA.Milliseconds(),
		"eta_known", p.ETAKnown,
	)
}

func (l *logListener) OnItemCompleted(item queue.Item) {
	l.logger.Info("notify.item.completed", "path", item.Path, "pages", len(item.Pages))
}

func (l *logListener) OnItemFailed(item queue.Item, err error) {
	l.logger.Warn("notify.item.failed", "path", item.Path, "reason", item.FailReason, "error", err)
}

func (l *logListener) OnDrained() {
	l.logger.Info("notify.drained")
}
