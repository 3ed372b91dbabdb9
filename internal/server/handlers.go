// Package server exposes the pipeline control API over HTTP: run commands,
// item enqueueing, directory scans, progress reporting and record export.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/docflow/constants"
	"github.com/joseph-ayodele/docflow/internal/common"
	"github.com/joseph-ayodele/docflow/internal/ingest"
	"github.com/joseph-ayodele/docflow/internal/orchestrator"
	"github.com/joseph-ayodele/docflow/internal/queue"
	"github.com/joseph-ayodele/docflow/internal/repository"
)

// Pipeline is the run-control surface the API drives.
// *orchestrator.Orchestrator implements it.
type Pipeline interface {
	Start() error
	Pause() error
	Stop() error
	Enqueue(path string, kind constants.ItemKind) bool
	Progress() orchestrator.Progress
	Items() []queue.Item
}

// Exporter renders the records workbook. *export.Service implements it.
type Exporter interface {
	RecordsXLSX(ctx context.Context, limit int) ([]byte, error)
}

// Handler serves the control API endpoints.
type Handler struct {
	pipeline Pipeline
	records  repository.RecordRepository
	runs     repository.RunRepository
	exporter Exporter
	logger   *slog.Logger
}

// NewHandler creates the API handler. records, runs and exporter may be nil
// when persistence is disabled; the matching endpoints then answer 404.
func NewHandler(pipeline Pipeline, records repository.RecordRepository, runs repository.RunRepository, exporter Exporter, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		pipeline: pipeline,
		records:  records,
		runs:     runs,
		exporter: exporter,
		logger:   logger,
	}
}

type progressResponse struct {
	State     string `json:"state"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
	Pending   int    `json:"pending"`
	Total     int    `json:"total"`
	ElapsedMS int64  `json:"elapsed_ms"`
	EtaMS     int64  `json:"eta_ms"`
	EtaKnown  bool   `json:"eta_known"`
}

type itemResponse struct {
	ID         string    `json:"id"`
	Path       string    `json:"path"`
	Kind       string    `json:"kind"`
	Status     string    `json:"status"`
	Hash       string    `json:"hash,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	PageCount  int       `json:"page_count,omitempty"`
	FailReason string    `json:"fail_reason,omitempty"`
	SkipReason string    `json:"skip_reason,omitempty"`
}

type enqueueRequest struct {
	Path string `json:"path"`
}

type enqueueResponse struct {
	Path  string `json:"path"`
	Kind  string `json:"kind"`
	Added bool   `json:"added"`
}

type scanRequest struct {
	Root       string `json:"root"`
	SkipHidden bool   `json:"skip_hidden"`
}

type recordResponse struct {
	ID          string    `json:"id"`
	Path        string    `json:"path"`
	Kind        string    `json:"kind"`
	ContentHash string    `json:"content_hash"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	Language    string    `json:"language,omitempty"`
	Confidence  float32   `json:"confidence,omitempty"`
	PageCount   int       `json:"page_count"`
	RunID       string    `json:"run_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type runResponse struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Processed  int        `json:"processed"`
	Failed     int        `json:"failed"`
	Skipped    int        `json:"skipped"`
	ElapsedMS  int64      `json:"elapsed_ms"`
}

// StartRun handles POST /api/v1/run/start.
func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	h.runCommand(w, "start", h.pipeline.Start)
}

// PauseRun handles POST /api/v1/run/pause.
func (h *Handler) PauseRun(w http.ResponseWriter, r *http.Request) {
	h.runCommand(w, "pause", h.pipeline.Pause)
}

// StopRun handles POST /api/v1/run/stop.
func (h *Handler) StopRun(w http.ResponseWriter, r *http.Request) {
	h.runCommand(w, "stop", h.pipeline.Stop)
}

// runCommand executes a run-control command and answers with the resulting
// progress snapshot. Rejected commands map through common.HTTPStatus, so an
// invalid transition answers 409 and an empty queue 422.
func (h *Handler) runCommand(w http.ResponseWriter, name string, cmd func() error) {
	if err := cmd(); err != nil {
		h.writeError(w, common.HTTPStatus(err), name+" rejected", err.Error())
		return
	}
	h.writeJSON(w, toProgressResponse(h.pipeline.Progress()))
}

// GetProgress handles GET /api/v1/progress.
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, toProgressResponse(h.pipeline.Progress()))
}

// EnqueueItem handles POST /api/v1/items. The file kind is derived from the
// path extension; unsupported extensions answer 400.
func (h *Handler) EnqueueItem(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	v := common.NewValidator().Field("path", req.Path, common.Required, common.MaxLength(4096))
	if v.HasErrors() {
		h.writeError(w, http.StatusBadRequest, "invalid request", v.ErrorMessage())
		return
	}
	path := strings.TrimSpace(req.Path)
	kind, ok := constants.KindForExt(filepath.Ext(path))
	if !ok {
		h.writeError(w, http.StatusBadRequest, "unsupported file type", fmt.Sprintf("no extraction route for %q", filepath.Ext(path)))
		return
	}
	added := h.pipeline.Enqueue(path, kind)
	h.writeJSON(w, enqueueResponse{Path: path, Kind: string(kind), Added: added})
}

// ScanDirectory handles POST /api/v1/scan: walks the given root and enqueues
// every supported file, answering with the scan counters.
func (h *Handler) ScanDirectory(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	v := common.NewValidator().Field("root", req.Root, common.Required)
	if v.HasErrors() {
		h.writeError(w, http.StatusBadRequest, "invalid request", v.ErrorMessage())
		return
	}
	stats, err := ingest.ScanDirectory(r.Context(), req.Root, req.SkipHidden, h.pipeline, h.logger)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "scan failed", err.Error())
		return
	}
	h.writeJSON(w, stats)
}

// ListItems handles GET /api/v1/items.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items := h.pipeline.Items()
	resp := make([]itemResponse, 0, len(items))
	for _, it := range items {
		resp = append(resp, itemResponse{
			ID:         it.ID.String(),
			Path:       it.Path,
			Kind:       string(it.Kind),
			Status:     string(it.Status),
			Hash:       it.Hash,
			EnqueuedAt: it.EnqueuedAt,
			PageCount:  len(it.Pages),
			FailReason: it.FailReason,
			SkipReason: it.SkipReason,
		})
	}
	h.writeJSON(w, resp)
}

// GetItem handles GET /api/v1/items/{id}, returning one item in full,
// extracted pages included.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid item id", err.Error())
		return
	}
	for _, it := range h.pipeline.Items() {
		if it.ID == id {
			h.writeJSON(w, it)
			return
		}
	}
	h.writeError(w, http.StatusNotFound, "item not found", "")
}

// ListRecords handles GET /api/v1/records. A limit query param caps the
// result; the repository applies its default when absent.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	if h.records == nil {
		h.writeError(w, http.StatusNotFound, "records are not enabled", "")
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid limit", err.Error())
		return
	}
	recs, err := h.records.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("api.records.list_failed", "error", err)
		h.writeError(w, common.HTTPStatus(err), "failed to list records", err.Error())
		return
	}
	resp := make([]recordResponse, 0, len(recs))
	for _, rec := range recs {
		resp = append(resp, toRecordResponse(rec))
	}
	h.writeJSON(w, resp)
}

// CategoryCounts handles GET /api/v1/records/categories.
func (h *Handler) CategoryCounts(w http.ResponseWriter, r *http.Request) {
	if h.records == nil {
		h.writeError(w, http.StatusNotFound, "records are not enabled", "")
		return
	}
	counts, err := h.records.CountByCategory(r.Context())
	if err != nil {
		h.logger.Error("api.records.count_failed", "error", err)
		h.writeError(w, common.HTTPStatus(err), "failed to count records", err.Error())
		return
	}
	h.writeJSON(w, counts)
}

// ListRuns handles GET /api/v1/runs: run history, newest first. A run
// without a finished_at is still open.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		h.writeError(w, http.StatusNotFound, "run history is not enabled", "")
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid limit", err.Error())
		return
	}
	runs, err := h.runs.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("api.runs.list_failed", "error", err)
		h.writeError(w, common.HTTPStatus(err), "failed to list runs", err.Error())
		return
	}
	resp := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, toRunResponse(run))
	}
	h.writeJSON(w, resp)
}

// ExportRecords handles GET /api/v1/export: streams the records workbook as
// an xlsx attachment.
func (h *Handler) ExportRecords(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		h.writeError(w, http.StatusNotFound, "export is not enabled", "")
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid limit", err.Error())
		return
	}
	data, err := h.exporter.RecordsXLSX(r.Context(), limit)
	if err != nil {
		h.logger.Error("api.export.failed", "error", err)
		h.writeError(w, common.HTTPStatus(err), "export failed", err.Error())
		return
	}
	name := "docflow-records-" + time.Now().UTC().Format("20060102-150405") + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = w.Write(data)
}

func toProgressResponse(p orchestrator.Progress) progressResponse {
	return progressResponse{
		State:     string(p.State),
		Processed: p.Processed,
		Failed:    p.Failed,
		Skipped:   p.Skipped,
		Pending:   p.Pending,
		Total:     p.Total,
		ElapsedMS: p.Elapsed.Milliseconds(),
		EtaMS:     p.ETA.Milliseconds(),
		EtaKnown:  p.ETAKnown,
	}
}

func toRecordResponse(rec *repository.Record) recordResponse {
	resp := recordResponse{
		ID:          rec.ID.String(),
		Path:        rec.Path,
		Kind:        rec.Kind,
		ContentHash: rec.ContentHash,
		Category:    rec.Category,
		Tags:        rec.Tags,
		Summary:     rec.Summary,
		Language:    rec.Language,
		Confidence:  rec.Confidence,
		PageCount:   rec.PageCount,
		CreatedAt:   rec.CreatedAt,
	}
	if rec.RunID.Valid {
		resp.RunID = rec.RunID.UUID.String()
	}
	return resp
}

func toRunResponse(run *repository.Run) runResponse {
	resp := runResponse{
		ID:        run.ID.String(),
		StartedAt: run.StartedAt,
		Processed: run.Processed,
		Failed:    run.Failed,
		Skipped:   run.Skipped,
		ElapsedMS: run.Elapsed,
	}
	if run.FinishedAt.Valid {
		t := run.FinishedAt.Time
		resp.FinishedAt = &t
	}
	return resp
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("limit must be a non-negative integer, got %q", raw)
	}
	return n, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]string{"error": message}
	if detail != "" {
		resp["detail"] = detail
	}
	_ = json.NewEncoder(w).Encode(resp)
}
