// Package vision transcribes standalone image documents through an
// OpenAI-compatible vision model.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/docflow/internal/extract"
)

// Config for the vision client.
type Config struct {
	APIKey     string        // if empty, falls back to env OPENAI_API_KEY
	BaseURL    string        // default https://api.openai.com/v1
	Model      string        // e.g. "gpt-4o-mini"
	Timeout    time.Duration // http client timeout
	MaxImageMB int           // refuse to upload images larger than this
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxImageMB <= 0 {
		cfg.MaxImageMB = 16
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

const systemPrompt = "You are a document transcriber. Return the full visible text of the image, " +
	"preserving reading order and line breaks. Do not describe the image and do not add commentary; " +
	"output the text only."

// the API reports no transcription confidence, so attach a fixed one
const transcriptionConfidence = 0.9

// Analyze uploads the image as a data URL and returns the transcription
// as a single page.
func (c *Client) Analyze(ctx context.Context, path string) (extract.PageResult, error) {
	rid := uuid.New().String()
	start := time.Now()

	dataURL, mimeType, err := readAsDataURL(path, c.cfg.MaxImageMB)
	if err != nil {
		return extract.PageResult{}, fmt.Errorf("prepare image: %w", err)
	}

	c.logger.Info("vision.analyze.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"path", path,
		"mime", mimeType,
	)

	body := map[string]any{
		"model": c.cfg.Model,
		"messages": []map[string]any{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": []map[string]any{
				{"type": "text", "text": "Transcribe this document."},
				{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
			}},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.logger.Error("vision.analyze.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return extract.PageResult{}, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("vision.analyze.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return extract.PageResult{}, fmt.Errorf("decode vision response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return extract.PageResult{}, fmt.Errorf("no choices in vision response")
	}
	text := strings.TrimSpace(cc.Choices[0].Message.Content)

	c.logger.Info("vision.analyze.ok",
		"req_id", rid,
		"chars", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return extract.PageResult{
		PageNumber: 1,
		Text:       text,
		Confidence: transcriptionConfidence,
		Method:     "vision",
	}, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision http error: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("vision response body close error", "error", err)
		}
	}()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("vision status %d: %s", resp.StatusCode, raw)
	}
	return raw, nil
}

func readAsDataURL(path string, maxMB int) (string, string, error) {
	st, err := os.Stat(path)
	if err != nil {
		return "", "", err
	}
	if st.Size() > int64(maxMB)<<20 {
		return "", "", fmt.Errorf("image %s is %d bytes, over the %d MB upload limit",
			filepath.Base(path), st.Size(), maxMB)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	ext := strings.ToLower(filepath.Ext(path))
	mt := mime.TypeByExtension(ext)
	if mt == "" {
		switch strings.TrimPrefix(ext, ".") {
		case "jpg", "jpeg":
			mt = "image/jpeg"
		case "png":
			mt = "image/png"
		default:
			mt = "application/octet-stream"
		}
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(b), mt, nil
}
