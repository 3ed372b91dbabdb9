package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/docflow/internal/classify"
)

// Classify implements classify.Classifier using text-only chat/completions.
// The JSON schema rides along as a trailing system message and the reply is
// validated against it locally.
func (c *Client) Classify(ctx context.Context, req classify.ClassifyRequest) (classify.DocumentTags, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("classify.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"pages", len(req.Pages),
		"allowed_categories", len(req.AllowedCategories),
	)

	schema := classify.BuildTagsJSONSchema(req.AllowedCategories)
	sys := classify.BuildSystemPrompt(req)
	user := classify.BuildUserPrompt(req)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": sys},
			{"role": "user", "content": user + "\n\nReturn ONLY JSON that matches the provided schema."},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.logger.Error("classify.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return classify.DocumentTags{}, nil, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("classify.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return classify.DocumentTags{}, raw, fmt.Errorf("decode model response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("classify.no_choices",
			"req_id", rid, "raw", string(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return classify.DocumentTags{}, raw, fmt.Errorf("no choices in model response")
	}
	content := []byte(strings.TrimSpace(cc.Choices[0].Message.Content))

	// Validate strictly first; sanitize and re-validate when allowed.
	if err := classify.ValidateJSONAgainstSchema(schema, content); err != nil {
		if c.cfg.StrictJSON {
			c.logger.Error("classify.schema_validation_failed",
				"req_id", rid, "error", err, "content", string(content),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return classify.DocumentTags{}, content, fmt.Errorf("schema validation failed: %w", err)
		}
		cleaned, dropped, sErr := classify.SanitizeTags(content)
		if sErr != nil {
			c.logger.Error("classify.sanitize_failed",
				"req_id", rid, "error", sErr,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return classify.DocumentTags{}, content, fmt.Errorf("sanitize reply: %w", sErr)
		}
		if vErr := classify.ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
			c.logger.Error("classify.schema_validation_failed",
				"req_id", rid, "error", vErr, "content", string(content),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return classify.DocumentTags{}, content, fmt.Errorf("schema validation failed: %w", vErr)
		}
		c.logger.Warn("classify.sanitize_applied",
			"req_id", rid, "dropped", dropped,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		content = cleaned
	}

	var out classify.DocumentTags
	if err := json.Unmarshal(content, &out); err != nil {
		c.logger.Error("classify.unmarshal_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return classify.DocumentTags{}, content, fmt.Errorf("unmarshal tags: %w", err)
	}

	c.logger.Info("classify.ok",
		"req_id", rid,
		"category", out.Category,
		"tags", len(out.Tags),
		"language", out.Language,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, content, nil
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
		return nil, fmt.Errorf("openai http error: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("openai response body close error", "error", err)
		}
	}()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai status %d: %s", resp.StatusCode, raw)
	}
	return raw, nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
