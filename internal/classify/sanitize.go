package classify

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var reISODate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// SanitizeTags repairs a model reply that misses the schema in recoverable
// ways: nulls and empty strings are dropped, tags are coerced to a clean
// string array, confidence is clamped, unknown keys are removed. The
// returned slice of keys records what was dropped or rewritten.
func SanitizeTags(raw []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	var dropped []string

	for _, k := range []string{"category", "summary", "language", "document_date"} {
		switch v := m[k].(type) {
		case nil:
			if _, ok := m[k]; ok {
				delete(m, k)
				dropped = append(dropped, k+"(null)")
			}
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				delete(m, k)
				dropped = append(dropped, k+"(empty)")
			} else {
				m[k] = s
			}
		default:
			if _, ok := m[k]; ok {
				delete(m, k)
				dropped = append(dropped, k+"(type)")
			}
		}
	}

	if v, ok := m["language"].(string); ok {
		m["language"] = strings.ToLower(v)
	}
	if v, ok := m["document_date"].(string); ok && !reISODate.MatchString(v) {
		delete(m, "document_date")
		dropped = append(dropped, "document_date(format)")
	}

	if v, ok := m["tags"]; ok {
		tags, changed := coerceTags(v)
		if tags == nil {
			delete(m, "tags")
			dropped = append(dropped, "tags(type)")
		} else {
			m["tags"] = tags
			if changed {
				dropped = append(dropped, "tags(rewritten)")
			}
		}
	}

	if v, ok := m["confidence"]; ok {
		switch t := v.(type) {
		case float64:
			m["confidence"] = clamp01(t)
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
				m["confidence"] = clamp01(f)
				dropped = append(dropped, "confidence(string)")
			} else {
				delete(m, "confidence")
				dropped = append(dropped, "confidence(type)")
			}
		default:
			delete(m, "confidence")
			dropped = append(dropped, "confidence(type)")
		}
	}

	allowed := map[string]struct{}{
		"category": {}, "tags": {}, "summary": {},
		"language": {}, "document_date": {}, "confidence": {},
	}
	for k := range m {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	return out, dropped, nil
}

// coerceTags turns whatever the model put under "tags" into a lowercase,
// deduplicated string array capped at 8 entries. A single string becomes
// a one-element array. Returns nil when the value is unusable.
func coerceTags(v any) ([]string, bool) {
	var in []string
	changed := false

	switch t := v.(type) {
	case []any:
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				changed = true
				continue
			}
			in = append(in, s)
		}
	case string:
		in = []string{t}
		changed = true
	default:
		return nil, false
	}

	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		clean := strings.ToLower(strings.TrimSpace(s))
		if clean != s {
			changed = true
		}
		if clean == "" {
			continue
		}
		if _, dup := seen[clean]; dup {
			changed = true
			continue
		}
		seen[clean] = struct{}{}
		out = append(out, clean)
	}
	if len(out) > 8 {
		out = out[:8]
		changed = true
	}
	return out, changed
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
