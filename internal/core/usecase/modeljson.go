package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

// decodeModelJSON strips code fences and surrounding prose before decoding.
func decodeModelJSON(raw string, out any) error {
	cleaned := extractJSONObject(stripCodeFence(raw))
	if strings.TrimSpace(cleaned) == "" {
		return domain.WrapError(domain.ErrMalformedOutput, "decode model json", errors.New("empty response"))
	}
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return domain.WrapError(domain.ErrMalformedOutput, "decode model json", err)
	}
	return nil
}

func stripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```JSON")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

// modelNumber accepts a JSON number or numeric string. Anything else, including
// absence, decodes as invalid without failing the enclosing object.
type modelNumber struct {
	Value float64
	Valid bool
}

func (n *modelNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		n.Value, n.Valid = 0, false
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		n.Value, n.Valid = f, true
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			n.Value, n.Valid = f, true
			return nil
		}
	}
	n.Value, n.Valid = 0, false
	return nil
}

// Clamped returns the value clamped to [0,1], or 0 when it was not numeric.
func (n modelNumber) Clamped() float64 {
	if !n.Valid {
		return 0
	}
	return domain.ClampConfidence(n.Value)
}

// modelString accepts a JSON string, number or bool. Objects, arrays and null
// decode as empty without failing the enclosing object.
type modelString string

func (s *modelString) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		*s = ""
		return nil
	}
	switch t := v.(type) {
	case string:
		*s = modelString(strings.TrimSpace(t))
	case float64:
		*s = modelString(strconv.FormatFloat(t, 'f', -1, 64))
	case bool:
		*s = modelString(strconv.FormatBool(t))
	default:
		*s = ""
	}
	return nil
}

func (s modelString) String() string { return string(s) }

// Ptr returns nil for an empty value.
func (s modelString) Ptr() *string {
	if s == "" {
		return nil
	}
	v := string(s)
	return &v
}

// modelStrings accepts a list of strings, a single string or null.
type modelStrings []string

func (s *modelStrings) UnmarshalJSON(data []byte) error {
	var list []any
	if err := json.Unmarshal(data, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, item := range list {
			switch v := item.(type) {
			case string:
				if strings.TrimSpace(v) != "" {
					out = append(out, v)
				}
			case nil:
			default:
				raw, _ := json.Marshal(v)
				out = append(out, string(raw))
			}
		}
		*s = out
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil && strings.TrimSpace(single) != "" {
		*s = []string{single}
		return nil
	}
	*s = []string{}
	return nil
}

func (s modelStrings) List() []string {
	if s == nil {
		return []string{}
	}
	return []string(s)
}

func truncateRunes(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
