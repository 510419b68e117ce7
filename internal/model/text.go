package model

import (
	"encoding/json"
	"strings"
)

// TextList decodes an array of strings, a single string, or an array of
// objects whose text lives under a common key.
type TextList []string

func (l *TextList) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*l = nil
	switch v := raw.(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			*l = TextList{s}
		}
	case []any:
		for _, item := range v {
			if s := itemText(item); s != "" {
				*l = append(*l, s)
			}
		}
	}
	return nil
}

func itemText(item any) string {
	switch v := item.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		for _, k := range []string{"description", "issue", "detail", "message", "text", "strength", "reason", "condition"} {
			if s, ok := v[k].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
		b, _ := json.Marshal(v)
		return string(b)
	case nil:
		return ""
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}
