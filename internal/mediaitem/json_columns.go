package mediaitem

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Value implements driver.Valuer so *ActiveStream can be stored directly as
// a JSON column, matching the teacher's pattern for nullable typed columns.
func (a *ActiveStream) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal active_stream: %w", err)
	}
	return string(b), nil
}

// scanActiveStream decodes a nullable JSON column into an *ActiveStream.
func scanActiveStream(raw any) (*ActiveStream, error) {
	if raw == nil {
		return nil, nil
	}
	var text string
	switch v := raw.(type) {
	case string:
		text = v
	case []byte:
		text = string(v)
	default:
		return nil, fmt.Errorf("unsupported active_stream column type %T", raw)
	}
	if text == "" {
		return nil, nil
	}
	var a ActiveStream
	if err := json.Unmarshal([]byte(text), &a); err != nil {
		return nil, fmt.Errorf("unmarshal active_stream: %w", err)
	}
	return &a, nil
}

func marshalGenres(genres []string) (string, error) {
	if len(genres) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(genres)
	if err != nil {
		return "", fmt.Errorf("marshal genres: %w", err)
	}
	return string(b), nil
}

func unmarshalGenres(raw any) ([]string, error) {
	if raw == nil {
		return nil, nil
	}
	var text string
	switch v := raw.(type) {
	case string:
		text = v
	case []byte:
		text = string(v)
	}
	if text == "" {
		return nil, nil
	}
	var genres []string
	if err := json.Unmarshal([]byte(text), &genres); err != nil {
		return nil, fmt.Errorf("unmarshal genres: %w", err)
	}
	return genres, nil
}
