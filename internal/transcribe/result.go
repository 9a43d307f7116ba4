package transcribe

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Segment is one timed span of engine output.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Key fallbacks for each segment field, tried in order.
var (
	startKeys = []string{"start", "startTime"}
	endKeys   = []string{"end", "endTime"}
	textKeys  = []string{"text", "content"}
)

// ParseResult decodes an engine result file. Two shapes are accepted, checked
// in this order:
//
//  1. an object with a "segments" array (the engine's native result), and
//  2. a bare array of segment objects.
//
// Segment objects may use any of the fallback key names. Missing or
// non-numeric times decode as 0 and missing text as "".
func ParseResult(data []byte) ([]Segment, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty result")
	}

	var items []json.RawMessage
	switch data[0] {
	case '{':
		var obj struct {
			Segments *[]json.RawMessage `json:"segments"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, err
		}
		if obj.Segments == nil {
			return nil, errors.New(`result object has no "segments" array`)
		}
		items = *obj.Segments
	case '[':
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unexpected result type starting with %q", data[0])
	}

	segments := make([]Segment, 0, len(items))
	for i, raw := range items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		segments = append(segments, Segment{
			Start: numberField(fields, startKeys),
			End:   numberField(fields, endKeys),
			Text:  strings.TrimSpace(stringField(fields, textKeys)),
		})
	}
	return segments, nil
}

// numberField returns the first key holding a number. Numeric strings are
// accepted; anything else is skipped.
func numberField(fields map[string]json.RawMessage, keys []string) float64 {
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok {
			continue
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			return f
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f
			}
		}
	}
	return 0
}

func stringField(fields map[string]json.RawMessage, keys []string) string {
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return ""
}
