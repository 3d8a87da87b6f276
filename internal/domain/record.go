package domain

import (
	"bytes"
	"encoding/json"
	"time"
	"unicode/utf8"
)

// Record is one decoded telemetry sample as sent by the device. No schema is
// enforced: fields such as temp, pressure, vibration, anomaly_score and
// timestamp are expected but may be missing.
type Record map[string]any

// ParseRecord decodes a single line into a Record. The line must be valid
// UTF-8 holding exactly one JSON object. Numbers decode to float64.
func ParseRecord(line []byte) (Record, error) {
	line = bytes.TrimSpace(line)
	if !utf8.Valid(line) {
		return nil, &ParseError{Line: excerpt(line), Err: errInvalidUTF8}
	}
	if len(line) == 0 || line[0] != '{' {
		return nil, &ParseError{Line: excerpt(line), Err: errNotObject}
	}
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, &ParseError{Line: excerpt(line), Err: err}
	}
	if rec == nil {
		return nil, &ParseError{Line: excerpt(line), Err: errNotObject}
	}
	return rec, nil
}

// Encode serializes the record as a single JSON line without the trailing newline.
func (r Record) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// Clone returns a deep copy so callers can never mutate buffered state.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

// Float returns a numeric field. Missing or non-numeric fields report false.
func (r Record) Float(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// String returns a string field. Missing or non-string fields report false.
func (r Record) String(key string) (string, bool) {
	s, ok := r[key].(string)
	return s, ok
}

// Timestamp interprets the "timestamp" field as unix seconds (numeric) or an
// RFC 3339 string.
func (r Record) Timestamp() (time.Time, bool) {
	if f, ok := r.Float("timestamp"); ok {
		sec := int64(f)
		nsec := int64((f - float64(sec)) * float64(time.Second))
		return time.Unix(sec, nsec).UTC(), true
	}
	if s, ok := r.String("timestamp"); ok {
		ts, err := time.Parse(time.RFC3339Nano, s)
		return ts, err == nil
	}
	return time.Time{}, false
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, inner := range val {
			m[k] = cloneValue(inner)
		}
		return m
	case Record:
		return val.Clone()
	case []any:
		s := make([]any, len(val))
		for i, inner := range val {
			s[i] = cloneValue(inner)
		}
		return s
	default:
		return val
	}
}

const maxExcerpt = 128

func excerpt(line []byte) string {
	if len(line) <= maxExcerpt {
		return string(line)
	}
	return string(line[:maxExcerpt]) + "..."
}
