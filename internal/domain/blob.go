package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Blob is an open, order-irrelevant JSON object used for intent params and
// draft, execution and event payloads.
//
// Values follow encoding/json decoding rules: numbers read back from storage
// are float64, nested objects are map[string]any. Use the typed accessors or
// Decode rather than asserting on raw values.
type Blob map[string]any

// ToBlob converts any JSON-marshalable value into a Blob.
func ToBlob(v any) (Blob, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("to blob: %w", err)
	}
	var b Blob
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("to blob: %w", err)
	}
	if b == nil {
		b = Blob{}
	}
	return b, nil
}

// MustBlob is ToBlob for values known to marshal as an object.
func MustBlob(v any) Blob {
	b, err := ToBlob(v)
	if err != nil {
		panic(err)
	}
	return b
}

// Decode unmarshals the blob into v.
func (b Blob) Decode(v any) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("decode blob: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode blob: %w", err)
	}
	return nil
}

// Clone returns a deep copy.
func (b Blob) Clone() Blob {
	if b == nil {
		return Blob{}
	}
	out, err := ToBlob(b)
	if err != nil {
		// b came from JSON or from ToBlob; it always round-trips.
		panic(err)
	}
	return out
}

// Merge returns a copy of b with every key of patch written over it.
func (b Blob) Merge(patch Blob) Blob {
	out := b.Clone()
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// String returns the value under key rendered as a trimmed string.
// Missing and null values yield "".
func (b Blob) String(key string) string {
	v, ok := b[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

// Int returns the integer under key. Floats are accepted only when integral;
// numeric strings are parsed. ok is false for anything else.
func (b Blob) Int(key string) (int64, bool) {
	v, present := b[key]
	if !present {
		return 0, false
	}
	return AsInt(v)
}

// Bool returns the boolean under key.
func (b Blob) Bool(key string) bool {
	v, _ := b[key].(bool)
	return v
}

// Object returns the nested object under key, or nil.
func (b Blob) Object(key string) Blob {
	switch val := b[key].(type) {
	case map[string]any:
		return Blob(val)
	case Blob:
		return val
	}
	return nil
}

// List returns the array under key, or nil.
func (b Blob) List(key string) []any {
	v, _ := b[key].([]any)
	return v
}

// AsInt coerces a decoded JSON value to an integer. Non-integral floats,
// booleans and non-numeric strings are rejected.
func AsInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	}
	return 0, false
}
