package protocol

import (
	"bytes"
	"encoding/json"
)

// Field is an optional override: either Unchanged or SetTo(value).
// The zero value is Unchanged.
type Field[T any] struct {
	value T
	set   bool
}

// Set returns a field that replaces the current value with v.
func Set[T any](v T) Field[T] {
	return Field[T]{value: v, set: true}
}

// Unchanged returns a field that keeps the current value.
func Unchanged[T any]() Field[T] {
	return Field[T]{}
}

// Get returns the replacement value and whether one is present.
func (f Field[T]) Get() (T, bool) {
	return f.value, f.set
}

// IsSet reports whether the field carries a replacement.
func (f Field[T]) IsSet() bool {
	return f.set
}

// IsZero lets `omitzero` drop unchanged fields.
func (f Field[T]) IsZero() bool {
	return !f.set
}

// ApplyTo returns the replacement if present, otherwise current.
func (f Field[T]) ApplyTo(current T) T {
	if f.set {
		return f.value
	}
	return current
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.set {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*f = Field[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Set(v)
	return nil
}
