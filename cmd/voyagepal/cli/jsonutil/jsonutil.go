// Package jsonutil provides JSON helpers shared across the CLI.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// MarshalIndentWithNewline is json.MarshalIndent with a trailing newline,
// so files written with it end cleanly.
func MarshalIndentWithNewline(v any, prefix, indent string) ([]byte, error) {
	data, err := json.MarshalIndent(v, prefix, indent)
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodeStrict decodes a single JSON value from r and rejects unknown fields.
func DecodeStrict(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err //nolint:wrapcheck // callers add context
	}
	return nil
}

// DecodeStrictBytes is DecodeStrict over a byte slice.
func DecodeStrictBytes(data []byte, v any) error {
	return DecodeStrict(bytes.NewReader(data), v)
}
