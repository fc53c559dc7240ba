package tripapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx response from the service.
type APIError struct {
	Status int
	// Detail is the server supplied explanation, empty when the body carried none.
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("service returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("service returned %d: %s", e.Status, e.Detail)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsUnauthorized reports whether err is an APIError with status 401.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// Detail extracts the server detail from err, or "" if err carries none.
func Detail(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return ""
}

// SchemaError is a 2xx response whose body did not match the expected shape.
type SchemaError struct {
	Schema string
	Err    error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("response does not match %s: %v", e.Schema, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// parseDetail pulls "detail" out of an error body. FastAPI sends either a
// string or, for request validation failures, a list of {loc, msg, type}.
func parseDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		return s
	}

	var items []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &items); err != nil {
		return ""
	}
	msgs := make([]string, 0, len(items))
	for _, it := range items {
		if it.Msg == "" {
			continue
		}
		if field := fieldName(it.Loc); field != "" {
			msgs = append(msgs, field+": "+it.Msg)
			continue
		}
		msgs = append(msgs, it.Msg)
	}
	return strings.Join(msgs, "; ")
}

// fieldName renders a FastAPI loc path without its leading "body"/"query" part.
func fieldName(loc []any) string {
	if len(loc) < 2 {
		return ""
	}
	parts := make([]string, 0, len(loc)-1)
	for _, p := range loc[1:] {
		parts = append(parts, fmt.Sprint(p))
	}
	return strings.Join(parts, ".")
}
