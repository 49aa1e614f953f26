package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/extract-tracker/internal/common"
)

// APIError is the single error shape returned by every Client method.
// Detail is always a human-readable message.
type APIError struct {
	Status int    // HTTP status, 0 when no response was received
	Detail string // message suitable for display
	Err    error  // underlying cause, if any
}

func (e *APIError) Error() string {
	return e.Detail
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// AsAPIError extracts an *APIError from err.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// normalizeError builds the error for a non-2xx response: the body's detail message first,
// then the status text, then a generic message carrying the status code.
func normalizeError(status int, statusLine string, body []byte) *APIError {
	e := &APIError{Status: status}
	if status == http.StatusNotFound {
		e.Err = common.ErrNotFound
	}
	if detail := parseDetail(body); detail != "" {
		e.Detail = detail
		return e
	}
	if text := statusText(status, statusLine); text != "" {
		e.Detail = text
		return e
	}
	e.Detail = fmt.Sprintf("HTTP error! status: %d", status)
	return e
}

// parseDetail reads {"detail": "..."}, FastAPI's {"detail": [{"msg": ...}]}, or a bare JSON string.
func parseDetail(body []byte) string {
	if len(bytes.TrimSpace(body)) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return ""
	}
	switch b := v.(type) {
	case string:
		return strings.TrimSpace(b)
	case map[string]any:
		switch d := b["detail"].(type) {
		case string:
			return strings.TrimSpace(d)
		case []any:
			var msgs []string
			for _, item := range d {
				if m, ok := item.(map[string]any); ok {
					if msg, ok := m["msg"].(string); ok && msg != "" {
						msgs = append(msgs, msg)
					}
				}
			}
			return strings.Join(msgs, "; ")
		}
	}
	return ""
}

// statusText strips the numeric code from a status line such as "404 Not Found".
func statusText(status int, statusLine string) string {
	text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(statusLine), strconv.Itoa(status)))
	if text == "" || text == fmt.Sprintf("status code %d", status) {
		return ""
	}
	return text
}

func transportError(err error) *APIError {
	return &APIError{Detail: fmt.Sprintf("request failed: %v", err), Err: err}
}
