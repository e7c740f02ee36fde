package opencloudapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// EntryPayload is a single ordered data store entry as sent on the wire.
// Value is kept raw because the service may send it as a string or a number.
type EntryPayload struct {
	Path  string          `json:"path"`
	ID    string          `json:"id"`
	Value json.RawMessage `json:"value"`
}

// ListEntriesPayload is the body of a list entries response. Entries is nil
// when the field is absent (or null), which ends pagination.
type ListEntriesPayload struct {
	Entries       *[]EntryPayload `json:"entries"`
	NextPageToken string          `json:"nextPageToken"`
}

// ValueBody is the request body of create and update calls.
type ValueBody struct {
	Value int64 `json:"value"`
}

// ErrorPayload covers the error shapes returned by Open Cloud endpoints.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Errors  []struct {
		Code    any    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// DecodeListEntries parses a list response. An empty body decodes to a
// payload without entries.
func DecodeListEntries(body []byte) (*ListEntriesPayload, error) {
	var payload ListEntriesPayload
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return &payload, nil
	}
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return nil, fmt.Errorf("opencloudapi: decode list entries response: %w", err)
	}
	return &payload, nil
}

// DecodeEntry parses a single entry response.
func DecodeEntry(body []byte) (*EntryPayload, error) {
	var payload EntryPayload
	if err := json.Unmarshal(bytes.TrimSpace(body), &payload); err != nil {
		return nil, fmt.Errorf("opencloudapi: decode entry response: %w", err)
	}
	return &payload, nil
}

// ParseValue converts a wire value to an integer. It accepts JSON strings and
// numbers. A string that does not parse as a whole uses its leading integer
// prefix ("42abc" is 42). Anything else, including values outside the int64
// range, yields 0.
func ParseValue(raw json.RawMessage) int64 {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}

	text := string(trimmed)
	if trimmed[0] == '"' {
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return 0
		}
	}
	return parseLeadingInt(text)
}

func parseLeadingInt(s string) int64 {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}

	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	v, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// FormatValue renders an integer the way list and entry responses carry it.
func FormatValue(v int64) string {
	return strconv.FormatInt(v, 10)
}

// ExtractError returns the error code and message from an Open Cloud error
// body. Both are empty when the body is not a recognised error document.
func ExtractError(body []byte) (code, message string) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return "", ""
	}

	var payload ErrorPayload
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return "", ""
	}

	code = payload.Code
	if code == "" {
		code = payload.Error
	}
	message = payload.Message
	if message == "" && len(payload.Errors) > 0 {
		message = payload.Errors[0].Message
	}
	return code, message
}
