package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ErrSessionExpired is returned when a 401 could not be recovered by a token
// refresh. The credentials have been cleared by the time it is returned.
var ErrSessionExpired = errors.New("session expired")

// Error is a non-2xx reply from the REST backend.
type Error struct {
	Method     string
	Path       string
	StatusCode int
	Detail     string
	Fields     map[string][]string
}

func (e *Error) Error() string {
	msg := e.Message()
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("upstream %s %s: %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

// Message is the text a user should see: the backend's detail, otherwise
// the first field validation error.
func (e *Error) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if len(e.Fields[k]) > 0 {
			return e.Fields[k][0]
		}
	}
	return ""
}

func parseError(method, path string, status int, body []byte) *Error {
	e := &Error{Method: method, Path: path, StatusCode: status}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		e.Detail = strings.TrimSpace(string(body))
		if len(e.Detail) > 200 || strings.HasPrefix(e.Detail, "<") {
			e.Detail = ""
		}
		return e
	}

	for _, key := range []string{"detail", "error", "message"} {
		var s string
		if v, ok := raw[key]; ok && json.Unmarshal(v, &s) == nil && s != "" {
			e.Detail = s
			break
		}
	}

	for k, v := range raw {
		switch k {
		case "detail", "error", "message":
			continue
		}
		var list []string
		if json.Unmarshal(v, &list) == nil && len(list) > 0 {
			if e.Fields == nil {
				e.Fields = map[string][]string{}
			}
			e.Fields[k] = list
			continue
		}
		var s string
		if json.Unmarshal(v, &s) == nil && s != "" {
			if e.Fields == nil {
				e.Fields = map[string][]string{}
			}
			e.Fields[k] = []string{s}
		}
	}
	return e
}

// StatusCode returns the upstream status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// UserMessage picks the user-facing text for err, using fallback when the
// backend did not say anything useful.
func UserMessage(err error, fallback string) string {
	if errors.Is(err, ErrSessionExpired) {
		return "Your session has expired, please log in again"
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		if msg := apiErr.Message(); msg != "" {
			return msg
		}
	}
	return fallback
}
