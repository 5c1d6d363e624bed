package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const DefaultErrorMessage = "Something went wrong. Please try again."

// ErrorBody is the error document the backend returns. Message is either a
// string or a list of validation messages.
type ErrorBody struct {
	Message    json.RawMessage `json:"message,omitempty"`
	Error      string          `json:"error,omitempty"`
	StatusCode int             `json:"statusCode,omitempty"`
}

// Error is a failed API call: a transport failure (Err set) or a non-2xx
// response (Status set).
type Error struct {
	Path   string
	Status int
	Body   ErrorBody
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("api %s: %v", e.Path, e.Err)
	}
	if msg, _ := e.serverMessage(); msg != "" {
		return fmt.Sprintf("api %s: %d: %s", e.Path, e.Status, msg)
	}
	return fmt.Sprintf("api %s: status %d", e.Path, e.Status)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// serverMessage returns the backend's message text. list reports that the
// message was a non-empty list of validation messages.
func (e *Error) serverMessage() (msg string, list bool) {
	if len(e.Body.Message) == 0 {
		return "", false
	}
	var items []interface{}
	if err := json.Unmarshal(e.Body.Message, &items); err == nil {
		parts := make([]string, 0, len(items))
		for _, m := range items {
			if s, ok := m.(string); ok {
				parts = append(parts, s)
			} else {
				parts = append(parts, fmt.Sprint(m))
			}
		}
		return strings.TrimSpace(strings.Join(parts, ". ")), len(items) > 0
	}
	var s string
	if err := json.Unmarshal(e.Body.Message, &s); err == nil {
		return strings.TrimSpace(s), false
	}
	return "", false
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// ErrorMessage turns err into text fit for an alert.
func ErrorMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			return msg
		}
		return fallback
	}

	msg, list := apiErr.serverMessage()
	if msg != "" {
		return msg
	}
	// A list that joins to nothing yields fallback.
	if list {
		return fallback
	}
	if e := strings.TrimSpace(apiErr.Body.Error); e != "" {
		if apiErr.Status == 400 {
			return "Bad request: " + apiErr.Body.Error
		}
		return apiErr.Body.Error
	}
	switch {
	case apiErr.Status == 401:
		return "Please sign in again."
	case apiErr.Status == 403:
		return "You don't have permission to do that."
	case apiErr.Status == 404:
		return "Not found. It may have been removed."
	case apiErr.Status >= 500:
		return "Server error. Please try again later."
	}
	if apiErr.Err != nil {
		if msg := strings.TrimSpace(apiErr.Err.Error()); msg != "" {
			return msg
		}
	}
	return fallback
}

// IsPropertyNotAllowed reports whether the backend rejected the request
// because of an unexpected property, optionally a specific one.
func IsPropertyNotAllowed(err error, property string) bool {
	msg := strings.ToLower(ErrorMessage(err, ""))
	if msg == "" {
		return false
	}
	rejected := strings.Contains(msg, "should not exist") || strings.Contains(msg, "property")
	if property == "" {
		return rejected
	}
	return rejected && strings.Contains(msg, strings.ToLower(property))
}
