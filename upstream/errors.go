package upstream

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// StatusError is returned for any response with a 4xx or 5xx status.
type StatusError struct {
	Service    string
	Method     string
	URL        string
	StatusCode int
	// Detail is the error message the API put in its body, if any.
	Detail string
}

// detailPaths are where the supported APIs put their error text.
var detailPaths = []string{
	"Fault.Message",
	"Fault.Details.0",
	"error_message",
	"errors.0.message",
	"error.message",
	"message",
	"error",
	"detail",
}

func newStatusError(service, method, url string, status int, body []byte) *StatusError {
	e := &StatusError{
		Service:    service,
		Method:     method,
		URL:        url,
		StatusCode: status,
	}
	if gjson.ValidBytes(body) {
		parsed := gjson.ParseBytes(body)
		for _, p := range detailPaths {
			if r := parsed.Get(p); r.Exists() && r.Type == gjson.String && r.String() != "" {
				e.Detail = r.String()
				break
			}
		}
	} else if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 200 && !strings.HasPrefix(text, "<") {
		e.Detail = text
	}
	return e
}

func (e *StatusError) Error() string {
	var msg string
	switch {
	case e.StatusCode == http.StatusBadRequest:
		msg = fmt.Sprintf("%s rejected the request as invalid", e.Service)
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		msg = fmt.Sprintf("%s denied access, check the API key", e.Service)
	case e.StatusCode == http.StatusNotFound:
		msg = fmt.Sprintf("%s has no matching record", e.Service)
	case e.StatusCode == http.StatusTooManyRequests:
		msg = fmt.Sprintf("%s rate limit exceeded, try again later", e.Service)
	case e.StatusCode >= 500:
		msg = fmt.Sprintf("%s is temporarily unavailable", e.Service)
	default:
		msg = fmt.Sprintf("%s request failed", e.Service)
	}
	msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var e *StatusError
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}
