package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/sixty60/pkg/errors"
)

// StatusError is a non-2xx response from a platform host. The raw body is
// kept so callers can surface the server's own explanation.
type StatusError struct {
	Service    string
	StatusCode int
	Message    string
	Body       []byte
}

func (e *StatusError) Error() string {
	detail := e.Message
	if detail == "" {
		detail = strings.TrimSpace(string(e.Body))
	}
	if detail == "" {
		return fmt.Sprintf("%s returned status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, detail)
}

func (e *StatusError) Unwrap() error {
	return apperrors.ErrTransport
}

// platformErrorBody covers the error shapes the platform hosts are known to return.
type platformErrorBody struct {
	Message          string          `json:"message"`
	ErrorDescription string          `json:"error_description"`
	Error            json.RawMessage `json:"error"`
}

// ParseResponseError reads the body of a non-2xx HTTP response and returns a
// *StatusError. The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB limit
	if err != nil {
		return &StatusError{
			Service:    serviceName,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("failed to read body: %v", err),
		}
	}

	return &StatusError{
		Service:    serviceName,
		StatusCode: resp.StatusCode,
		Message:    extractMessage(bodyBytes),
		Body:       bodyBytes,
	}
}

func extractMessage(body []byte) string {
	var parsed platformErrorBody
	if json.Unmarshal(body, &parsed) != nil {
		return ""
	}
	if parsed.Message != "" {
		return parsed.Message
	}
	if parsed.ErrorDescription != "" {
		return parsed.ErrorDescription
	}
	if len(parsed.Error) == 0 {
		return ""
	}

	var asString string
	if json.Unmarshal(parsed.Error, &asString) == nil {
		return asString
	}
	var nested struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(parsed.Error, &nested) == nil {
		return nested.Message
	}
	return ""
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
