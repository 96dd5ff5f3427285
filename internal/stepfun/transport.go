package stepfun

import (
	"encoding/json"
	"io"
	"net/http"
)

// HTTP headers.
const (
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	headerUserAgent     = "User-Agent"
	headerSource        = "X-Source"
	contentTypeJSON     = "application/json"
	bearerScheme        = "Bearer "
)

const maxErrorBodyBytes = 64 << 10

// RequestDecorator augments every outbound request before it is sent.
type RequestDecorator func(req *http.Request)

// ResponseValidator inspects every inbound response. A non-nil error aborts
// the call; a nil error passes the response through unchanged.
type ResponseValidator func(resp *http.Response) error

// ProductHeaders identifies the integration on every request.
func ProductHeaders(userAgent, source string) RequestDecorator {
	return func(req *http.Request) {
		req.Header.Set(headerUserAgent, userAgent)
		req.Header.Set(headerSource, source)
	}
}

type errorEnvelope struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

type nestedError struct {
	Message string `json:"message"`
}

// ValidateStatus turns any status >= 400 into an ApiError. The message is the
// upstream's error.message, then its top-level message, then a generated one
// naming the status.
func ValidateStatus(resp *http.Response) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	var body []byte
	if resp.Body != nil {
		body, _ = io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	}

	message := upstreamErrorMessage(body)
	if message == "" {
		return newStatusError(resp.StatusCode)
	}

	return NewAPIError(message, resp.StatusCode)
}

func upstreamErrorMessage(body []byte) string {
	var envelope errorEnvelope

	err := json.Unmarshal(body, &envelope)
	if err != nil {
		return ""
	}

	var nested nestedError
	if len(envelope.Error) > 0 && json.Unmarshal(envelope.Error, &nested) == nil && nested.Message != "" {
		return nested.Message
	}

	return envelope.Message
}
