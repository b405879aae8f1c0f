package greencoin

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

var (
	ErrNetwork  = errors.New("reward service unreachable")
	ErrProtocol = errors.New("malformed reward service response")
	ErrNotFound = errors.New("not found")
	ErrRejected = errors.New("rejected by reward service")
)

// APIError is a non-2xx answer from the reward service.
// It unwraps to ErrNotFound, ErrRejected or ErrNetwork.
type APIError struct {
	Op     string
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.Status)
}

func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusNotFound:
		return ErrNotFound
	case e.Status >= 400 && e.Status < 500:
		return ErrRejected
	default:
		return ErrNetwork
	}
}

func newAPIError(op string, status int, body []byte) *APIError {
	return &APIError{
		Op:     op,
		Status: status,
		Detail: errorDetail(body),
	}
}

// errorDetail pulls a human readable reason out of an error body.
// The service answers {"detail": "..."} or, for validation failures,
// {"detail": [{"msg": "..."}]}.
func errorDetail(body []byte) string {
	if !gjson.ValidBytes(body) {
		return truncate(string(body), 200)
	}
	detail := gjson.GetBytes(body, "detail")
	switch {
	case detail.IsArray():
		if msg := detail.Get("0.msg"); msg.Exists() {
			return msg.String()
		}
		return detail.Raw
	case detail.Exists():
		return detail.String()
	}
	if msg := gjson.GetBytes(body, "error"); msg.Exists() {
		return msg.String()
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
