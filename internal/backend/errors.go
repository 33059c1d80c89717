package backend

import (
	"errors"
	"fmt"
)

// InspectionError is returned when the backend cannot describe a URL.
// Message is the backend-supplied, human readable reason when there is one.
type InspectionError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *InspectionError) Error() string {
	return describe("inspect", e.StatusCode, e.Message, e.Err)
}

func (e *InspectionError) Unwrap() error { return e.Err }

func (e *InspectionError) UserMessage() string { return e.Message }

// IsRetryable is true for server errors (5xx) and transport failures.
func (e *InspectionError) IsRetryable() bool { return retryable(e.StatusCode, e.Err) }

// DownloadError is returned when the backend fails to produce the media.
type DownloadError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *DownloadError) Error() string {
	return describe("download", e.StatusCode, e.Message, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

func (e *DownloadError) UserMessage() string { return e.Message }

func (e *DownloadError) IsRetryable() bool { return retryable(e.StatusCode, e.Err) }

// HistoryError is returned by clip listing and saving.
type HistoryError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *HistoryError) Error() string {
	return describe("history", e.StatusCode, e.Message, e.Err)
}

func (e *HistoryError) Unwrap() error { return e.Err }

func (e *HistoryError) UserMessage() string { return e.Message }

func (e *HistoryError) IsRetryable() bool { return retryable(e.StatusCode, e.Err) }

// UserMessage extracts the human readable message carried by a gateway error,
// or returns fallback when there is none.
func UserMessage(err error, fallback string) string {
	var m interface{ UserMessage() string }
	if errors.As(err, &m) && m.UserMessage() != "" {
		return m.UserMessage()
	}
	return fallback
}

// IsRetryable reports whether err wraps a gateway error worth retrying.
// Errors of any other kind are not.
func IsRetryable(err error) bool {
	var r interface{ IsRetryable() bool }
	return errors.As(err, &r) && r.IsRetryable()
}

func describe(op string, status int, msg string, err error) string {
	switch {
	case status != 0 && msg != "":
		return fmt.Sprintf("%s failed: HTTP %d: %s", op, status, msg)
	case status != 0:
		return fmt.Sprintf("%s failed: HTTP %d", op, status)
	case msg != "" && err != nil:
		return fmt.Sprintf("%s failed: %s: %v", op, msg, err)
	case err != nil:
		return fmt.Sprintf("%s failed: %v", op, err)
	case msg != "":
		return fmt.Sprintf("%s failed: %s", op, msg)
	}
	return op + " failed"
}

// A zero status with no cause is a local validation failure, not a
// transport one. Offline mode stays offline until reconfigured.
func retryable(status int, err error) bool {
	if status >= 500 {
		return true
	}
	return status == 0 && err != nil && !errors.Is(err, ErrBackendUnavailable)
}
