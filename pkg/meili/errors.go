package meili

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinel errors for local validation failures.
var (
	ErrPayloadTooLarge     = errors.New("document exceeds the maximum payload size")
	ErrInvalidDocument     = errors.New("invalid document")
	ErrInvalidFileType     = errors.New("file must be a json, ndjson, or csv file")
	ErrInvalidRawFileType  = errors.New("only csv and ndjson files can be sent as raw files")
	ErrFileNotFound        = errors.New("no file found at the specified path")
	ErrNoDocumentFiles     = errors.New("no document files found")
	ErrInvalidBatchSize    = errors.New("batch size must be greater than zero")
	ErrInvalidPayloadSize  = errors.New("max payload size must be greater than zero")
	ErrKeyNotFound         = errors.New("no API search key found")
	ErrInvalidKey          = errors.New("only search keys can be used for tokens")
	ErrInvalidRestriction  = errors.New("the token cannot be less restrictive than the API key")
	ErrInvalidDocumentType = errors.New("document type must be json, ndjson, or csv")
)

// Error codes returned by MeiliSearch that the client reacts to.
const (
	CodeIndexNotFound    = "index_not_found"
	CodeDocumentNotFound = "document_not_found"
	CodeKeyNotFound      = "api_key_not_found"
	CodeTaskNotFound     = "task_not_found"
)

// APIError is a non-2xx response from the MeiliSearch server.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
	Code       string `json:"code"`
	Type       string `json:"type"`
	Link       string `json:"link"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("meilisearch api error: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("meilisearch api error: status %d: %s", e.StatusCode, e.Message)
}

// NotFound reports whether the server answered 404.
func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// CommunicationError is returned when the server could not be reached.
type CommunicationError struct {
	Method string
	URL    string
	Err    error
}

func (e *CommunicationError) Error() string {
	return fmt.Sprintf("communication with meilisearch failed: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *CommunicationError) Unwrap() error {
	return e.Err
}

// TimeoutError is returned when a task did not reach a terminal status in time.
type TimeoutError struct {
	TaskUID    int64
	Timeout    time.Duration
	LastStatus TaskStatus
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task %d did not finish within %s (last status %q)", e.TaskUID, e.Timeout, e.LastStatus)
}

// TaskFailedError describes a task that finished with a non-successful status.
type TaskFailedError struct {
	Task *Task
}

func (e *TaskFailedError) Error() string {
	if e.Task.Error != nil {
		return fmt.Sprintf("task %d %s: %s: %s", e.Task.UID, e.Task.Status, e.Task.Error.Code, e.Task.Error.Message)
	}
	return fmt.Sprintf("task %d %s", e.Task.UID, e.Task.Status)
}

// IsAPIErrorCode reports whether err is an *APIError with the given code.
func IsAPIErrorCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}
