package models

import (
	"errors"
	"fmt"
)

// Error codes used in logs, run reports and internal error handling.
const (
	ErrCodeReadyTimeout       = "READY_TIMEOUT"
	ErrCodeTargetNotFound     = "TARGET_NOT_FOUND"
	ErrCodeNotClickable       = "TARGET_NOT_CLICKABLE"
	ErrCodeExtractionMismatch = "EXTRACTION_MISMATCH"
	ErrCodeSinkWrite          = "SINK_WRITE_FAILED"
	ErrCodeNavigation         = "NAVIGATION_FAILED"
	ErrCodeStaleElement       = "STALE_ELEMENT"
	ErrCodeBrowserCrash       = "BROWSER_CRASH"
	ErrCodeInvalidInput       = "INVALID_INPUT"
)

// HarvestError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type HarvestError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *HarvestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *HarvestError) Unwrap() error {
	return e.Err
}

// NewHarvestError creates a new HarvestError.
func NewHarvestError(code, message string, err error) *HarvestError {
	return &HarvestError{Code: code, Message: message, Err: err}
}

// IsCode reports whether any HarvestError in err's chain carries code.
func IsCode(err error, code string) bool {
	var he *HarvestError
	for err != nil {
		if !errors.As(err, &he) {
			return false
		}
		if he.Code == code {
			return true
		}
		err = he.Err
	}
	return false
}

// CodeOf returns the outermost error code in err's chain, or "" if none.
func CodeOf(err error) string {
	var he *HarvestError
	if errors.As(err, &he) {
		return he.Code
	}
	return ""
}
