package ingestion

import (
	"errors"
	"fmt"
)

// Reason is the stable code attached to every import failure.
type Reason string

const (
	ReasonInvalidInput      Reason = "invalid_input"
	ReasonExtractionFailed  Reason = "extraction_failed"
	ReasonEmptyText         Reason = "empty_text"
	ReasonNoRecordsParsed   Reason = "no_records_parsed"
	ReasonPersistenceFailed Reason = "persistence_failed"
)

// ImportError is returned by every failing import stage. Message is safe to
// show to the caller; Err keeps the internal cause for logs.
type ImportError struct {
	Reason  Reason
	Message string
	Err     error
}

func (e *ImportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Reason, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

func newImportError(reason Reason, message string, err error) *ImportError {
	return &ImportError{Reason: reason, Message: message, Err: err}
}

// ReasonOf returns the reason code of an import failure, or "" when err did
// not come from an import stage.
func ReasonOf(err error) Reason {
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie.Reason
	}
	return ""
}
