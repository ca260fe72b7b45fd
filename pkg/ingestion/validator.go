package ingestion

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
)

const (
	pdfExtension   = ".pdf"
	pdfContentType = "application/pdf"
)

var pdfMagic = []byte("%PDF-")

var (
	ErrTooLarge       = errors.New("document too large")
	errEmptyDocument  = errors.New("document is empty")
	errMissingName    = errors.New("file name required")
	errUnsupportedDoc = errors.New("unsupported document type")
)

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// Validator accepts one PDF document up to maxBytes.
type Validator struct {
	maxBytes     int64
	allowedTypes map[string]struct{}
}

func NewValidator(maxBytes int64, contentTypes []string) *Validator {
	allowed := make(map[string]struct{})
	for _, ct := range contentTypes {
		if trimmed := strings.TrimSpace(strings.ToLower(ct)); trimmed != "" {
			allowed[trimmed] = struct{}{}
		}
	}
	return &Validator{maxBytes: maxBytes, allowedTypes: allowed}
}

// DefaultContentTypes are the declared upload types accepted for a PDF.
func DefaultContentTypes() []string {
	return []string{pdfContentType, "application/x-pdf", "application/octet-stream"}
}

func (v *Validator) Validate(doc Document) error {
	if v == nil {
		return ValidationError{reason: errors.New("validator not initialised")}
	}

	name := strings.TrimSpace(doc.FileName)
	if name == "" {
		return ValidationError{reason: errMissingName}
	}
	if ext := strings.ToLower(filepath.Ext(name)); ext != pdfExtension {
		return ValidationError{reason: fmt.Errorf("extension '%s' not supported: %w", ext, errUnsupportedDoc)}
	}

	if len(doc.Data) == 0 {
		return ValidationError{reason: errEmptyDocument}
	}
	if v.maxBytes > 0 && int64(len(doc.Data)) > v.maxBytes {
		return ValidationError{reason: fmt.Errorf("%d bytes exceeds %d: %w", len(doc.Data), v.maxBytes, ErrTooLarge)}
	}

	declared := strings.TrimSpace(strings.ToLower(doc.ContentType))
	if i := strings.Index(declared, ";"); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if declared != "" && len(v.allowedTypes) > 0 {
		if _, ok := v.allowedTypes[declared]; !ok {
			return ValidationError{reason: fmt.Errorf("content type '%s' not supported: %w", declared, errUnsupportedDoc)}
		}
	}

	if !bytes.HasPrefix(doc.Data, pdfMagic) && http.DetectContentType(doc.Data) != pdfContentType {
		return ValidationError{reason: fmt.Errorf("content is not a PDF: %w", errUnsupportedDoc)}
	}
	return nil
}
