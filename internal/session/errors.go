package session

import (
	"errors"

	"github.com/homeserver/chordscan/internal/merge"
)

// Code identifies a validation failure
type Code string

const (
	CodeKeyRequired     Code = "KEY_REQUIRED"
	CodeNameRequired    Code = "NAME_REQUIRED"
	CodeTitleRequired   Code = "TITLE_REQUIRED"
	CodeTooSmall        Code = "TOO_SMALL"
	CodeOffPage         Code = "OFF_PAGE"
	CodeNoPages         Code = "NO_PAGES"
	CodeNoSections      Code = "NO_SECTIONS"
	CodeNoResult        Code = "NO_RESULT"
	CodeSectionBusy     Code = "SECTION_BUSY"
	CodeSectionNotFound Code = "SECTION_NOT_FOUND"
	CodeUnknownAction   Code = "UNKNOWN_ACTION"
)

// ValidationError is returned when an operation is refused before it starts.
type ValidationError struct {
	Code    Code
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(code Code, msg string) *ValidationError {
	return &ValidationError{Code: code, Message: msg}
}

// NotReadyError is the export precondition failure
type NotReadyError = merge.NotReadyError

// ErrNotReady matches NotReadyError with errors.Is
var ErrNotReady = merge.ErrNotReady

// IsValidation reports whether err is a ValidationError with one of codes,
// or any ValidationError when no codes are given.
func IsValidation(err error, codes ...Code) bool {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	if len(codes) == 0 {
		return true
	}
	for _, c := range codes {
		if ve.Code == c {
			return true
		}
	}
	return false
}
