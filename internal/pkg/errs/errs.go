/*
Package errs provides custom error types and application-level error code constants.

This file defines the CustomError struct, which implements the error interface and carries a
business code, a user-facing message and an HTTP status.
*/
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"blip/internal/pkg/logx"
)

// CustomError is the custom error structure used throughout the application.
type CustomError struct {
	// Code is the business error code (see constants definition).
	Code int

	// Message is the user-friendly error description.
	Message string

	// Status is the HTTP status code corresponding to this error.
	Status int
}

// Error implements the error interface.
func (e CustomError) Error() string {
	return fmt.Sprintf("Error Code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// Is reports whether target carries the same business code, so that
// errors.Is(err, errs.NewError(errs.ErrNameTaken)) matches any ErrNameTaken value.
func (e CustomError) Is(target error) bool {
	var other *CustomError
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// NewError constructs a *CustomError from a predefined error code.
// Optional details are printf arguments for the message template. An unknown code yields ErrUnknown.
func NewError(code int, details ...any) *CustomError {
	templateErr, ok := errorMap[code]

	if !ok {
		logx.Error(
			fmt.Errorf("attempted to create an error with an unknown code in errorMap"),
			"Unknown error code requested",
			"requested_code", code,
		)

		unknownErr := errorMap[ErrUnknown]
		return &CustomError{
			Code:    unknownErr.Code,
			Message: unknownErr.Message,
			Status:  unknownErr.Status,
		}
	}

	customErr := templateErr

	if customErr.Status == 0 {
		customErr.Status = http.StatusOK
	}

	if code == ErrUnknown && len(details) > 0 {
		if originalErr, ok := details[0].(error); ok {
			logx.Error(
				originalErr,
				"Handling ErrUnknown with underlying error",
			)
		}
	} else if len(details) > 0 {
		if strings.Contains(customErr.Message, "%") {
			customErr.Message = fmt.Sprintf(customErr.Message, details...)
		} else {
			logx.Warn(
				"Details provided for error, but message template has no formatting placeholders. Details ignored.",
			)
		}
	}

	return &customErr
}

// FromCode rebuilds a *CustomError received over the wire. Known codes keep their template
// status; the message sent by the server wins when present.
func FromCode(code int, message string) *CustomError {
	customErr, ok := errorMap[code]
	if !ok {
		customErr = errorMap[ErrUnknown]
	}
	if customErr.Status == 0 {
		customErr.Status = http.StatusOK
	}
	if message != "" {
		customErr.Message = message
	}
	return &customErr
}

// HasCode reports whether err is a CustomError with the given code.
func HasCode(err error, code int) bool {
	var customErr *CustomError
	if errors.As(err, &customErr) {
		return customErr.Code == code
	}
	return false
}
