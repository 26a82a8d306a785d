/*
Package errs provides custom error types and application-level error code constants.

This file maps every error code to its CustomError template.
*/
package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:         {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType:  {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:     {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:    {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRequestEntityTooLarge: {Code: ErrRequestEntityTooLarge, Message: "Request size is too large.", Status: http.StatusRequestEntityTooLarge},

	// 2xxx: Display Name Errors
	ErrEmptyDisplayName: {Code: ErrEmptyDisplayName, Message: "Display name cannot be empty."},
	ErrNameTaken:        {Code: ErrNameTaken, Message: "This name is already taken.", Status: http.StatusConflict},
	ErrLookupFailed:     {Code: ErrLookupFailed, Message: "Error checking display name.", Status: http.StatusServiceUnavailable},
	ErrNameNotFound:     {Code: ErrNameNotFound, Message: "No display name is registered.", Status: http.StatusNotFound},

	ErrDisplayNameTooLong: {Code: ErrDisplayNameTooLong, Message: "Display name must be at most %d characters."},

	// 3xxx: Chat Message Errors
	ErrMessageEmpty:          {Code: ErrMessageEmpty, Message: "Message cannot be empty."},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is too long."},
	ErrMessageBlocked:        {Code: ErrMessageBlocked, Message: "This message contains disallowed content!"},
	ErrStorageFailed:         {Code: ErrStorageFailed, Message: "Message could not be saved. Please try again.", Status: http.StatusServiceUnavailable},
	ErrStaleView:             {Code: ErrStaleView, Message: "The chat view was closed."},

	// 5xxx: Internal System Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
