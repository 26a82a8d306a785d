/*
Package resp provides helper functions for constructing and sending standardized HTTP JSON responses.

Every response uses the same envelope: a business code (0 for success), a message and optional data.
The blip viewer client decodes the same Envelope type.
*/
package resp

import (
	"encoding/json"
	"errors"
	"net/http"

	"blip/internal/pkg/errs"
	"blip/internal/pkg/logx"
)

// Envelope is the standardized JSON response structure.
type Envelope struct {
	// Code is the business status code (0 for success, see the errs package otherwise).
	Code int `json:"code"`

	// Message is the client-friendly status description or error message.
	Message string `json:"message"`

	// Data is the optional payload.
	Data json.RawMessage `json:"data,omitempty"`
}

// RespondJSON sets the headers and writes payload with the given status.
func RespondJSON(w http.ResponseWriter, r *http.Request, httpStatus int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	response, err := json.Marshal(payload)
	if err != nil {
		logx.Error(
			err,
			"Error encoding JSON response",
			"http_status", httpStatus,
		)

		http.Error(w, "Error encoding JSON response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(httpStatus)
	if _, err := w.Write(response); err != nil {
		logx.Warn("Failed to write JSON response", "error", err.Error())
	}
}

// RespondSuccess sends an HTTP 200 envelope with data.
func RespondSuccess(w http.ResponseWriter, r *http.Request, data any) {
	respond(w, r, http.StatusOK, data)
}

// RespondCreated sends an HTTP 201 envelope with data.
func RespondCreated(w http.ResponseWriter, r *http.Request, data any) {
	respond(w, r, http.StatusCreated, data)
}

func respond(w http.ResponseWriter, r *http.Request, status int, data any) {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}
		raw = encoded
	}

	RespondJSON(w, r, status, Envelope{Code: 0, Message: "success", Data: raw})
}

// RespondError sends an envelope built from err. Non-CustomError values become ErrUnknown.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	var customErr *errs.CustomError
	if !errors.As(err, &customErr) || customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown, err)
	}

	RespondJSON(w, r, customErr.Status, Envelope{
		Code:    customErr.Code,
		Message: customErr.Message,
	})
}
