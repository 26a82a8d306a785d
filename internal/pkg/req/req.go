/*
Package req provides helper functions for HTTP request parsing and data binding.

Request bodies are small JSON documents; BindJSON enforces the content type, a body size
cap, unknown-field rejection and a single top-level value.
*/
package req

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"blip/internal/pkg/errs"
)

// MaxJSONBodyBytes caps JSON request bodies (64 KB). Chat messages are bounded far below it.
const MaxJSONBodyBytes int64 = 64 << 10

// BindJSON binds the JSON request body to dst.
func BindJSON(w http.ResponseWriter, r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errs.NewError(errs.ErrRequestEntityTooLarge)
		}
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}
