package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"blip/internal/app/registry"
	"blip/internal/pkg/errs"
	"blip/internal/pkg/randx"
	"blip/internal/pkg/req"
	"blip/internal/pkg/resp"
)

// ValidateNameInput is the body of POST /api/names/validate.
type ValidateNameInput struct {
	DisplayName string `json:"displayName"`
	UserID      string `json:"userId"`
}

// ClaimNameInput is the body of POST /api/names/claim.
type ClaimNameInput struct {
	DisplayName string              `json:"displayName"`
	UserID      string              `json:"userId"`
	NameStyle   *registry.NameStyle `json:"nameStyle,omitempty"`
}

// HandleValidateName runs the advisory availability check. The outcome is always in the data,
// including a failed lookup, so the caller can show the message inline.
func HandleValidateName(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input ValidateNameInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if !randx.IsAcceptableIdentityID(input.UserID) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		resp.RespondSuccess(w, r, deps.Registry.Validate(r.Context(), input.DisplayName, input.UserID))
	}
}

// HandleClaimName validates and records a display name for the requester.
func HandleClaimName(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input ClaimNameInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if !randx.IsAcceptableIdentityID(input.UserID) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		rec, err := deps.Registry.Claim(r.Context(), input.DisplayName, input.UserID, input.NameStyle)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, rec)
	}
}

// HandleGetName returns the current record of an identity.
func HandleGetName(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userId")
		if !randx.IsAcceptableIdentityID(userID) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		rec, err := deps.Registry.Lookup(r.Context(), userID)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, rec)
	}
}
