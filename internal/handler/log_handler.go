package handler

import (
	"net/http"

	"blip/internal/pkg/errs"
	"blip/internal/pkg/logx"
	"blip/internal/pkg/randx"
	"blip/internal/pkg/req"
	"blip/internal/pkg/resp"
)

// LogUserInput is the body of POST /api/logUser.
type LogUserInput struct {
	UserID string `json:"user_id"`
}

// LogUserResponse reports whether a visit was recorded.
type LogUserResponse struct {
	Logged bool `json:"logged"`
}

// HandleLogUser records the caller's anonymized network origin against an identity.
// Local and unparseable addresses are acknowledged but not recorded.
func HandleLogUser(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input LogUserInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if !randx.IsAcceptableIdentityID(input.UserID) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		ip := logx.AnonymizeIP(r.RemoteAddr)
		if ip == logx.LoopbackIP || ip == logx.UnknownIP {
			logx.Debug("Visit from local address not recorded.", "user_id", input.UserID)
			resp.RespondSuccess(w, r, LogUserResponse{Logged: false})
			return
		}

		if err := deps.Visits.RecordVisit(r.Context(), input.UserID, ip, deps.now().UTC()); err != nil {
			logx.Error(err, "Failed to record visit", "user_id", input.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, LogUserResponse{Logged: true})
	}
}
