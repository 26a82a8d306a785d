package client

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"blip/internal/app/identity"
	"blip/internal/app/registry"
	"blip/internal/pkg/errs"
	"blip/internal/pkg/logx"
)

// Profile ties the viewer's local identity and fallback name to the server's name registry.
type Profile struct {
	ids      *identity.Store
	fallback *identity.Fallback
	api      *API
	logger   zerolog.Logger
}

// NewProfile returns the profile stored in kv. Fallback names are checked against the server log.
func NewProfile(kv identity.KV, api *API) *Profile {
	return &Profile{
		ids:      identity.NewStore(kv),
		fallback: identity.NewFallback(kv, api),
		api:      api,
		logger:   logx.Component("Profile"),
	}
}

// Identity returns the viewer's identity, creating it on first use.
func (p *Profile) Identity() identity.Identity {
	return p.ids.GetOrCreate()
}

// AuthorName is the name messages are sent under: the display name, else the fallback name.
func (p *Profile) AuthorName(ctx context.Context) (string, error) {
	if name := p.ids.GetOrCreate().DisplayName; name != "" {
		return name, nil
	}

	fallback, err := p.fallback.Ensure(ctx)
	if err != nil {
		return "", err
	}
	return p.ids.EffectiveName(fallback), nil
}

// CheckName runs the advisory availability check. Any failure to reach the server is an
// invalid result, never a pass.
func (p *Profile) CheckName(ctx context.Context, name string) registry.Result {
	res, err := p.api.ValidateName(ctx, name, p.Identity().ID)
	if err != nil {
		p.logger.Debug().Err(err).Msg("Name validation failed.")
		var customErr *errs.CustomError
		if errors.As(err, &customErr) && customErr.Code == errs.ErrInvalidParams {
			return registry.Result{Valid: false, Message: customErr.Message}
		}
		return registry.Result{Valid: false, Message: errs.NewError(errs.ErrLookupFailed).Message}
	}
	return res
}

// SetName claims name on the server and, on success, stores the claimed spelling locally.
func (p *Profile) SetName(ctx context.Context, name string, style *registry.NameStyle) (registry.Record, error) {
	if res := p.CheckName(ctx, name); !res.Valid {
		return registry.Record{}, validationError(res)
	}

	rec, err := p.api.ClaimName(ctx, name, p.Identity().ID, style)
	if err != nil {
		return registry.Record{}, err
	}

	if _, err := p.ids.SetDisplayName(rec.DisplayName); err != nil {
		p.logger.Warn().Err(err).Msg("Claimed name could not be persisted locally.")
	}
	return rec, nil
}

// Reset clears the local identity and fallback name.
func (p *Profile) Reset() error {
	p.fallback.Forget()
	return p.ids.Clear()
}

// validationError maps a negative Result back to its error code.
func validationError(res registry.Result) error {
	for _, code := range []int{errs.ErrEmptyDisplayName, errs.ErrNameTaken, errs.ErrLookupFailed} {
		if e := errs.NewError(code); e.Message == res.Message {
			return e
		}
	}
	return errs.FromCode(errs.ErrInvalidParams, res.Message)
}
