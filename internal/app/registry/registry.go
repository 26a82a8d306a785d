/*
Package registry enforces best-effort global uniqueness of chosen display names.

Names are compared case-insensitively. A claim by the identity that already holds a name is an
idempotent success. Validation is advisory and runs on every edit; Claim re-validates and relies
on the store for the final word, so two racing claims cannot both persist where the store keeps
a unique index on the normalized name.
*/
package registry

import (
	"context"
	"errors"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"blip/internal/pkg/errs"
	"blip/internal/pkg/logx"
)

// MaxDisplayNameLength is the longest accepted display name, in runes.
const MaxDisplayNameLength = 32

const (
	msgAvailable = "Name is available."
	msgOwnName   = "This is already your own reserved name."
)

// ErrNameConflict is returned by a Store when a write would violate name uniqueness.
var ErrNameConflict = errors.New("registry: display name already claimed")

// NameStyle is the rendering hint attached to a registered display name.
type NameStyle struct {
	Type       string `json:"type"`
	Color      string `json:"color"`
	Effect     string `json:"effect,omitempty"`
	FontWeight string `json:"font_weight,omitempty"`
}

// Record is one registered display name.
type Record struct {
	UserID      string     `json:"user_id"`
	DisplayName string     `json:"display_name"`
	NameStyle   *NameStyle `json:"name_style,omitempty"`
}

// Store is the narrow view of the registered_users collection the registry needs.
// Lookups return (nil, nil) when nothing matches.
type Store interface {
	LookupByName(ctx context.Context, displayName string) (*Record, error)
	LookupByUserID(ctx context.Context, userID string) (*Record, error)
	LookupByUserIDs(ctx context.Context, userIDs []string) (map[string]Record, error)
	UpsertClaim(ctx context.Context, rec Record) (Record, error)
}

// Result is the advisory outcome of Validate.
type Result struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// Registry validates and claims display names.
type Registry struct {
	store  Store
	policy *bluemonday.Policy
	logger zerolog.Logger
}

// New returns a Registry over store.
func New(store Store) *Registry {
	return &Registry{
		store:  store,
		policy: bluemonday.StrictPolicy(),
		logger: logx.Component("Registry"),
	}
}

// CleanName trims the candidate and strips any markup from it.
func (r *Registry) CleanName(candidate string) string {
	stripped := r.policy.Sanitize(strings.TrimSpace(candidate))
	return strings.TrimSpace(html.UnescapeString(stripped))
}

// Validate checks whether requesterID may use candidate. It never returns an error: a store
// failure is reported as an invalid result so an unverified claim is never let through.
func (r *Registry) Validate(ctx context.Context, candidate, requesterID string) Result {
	name, owned, err := r.check(ctx, candidate, requesterID)
	if err != nil {
		var customErr *errs.CustomError
		if errors.As(err, &customErr) {
			return Result{Valid: false, Message: customErr.Message}
		}
		return Result{Valid: false, Message: errs.NewError(errs.ErrLookupFailed).Message}
	}

	r.logger.Debug().Str("display_name", name).Str("user_id", requesterID).Bool("owned", owned).Msg("Display name validated.")

	if owned {
		return Result{Valid: true, Message: msgOwnName}
	}
	return Result{Valid: true, Message: msgAvailable}
}

// Claim validates candidate and records it for requesterID. An existing record of the same
// identity is renamed; its style is kept unless style is given.
func (r *Registry) Claim(ctx context.Context, candidate, requesterID string, style *NameStyle) (Record, error) {
	if requesterID == "" {
		return Record{}, errs.NewError(errs.ErrInvalidParams)
	}

	name, _, err := r.check(ctx, candidate, requesterID)
	if err != nil {
		return Record{}, err
	}

	current, err := r.store.LookupByUserID(ctx, requesterID)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", requesterID).Msg("Failed to load current record before claim.")
		return Record{}, errs.NewError(errs.ErrLookupFailed)
	}

	rec := Record{UserID: requesterID, DisplayName: name, NameStyle: style}
	if style == nil && current != nil {
		rec.NameStyle = current.NameStyle
	}

	saved, err := r.store.UpsertClaim(ctx, rec)
	if err != nil {
		if errors.Is(err, ErrNameConflict) {
			r.logger.Warn().Str("display_name", name).Str("user_id", requesterID).Msg("Claim lost a race for the display name.")
			return Record{}, errs.NewError(errs.ErrNameTaken)
		}
		r.logger.Error().Err(err).Str("user_id", requesterID).Msg("Failed to store display name claim.")
		return Record{}, errs.NewError(errs.ErrStorageFailed)
	}

	r.logger.Info().Str("display_name", saved.DisplayName).Str("user_id", requesterID).Msg("Display name claimed.")
	return saved, nil
}

// Lookup returns the current record for userID, or ErrNameNotFound.
func (r *Registry) Lookup(ctx context.Context, userID string) (Record, error) {
	rec, err := r.store.LookupByUserID(ctx, userID)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to look up record.")
		return Record{}, errs.NewError(errs.ErrLookupFailed)
	}
	if rec == nil {
		return Record{}, errs.NewError(errs.ErrNameNotFound)
	}
	return *rec, nil
}

// Snapshot returns the current records for the given identities, keyed by user id.
func (r *Registry) Snapshot(ctx context.Context, userIDs []string) (map[string]Record, error) {
	if len(userIDs) == 0 {
		return map[string]Record{}, nil
	}
	return r.store.LookupByUserIDs(ctx, userIDs)
}

// check runs the shared validation steps. owned reports an idempotent self re-claim.
func (r *Registry) check(ctx context.Context, candidate, requesterID string) (name string, owned bool, err error) {
	name = r.CleanName(candidate)
	if name == "" {
		return "", false, errs.NewError(errs.ErrEmptyDisplayName)
	}

	if utf8.RuneCountInString(name) > MaxDisplayNameLength {
		return "", false, errs.NewError(errs.ErrDisplayNameTooLong, MaxDisplayNameLength)
	}

	taken, lookupErr := r.store.LookupByName(ctx, name)
	if lookupErr != nil {
		r.logger.Error().Err(lookupErr).Str("display_name", name).Msg("Display name lookup failed.")
		return "", false, errs.NewError(errs.ErrLookupFailed)
	}

	if taken == nil {
		return name, false, nil
	}

	if taken.UserID == requesterID {
		return name, true, nil
	}

	return "", false, errs.NewError(errs.ErrNameTaken)
}

// StyleFor returns rec's style when rec still names authorName (case-insensitively).
// A renamed author's older messages therefore stop rendering the style.
func StyleFor(rec *Record, authorName string) *NameStyle {
	if rec == nil || rec.NameStyle == nil {
		return nil
	}
	if !strings.EqualFold(rec.DisplayName, authorName) {
		return nil
	}
	return rec.NameStyle
}
