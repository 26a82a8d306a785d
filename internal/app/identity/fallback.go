package identity

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"blip/internal/pkg/errs"
	"blip/internal/pkg/logx"
	"blip/internal/pkg/randx"
)

// MaxFallbackAttempts bounds the collision checks; the last candidate is accepted regardless.
const MaxFallbackAttempts = 16

// NameUsage answers whether a name already appears as an author name in the chat log.
type NameUsage interface {
	AuthorNameUsed(ctx context.Context, name string) (bool, error)
}

// Fallback produces and caches the generated display name of one viewer.
type Fallback struct {
	kv       KV
	usage    NameUsage
	generate func() (string, error)

	mu sync.Mutex
	// cached holds the accepted name when kv cannot.
	cached string

	logger zerolog.Logger
}

// NewFallback returns a Fallback persisting to kv (nil keeps it in memory) and checking
// candidates against usage.
func NewFallback(kv KV, usage NameUsage) *Fallback {
	return &Fallback{
		kv:       kv,
		usage:    usage,
		generate: randx.FallbackName,
		logger:   logx.Component("FallbackName"),
	}
}

// Ensure returns the cached fallback name or generates one that no message has used yet.
// A failed usage lookup accepts the candidate at hand. The only error is a context that
// ended before a name was accepted.
func (f *Fallback) Ensure(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if name := f.load(); name != "" {
		return name, nil
	}

	var candidate string
	for attempt := 1; attempt <= MaxFallbackAttempts; attempt++ {
		if ctx.Err() != nil {
			return "", errs.NewError(errs.ErrStaleView)
		}

		name, err := f.generate()
		if err != nil {
			return "", err
		}
		candidate = name

		used, err := f.usage.AuthorNameUsed(ctx, candidate)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return "", errs.NewError(errs.ErrStaleView)
			}
			f.logger.Warn().Err(err).Str("candidate", candidate).Msg("Name usage lookup failed, accepting candidate.")
			break
		}

		if !used {
			break
		}

		f.logger.Debug().Str("candidate", candidate).Int("attempt", attempt).Msg("Fallback name already used, retrying.")
	}

	f.store(candidate)
	return candidate, nil
}

func (f *Fallback) load() string {
	if f.cached != "" {
		return f.cached
	}
	if f.kv == nil {
		return ""
	}

	raw, err := f.kv.Get(KeyFallbackName)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			f.logger.Warn().Err(err).Msg("Failed to read cached fallback name.")
		}
		return ""
	}
	f.cached = string(raw)
	return f.cached
}

func (f *Fallback) store(name string) {
	f.cached = name
	if f.kv == nil {
		return
	}
	if err := f.kv.Set(KeyFallbackName, []byte(name)); err != nil {
		f.logger.Warn().Err(err).Msg("Failed to persist fallback name, keeping it in memory.")
	}
}

// Forget drops the in-memory copy so the next Ensure reads storage again.
func (f *Fallback) Forget() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cached = ""
}
