/*
Package identity holds the viewer's durable anonymous identity and its generated fallback name.

Both live in client-local key/value storage under the keys "identity" and "fallback_name". The
identity is created on first use and kept until explicitly cleared.
*/
package identity

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"blip/internal/pkg/logx"
	"blip/internal/pkg/randx"
)

const (
	// KeyIdentity stores the JSON encoded Identity.
	KeyIdentity = "identity"

	// KeyFallbackName stores the accepted fallback display name.
	KeyFallbackName = "fallback_name"
)

// Identity is the anonymous actor a viewer presents as.
type Identity struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Valid reports whether the identity has the fields every caller relies on.
func (i Identity) Valid() bool {
	return i.ID != "" && !i.CreatedAt.IsZero()
}

// Store is the explicit, injectable owner of one viewer's identity.
type Store struct {
	kv  KV
	now func() time.Time

	mu sync.Mutex
	// volatile is the identity used while kv is unavailable.
	volatile *Identity

	logger zerolog.Logger
}

// NewStore returns a Store over kv. A nil kv keeps the identity in memory only.
func NewStore(kv KV) *Store {
	return &Store{
		kv:     kv,
		now:    time.Now,
		logger: logx.Component("IdentityStore"),
	}
}

// GetOrCreate returns the persisted identity, creating and persisting a new one when it is
// absent or invalid. It never fails: without working storage it returns an in-memory identity
// that stays the same for the lifetime of the Store.
func (s *Store) GetOrCreate() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getOrCreateLocked()
}

func (s *Store) getOrCreateLocked() Identity {
	if s.volatile != nil {
		return *s.volatile
	}

	if s.kv != nil {
		raw, err := s.kv.Get(KeyIdentity)
		switch {
		case err == nil:
			var id Identity
			if jsonErr := json.Unmarshal(raw, &id); jsonErr == nil && id.Valid() {
				return id
			}
			s.logger.Warn().Msg("Persisted identity is invalid, generating a new one.")
		case errors.Is(err, ErrNotFound):
		default:
			s.logger.Warn().Err(err).Msg("Identity storage unavailable, using an in-memory identity.")
			return s.goVolatile(s.generate())
		}
	}

	id := s.generate()

	if s.kv == nil {
		return s.goVolatile(id)
	}

	if err := s.persist(id); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist identity, using it in memory.")
		return s.goVolatile(id)
	}

	s.logger.Info().Str("user_id", id.ID).Msg("Created new identity.")
	return id
}

func (s *Store) goVolatile(id Identity) Identity {
	s.volatile = &id
	return id
}

func (s *Store) generate() Identity {
	now := s.now().UTC()

	id, err := randx.IdentityID(now)
	if err != nil {
		// crypto/rand failing leaves only the timestamp for uniqueness.
		s.logger.Error().Err(err).Msg("Random token generation failed.")
		id = randx.IdentityIDPrefix + now.Format("20060102150405.000000000")
	}

	return Identity{ID: id, CreatedAt: now}
}

func (s *Store) persist(id Identity) error {
	raw, err := json.Marshal(id)
	if err != nil {
		return err
	}
	return s.kv.Set(KeyIdentity, raw)
}

// SetDisplayName trims name and stores it on the identity. Uniqueness is not checked here.
// The returned identity carries the new name even when it could not be persisted.
func (s *Store) SetDisplayName(name string) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.getOrCreateLocked()
	id.DisplayName = strings.TrimSpace(name)

	if s.volatile != nil {
		s.volatile = &id
		return id, nil
	}

	if err := s.persist(id); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist display name, keeping it in memory.")
		s.volatile = &id
		return id, err
	}

	return id, nil
}

// EffectiveName returns the display name when set, otherwise fallback.
func (s *Store) EffectiveName(fallback string) string {
	if name := s.GetOrCreate().DisplayName; name != "" {
		return name
	}
	return fallback
}

// Clear removes the persisted identity and fallback name. The next GetOrCreate yields a new id.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.volatile = nil

	if s.kv == nil {
		return nil
	}

	if err := s.kv.Delete(KeyIdentity); err != nil {
		return err
	}
	return s.kv.Delete(KeyFallbackName)
}
