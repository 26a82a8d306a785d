package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"blip/internal/app/chat"
	"blip/internal/pkg/errs"
	"blip/internal/pkg/logx"
)

const (
	// updatesBuffer is how many live messages may wait for the consumer of Updates.
	updatesBuffer = 256

	// maxResyncAttempts bounds the reconnects after the server dropped the feed.
	maxResyncAttempts = 5

	resyncDelay = 500 * time.Millisecond
)

// Session is one open chat view: a live feed subscription merged with the history backfill.
// When the server drops the feed for lagging, the session reconnects and backfills into the
// same view.
type Session struct {
	api        *API
	userID     string
	authorName string
	view       *View

	ctx    context.Context
	cancel context.CancelFunc

	// mu orders live applies against backfills and guards feed.
	mu    sync.Mutex
	feed  *Feed
	ready bool

	updates chan chat.Message
	done    chan struct{}
	err     error
	resyncs atomic.Int32

	closeOnce sync.Once
	logger    zerolog.Logger
}

// OpenSession subscribes to the feed first and only then loads history, so no message is lost
// in between; duplicates across the seam are dropped by the view. ctx bounds the opening
// only; the session lives until Close.
func OpenSession(ctx context.Context, api *API, userID, authorName string) (*Session, []chat.Message, error) {
	feed, err := DialFeed(ctx, api.BaseURL(), userID, authorName)
	if err != nil {
		return nil, nil, err
	}

	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Session{
		api:        api,
		userID:     userID,
		authorName: authorName,
		view:       NewView(),
		ctx:        sessionCtx,
		cancel:     cancel,
		feed:       feed,
		updates:    make(chan chat.Message, updatesBuffer),
		done:       make(chan struct{}),
		logger:     logx.Component("Session"),
	}

	go s.readLoop(feed)

	history, err := api.History(ctx)
	if err != nil {
		s.Close()
		return nil, nil, err
	}

	s.mu.Lock()
	_, err = s.view.ApplyAll(history)
	snapshot := s.view.Messages()
	s.ready = true
	s.mu.Unlock()

	if err != nil {
		s.Close()
		return nil, nil, err
	}

	s.logger.Debug().Int("history", len(history)).Int("shown", len(snapshot)).Msg("Session backfilled.")
	return s, snapshot, nil
}

func (s *Session) readLoop(feed *Feed) {
	defer close(s.updates)
	defer close(s.done)

	for {
		err := feed.Run(s.applyLive, s.onServerError)
		if s.ctx.Err() != nil {
			return
		}

		if !errors.Is(err, ErrResync) {
			if err != nil {
				s.logger.Warn().Err(err).Msg("Live feed ended.")
				s.err = err
			}
			return
		}

		_ = feed.Close()
		s.logger.Info().Msg("Server dropped the live feed, resyncing.")

		feed, err = s.resync()
		if err != nil {
			if s.ctx.Err() == nil {
				s.logger.Warn().Err(err).Msg("Resync failed.")
				s.err = err
			}
			return
		}
	}
}

// resync dials a new feed and backfills the view. Messages the backfill adds are emitted on
// Updates before anything the new feed delivers.
func (s *Session) resync() (*Feed, error) {
	var lastErr error

	for attempt := 1; attempt <= maxResyncAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(resyncDelay):
			case <-s.ctx.Done():
				return nil, s.ctx.Err()
			}
		}

		feed, err := DialFeed(s.ctx, s.api.BaseURL(), s.userID, s.authorName)
		if err != nil {
			if s.ctx.Err() != nil {
				return nil, s.ctx.Err()
			}
			s.logger.Debug().Err(err).Int("attempt", attempt).Msg("Feed redial failed.")
			lastErr = err
			continue
		}

		s.mu.Lock()
		if s.ctx.Err() != nil {
			s.mu.Unlock()
			_ = feed.Close()
			return nil, s.ctx.Err()
		}
		s.feed = feed
		s.mu.Unlock()

		history, err := s.api.History(s.ctx)
		if err != nil {
			_ = feed.Close()
			if s.ctx.Err() != nil {
				return nil, s.ctx.Err()
			}
			s.logger.Debug().Err(err).Int("attempt", attempt).Msg("Resync backfill failed.")
			lastErr = err
			continue
		}

		s.backfill(history)
		s.resyncs.Add(1)
		return feed, nil
	}

	return nil, fmt.Errorf("resync feed: %w", lastErr)
}

func (s *Session) backfill(history []chat.Message) {
	var missed []chat.Message

	s.mu.Lock()
	for _, m := range history {
		inserted, err := s.view.Apply(m)
		if err != nil {
			break
		}
		if inserted && s.ready {
			missed = append(missed, m)
		}
	}
	s.mu.Unlock()

	s.logger.Debug().Int("history", len(history)).Int("missed", len(missed)).Msg("Session resynced.")

	for _, m := range missed {
		s.emit(m)
	}
}

func (s *Session) applyLive(m chat.Message) {
	s.mu.Lock()
	inserted, err := s.view.Apply(m)
	emit := inserted && s.ready
	s.mu.Unlock()

	if err != nil {
		// a late arrival for a torn down view.
		return
	}

	if emit {
		s.emit(m)
	}
}

func (s *Session) emit(m chat.Message) {
	select {
	case s.updates <- m:
	default:
		s.logger.Warn().Str("message_id", m.ID).Msg("Updates consumer is lagging, message only kept in view.")
	}
}

func (s *Session) onServerError(p chat.ErrorPayload) {
	s.logger.Warn().Int("code", p.Code).Str("message", p.Message).Msg("Server reported an error.")
}

// View returns the session's message view.
func (s *Session) View() *View {
	return s.view
}

// Updates delivers messages that reached the view after the initial backfill, live or
// recovered by a resync. It is closed when the feed ends.
func (s *Session) Updates() <-chan chat.Message {
	return s.updates
}

// Done is closed when the feed ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns why the feed ended, or nil after Close.
func (s *Session) Err() error {
	<-s.done
	return s.err
}

// Resyncs returns how many times the session recovered from a dropped feed.
func (s *Session) Resyncs() int {
	return int(s.resyncs.Load())
}

// Close tears the subscription down and marks the view stale.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.view.Close()

		s.mu.Lock()
		feed := s.feed
		s.mu.Unlock()

		if err := feed.Close(); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Debug().Err(err).Msg("Feed close error.")
		}
		<-s.done
	})
}

// IsStale reports whether err is a result discarded because its view was closed.
func IsStale(err error) bool {
	return errs.HasCode(err, errs.ErrStaleView)
}
