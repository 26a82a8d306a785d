/*
Package chat contains the public chat room: the append-only message log service, the hub that
fans new messages out to every live subscriber, and the WebSocket client pumps.

This file defines the Service, the entry point for sending, backfilling and subscribing.
*/
package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"blip/internal/app/moderation"
	"blip/internal/app/registry"
	"blip/internal/pkg/errs"
	"blip/internal/pkg/logx"
	"blip/internal/pkg/randx"
)

// listenRetryDelay is the pause before the feed listener is restarted after a failure.
const listenRetryDelay = time.Second

// SendInput is a message submission.
type SendInput struct {
	UserID     string
	AuthorName string
	Text       string
}

// Service wires the log, the change feed, the registry styles and the moderation gate to the hub.
type Service struct {
	log    Log
	feed   Feed
	styles StyleSource
	filter *moderation.Filter
	hub    *Hub

	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger zerolog.Logger
}

// NewService constructs a Service. A nil filter means the default dictionary.
func NewService(log Log, feed Feed, styles StyleSource, filter *moderation.Filter) *Service {
	if filter == nil {
		filter = moderation.Default()
	}

	return &Service{
		log:    log,
		feed:   feed,
		styles: styles,
		filter: filter,
		hub:    NewHub(),
		logger: logx.Component("ChatService"),
	}
}

// Start launches the hub and the change feed listener. Every message the feed reports is
// enriched with its author's current style and published to the hub.
func (s *Service) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(2)

	go func() {
		defer s.wg.Done()
		s.hub.Run()
	}()

	go func() {
		defer s.wg.Done()
		s.runListener(ctx)
	}()
}

// Shutdown stops the listener and the hub, closing every subscription.
func (s *Service) Shutdown() {
	s.logger.Info().Msg("Shutting down chat service...")

	if s.cancel != nil {
		s.cancel()
	}
	s.hub.Stop()
	s.wg.Wait()

	s.logger.Info().Msg("Chat service shutdown complete.")
}

func (s *Service) runListener(ctx context.Context) {
	s.logger.Info().Msg("Change feed listener started.")

	for {
		err := s.feed.Listen(ctx, func(m Message) {
			s.hub.Publish(s.enrichOne(ctx, m))
		})

		if ctx.Err() != nil {
			s.logger.Info().Msg("Change feed listener stopped.")
			return
		}

		s.logger.Error().Err(err).Dur("retry_in", listenRetryDelay).Msg("Change feed listener failed, restarting.")

		select {
		case <-time.After(listenRetryDelay):
		case <-ctx.Done():
			return
		}
	}
}

// Subscribe returns a live subscription to every future append.
func (s *Service) Subscribe() *Subscription {
	return s.hub.Subscribe()
}

// Hub exposes the underlying hub.
func (s *Service) Hub() *Hub {
	return s.hub
}

// Filter returns the moderation filter used as the final gate.
func (s *Service) Filter() *moderation.Filter {
	return s.filter
}

// Send runs the final moderation gate and appends the censored text.
// The message reaches subscribers, its author included, through the change feed only.
func (s *Service) Send(ctx context.Context, in SendInput) (Message, error) {
	text := strings.TrimSpace(in.Text)
	authorName := strings.TrimSpace(in.AuthorName)

	if !randx.IsAcceptableIdentityID(in.UserID) || authorName == "" {
		return Message{}, errs.NewError(errs.ErrInvalidParams)
	}

	if text == "" {
		return Message{}, errs.NewError(errs.ErrMessageEmpty)
	}

	if len(text) > MaxContentBytes {
		return Message{}, errs.NewError(errs.ErrMessageContentTooLong)
	}

	result := s.filter.Check(text)
	if !result.Allowed {
		s.logger.Info().Str("user_id", in.UserID).Msg("Message rejected by banned phrase policy.")
		return Message{}, errs.NewError(errs.ErrMessageBlocked)
	}

	saved, err := s.log.Append(ctx, Message{
		ID:         randx.MessageID(),
		AuthorName: authorName,
		UserID:     in.UserID,
		Message:    result.Output,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", in.UserID).Msg("Failed to append message.")
		return Message{}, errs.NewError(errs.ErrStorageFailed)
	}

	s.logger.Debug().Str("message_id", saved.ID).Str("user_id", saved.UserID).Msg("Message appended.")
	return saved, nil
}

// History returns the whole log in order, enriched with current styles.
func (s *Service) History(ctx context.Context) ([]Message, error) {
	messages, err := s.log.History(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load history.")
		return nil, errs.NewError(errs.ErrStorageFailed)
	}

	return s.enrich(ctx, messages), nil
}

// AuthorNameUsed reports whether authorName appears on any message.
func (s *Service) AuthorNameUsed(ctx context.Context, authorName string) (bool, error) {
	used, err := s.log.AuthorNameUsed(ctx, authorName)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to check author name usage.")
		return false, errs.NewError(errs.ErrStorageFailed)
	}
	return used, nil
}

func (s *Service) enrichOne(ctx context.Context, m Message) Message {
	return s.enrich(ctx, []Message{m})[0]
}

// enrich attaches the current registry style to each message whose author still holds
// the name the message was sent under. A registry failure leaves messages unstyled.
func (s *Service) enrich(ctx context.Context, messages []Message) []Message {
	if len(messages) == 0 || s.styles == nil {
		return messages
	}

	seen := make(map[string]struct{}, len(messages))
	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		if _, ok := seen[m.UserID]; !ok {
			seen[m.UserID] = struct{}{}
			ids = append(ids, m.UserID)
		}
	}

	records, err := s.styles.Snapshot(ctx, ids)
	if err != nil {
		s.logger.Warn().Err(err).Int("authors", len(ids)).Msg("Style lookup failed, delivering unstyled.")
		return messages
	}

	for i := range messages {
		messages[i].NameStyle = nil
		if rec, ok := records[messages[i].UserID]; ok {
			messages[i].NameStyle = registry.StyleFor(&rec, messages[i].AuthorName)
		}
	}

	return messages
}
