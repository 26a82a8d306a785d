package client

import (
	"context"
	"strings"

	"blip/internal/app/chat"
	"blip/internal/app/moderation"
	"blip/internal/pkg/errs"
)

// Sender posts a message on behalf of a viewer.
type Sender interface {
	Send(ctx context.Context, userID, authorName, text string) (chat.Message, error)
}

// Composer runs the moderation filter on the viewer side, live while typing and once more
// before submission.
type Composer struct {
	filter *moderation.Filter
	sender Sender
}

// NewComposer returns a Composer. A nil filter means the default dictionary.
func NewComposer(filter *moderation.Filter, sender Sender) *Composer {
	if filter == nil {
		filter = moderation.Default()
	}
	return &Composer{filter: filter, sender: sender}
}

// Preview returns the censored rendering of text and whether it may be sent.
func (c *Composer) Preview(text string) moderation.Result {
	return c.filter.Check(text)
}

// Submit checks text and posts it. The raw text is sent; the server censors it again,
// so the banned phrase check there still sees the original words.
func (c *Composer) Submit(ctx context.Context, userID, authorName, text string) (chat.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return chat.Message{}, errs.NewError(errs.ErrMessageEmpty)
	}

	if len(text) > chat.MaxContentBytes {
		return chat.Message{}, errs.NewError(errs.ErrMessageContentTooLong)
	}

	if !c.filter.Check(text).Allowed {
		return chat.Message{}, errs.NewError(errs.ErrMessageBlocked)
	}

	return c.sender.Send(ctx, userID, authorName, text)
}
