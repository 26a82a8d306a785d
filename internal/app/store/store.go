package store

import (
	"context"
	"time"

	"blip/internal/app/chat"
	"blip/internal/app/registry"
)

// VisitRecorder appends entries to the visit log.
type VisitRecorder interface {
	RecordVisit(ctx context.Context, userID, ip string, at time.Time) error
}

// Backend is everything the server needs from one storage driver.
type Backend interface {
	registry.Store
	chat.Log
	chat.Feed
	VisitRecorder
	Close()
}

var (
	_ Backend = (*Memory)(nil)
	_ Backend = (*Postgres)(nil)
)
