package handler

import (
	"time"

	"blip/internal/app/chat"
	"blip/internal/app/registry"
	"blip/internal/app/store"
	"blip/internal/configs"
)

// AppDeps carries everything the HTTP handlers need.
type AppDeps struct {
	Config   *configs.AppConfig
	Chat     *chat.Service
	Registry *registry.Registry
	Visits   store.VisitRecorder

	// Now defaults to time.Now.
	Now func() time.Time
}

func (d *AppDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
