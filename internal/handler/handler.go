package handler

import (
	"context"

	"github.com/ynon123/geosamples/internal/service"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the dependencies shared by all HTTP handlers. Individual
// methods are registered as gin handler functions.
type Handler struct {
	samples *service.SamplesService
	db      Pinger
}

// New creates a Handler. db may be nil, in which case /ready reports ready
// without a ping.
func New(samples *service.SamplesService, db Pinger) *Handler {
	return &Handler{samples: samples, db: db}
}
