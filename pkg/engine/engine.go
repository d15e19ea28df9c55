// Package engine contains the orchestrators: the debate loop, the topic
// polling loop, and the sandbox validator. Each runs as a goroutine per
// run id, driving agents through the participant gateway and recording
// everything through the store.
package engine

import (
	"context"
	"net/http"
	"time"

	"github.com/agonai/agon/pkg/agents"
	"github.com/agonai/agon/pkg/config"
	"github.com/agonai/agon/pkg/events"
	"github.com/agonai/agon/pkg/factcheck"
	"github.com/agonai/agon/pkg/filter"
	"github.com/agonai/agon/pkg/store"
)

// healthCheckTimeout bounds the sandbox connectivity probe.
const healthCheckTimeout = 10 * time.Second

// Engine wires the orchestrators to their collaborators.
type Engine struct {
	store   store.Store
	bus     *events.Bus
	filter  *filter.Filter
	worker  *factcheck.Worker
	factory agents.Factory
	cfg     *config.Config

	sleep  func(ctx context.Context, d time.Duration) error
	health *http.Client
}

// New creates an engine. factory builds the per-agent gateways; tests
// pass scripted ones.
func New(s store.Store, bus *events.Bus, f *filter.Filter, worker *factcheck.Worker,
	factory agents.Factory, cfg *config.Config) *Engine {
	return &Engine{
		store:   s,
		bus:     bus,
		filter:  f,
		worker:  worker,
		factory: factory,
		cfg:     cfg,
		sleep:   sleepCtx,
		health:  &http.Client{Timeout: healthCheckTimeout},
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
