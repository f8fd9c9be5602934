package playback

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	"github.com/stwalsh4118/vidfeed/internal/logger"
)

// GateState is the readiness of the embedding SDK
type GateState int

// Gate states
const (
	GatePending GateState = iota // not loaded, no load in flight
	GateLoading                  // a load is in flight
	GateReady                    // loaded; never leaves this state
)

// String returns the string representation of the gate state
func (s GateState) String() string {
	switch s {
	case GatePending:
		return "pending"
	case GateLoading:
		return "loading"
	case GateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Loader performs the one-time SDK load
type Loader func(ctx context.Context) error

// Gate tracks the one-time availability of the embedding SDK and releases
// waiters and queued callbacks exactly once when it becomes ready.
type Gate struct {
	mu        sync.Mutex
	state     GateState
	callbacks []func()
	ready     chan struct{}
	loadDone  chan struct{}
	loadErr   error

	log zerolog.Logger
}

// NewGate creates a pending gate
func NewGate() *Gate {
	return &Gate{
		state: GatePending,
		ready: make(chan struct{}),
		log:   logger.Component("playback"),
	}
}

// State returns the current gate state
func (g *Gate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// IsReady reports whether the SDK is available
func (g *Gate) IsReady() bool {
	return g.State() == GateReady
}

// OnReady runs cb now if the gate is ready, otherwise when it becomes ready
func (g *Gate) OnReady(cb func()) {
	g.mu.Lock()
	if g.state != GateReady {
		g.callbacks = append(g.callbacks, cb)
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()
	cb()
}

// MarkReady records the SDK's completion signal. It returns false for repeated signals.
func (g *Gate) MarkReady() bool {
	g.mu.Lock()
	if g.state == GateReady {
		g.mu.Unlock()
		g.log.Debug().Msg("Duplicate SDK ready signal ignored")
		return false
	}
	g.state = GateReady
	callbacks := g.callbacks
	g.callbacks = nil
	close(g.ready)
	g.mu.Unlock()

	g.log.Info().Int("queued_callbacks", len(callbacks)).Msg("Player SDK ready")
	for _, cb := range callbacks {
		cb()
	}
	return true
}

// Load runs loader unless the gate is already ready or a load is in flight, in
// which case it waits for that load. A failed load returns the gate to pending
// so a later call can try again.
func (g *Gate) Load(ctx context.Context, loader Loader) error {
	g.mu.Lock()
	switch g.state {
	case GateReady:
		g.mu.Unlock()
		return nil
	case GateLoading:
		done := g.loadDone
		g.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.state == GateReady {
			return nil
		}
		return g.loadErr
	}

	g.state = GateLoading
	g.loadDone = make(chan struct{})
	g.loadErr = nil
	done := g.loadDone
	g.mu.Unlock()

	g.log.Debug().Msg("Loading player SDK")
	err := loader(ctx)

	if err != nil {
		g.mu.Lock()
		if g.state == GateLoading {
			g.state = GatePending
		}
		g.loadErr = err
		close(done)
		g.mu.Unlock()

		g.log.Warn().Err(err).Msg("Player SDK load failed")
		return err
	}

	g.MarkReady()

	g.mu.Lock()
	close(done)
	g.mu.Unlock()
	return nil
}

// Wait blocks until the gate is ready or ctx is done
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HTTPLoader fetches the SDK script URL; a successful response marks the SDK available
func HTTPLoader(client *http.Client, sdkURL string) Loader {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, sdkURL, nil)
		if err != nil {
			return fmt.Errorf("failed to build SDK request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to fetch player SDK: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("failed to fetch player SDK: status %d", resp.StatusCode)
		}
		return nil
	}
}
