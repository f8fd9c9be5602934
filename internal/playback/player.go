package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/stwalsh4118/vidfeed/internal/logger"
)

// ErrPlayerClosed is returned by operations on a closed player
var ErrPlayerClosed = errors.New("player is closed")

// Service is the process-wide playback coordinator. Construct it once and pass it to
// every component that mounts players.
type Service struct {
	gate     *Gate
	registry *Registry
	factory  Factory
	origin   string
	log      zerolog.Logger
}

// NewService creates a coordinator whose players are built by factory
func NewService(gate *Gate, registry *Registry, factory Factory, origin string) *Service {
	return &Service{
		gate:     gate,
		registry: registry,
		factory:  factory,
		origin:   origin,
		log:      logger.Component("playback"),
	}
}

// Gate returns the SDK readiness gate
func (s *Service) Gate() *Gate {
	return s.gate
}

// Registry returns the exclusive playback registry
func (s *Service) Registry() *Registry {
	return s.registry
}

// MountOptions identifies the video a player is mounted for
type MountOptions struct {
	ID     int
	Source string

	// Factory overrides the service's factory for this player
	Factory Factory
}

// Mount waits for the SDK, then constructs the player for opts.Source. The returned
// player is not registered until the SDK reports it ready; Close must be called on
// every exit path once Mount succeeds.
func (s *Service) Mount(ctx context.Context, opts MountOptions) (*Player, error) {
	videoID, err := ExtractVideoID(opts.Source)
	if err != nil {
		s.log.Debug().Int("player_id", opts.ID).Str("source", opts.Source).Msg("Invalid embed source")
		return nil, err
	}

	if err := s.gate.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for player SDK: %w", err)
	}

	factory := opts.Factory
	if factory == nil {
		factory = s.factory
	}
	if factory == nil {
		return nil, errors.New("no player factory configured")
	}

	cfg := PlayerConfig{
		ID:          opts.ID,
		ContainerID: ContainerID(opts.ID),
		VideoID:     videoID,
		Options:     DefaultEmbedOptions(s.origin),
	}
	handle, err := factory.NewPlayer(ctx, cfg)
	if err != nil {
		s.log.Error().Err(err).Int("player_id", opts.ID).Str("video_id", videoID).Msg("Failed to create player")
		return nil, fmt.Errorf("failed to create player %d: %w", opts.ID, err)
	}

	s.log.Debug().Int("player_id", opts.ID).Str("video_id", videoID).Msg("Player mounted")
	return &Player{
		id:       opts.ID,
		videoID:  videoID,
		handle:   handle,
		registry: s.registry,
		log:      s.log,
	}, nil
}

// Player is one mounted embedded player
type Player struct {
	id       int
	videoID  string
	handle   Handle
	registry *Registry
	log      zerolog.Logger

	mu     sync.Mutex
	entry  *entry
	closed bool
	once   sync.Once
}

// ID returns the player id
func (p *Player) ID() int {
	return p.id
}

// VideoID returns the platform video id
func (p *Player) VideoID() string {
	return p.videoID
}

// Ready registers the player once the SDK reports it ready
func (p *Player) Ready() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPlayerClosed
	}
	if p.entry != nil {
		return nil
	}
	p.entry = p.registry.register(p.id, p.handle)
	return nil
}

// StateChanged reacts to the SDK's state events; playing pauses every other player
func (p *Player) StateChanged(state State) {
	p.mu.Lock()
	registered := p.entry != nil && !p.closed
	p.mu.Unlock()

	p.log.Debug().Int("player_id", p.id).Str("state", state.String()).Msg("Player state changed")
	if state != StatePlaying || !registered {
		return
	}
	p.registry.NotifyPlaying(p.id)
}

// Close destroys the handle and unregisters the player. Safe to call more than once.
func (p *Player) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		e := p.entry
		p.entry = nil
		p.mu.Unlock()

		if e != nil {
			p.registry.release(e)
		}
		if err := destroyHandle(p.handle); err != nil {
			p.log.Warn().Err(err).Int("player_id", p.id).Msg("Failed to destroy player")
		}
		p.log.Debug().Int("player_id", p.id).Msg("Player unmounted")
	})
}

// destroyHandle calls Destroy, converting a panic into an error
func destroyHandle(h Handle) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("destroy panicked: %v", rec)
		}
	}()
	return h.Destroy()
}
