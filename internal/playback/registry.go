package playback

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/stwalsh4118/vidfeed/internal/logger"
)

// entry wraps a registered handle so a replacement under the same id is
// distinguishable from the original even when handles are not comparable
type entry struct {
	id     int
	handle Handle
}

// Registry maps player ids to handles and keeps at most one of them playing.
// It holds non-owning references: destroying handles is the mounting player's job.
type Registry struct {
	mu      sync.RWMutex
	entries map[int]*entry

	// sweepMu serializes NotifyPlaying so two play events never interleave their sweeps
	sweepMu sync.Mutex

	log zerolog.Logger
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[int]*entry),
		log:     logger.Component("playback"),
	}
}

// Register inserts or replaces the handle for id. A replaced handle is not destroyed.
func (r *Registry) Register(id int, h Handle) {
	r.register(id, h)
}

func (r *Registry) register(id int, h Handle) *entry {
	e := &entry{id: id, handle: h}

	r.mu.Lock()
	_, replaced := r.entries[id]
	r.entries[id] = e
	total := len(r.entries)
	r.mu.Unlock()

	r.log.Debug().
		Int("player_id", id).
		Bool("replaced", replaced).
		Int("total_players", total).
		Msg("Registered player")
	return e
}

// Unregister removes the handle for id. Unknown ids are ignored.
func (r *Registry) Unregister(id int) {
	r.mu.Lock()
	_, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()

	if ok {
		r.log.Debug().Int("player_id", id).Msg("Unregistered player")
	}
}

// release removes e only if it is still the entry registered under its id
func (r *Registry) release(e *entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries[e.id] != e {
		return false
	}
	delete(r.entries, e.id)
	return true
}

// NotifyPlaying pauses every registered handle except the one under id and
// returns how many handles were paused successfully.
//
// Handles unregistered or replaced while the sweep runs are skipped; handles
// registered while it runs are included. A failing or panicking Pause is logged
// and does not stop the sweep.
func (r *Registry) NotifyPlaying(id int) int {
	r.sweepMu.Lock()
	defer r.sweepMu.Unlock()

	visited := make(map[*entry]struct{})
	paused := 0

	for {
		pending := r.snapshot(id, visited)
		if len(pending) == 0 {
			break
		}
		for _, e := range pending {
			visited[e] = struct{}{}
			if !r.current(e) {
				r.log.Debug().Int("player_id", e.id).Msg("Player left during pause sweep, skipping")
				continue
			}
			if err := pauseHandle(e.handle); err != nil {
				r.log.Warn().
					Err(err).
					Int("player_id", e.id).
					Int("playing_id", id).
					Msg("Failed to pause player")
				continue
			}
			paused++
		}
	}

	r.log.Debug().
		Int("playing_id", id).
		Int("paused", paused).
		Msg("Paused other players")
	return paused
}

// Len returns the number of registered handles
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// snapshot copies the entries not yet visited, excluding the playing id
func (r *Registry) snapshot(playing int, visited map[*entry]struct{}) []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entry, 0, len(r.entries))
	for id, e := range r.entries {
		if id == playing {
			continue
		}
		if _, seen := visited[e]; seen {
			continue
		}
		out = append(out, e)
	}
	return out
}

// current reports whether e is still the entry registered under its id
func (r *Registry) current(e *entry) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[e.id] == e
}

// pauseHandle calls Pause, converting a panic into an error
func pauseHandle(h Handle) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pause panicked: %v", rec)
		}
	}()
	return h.Pause()
}
