package playback

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

// mockHandle is a Handle whose methods can be overridden per test
type mockHandle struct {
	PlayFunc    func() error
	PauseFunc   func() error
	DestroyFunc func() error

	plays    atomic.Int32
	pauses   atomic.Int32
	destroys atomic.Int32
}

func (m *mockHandle) Play() error {
	m.plays.Add(1)
	if m.PlayFunc != nil {
		return m.PlayFunc()
	}
	return nil
}

func (m *mockHandle) Pause() error {
	m.pauses.Add(1)
	if m.PauseFunc != nil {
		return m.PauseFunc()
	}
	return nil
}

func (m *mockHandle) Destroy() error {
	m.destroys.Add(1)
	if m.DestroyFunc != nil {
		return m.DestroyFunc()
	}
	return nil
}

func TestRegistry_NotifyPlayingPausesOthers(t *testing.T) {
	r := NewRegistry()
	a, b := &mockHandle{}, &mockHandle{}

	r.Register(1, a)
	r.NotifyPlaying(1)
	assert.Zero(t, a.pauses.Load())

	r.Register(2, b)
	paused := r.NotifyPlaying(2)

	assert.Equal(t, 1, paused)
	assert.Equal(t, int32(1), a.pauses.Load())
	assert.Zero(t, b.pauses.Load())
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := NewRegistry()
	old, replacement := &mockHandle{}, &mockHandle{}

	r.Register(1, old)
	r.Register(1, replacement)
	assert.Equal(t, 1, r.Len())
	assert.Zero(t, old.destroys.Load(), "replaced handle must not be destroyed")

	r.NotifyPlaying(2)
	assert.Zero(t, old.pauses.Load())
	assert.Equal(t, int32(1), replacement.pauses.Load())
}

func TestRegistry_UnregisterUnknownIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Unregister(42)
	assert.Zero(t, r.Len())

	h := &mockHandle{}
	r.Register(1, h)
	r.Unregister(1)
	r.Unregister(1)
	assert.Zero(t, r.Len())

	r.NotifyPlaying(2)
	assert.Zero(t, h.pauses.Load())
}

func TestRegistry_PauseFailureIsolation(t *testing.T) {
	tests := []struct {
		name  string
		pause func() error
	}{
		{"error", func() error { return errors.New("player gone") }},
		{"panic", func() error { panic("sdk exploded") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			broken := &mockHandle{PauseFunc: tt.pause}
			handles := []*mockHandle{{}, broken, {}, {}}
			for i, h := range handles {
				r.Register(i+1, h)
			}

			var paused int
			assert.NotPanics(t, func() { paused = r.NotifyPlaying(99) })
			assert.Equal(t, len(handles)-1, paused)
			for _, h := range handles {
				assert.Equal(t, int32(1), h.pauses.Load())
			}
		})
	}
}

func TestRegistry_SkipsHandleRemovedMidSweep(t *testing.T) {
	r := NewRegistry()
	var victim *mockHandle

	// Whichever of the two handles is paused first unregisters the other.
	first := &mockHandle{}
	second := &mockHandle{}
	first.PauseFunc = func() error {
		if second.pauses.Load() == 0 {
			victim = second
			r.Unregister(2)
		}
		return nil
	}
	second.PauseFunc = func() error {
		if first.pauses.Load() == 0 {
			victim = first
			r.Unregister(1)
		}
		return nil
	}
	r.Register(1, first)
	r.Register(2, second)

	paused := r.NotifyPlaying(3)

	assert.Equal(t, 1, paused)
	assert.Zero(t, victim.pauses.Load())
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_SkipsHandleReplacedMidSweep(t *testing.T) {
	r := NewRegistry()
	original := &mockHandle{}
	replacement := &mockHandle{}
	trigger := &mockHandle{}
	trigger.PauseFunc = func() error {
		if original.pauses.Load() == 0 {
			r.Register(2, replacement)
		}
		return nil
	}
	r.Register(1, trigger)
	r.Register(2, original)

	r.NotifyPlaying(3)

	// Every handle registered when the sweep ends was paused exactly once.
	assert.Equal(t, int32(1), trigger.pauses.Load())
	assert.Equal(t, int32(1), original.pauses.Load()+replacement.pauses.Load())
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_IncludesHandleRegisteredMidSweep(t *testing.T) {
	r := NewRegistry()
	late := &mockHandle{}
	early := &mockHandle{PauseFunc: func() error {
		r.Register(5, late)
		return nil
	}}
	r.Register(1, early)

	paused := r.NotifyPlaying(3)

	assert.Equal(t, 2, paused)
	assert.Equal(t, int32(1), early.pauses.Load())
	assert.Equal(t, int32(1), late.pauses.Load())
}

func TestRegistry_ConcurrentMutation(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func(id int) {
			defer wg.Done()
			r.Register(id, &mockHandle{})
		}(i)
		go func(id int) {
			defer wg.Done()
			r.NotifyPlaying(id)
		}(i)
		go func(id int) {
			defer wg.Done()
			r.Unregister(id - 1)
		}(i)
	}
	wg.Wait()

	// After a final sweep every remaining handle except the playing one is paused.
	handles := make([]*mockHandle, 0)
	for i := 100; i < 105; i++ {
		h := &mockHandle{}
		handles = append(handles, h)
		r.Register(i, h)
	}
	r.NotifyPlaying(100)
	assert.Zero(t, handles[0].pauses.Load())
	for _, h := range handles[1:] {
		assert.Equal(t, int32(1), h.pauses.Load())
	}
}
