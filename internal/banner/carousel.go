// Package banner rotates the home page banners.
package banner

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stwalsh4118/vidfeed/internal/catalog"
	"github.com/stwalsh4118/vidfeed/internal/logger"
)

// DefaultRotateInterval is the auto-advance period
const DefaultRotateInterval = 5 * time.Second

// Source lists banners from the store
type Source interface {
	ListBanners(ctx context.Context, activeOnly bool) ([]catalog.Banner, error)
}

// Slide is the carousel position handed to the renderer
type Slide struct {
	Banner *catalog.Banner `json:"banner"`
	Index  int             `json:"index"`
	Total  int             `json:"total"`
}

// Carousel holds the active banners and the current position.
// Auto-advance only runs while there is more than one banner.
type Carousel struct {
	src      Source
	interval time.Duration
	log      zerolog.Logger

	mu         sync.Mutex
	banners    []catalog.Banner
	index      int
	ticker     *time.Ticker
	stop       chan struct{}
	done       chan struct{}
	generation uint64
	closed     bool
}

// NewCarousel creates an empty carousel fed from src
func NewCarousel(src Source, interval time.Duration) *Carousel {
	if interval <= 0 {
		interval = DefaultRotateInterval
	}
	return &Carousel{
		src:      src,
		interval: interval,
		log:      logger.Component("banner"),
	}
}

// Refresh replaces the banners with the store's active ones. A failed refresh keeps the current banners.
func (c *Carousel) Refresh(ctx context.Context) error {
	if c.src == nil {
		return nil
	}
	banners, err := c.src.ListBanners(ctx, true)
	if err != nil {
		return err
	}
	c.Set(banners)
	return nil
}

// Set replaces the banners, restarting at the first one
func (c *Carousel) Set(banners []catalog.Banner) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.banners = append([]catalog.Banner(nil), banners...)
	c.index = 0
	c.log.Debug().Int("banners", len(c.banners)).Msg("Banners updated")

	if c.closed {
		return
	}
	if len(c.banners) > 1 {
		c.startLocked()
	} else {
		c.stopLocked()
	}
}

// Current returns the banner on display
func (c *Carousel) Current() Slide {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slideLocked()
}

// Next advances one banner, wrapping to the first
func (c *Carousel) Next() Slide {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n := len(c.banners); n > 0 {
		c.index = (c.index + 1) % n
	}
	return c.slideLocked()
}

// Previous goes back one banner, wrapping to the last
func (c *Carousel) Previous() Slide {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n := len(c.banners); n > 0 {
		c.index = (c.index - 1 + n) % n
	}
	return c.slideLocked()
}

// Rotating reports whether auto-advance is running
func (c *Carousel) Rotating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticker != nil
}

// Close stops auto-advance for good and waits for the loop to exit
func (c *Carousel) Close() {
	c.mu.Lock()
	c.closed = true
	done := c.stopLocked()
	c.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (c *Carousel) slideLocked() Slide {
	s := Slide{Index: c.index, Total: len(c.banners)}
	if len(c.banners) > 0 {
		b := c.banners[c.index]
		s.Banner = &b
	}
	return s
}

// startLocked launches the auto-advance loop if it is not running (must hold lock)
func (c *Carousel) startLocked() {
	if c.ticker != nil {
		return
	}
	c.generation++
	c.ticker = time.NewTicker(c.interval)
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.run(c.generation, c.ticker, c.stop, c.done)
}

// stopLocked signals the auto-advance loop to exit (must hold lock) and returns
// the channel closed once it has
func (c *Carousel) stopLocked() chan struct{} {
	if c.ticker == nil {
		return nil
	}
	close(c.stop)
	c.ticker.Stop()
	c.ticker = nil
	c.generation++
	return c.done
}

func (c *Carousel) run(generation uint64, ticker *time.Ticker, stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.advance(generation)
		}
	}
}

// advance moves to the next banner if the loop that ticked is still the current one
func (c *Carousel) advance(generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		return
	}
	if n := len(c.banners); n > 1 {
		c.index = (c.index + 1) % n
	}
}
