// Package playback coordinates embedded video players: one-time SDK readiness,
// exclusive playback across every mounted player, and per-player lifecycle.
package playback

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
)

// ErrInvalidSource is returned when an embed source does not identify a video on the platform
var ErrInvalidSource = errors.New("invalid video source")

// Handle controls one embedded player instance
type Handle interface {
	Play() error
	Pause() error
	Destroy() error
}

// State is the embedded player's state as reported by the SDK
type State int

// Player states reported by the SDK
const (
	StateUnstarted State = -1
	StateEnded     State = 0
	StatePlaying   State = 1
	StatePaused    State = 2
	StateBuffering State = 3
	StateCued      State = 5
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateEnded:
		return "ended"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateBuffering:
		return "buffering"
	case StateCued:
		return "cued"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

// EmbedOptions are the player parameters every embedded player is constructed with
type EmbedOptions struct {
	Controls       bool   `json:"controls"`
	ModestBranding bool   `json:"modestbranding"`
	FullScreen     bool   `json:"fs"`
	RelatedVideos  bool   `json:"rel"`
	Origin         string `json:"origin,omitempty"`
}

// DefaultEmbedOptions shows controls, minimal branding and fullscreen, and restricts related videos
func DefaultEmbedOptions(origin string) EmbedOptions {
	return EmbedOptions{
		Controls:       true,
		ModestBranding: true,
		FullScreen:     true,
		RelatedVideos:  false,
		Origin:         origin,
	}
}

// PlayerVars renders the options as the SDK's player variables
func (o EmbedOptions) PlayerVars() map[string]any {
	vars := map[string]any{
		"enablejsapi":    1,
		"controls":       flag(o.Controls),
		"modestbranding": flag(o.ModestBranding),
		"fs":             flag(o.FullScreen),
		"rel":            flag(o.RelatedVideos),
	}
	if o.Origin != "" {
		vars["origin"] = o.Origin
	}
	return vars
}

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}

// PlayerConfig is everything a Factory needs to construct a player
type PlayerConfig struct {
	ID          int
	ContainerID string
	VideoID     string
	Options     EmbedOptions
}

// Factory constructs the platform player for a mounted video
type Factory interface {
	NewPlayer(ctx context.Context, cfg PlayerConfig) (Handle, error)
}

// FactoryFunc adapts a function to the Factory interface
type FactoryFunc func(ctx context.Context, cfg PlayerConfig) (Handle, error)

// NewPlayer calls f(ctx, cfg)
func (f FactoryFunc) NewPlayer(ctx context.Context, cfg PlayerConfig) (Handle, error) {
	return f(ctx, cfg)
}

// ContainerID returns the element id a player for video id is mounted into
func ContainerID(id int) string {
	return "youtube-player-" + strconv.Itoa(id)
}

// ExtractVideoID returns the platform video id from a watch, short, embed or share link
func ExtractVideoID(source string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(source))
	if err != nil || u.Host == "" {
		return "", ErrInvalidSource
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")

	var id string
	switch host {
	case "youtu.be":
		id = firstSegment(u.Path)
	case "youtube.com", "youtube-nocookie.com", "music.youtube.com":
		if u.Path == "/watch" {
			id = u.Query().Get("v")
			break
		}
		for _, prefix := range []string{"/embed/", "/shorts/", "/v/", "/live/"} {
			if strings.HasPrefix(u.Path, prefix) {
				id = firstSegment(strings.TrimPrefix(u.Path, prefix))
				break
			}
		}
	}

	if !validVideoID(id) {
		return "", ErrInvalidSource
	}
	return id, nil
}

func firstSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return path
}

// validVideoID checks the platform's 11 character id alphabet
func validVideoID(id string) bool {
	if len(id) != 11 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
