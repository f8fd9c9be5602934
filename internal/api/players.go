package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/vidfeed/internal/logger"
	"github.com/stwalsh4118/vidfeed/internal/playback"
)

// Player channel message types
const (
	msgLoad    = "load"
	msgCommand = "command"
	msgError   = "error"
	msgReady   = "ready"
	msgState   = "state"
)

// Commands sent to the renderer's embedded player
const (
	commandPlay    = "play"
	commandPause   = "pause"
	commandDestroy = "destroy"
)

// playbackService defines the interface required by PlayerHandler
type playbackService interface {
	Gate() *playback.Gate
	Mount(ctx context.Context, opts playback.MountOptions) (*playback.Player, error)
}

// PlayerMessage is a frame on the player channel. The server sends load, command
// and error frames; the renderer sends ready, state and error frames.
type PlayerMessage struct {
	Type        string         `json:"type"`
	PlayerID    int            `json:"player_id,omitempty"`
	ContainerID string         `json:"container_id,omitempty"`
	VideoID     string         `json:"video_id,omitempty"`
	PlayerVars  map[string]any `json:"player_vars,omitempty"`
	Command     string         `json:"command,omitempty"`
	State       *int           `json:"state,omitempty"`
	Message     string         `json:"message,omitempty"`
}

// SDKStatusResponse reports the embedding SDK readiness
type SDKStatusResponse struct {
	State  string `json:"state"`
	SDKURL string `json:"sdk_url"`
	Marked bool   `json:"marked,omitempty"`
}

// PlayerOptions configures PlayerHandler
type PlayerOptions struct {
	SDKURL         string
	Loader         playback.Loader
	MountTimeout   time.Duration
	CommandTimeout time.Duration
}

// PlayerHandler drives embedded players in the renderer over a websocket per player
type PlayerHandler struct {
	service playbackService
	opts    PlayerOptions
}

// NewPlayerHandler creates a new player handler instance
func NewPlayerHandler(service *playback.Service, opts PlayerOptions) *PlayerHandler {
	return newPlayerHandler(service, opts)
}

func newPlayerHandler(service playbackService, opts PlayerOptions) *PlayerHandler {
	if opts.MountTimeout <= 0 {
		opts.MountTimeout = 15 * time.Second
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 5 * time.Second
	}
	return &PlayerHandler{service: service, opts: opts}
}

// GetSDKStatus handles GET /api/players/sdk
func (h *PlayerHandler) GetSDKStatus(c *gin.Context) {
	c.JSON(http.StatusOK, SDKStatusResponse{
		State:  h.service.Gate().State().String(),
		SDKURL: h.opts.SDKURL,
	})
}

// MarkSDKReady handles POST /api/players/sdk-ready, sent by the renderer when the
// SDK's global ready callback fires
func (h *PlayerHandler) MarkSDKReady(c *gin.Context) {
	gate := h.service.Gate()
	marked := gate.MarkReady()
	c.JSON(http.StatusOK, SDKStatusResponse{
		State:  gate.State().String(),
		SDKURL: h.opts.SDKURL,
		Marked: marked,
	})
}

// LoadSDK handles POST /api/players/sdk/load
func (h *PlayerHandler) LoadSDK(c *gin.Context) {
	if h.opts.Loader == nil {
		c.JSON(http.StatusNotImplemented, ErrorResponse{
			Error:   "no_loader",
			Message: "No SDK loader configured",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.opts.MountTimeout)
	defer cancel()

	gate := h.service.Gate()
	if err := gate.Load(ctx, h.opts.Loader); err != nil {
		logger.Log.Warn().Err(err).Msg("Player SDK load failed")
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "sdk_unavailable",
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, SDKStatusResponse{State: gate.State().String(), SDKURL: h.opts.SDKURL})
}

// PlayerSocket handles GET /api/players/:id/ws?source=<embed url>.
//
// The player lives exactly as long as the socket: it is mounted once the SDK is
// ready, registered when the renderer reports ready, and destroyed on disconnect.
func (h *PlayerHandler) PlayerSocket(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Player ID must be an integer",
		})
		return
	}
	source := c.Query("source")
	if source == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_source",
			Message: "Query parameter source is required",
		})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Error().Err(err).Int("player_id", id).Msg("Failed to accept player socket")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	ctx := c.Request.Context()
	log := logger.Component("player_socket").With().Int("player_id", id).Logger()

	remote := &remoteHandle{conn: conn, timeout: h.opts.CommandTimeout}
	factory := playback.FactoryFunc(func(ctx context.Context, cfg playback.PlayerConfig) (playback.Handle, error) {
		return remote, remote.send(ctx, PlayerMessage{
			Type:        msgLoad,
			PlayerID:    cfg.ID,
			ContainerID: cfg.ContainerID,
			VideoID:     cfg.VideoID,
			PlayerVars:  cfg.Options.PlayerVars(),
		})
	})

	mountCtx, cancel := context.WithTimeout(ctx, h.opts.MountTimeout)
	player, err := h.service.Mount(mountCtx, playback.MountOptions{ID: id, Source: source, Factory: factory})
	cancel()
	if err != nil {
		log.Warn().Err(err).Str("source", source).Msg("Failed to mount player")
		_ = remote.send(ctx, PlayerMessage{Type: msgError, PlayerID: id, Message: err.Error()})
		if errors.Is(err, playback.ErrInvalidSource) {
			conn.Close(websocket.StatusPolicyViolation, "invalid source")
		}
		return
	}
	defer player.Close()

	for {
		var msg PlayerMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			remote.gone.Store(true)
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				log.Debug().Err(err).Msg("Player socket closed")
			}
			return
		}

		switch msg.Type {
		case msgReady:
			if err := player.Ready(); err != nil {
				log.Warn().Err(err).Msg("Ready reported for closed player")
			}
		case msgState:
			if msg.State == nil {
				log.Debug().Msg("State frame without state")
				continue
			}
			player.StateChanged(playback.State(*msg.State))
		case msgError:
			log.Warn().Str("message", msg.Message).Str("video_id", player.VideoID()).Msg("Embedded player reported an error")
		default:
			log.Debug().Str("type", msg.Type).Msg("Unknown player frame")
		}
	}
}

// remoteHandle forwards player commands to the renderer
type remoteHandle struct {
	conn    *websocket.Conn
	timeout time.Duration
	gone    atomic.Bool
}

func (r *remoteHandle) Play() error    { return r.command(commandPlay) }
func (r *remoteHandle) Pause() error   { return r.command(commandPause) }
func (r *remoteHandle) Destroy() error { return r.command(commandDestroy) }

func (r *remoteHandle) command(name string) error {
	// Nothing left to control once the renderer has hung up.
	if r.gone.Load() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.send(ctx, PlayerMessage{Type: msgCommand, Command: name})
}

func (r *remoteHandle) send(ctx context.Context, msg PlayerMessage) error {
	return wsjson.Write(ctx, r.conn, msg)
}

// SetupPlayerRoutes registers embedded player routes
func SetupPlayerRoutes(apiGroup *gin.RouterGroup, service *playback.Service, opts PlayerOptions) {
	handler := NewPlayerHandler(service, opts)
	registerPlayerRoutes(apiGroup, handler)
}

func registerPlayerRoutes(apiGroup *gin.RouterGroup, handler *PlayerHandler) {
	players := apiGroup.Group("/players")
	players.GET("/sdk", handler.GetSDKStatus)
	players.POST("/sdk-ready", handler.MarkSDKReady)
	players.POST("/sdk/load", handler.LoadSDK)
	players.GET("/:id/ws", handler.PlayerSocket)
}
