package handler

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/haulpass/cdl-backend/internal/engine"
	"github.com/haulpass/cdl-backend/internal/middleware"
	"github.com/haulpass/cdl-backend/internal/response"
	"github.com/haulpass/cdl-backend/internal/service"
	ws "github.com/haulpass/cdl-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams the authoritative countdown and phase transitions for
// the device's live exam session.
type WSHandler struct {
	sessions *service.SessionManager
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions *service.SessionManager, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// ExamStream godoc
// WS /ws/v1/exam/stream?token=...
// Pushes one tick per second plus state and graded events. Accepts submit
// and ping actions from the client.
func (h *WSHandler) ExamStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	e, err := h.sessions.Exam(c.Request.Context(), claims.DeviceID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("device_id", claims.DeviceID).Logger()
	wsLog.Info().Msg("Device connected")

	// The conn allows one concurrent writer; both the event pump and the
	// read loop replies go through this lock.
	var writeMu sync.Mutex
	write := func(v interface{}) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return ws.WriteTyped(conn, v)
	}

	// Engine events arrive on engine goroutines; a buffered channel hands
	// them to the pump below. A slow client drops ticks rather than
	// blocking the engine.
	events := make(chan engine.Event, 16)
	unsubscribe := e.Subscribe(func(ev engine.Event) {
		select {
		case events <- ev:
		default:
		}
	})
	defer unsubscribe()

	quit := make(chan struct{})
	defer close(quit)
	go func() {
		for {
			select {
			case <-quit:
				return
			case ev := <-events:
				if err := writeEvent(write, ev); err != nil {
					return
				}
			}
		}
	}()

	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionPing:
			write(ws.PongResponse{Event: ws.EventPong})
		case ws.ActionSubmit:
			if err := e.Submit(c.Request.Context()); err != nil {
				write(ws.ErrorResponse{Event: ws.EventError, Error: err.Error()})
			}
		default:
			write(ws.ErrorResponse{Event: ws.EventError, Error: "unknown action"})
		}
	}
}

func writeEvent(write func(interface{}) error, ev engine.Event) error {
	switch ev.Type {
	case engine.EventTick:
		return write(ws.TickResponse{
			Event:            ws.EventTick,
			RemainingSeconds: ev.RemainingSeconds,
		})
	case engine.EventGraded:
		return write(ws.GradedResponse{
			Event:  ws.EventGraded,
			Forced: ev.Forced,
		})
	default:
		return write(ws.StateResponse{
			Event: ws.EventState,
			State: string(ev.State),
		})
	}
}
