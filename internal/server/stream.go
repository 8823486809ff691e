package server

import (
	"net/http"
	"time"

	"github.com/desertthunder/glance/internal/controller"
	"github.com/desertthunder/glance/internal/formatter"
	"github.com/desertthunder/glance/internal/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	streamBuffer = 32
	writeWait    = 10 * time.Second
	pingPeriod   = 30 * time.Second
)

// StreamHandler upgrades to a websocket and registers the connection as a controller subscriber.
//
// Every notification becomes a [formatter.StreamEvent]. Events are dropped, not queued, for a client that falls
// behind, so a slow reader never stalls the controller.
type StreamHandler struct {
	api      *API
	upgrader websocket.Upgrader
}

// NewStreamHandler creates a [StreamHandler] over api.
func NewStreamHandler(api *API) *StreamHandler {
	return &StreamHandler{
		api: api,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *StreamHandler) Routes() []string {
	return []string{"/v1/stream"}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.api.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	id := uuid.NewString()
	logger := h.api.logger.With("stream", id)
	events := make(chan formatter.StreamEvent, streamBuffer)
	send := func(e formatter.StreamEvent) {
		select {
		case events <- e:
		default:
			logger.Warn("stream client lagging, dropping event", "type", e.Type)
		}
	}

	sub := &controller.SubscriberFuncs{
		StateUpdated: func(s models.State) {
			view := h.api.render(s)
			send(formatter.StreamEvent{Type: formatter.EventState, State: &view})
		},
		ProducerChanged: func() {
			send(formatter.StreamEvent{Type: formatter.EventProducer})
		},
		PrivacyChanged: func(enabled bool) {
			send(formatter.StreamEvent{Type: formatter.EventPrivacy, Enabled: &enabled})
		},
	}
	h.api.ctrl.AddSubscriber(sub)
	defer h.api.ctrl.RemoveSubscriber(sub)
	logger.Info("stream opened", "remote", r.RemoteAddr)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Warn("stream closed unexpectedly", "error", err)
				}
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			logger.Info("stream closed")
			return
		case e := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				logger.Warn("stream write failed", "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				logger.Warn("stream ping failed", "error", err)
				return
			}
		}
	}
}
