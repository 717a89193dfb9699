package http

import (
	"context"
	"net/http"
	"sync"

	"github.com/Wyydra/yacall/internal/core/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// The default CheckOrigin only accepts requests whose Origin matches Host.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type WSClient struct {
	id   domain.ClientID
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *WSClient) ID() string {
	return c.id.String()
}

func (c *WSClient) SendCallState(snapshot domain.CallSnapshot) error {
	return c.writeJSON(newStateDTO(snapshot))
}

func (c *WSClient) SendError(err error) error {
	return c.writeJSON(newErrorDTO(err))
}

func (c *WSClient) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *WSClient) Close() error {
	return c.conn.Close()
}

// HTTP handler
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Error while upgrading ws")
		return
	}

	clientID := domain.NewClientID()

	client := &WSClient{
		id:   clientID,
		conn: conn,
	}

	l := log.With().Str("client_id", clientID.String()).Logger()
	l.Info().Msg("New client connected")

	h.Hub.Register(client)

	defer func() {
		l.Info().Msg("Client disconnected")
		h.Hub.Unregister(client)
		conn.Close()
	}()

	if snap, err := h.Tracker.Snapshot(r.Context()); err == nil {
		if err := client.SendCallState(snap); err != nil {
			l.Error().Err(err).Msg("Failed to send initial state")
			return
		}
	}

	// listening for browser
	for {
		type incomingDTO struct {
			Type           string `json:"type"`
			CounterpartyID string `json:"counterparty_id"`
		}

		var req incomingDTO
		err := conn.ReadJSON(&req)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				l.Error().Err(err).Msg("Unexpected close error")
			}
			break
		}

		switch req.Type {
		case "start_call":
			// The call outlives this socket; ending it is an explicit action.
			go func(counterpartyID string) {
				if err := h.Tracker.StartOutboundCall(context.Background(), counterpartyID); err != nil {
					l.Error().Err(err).Str("counterparty_id", counterpartyID).Msg("Failed to start call")
					if err := client.SendError(err); err != nil {
						l.Debug().Err(err).Msg("Failed to report start error")
					}
				}
			}(req.CounterpartyID)
		case "end_call":
			h.Tracker.EndCurrentCall()
		default:
			l.Warn().Str("type", req.Type).Msg("Unknown message type")
		}
	}
}
