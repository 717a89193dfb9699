package ws

import (
	"context"

	"github.com/Wyydra/yacall/internal/core/domain"
	"github.com/rs/zerolog/log"
)

const broadcastBuffer = 16

// Hub pushes call state to every connected UI client.
// implements port.CallNotifier
type Hub struct {
	clients    map[Client]bool
	broadcast  chan domain.CallSnapshot
	register   chan Client
	unregister chan Client
	count      chan chan int
	quit       chan struct{}
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[Client]bool),
		broadcast:  make(chan domain.CallSnapshot, broadcastBuffer),
		register:   make(chan Client),
		unregister: make(chan Client),
		count:      make(chan chan int),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (h *Hub) NotifyCallState(ctx context.Context, snapshot domain.CallSnapshot) error {
	select {
	case h.broadcast <- snapshot:
	default:
		log.Warn().Msg("Broadcast channel full, dropping call state")
	}
	return nil
}

func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case <-h.quit:
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			log.Info().Str("client_id", client.ID()).Int("count", len(h.clients)).Msg("Client registered")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
				log.Info().Str("client_id", client.ID()).Int("count", len(h.clients)).Msg("Client unregistered")
			}

		case reply := <-h.count:
			reply <- len(h.clients)

		case snapshot := <-h.broadcast:
			for client := range h.clients {
				if err := client.SendCallState(snapshot); err != nil {
					log.Error().Err(err).Str("client_id", client.ID()).Msg("Error sending call state")
					client.Close()
					delete(h.clients, client)
				}
			}
		}
	}
}

func (h *Hub) Register(c Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// ClientCount reports how many UI clients are connected, or 0 once stopped.
func (h *Hub) ClientCount() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

func (h *Hub) Stop() {
	select {
	case <-h.quit:
	default:
		close(h.quit)
	}
	<-h.done
}
