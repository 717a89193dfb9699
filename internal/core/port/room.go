package port

import (
	"context"

	"github.com/Wyydra/yacall/internal/core/domain"
)

// RoomConnector opens sessions against the real-time media room service.
type RoomConnector interface {
	Connect(ctx context.Context, serverURL string, identity domain.ParticipantIdentity) (RoomSession, error)
}

// RoomSession is one joined room. Events is closed once the session is gone;
// the last event delivered is always EventDisconnected.
type RoomSession interface {
	EnableMicrophone(ctx context.Context) error
	Events() <-chan domain.RoomEvent
	// Disconnect requests teardown and returns without waiting for it.
	Disconnect()
}
