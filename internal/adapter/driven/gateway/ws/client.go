package ws

import "github.com/Wyydra/yacall/internal/core/domain"

type Client interface {
	ID() string
	SendCallState(snapshot domain.CallSnapshot) error
	Close() error
}
