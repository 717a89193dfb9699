package domain

import (
	"strings"

	"github.com/google/uuid"
)

type CallID uuid.UUID
type ClientID uuid.UUID

func NewCallID() CallID {
	return CallID(uuid.New())
}

func NewClientID() ClientID {
	return ClientID(uuid.New())
}

func (id CallID) String() string {
	return uuid.UUID(id).String()
}

func (id CallID) IsZero() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id ClientID) String() string {
	return uuid.UUID(id).String()
}

// ParticipantIdentity is the identity a participant presents inside a room.
type ParticipantIdentity string

func (p ParticipantIdentity) String() string {
	return string(p)
}

// LocalIdentity derives the identity we join the room with for a given counterparty.
func LocalIdentity(prefix, counterpartyID string) ParticipantIdentity {
	return ParticipantIdentity(prefix + counterpartyID)
}

// NormalizeCounterparty trims input coming from the UI controls.
func NormalizeCounterparty(s string) string {
	return strings.TrimSpace(s)
}
