package domain

type RoomEventType string

const (
	EventParticipantConnected    RoomEventType = "participant_connected"
	EventParticipantDisconnected RoomEventType = "participant_disconnected"
	EventDisconnected            RoomEventType = "disconnected"
)

type RoomEvent struct {
	Type     RoomEventType
	Identity ParticipantIdentity
	Err      error // set on EventDisconnected when the session dropped unexpectedly
}

func NewParticipantConnected(identity ParticipantIdentity) RoomEvent {
	return RoomEvent{Type: EventParticipantConnected, Identity: identity}
}

func NewParticipantDisconnected(identity ParticipantIdentity) RoomEvent {
	return RoomEvent{Type: EventParticipantDisconnected, Identity: identity}
}

func NewDisconnected(err error) RoomEvent {
	return RoomEvent{Type: EventDisconnected, Err: err}
}
