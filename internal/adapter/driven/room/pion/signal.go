package pion

import "github.com/pion/webrtc/v4"

type frameType string

const (
	frameParticipantConnected    frameType = "participant_connected"
	frameParticipantDisconnected frameType = "participant_disconnected"
	frameOffer                   frameType = "offer"
	frameAnswer                  frameType = "answer"
	frameCandidate               frameType = "candidate"
	frameLeave                   frameType = "leave"
)

// frame is the JSON envelope exchanged with the room server over the
// signaling websocket.
type frame struct {
	Type      frameType                `json:"type"`
	Identity  string                   `json:"identity,omitempty"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
	Reason    string                   `json:"reason,omitempty"`
}
