// Package signaling exchanges WebRTC session descriptions over WebSocket.
package signaling

import "github.com/pion/webrtc/v3"

// Signaling message types.
const (
	MsgOffer  = "offer"
	MsgAnswer = "answer"
	MsgICE    = "ice"
)

// Message is a websocket signaling payload.
type Message struct {
	T         string                   `json:"t"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}
