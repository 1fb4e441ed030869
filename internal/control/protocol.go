// Package control carries crop-handle gestures from clients to the session.
package control

import (
	"github.com/frudas24/lensdeck/internal/camera"
	"github.com/frudas24/lensdeck/internal/catalog"
	"github.com/frudas24/lensdeck/internal/crop"
)

// Inbound message types.
const (
	MsgDown   = "down"
	MsgMove   = "move"
	MsgUp     = "up"
	MsgCancel = "cancel"
	MsgTab    = "tab"
	MsgCamera = "camera"
)

// Outbound reply types.
const (
	ReplyRect      = "rect"
	ReplySelection = "selection"
	ReplyResults   = "results"
	ReplyCamera    = "camera"
	ReplyError     = "error"
)

// Message is a control payload sent by the client. X and Y are in
// container-local units. Corner may be empty on down, in which case the
// handle under the touch is used.
type Message struct {
	T      string  `json:"t"`
	ID     int     `json:"id,omitempty"`
	Corner string  `json:"corner,omitempty"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	Tab    string  `json:"tab,omitempty"`
	Op     string  `json:"op,omitempty"`
}

// Reply is a control payload sent back to the client.
type Reply struct {
	T         string           `json:"t"`
	Rect      *crop.Rect       `json:"rect,omitempty"`
	Selection *crop.Selection  `json:"selection,omitempty"`
	Corner    string           `json:"corner,omitempty"`
	Tab       string           `json:"tab,omitempty"`
	Results   []catalog.Result `json:"results,omitempty"`
	Camera    *camera.Settings `json:"camera,omitempty"`
	Error     string           `json:"error,omitempty"`
}
