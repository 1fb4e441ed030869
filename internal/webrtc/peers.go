// Package webrtc builds the pion peer connections that carry the control data channel.
package webrtc

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"
)

// ControlLabel is the data channel label that carries gesture messages.
const ControlLabel = "control"

// ChannelHandler consumes raw control messages and writes replies with send.
type ChannelHandler interface {
	HandleChannelMessage(ctx context.Context, data []byte, send func([]byte) error) error
}

// Peers manages the pion API and the single active peer connection.
type Peers struct {
	mu   sync.Mutex
	api  *webrtc.API
	peer *webrtc.PeerConnection
}

// NewPeers initializes the pion API with default codecs/interceptors.
func NewPeers() (*Peers, error) {
	media := &webrtc.MediaEngine{}
	if err := media.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	interceptors := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(media, interceptors); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(media),
		webrtc.WithInterceptorRegistry(interceptors),
	)

	return &Peers{api: api}, nil
}

// NewPeer creates a new peer connection, closing the previous one.
func (p *Peers) NewPeer() (*webrtc.PeerConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.peer != nil {
		_ = p.peer.Close()
		p.peer = nil
	}

	peer, err := p.api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, err
	}
	p.peer = peer
	return peer, nil
}

// ClosePeer closes the current peer connection.
func (p *Peers) ClosePeer() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.peer != nil {
		_ = p.peer.Close()
		p.peer = nil
	}
}

// BindControl routes messages from the remote "control" data channel to h.
// Channels with other labels are ignored.
func BindControl(ctx context.Context, peer *webrtc.PeerConnection, h ChannelHandler) {
	peer.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != ControlLabel {
			if debugEnabled() {
				log.Printf("webrtc: ignoring data channel %q", dc.Label())
			}
			return
		}
		send := func(b []byte) error {
			return dc.SendText(string(b))
		}
		dc.OnMessage(func(msg webrtc.DataChannelMessage) {
			if err := HandleMessage(ctx, h, msg.Data, send); err != nil && debugEnabled() {
				log.Printf("webrtc: control message: %v", err)
			}
		})
	})
}

// HandleMessage forwards one channel payload to h unless ctx is done.
func HandleMessage(ctx context.Context, h ChannelHandler, data []byte, send func([]byte) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return h.HandleChannelMessage(ctx, data, send)
}
