package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/frudas24/lensdeck/internal/camera"
	"github.com/frudas24/lensdeck/internal/catalog"
	"github.com/frudas24/lensdeck/internal/crop"
	"github.com/frudas24/lensdeck/internal/preview"
	"github.com/frudas24/lensdeck/internal/session"
)

// Searcher resolves a finalized corner into lens results.
type Searcher interface {
	Search(ctx context.Context, corner crop.Corner, tab string) ([]catalog.Result, error)
}

// Renderer draws the crop preview. Final frames bypass throttling.
type Renderer interface {
	Render(rect crop.Rect, final bool) error
}

// SendFunc delivers a reply to the client that sent the message.
type SendFunc func(Reply) error

// Server handles websocket control input.
type Server struct {
	mu         sync.Mutex
	dispatchMu sync.Mutex
	writeMu    sync.Mutex
	upgrader   websocket.Upgrader
	session    *session.Session
	gestures   *GestureState
	searcher   Searcher
	renderer   Renderer
	handleSize float64
	searchSeq  atomic.Uint64
	conn       *websocket.Conn
}

// NewServer creates a control websocket server. renderer may be nil.
func NewServer(sess *session.Session, searcher Searcher, renderer Renderer) *Server {
	return &Server{
		session:    sess,
		searcher:   searcher,
		renderer:   renderer,
		gestures:   NewGestureState(),
		handleSize: crop.DefaultHandleSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// SetHandleSize sets the side of the square corner handles used for hit testing.
func (s *Server) SetHandleSize(size float64) {
	if size <= 0 {
		return
	}
	s.dispatchMu.Lock()
	s.handleSize = size
	s.dispatchMu.Unlock()
}

// Gestures exposes the gesture tracker, mainly for tests.
func (s *Server) Gestures() *GestureState {
	return s.gestures
}

// ResetGestures drops any pointer binding, used when the results screen closes.
func (s *Server) ResetGestures() {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	s.gestures.Reset()
	s.searchSeq.Add(1)
}

// ServeHTTP upgrades the connection and processes control messages.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.session.IsAuthenticated() {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	if err := s.acceptConn(conn); err != nil {
		message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error())
		_ = conn.WriteMessage(websocket.CloseMessage, message)
		_ = conn.Close()
		return
	}
	defer s.cleanupConn(conn)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	send := func(reply Reply) error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		return conn.WriteJSON(reply)
	}

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if err := s.Dispatch(ctx, msg, send); err != nil {
			return
		}
	}
}

// HandleChannelMessage decodes a raw control message from another transport
// and dispatches it, encoding replies with the same JSON shape.
func (s *Server) HandleChannelMessage(ctx context.Context, data []byte, send func([]byte) error) error {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("decode control message: %w", err)
	}
	return s.Dispatch(ctx, msg, func(reply Reply) error {
		out, err := json.Marshal(reply)
		if err != nil {
			return err
		}
		return send(out)
	})
}

// acceptConn ensures only one active control connection exists.
func (s *Server) acceptConn(conn *websocket.Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return fmt.Errorf("control connection already active")
	}
	s.conn = conn
	return nil
}

// cleanupConn clears the active connection when closed.
func (s *Server) cleanupConn(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	_ = conn.Close()
}

// Dispatch handles one message. Client mistakes are answered with an error
// reply; only send failures are returned.
func (s *Server) Dispatch(ctx context.Context, msg Message, send SendFunc) error {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	var err error
	switch msg.T {
	case MsgDown:
		err = s.handleDown(msg, send)
	case MsgMove:
		err = s.handleMove(msg, send)
	case MsgUp:
		sel, ok := s.gestures.HandleUp(s.session, msg.ID, crop.Point{X: msg.X, Y: msg.Y})
		err = s.finishDrag(ctx, sel, ok, send)
	case MsgCancel:
		sel, ok := s.gestures.HandleCancel(s.session, msg.ID)
		err = s.finishDrag(ctx, sel, ok, send)
	case MsgTab:
		err = s.handleTab(ctx, msg.Tab, send)
	case MsgCamera:
		err = s.handleCamera(msg.Op, send)
	default:
		return nil
	}
	var rejected clientError
	if errors.As(err, &rejected) {
		return send(Reply{T: ReplyError, Error: rejected.Error()})
	}
	return err
}

// clientError marks a message the client got wrong.
type clientError struct{ err error }

// Error returns the wrapped message.
func (e clientError) Error() string { return e.err.Error() }

// handleDown resolves the corner and begins the drag.
func (s *Server) handleDown(msg Message, send SendFunc) error {
	p := crop.Point{X: msg.X, Y: msg.Y}
	rect, open := s.session.Rect()
	if !open {
		return clientError{session.ErrNoResultsScreen}
	}

	var corner crop.Corner
	if msg.Corner != "" {
		c, err := crop.ParseCorner(msg.Corner)
		if err != nil {
			return clientError{err}
		}
		corner = c
	} else {
		c, ok := crop.HitCorner(rect, p, s.handleSize)
		if !ok {
			return nil
		}
		corner = c
	}

	s.gestures.HandleDown(s.session, msg.ID, corner, p)
	return send(Reply{T: ReplyRect, Rect: &rect, Corner: corner.String()})
}

// handleMove applies a move and pushes the new rectangle.
func (s *Server) handleMove(msg Message, send SendFunc) error {
	rect, ok := s.gestures.HandleMove(s.session, msg.ID, crop.Point{X: msg.X, Y: msg.Y})
	if !ok {
		return nil
	}
	s.render(rect, false)
	return send(Reply{T: ReplyRect, Rect: &rect})
}

// finishDrag reports the selection and starts the lens search for it.
func (s *Server) finishDrag(ctx context.Context, sel crop.Selection, ok bool, send SendFunc) error {
	if !ok {
		return nil
	}
	rect := sel.Rect()
	s.render(rect, true)
	if err := send(Reply{T: ReplySelection, Selection: &sel}); err != nil {
		return err
	}
	tab, _, _ := s.session.Tab()
	s.startSearch(ctx, sel.Corner, tab, send)
	return nil
}

// handleTab switches tabs and re-runs the search for the last selection.
func (s *Server) handleTab(ctx context.Context, tab string, send SendFunc) error {
	if err := s.session.SetTab(tab); err != nil {
		return clientError{err}
	}
	_, sel, _ := s.session.Tab()
	if sel == nil {
		return send(Reply{T: ReplyResults, Tab: tab})
	}
	s.startSearch(ctx, sel.Corner, tab, send)
	return nil
}

// handleCamera applies a capture screen control.
func (s *Server) handleCamera(op string, send SendFunc) error {
	settings, err := s.session.ApplyCamera(camera.Op(op))
	if err != nil {
		return clientError{err}
	}
	return send(Reply{T: ReplyCamera, Camera: &settings})
}

// startSearch runs the lens search in the background. Only the newest search
// publishes; older ones are superseded.
func (s *Server) startSearch(ctx context.Context, corner crop.Corner, tab string, send SendFunc) {
	if s.searcher == nil {
		return
	}
	photoID, ok := s.session.PhotoID()
	if !ok {
		return
	}
	seq := s.searchSeq.Add(1)
	go func() {
		results, err := s.searcher.Search(ctx, corner, tab)
		if s.searchSeq.Load() != seq {
			return
		}
		if err != nil {
			if ctx.Err() == nil {
				_ = send(Reply{T: ReplyError, Error: err.Error()})
			}
			return
		}
		s.session.SetResults(photoID, results)
		_ = send(Reply{T: ReplyResults, Corner: corner.String(), Tab: tab, Results: results})
	}()
}

// render refreshes the preview, ignoring a missing photo.
func (s *Server) render(rect crop.Rect, final bool) {
	if s.renderer == nil {
		return
	}
	if err := s.renderer.Render(rect, final); err != nil && !errors.Is(err, preview.ErrNoSource) {
		log.Printf("preview: %v", err)
	}
}
