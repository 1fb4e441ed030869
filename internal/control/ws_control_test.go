package control

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/frudas24/lensdeck/internal/camera"
	"github.com/frudas24/lensdeck/internal/catalog"
	"github.com/frudas24/lensdeck/internal/crop"
	"github.com/frudas24/lensdeck/internal/session"
	"github.com/frudas24/lensdeck/internal/testutil"
)

// newTestSession returns an open session with a 300x300 results screen.
func newTestSession(t *testing.T, password string) *session.Session {
	t.Helper()
	sess, err := session.New(password, crop.Container{Width: 300, Height: 300}, 15)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if err := sess.OpenResults(session.Photo{ID: "p1", Format: "jpeg", Width: 300, Height: 300}); err != nil {
		t.Fatalf("open results: %v", err)
	}
	return sess
}

// steppingClock returns a clock that advances 20ms per call.
func steppingClock() func() time.Time {
	now := time.Unix(100, 0)
	return func() time.Time {
		now = now.Add(20 * time.Millisecond)
		return now
	}
}

// recorder collects replies from Dispatch.
type recorder struct {
	replies chan Reply
}

// newRecorder returns a buffered reply collector.
func newRecorder() *recorder {
	return &recorder{replies: make(chan Reply, 16)}
}

// send implements SendFunc.
func (r *recorder) send(reply Reply) error {
	r.replies <- reply
	return nil
}

// next waits for the next reply.
func (r *recorder) next(t *testing.T) Reply {
	t.Helper()
	select {
	case reply := <-r.replies:
		return reply
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for reply")
	}
	return Reply{}
}

// wsURL converts an httptest URL to a websocket URL.
func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// readReply reads one JSON reply with a deadline.
func readReply(t *testing.T, conn *websocket.Conn) Reply {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var reply Reply
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	return reply
}

// TestWebsocketDragProducesSelectionAndResults verifies the full gesture round trip.
func TestWebsocketDragProducesSelectionAndResults(t *testing.T) {
	sess := newTestSession(t, "")
	fake := &testutil.FakeLens{Results: map[crop.Corner][]catalog.Result{
		crop.BottomRight: {{Type: "product", Title: "Lamp"}},
	}}
	srv := NewServer(sess, fake, fake)
	srv.Gestures().SetNowFunc(steppingClock())
	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(Message{T: MsgDown, ID: 1, Corner: "bottomRight", X: 285, Y: 285}); err != nil {
		t.Fatalf("write down: %v", err)
	}
	reply := readReply(t, conn)
	if reply.T != ReplyRect || reply.Corner != "bottomRight" {
		t.Fatalf("expected rect reply for bottomRight, got %+v", reply)
	}

	if err := conn.WriteJSON(Message{T: MsgMove, ID: 1, X: 235, Y: 265}); err != nil {
		t.Fatalf("write move: %v", err)
	}
	reply = readReply(t, conn)
	if reply.T != ReplyRect || reply.Rect == nil {
		t.Fatalf("expected rect reply, got %+v", reply)
	}
	if reply.Rect.Size.Width != 220 || reply.Rect.Size.Height != 250 {
		t.Fatalf("expected 220x250, got %+v", reply.Rect.Size)
	}

	if err := conn.WriteJSON(Message{T: MsgUp, ID: 1, X: 235, Y: 265}); err != nil {
		t.Fatalf("write up: %v", err)
	}
	reply = readReply(t, conn)
	if reply.T != ReplySelection || reply.Selection == nil {
		t.Fatalf("expected selection reply, got %+v", reply)
	}
	want := crop.Selection{Position: crop.Point{X: 15, Y: 15}, Size: crop.Size{Width: 220, Height: 250}, Corner: crop.BottomRight}
	if *reply.Selection != want {
		t.Fatalf("expected %+v, got %+v", want, *reply.Selection)
	}

	reply = readReply(t, conn)
	if reply.T != ReplyResults || len(reply.Results) != 1 || reply.Results[0].Title != "Lamp" {
		t.Fatalf("expected lamp results, got %+v", reply)
	}
	if reply.Tab != "All" {
		t.Fatalf("expected All tab, got %q", reply.Tab)
	}

	var finals int
	for _, c := range fake.Calls() {
		if c.Name == "Render" && c.Final {
			finals++
		}
	}
	if finals != 1 {
		t.Fatalf("expected one final render, got %d", finals)
	}
}

// TestWebsocketRequiresAuth verifies unauthenticated upgrades are refused.
func TestWebsocketRequiresAuth(t *testing.T) {
	sess := newTestSession(t, "secret")
	ts := httptest.NewServer(NewServer(sess, nil, nil))
	defer ts.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err == nil {
		t.Fatalf("expected dial error")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 response, got %+v", resp)
	}
}

// TestWebsocketSingleConnection verifies a second client is closed.
func TestWebsocketSingleConnection(t *testing.T) {
	sess := newTestSession(t, "")
	ts := httptest.NewServer(NewServer(sess, nil, nil))
	defer ts.Close()

	first, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("dial first: %v", err)
	}
	defer first.Close()
	if err := first.WriteJSON(Message{T: MsgCamera, Op: "flash"}); err != nil {
		t.Fatalf("write camera: %v", err)
	}
	if reply := readReply(t, first); reply.T != ReplyCamera {
		t.Fatalf("expected camera reply, got %+v", reply)
	}

	second, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("dial second: %v", err)
	}
	defer second.Close()
	_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = second.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

// TestDispatchWithoutResultsScreen verifies down is rejected before a photo is open.
func TestDispatchWithoutResultsScreen(t *testing.T) {
	sess, err := session.New("", crop.Container{Width: 300, Height: 300}, 15)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	srv := NewServer(sess, nil, nil)
	rec := newRecorder()
	if err := srv.Dispatch(context.Background(), Message{T: MsgDown, ID: 1, Corner: "topLeft", X: 15, Y: 15}, rec.send); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	reply := rec.next(t)
	if reply.T != ReplyError || reply.Error != session.ErrNoResultsScreen.Error() {
		t.Fatalf("expected no results screen error, got %+v", reply)
	}
	if srv.Gestures().Active() {
		t.Fatalf("expected no active drag")
	}
}

// TestDispatchHitTestsCorner verifies down without a corner picks the handle under the touch.
func TestDispatchHitTestsCorner(t *testing.T) {
	sess := newTestSession(t, "")
	srv := NewServer(sess, nil, nil)
	rec := newRecorder()

	if err := srv.Dispatch(context.Background(), Message{T: MsgDown, ID: 1, X: 150, Y: 150}, rec.send); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if srv.Gestures().Active() {
		t.Fatalf("expected touch in the middle to miss every handle")
	}

	if err := srv.Dispatch(context.Background(), Message{T: MsgDown, ID: 2, X: 20, Y: 280}, rec.send); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	reply := rec.next(t)
	if reply.T != ReplyRect || reply.Corner != "bottomLeft" {
		t.Fatalf("expected bottomLeft hit, got %+v", reply)
	}
}

// TestSetHandleSizeChangesHitArea verifies hit testing follows the configured handle size.
func TestSetHandleSizeChangesHitArea(t *testing.T) {
	sess := newTestSession(t, "")
	srv := NewServer(sess, nil, nil)
	rec := newRecorder()
	touch := Message{T: MsgDown, ID: 1, X: 27, Y: 285}

	srv.SetHandleSize(10)
	if err := srv.Dispatch(context.Background(), touch, rec.send); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if srv.Gestures().Active() {
		t.Fatalf("expected touch outside a 10 unit handle to miss")
	}

	srv.SetHandleSize(0)
	srv.SetHandleSize(30)
	if err := srv.Dispatch(context.Background(), touch, rec.send); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if reply := rec.next(t); reply.T != ReplyRect || reply.Corner != "bottomLeft" {
		t.Fatalf("expected bottomLeft hit with 30 unit handle, got %+v", reply)
	}
}

// TestDispatchBadInput verifies client mistakes become error replies.
func TestDispatchBadInput(t *testing.T) {
	sess := newTestSession(t, "")
	srv := NewServer(sess, nil, nil)
	rec := newRecorder()
	ctx := context.Background()

	cases := []Message{
		{T: MsgDown, ID: 1, Corner: "middle", X: 10, Y: 10},
		{T: MsgTab, Tab: "Videos"},
		{T: MsgCamera, Op: "shutter"},
	}
	for _, msg := range cases {
		if err := srv.Dispatch(ctx, msg, rec.send); err != nil {
			t.Fatalf("dispatch %+v: %v", msg, err)
		}
		if reply := rec.next(t); reply.T != ReplyError || reply.Error == "" {
			t.Fatalf("expected error reply for %+v, got %+v", msg, reply)
		}
	}

	if err := srv.Dispatch(ctx, Message{T: "bogus"}, rec.send); err != nil {
		t.Fatalf("dispatch unknown: %v", err)
	}
	select {
	case reply := <-rec.replies:
		t.Fatalf("expected unknown type to be ignored, got %+v", reply)
	default:
	}
}

// TestDispatchCamera verifies camera ops return the new settings.
func TestDispatchCamera(t *testing.T) {
	sess := newTestSession(t, "")
	srv := NewServer(sess, nil, nil)
	rec := newRecorder()

	if err := srv.Dispatch(context.Background(), Message{T: MsgCamera, Op: "flip"}, rec.send); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	reply := rec.next(t)
	if reply.T != ReplyCamera || reply.Camera == nil || reply.Camera.Facing != camera.FacingFront {
		t.Fatalf("expected front camera, got %+v", reply)
	}
}

// TestDispatchTabResearchesLastSelection verifies a tab switch reruns the search.
func TestDispatchTabResearchesLastSelection(t *testing.T) {
	sess := newTestSession(t, "")
	fake := &testutil.FakeLens{}
	srv := NewServer(sess, fake, nil)
	rec := newRecorder()
	ctx := context.Background()

	if err := srv.Dispatch(ctx, Message{T: MsgTab, Tab: "Products"}, rec.send); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if reply := rec.next(t); reply.T != ReplyResults || reply.Tab != "Products" || len(reply.Results) != 0 {
		t.Fatalf("expected empty results without a selection, got %+v", reply)
	}

	if err := srv.Dispatch(ctx, Message{T: MsgDown, ID: 1, Corner: "topRight", X: 285, Y: 15}, rec.send); err != nil {
		t.Fatalf("dispatch down: %v", err)
	}
	rec.next(t)
	if err := srv.Dispatch(ctx, Message{T: MsgCancel, ID: 1}, rec.send); err != nil {
		t.Fatalf("dispatch cancel: %v", err)
	}
	if reply := rec.next(t); reply.T != ReplySelection || reply.Selection.Corner != crop.TopRight {
		t.Fatalf("expected topRight selection, got %+v", reply)
	}
	if reply := rec.next(t); reply.T != ReplyResults || reply.Tab != "Products" {
		t.Fatalf("expected Products results, got %+v", reply)
	}

	if err := srv.Dispatch(ctx, Message{T: MsgTab, Tab: "Visual matches"}, rec.send); err != nil {
		t.Fatalf("dispatch tab: %v", err)
	}
	if reply := rec.next(t); reply.T != ReplyResults || reply.Tab != "Visual matches" || reply.Corner != "topRight" {
		t.Fatalf("expected Visual matches results for topRight, got %+v", reply)
	}
}

// TestSupersededSearchIsDropped verifies only the newest search publishes.
func TestSupersededSearchIsDropped(t *testing.T) {
	sess := newTestSession(t, "")
	block := make(chan struct{})
	fake := &testutil.FakeLens{Block: block}
	srv := NewServer(sess, fake, nil)
	rec := newRecorder()
	ctx := context.Background()

	if err := srv.Dispatch(ctx, Message{T: MsgDown, ID: 1, Corner: "topLeft", X: 15, Y: 15}, rec.send); err != nil {
		t.Fatalf("dispatch down: %v", err)
	}
	rec.next(t)
	if err := srv.Dispatch(ctx, Message{T: MsgUp, ID: 1, X: 15, Y: 15}, rec.send); err != nil {
		t.Fatalf("dispatch up: %v", err)
	}
	rec.next(t)

	srv.ResetGestures()
	close(block)

	select {
	case reply := <-rec.replies:
		t.Fatalf("expected superseded search to stay silent, got %+v", reply)
	case <-time.After(100 * time.Millisecond):
	}
}

// TestSearchErrorIsReported verifies search failures reach the client.
func TestSearchErrorIsReported(t *testing.T) {
	sess := newTestSession(t, "")
	fake := &testutil.FakeLens{Err: errors.New("lens offline")}
	srv := NewServer(sess, fake, nil)
	rec := newRecorder()
	ctx := context.Background()

	if err := srv.Dispatch(ctx, Message{T: MsgDown, ID: 1, Corner: "topLeft", X: 15, Y: 15}, rec.send); err != nil {
		t.Fatalf("dispatch down: %v", err)
	}
	rec.next(t)
	if err := srv.Dispatch(ctx, Message{T: MsgCancel, ID: 1}, rec.send); err != nil {
		t.Fatalf("dispatch cancel: %v", err)
	}
	rec.next(t)
	if reply := rec.next(t); reply.T != ReplyError || reply.Error != "lens offline" {
		t.Fatalf("expected lens offline error, got %+v", reply)
	}
}

// TestHandleChannelMessage verifies raw channel payloads use the same dispatch.
func TestHandleChannelMessage(t *testing.T) {
	sess := newTestSession(t, "")
	srv := NewServer(sess, nil, nil)
	out := make(chan []byte, 1)
	send := func(b []byte) error {
		out <- b
		return nil
	}
	if err := srv.HandleChannelMessage(context.Background(), []byte(`{"t":"camera","op":"zoomIn"}`), send); err != nil {
		t.Fatalf("handle: %v", err)
	}
	got := string(<-out)
	if !strings.Contains(got, `"t":"camera"`) || !strings.Contains(got, `"zoom":0.1`) {
		t.Fatalf("expected camera reply with zoom 0.1, got %s", got)
	}
	if err := srv.HandleChannelMessage(context.Background(), []byte(`{`), send); err == nil {
		t.Fatalf("expected decode error")
	}
}
