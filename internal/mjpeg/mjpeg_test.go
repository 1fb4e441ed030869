package mjpeg

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"testing"
	"time"
)

// threadSafeRecorder is a minimal http.ResponseWriter + http.Flusher that is safe to use across goroutines.
type threadSafeRecorder struct {
	mu     sync.Mutex
	header http.Header
	buf    bytes.Buffer
}

// Header returns the response headers.
func (r *threadSafeRecorder) Header() http.Header {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.header == nil {
		r.header = make(http.Header)
	}
	return r.header
}

// Write appends bytes to the response body.
func (r *threadSafeRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Write(p)
}

// WriteHeader is a no-op; the tests only inspect the body.
func (r *threadSafeRecorder) WriteHeader(int) {}

// Flush implements http.Flusher.
func (r *threadSafeRecorder) Flush() {}

// bodyBytes returns a copy of the current body.
func (r *threadSafeRecorder) bodyBytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.buf.Bytes()...)
}

// TestHandler_WritesLastFrame verifies a new client receives the latest frame as a multipart part.
func TestHandler_WritesLastFrame(t *testing.T) {
	t.Parallel()

	s := NewStream(0)
	frame := []byte("\xff\xd8crop\xff\xd9")
	s.Publish(frame)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://example/mjpeg/crop", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	rec := &threadSafeRecorder{}
	done := make(chan struct{})
	go func() {
		s.Handler(rec, req)
		close(done)
	}()

	deadline := time.After(500 * time.Millisecond)
	for !bytes.Contains(rec.bodyBytes(), frame) {
		select {
		case <-deadline:
			cancel()
			<-done
			t.Fatalf("timed out waiting for frame, body=%q", rec.bodyBytes())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	if ct := rec.Header().Get("Content-Type"); ct != "multipart/x-mixed-replace; boundary="+boundary {
		t.Fatalf("unexpected content-type: %q", ct)
	}
	body := rec.bodyBytes()
	if !bytes.Contains(body, []byte("--"+boundary)) || !bytes.Contains(body, []byte("Content-Length: 8")) {
		t.Fatalf("expected part headers, body=%q", body)
	}
	if s.Subscribers() != 0 {
		t.Fatalf("expected subscriber removed after disconnect")
	}
}

// TestPublish_Throttle verifies throttled frames update Last but are not broadcast.
func TestPublish_Throttle(t *testing.T) {
	now := time.Unix(100, 0)
	s := NewStream(100 * time.Millisecond)
	s.SetNowFunc(func() time.Time { return now })
	ch := s.subscribe()
	defer s.unsubscribe(ch)

	s.Publish([]byte("a"))
	if got := <-ch; string(got) != "a" {
		t.Fatalf("expected first frame broadcast, got %q", got)
	}

	now = now.Add(10 * time.Millisecond)
	if s.Due() {
		t.Fatalf("expected throttle window to be active")
	}
	s.Publish([]byte("b"))
	select {
	case got := <-ch:
		t.Fatalf("expected no broadcast, got %q", got)
	default:
	}
	if string(s.Last()) != "b" {
		t.Fatalf("expected last frame b, got %q", s.Last())
	}

	s.PublishNow([]byte("c"))
	if got := <-ch; string(got) != "c" {
		t.Fatalf("expected forced frame broadcast, got %q", got)
	}
}

// TestClear_DropsLastFrame verifies Clear empties the primed frame.
func TestClear_DropsLastFrame(t *testing.T) {
	s := NewStream(0)
	s.Publish([]byte("a"))
	s.Clear()
	if len(s.Last()) != 0 {
		t.Fatalf("expected no last frame")
	}
	ch := s.subscribe()
	defer s.unsubscribe(ch)
	select {
	case got := <-ch:
		t.Fatalf("expected no primed frame, got %q", got)
	default:
	}
}

// TestPublish_Concurrent churns publishers and subscribers to catch races under -race.
func TestPublish_Concurrent(t *testing.T) {
	t.Parallel()

	s := NewStream(0)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 300; j++ {
				s.Publish([]byte{byte(j)})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ch := s.subscribe()
				select {
				case <-ch:
				default:
				}
				s.unsubscribe(ch)
			}
		}()
	}
	wg.Wait()
}
