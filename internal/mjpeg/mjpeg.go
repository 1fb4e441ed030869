// Package mjpeg streams the live crop preview to browsers as multipart JPEG.
package mjpeg

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

const boundary = "cropframe"

// keepAliveEvery is how often the last frame is resent to idle clients.
const keepAliveEvery = time.Second

// Stream broadcasts JPEG frames to connected HTTP clients.
type Stream struct {
	mu          sync.RWMutex
	subs        map[chan []byte]struct{}
	last        []byte
	minInterval time.Duration
	lastPush    time.Time
	now         func() time.Time
}

// NewStream creates a stream that broadcasts at most once per minInterval.
func NewStream(minInterval time.Duration) *Stream {
	return &Stream{
		subs:        make(map[chan []byte]struct{}),
		minInterval: minInterval,
		now:         time.Now,
	}
}

// SetNowFunc overrides the clock used for throttling.
func (s *Stream) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.now = fn
	s.mu.Unlock()
}

// SetMinInterval sets the minimum interval between broadcast frames.
func (s *Stream) SetMinInterval(d time.Duration) {
	s.mu.Lock()
	s.minInterval = d
	s.mu.Unlock()
}

// Due reports whether a frame published now would be broadcast.
func (s *Stream) Due() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dueLocked(s.now())
}

// Publish stores jpg as the latest frame and broadcasts it unless throttled.
func (s *Stream) Publish(jpg []byte) {
	s.publish(jpg, false)
}

// PublishNow stores and broadcasts jpg regardless of the throttle.
func (s *Stream) PublishNow(jpg []byte) {
	s.publish(jpg, true)
}

// Last returns a copy of the most recent frame.
func (s *Stream) Last() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]byte(nil), s.last...)
}

// Clear drops the latest frame so new clients wait for the next publish.
func (s *Stream) Clear() {
	s.mu.Lock()
	s.last = nil
	s.mu.Unlock()
}

// Subscribers returns the number of connected clients.
func (s *Stream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// publish implements Publish and PublishNow.
func (s *Stream) publish(jpg []byte, force bool) {
	frame := append([]byte(nil), jpg...)
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.last = frame
	if !force && !s.dueLocked(now) {
		return
	}
	s.lastPush = now
	for ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- frame:
		default:
		}
	}
}

// dueLocked reports whether the throttle window has passed. Callers hold mu.
func (s *Stream) dueLocked(now time.Time) bool {
	return s.minInterval <= 0 || now.Sub(s.lastPush) >= s.minInterval
}

// Handler serves the multipart stream until the client goes away.
func (s *Stream) Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Pragma", "no-cache")

	fl, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch := s.subscribe()
	defer s.unsubscribe(ch)

	keep := time.NewTicker(keepAliveEvery)
	defer keep.Stop()

	for {
		var frame []byte
		select {
		case <-r.Context().Done():
			return
		case frame = <-ch:
		case <-keep.C:
			frame = s.Last()
		}
		if len(frame) == 0 {
			continue
		}
		if err := writePart(w, frame); err != nil {
			return
		}
		fl.Flush()
	}
}

// subscribe registers a client and primes it with the latest frame.
func (s *Stream) subscribe() chan []byte {
	ch := make(chan []byte, 1)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	if len(s.last) > 0 {
		ch <- append([]byte(nil), s.last...)
	}
	s.mu.Unlock()
	return ch
}

// unsubscribe removes a client subscription.
func (s *Stream) unsubscribe(ch chan []byte) {
	s.mu.Lock()
	delete(s.subs, ch)
	close(ch)
	s.mu.Unlock()
}

// writePart writes a single JPEG frame to the multipart response.
func writePart(w http.ResponseWriter, jpg []byte) error {
	header := "\r\n--" + boundary + "\r\n" +
		"Content-Type: image/jpeg\r\n" +
		"Content-Length: " + strconv.Itoa(len(jpg)) + "\r\n\r\n"
	if _, err := w.Write([]byte(header)); err != nil {
		return err
	}
	_, err := w.Write(jpg)
	return err
}
