// Package session holds the per-viewer screen state.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/frudas24/lensdeck/internal/camera"
	"github.com/frudas24/lensdeck/internal/catalog"
	"github.com/frudas24/lensdeck/internal/crop"
	"github.com/frudas24/lensdeck/internal/lens"
)

// ErrNoResultsScreen is returned by results-screen operations when no photo is open.
var ErrNoResultsScreen = errors.New("results screen not open")

// Photo describes the captured image shown on the results screen.
type Photo struct {
	ID         string    `json:"id"`
	Format     string    `json:"format"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// ResultsSnapshot is a read-only view of the results screen.
type ResultsSnapshot struct {
	Photo     Photo            `json:"photo"`
	Container crop.Container   `json:"container"`
	Rect      crop.Rect        `json:"rect"`
	Dragging  bool             `json:"dragging"`
	Selection *crop.Selection  `json:"selection,omitempty"`
	Tab       string           `json:"tab"`
	Results   []catalog.Result `json:"results"`
}

// Snapshot represents a read-only view of the current session state.
type Snapshot struct {
	Authenticated bool             `json:"authenticated"`
	SearchText    string           `json:"searchText"`
	Camera        camera.Settings  `json:"camera"`
	Results       *ResultsSnapshot `json:"results,omitempty"`
}

// resultsScreen is created when a photo is opened and torn down on close.
type resultsScreen struct {
	photo     Photo
	ctrl      *crop.Controller
	selection *crop.Selection
	tab       string
	results   []catalog.Result
}

// Session holds runtime state for the active viewer.
type Session struct {
	mu            sync.RWMutex
	passwordHash  []byte
	authenticated bool
	container     crop.Container
	inset         float64
	searchText    string
	camera        camera.Settings
	results       *resultsScreen
}

// New returns a session. An empty password disables authentication. The
// container and inset are checked by building a throwaway controller.
func New(password string, container crop.Container, inset float64) (*Session, error) {
	if _, err := crop.New(crop.Config{Container: container, Initial: crop.DefaultRect(container, inset)}); err != nil {
		return nil, err
	}
	s := &Session{
		container: container,
		inset:     inset,
		camera:    camera.Default(),
	}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		s.passwordHash = hash
	}
	return s, nil
}

// Authenticate validates the password and marks the session as authenticated.
func (s *Session) Authenticate(pass string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.passwordHash == nil {
		return true
	}
	s.authenticated = pass != "" && bcrypt.CompareHashAndPassword(s.passwordHash, []byte(pass)) == nil
	return s.authenticated
}

// Logout clears authentication state.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = false
}

// IsAuthenticated reports whether the session is authenticated. Sessions
// without a password are always authenticated.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.passwordHash == nil || s.authenticated
}

// Container returns the crop container used for the results screen.
func (s *Session) Container() crop.Container {
	return s.container
}

// SetSearchText stores the home screen search input.
func (s *Session) SetSearchText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchText = text
}

// ApplyCamera runs a capture screen control and returns the new settings.
func (s *Session) ApplyCamera(op camera.Op) (camera.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := s.camera.Apply(op)
	if err != nil {
		return s.camera, err
	}
	s.camera = next
	return next, nil
}

// OpenResults replaces any open results screen with a fresh one for p.
func (s *Session) OpenResults(p Photo) error {
	screen := &resultsScreen{photo: p, tab: lens.TabAll}
	ctrl, err := crop.New(crop.Config{
		Container: s.container,
		Initial:   crop.DefaultRect(s.container, s.inset),
		Listener: crop.ListenerFunc(func(sel crop.Selection) {
			screen.selection = &sel
		}),
	})
	if err != nil {
		return err
	}
	screen.ctrl = ctrl

	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = screen
	return nil
}

// CloseResults tears down the results screen and its drag state.
func (s *Session) CloseResults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = nil
}

// PhotoID returns the open photo id.
func (s *Session) PhotoID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.results == nil {
		return "", false
	}
	return s.results.photo.ID, true
}

// Rect returns the current crop rectangle.
func (s *Session) Rect() (crop.Rect, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.results == nil {
		return crop.Rect{}, false
	}
	return s.results.ctrl.Rect(), true
}

// BeginDrag starts a corner drag on the open results screen.
func (s *Session) BeginDrag(corner crop.Corner, touch crop.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.results == nil {
		return
	}
	s.results.ctrl.BeginDrag(corner, touch)
}

// UpdateDrag moves the active drag. It reports false without a drag.
func (s *Session) UpdateDrag(touch crop.Point) (crop.Rect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.results == nil {
		return crop.Rect{}, false
	}
	return s.results.ctrl.UpdateDrag(touch)
}

// EndDrag finalizes the active drag. It reports false without a drag.
func (s *Session) EndDrag() (crop.Selection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.results == nil {
		return crop.Selection{}, false
	}
	return s.results.ctrl.EndDrag()
}

// SetTab selects the results tab.
func (s *Session) SetTab(tab string) error {
	if !lens.ValidTab(tab) {
		return fmt.Errorf("%w: %q", lens.ErrUnknownTab, tab)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.results == nil {
		return ErrNoResultsScreen
	}
	s.results.tab = tab
	return nil
}

// Tab returns the active results tab and the last selected corner.
func (s *Session) Tab() (string, *crop.Selection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.results == nil {
		return "", nil, false
	}
	var sel *crop.Selection
	if s.results.selection != nil {
		cp := *s.results.selection
		sel = &cp
	}
	return s.results.tab, sel, true
}

// SetResults stores results for photoID. Results for a photo that is no
// longer open are dropped.
func (s *Session) SetResults(photoID string, results []catalog.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.results == nil || s.results.photo.ID != photoID {
		return
	}
	s.results.results = append([]catalog.Result(nil), results...)
}

// Snapshot returns a copy of the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Authenticated: s.passwordHash == nil || s.authenticated,
		SearchText:    s.searchText,
		Camera:        s.camera,
	}
	if r := s.results; r != nil {
		rs := &ResultsSnapshot{
			Photo:     r.photo,
			Container: r.ctrl.Container(),
			Rect:      r.ctrl.Rect(),
			Dragging:  r.ctrl.Dragging(),
			Tab:       r.tab,
			Results:   append([]catalog.Result{}, r.results...),
		}
		if r.selection != nil {
			sel := *r.selection
			rs.Selection = &sel
		}
		snap.Results = rs
	}
	return snap
}
