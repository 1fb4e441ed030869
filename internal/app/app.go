// Package app wires HTTP, signaling, and screen state together.
package app

import (
	"errors"
	"image"
	"sync"

	"github.com/frudas24/lensdeck/internal/catalog"
	"github.com/frudas24/lensdeck/internal/config"
	"github.com/frudas24/lensdeck/internal/control"
	"github.com/frudas24/lensdeck/internal/crop"
	"github.com/frudas24/lensdeck/internal/history"
	"github.com/frudas24/lensdeck/internal/lens"
	"github.com/frudas24/lensdeck/internal/mjpeg"
	"github.com/frudas24/lensdeck/internal/preview"
	"github.com/frudas24/lensdeck/internal/search"
	"github.com/frudas24/lensdeck/internal/session"
	"github.com/frudas24/lensdeck/internal/signaling"
	"github.com/frudas24/lensdeck/internal/webrtc"
)

// App coordinates the HTTP API, websocket servers, and the captured photo.
type App struct {
	mu        sync.Mutex
	cfg       config.Config
	session   *session.Session
	catalog   catalog.Catalog
	history   *history.Store
	search    *search.Service
	lens      *lens.Searcher
	renderer  *preview.Renderer
	peers     *webrtc.Peers
	signaling *signaling.Server
	control   *control.Server
	photo     image.Image
}

// New creates a new application with its dependencies wired.
func New(cfg config.Config, sess *session.Session, cat catalog.Catalog, hist *history.Store, peers *webrtc.Peers, policy signaling.ViewerPolicy) (*App, error) {
	if sess == nil {
		return nil, errors.New("session is required")
	}
	if hist == nil {
		return nil, errors.New("history store is required")
	}
	if peers == nil {
		return nil, errors.New("webrtc peers are required")
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}

	app := &App{
		cfg:     cfg,
		session: sess,
		catalog: cat,
		history: hist,
		search:  search.NewService(cat, hist),
		lens:    lens.NewSearcher(cat, cfg.LensDelay()),
		peers:   peers,
	}

	if cfg.MJPEGEnabled {
		app.renderer = preview.NewRenderer(mjpeg.NewStream(cfg.MJPEGInterval()), cfg.MJPEGQuality)
		app.control = control.NewServer(sess, app.lens, app.renderer)
	} else {
		app.control = control.NewServer(sess, app.lens, nil)
	}
	app.control.SetHandleSize(cfg.HandleSize)
	app.signaling = signaling.NewServer(peers, app.control, policy, sess.IsAuthenticated)

	return app, nil
}

// Stop closes the active peer and drops the photo.
func (a *App) Stop() error {
	a.peers.ClosePeer()
	a.closePhoto()
	return nil
}

// openPhoto installs a fitted photo and opens the results screen for it.
func (a *App) openPhoto(p session.Photo, fitted image.Image) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.session.OpenResults(p); err != nil {
		return err
	}
	a.control.ResetGestures()
	a.photo = fitted
	if a.renderer != nil {
		a.renderer.Attach(fitted, a.session.Container())
		if rect, ok := a.session.Rect(); ok {
			_ = a.renderer.Render(rect, true)
		}
	}
	return nil
}

// closePhoto tears down the results screen.
func (a *App) closePhoto() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.session.CloseResults()
	a.control.ResetGestures()
	a.photo = nil
	if a.renderer != nil {
		a.renderer.Detach()
	}
}

// currentPhoto returns the fitted photo and the live crop rectangle.
func (a *App) currentPhoto() (image.Image, crop.Rect, bool) {
	a.mu.Lock()
	img := a.photo
	a.mu.Unlock()
	if img == nil {
		return nil, crop.Rect{}, false
	}
	rect, ok := a.session.Rect()
	if !ok {
		return nil, crop.Rect{}, false
	}
	return img, rect, true
}

// PreviewStream returns the crop preview stream when enabled.
func (a *App) PreviewStream() *mjpeg.Stream {
	if a.renderer == nil {
		return nil
	}
	return a.renderer.Stream()
}

// Signaling returns the signaling websocket handler.
func (a *App) Signaling() *signaling.Server {
	return a.signaling
}

// Control returns the control websocket handler.
func (a *App) Control() *control.Server {
	return a.control
}
