package app

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/frudas24/lensdeck/internal/camera"
	"github.com/frudas24/lensdeck/internal/catalog"
	"github.com/frudas24/lensdeck/internal/crop"
	"github.com/frudas24/lensdeck/internal/lens"
	"github.com/frudas24/lensdeck/internal/photo"
	"github.com/frudas24/lensdeck/internal/search"
	"github.com/frudas24/lensdeck/internal/session"
	"github.com/frudas24/lensdeck/internal/web"
)

// RegisterRoutes wires API and static handlers onto the router.
func (a *App) RegisterRoutes(r *mux.Router, staticDir string) {
	if staticDir == "" {
		staticDir = filepath.Join("internal", "web", "static")
	}

	r.HandleFunc("/login", a.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/logout", a.handleLogout).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", a.handleState).Methods(http.MethodGet)
	api.HandleFunc("/home", a.handleHome).Methods(http.MethodGet)
	api.HandleFunc("/suggest", a.handleSuggest).Methods(http.MethodGet)
	api.HandleFunc("/search", a.handleSearch).Methods(http.MethodPost)
	api.HandleFunc("/photo", a.handleUploadPhoto).Methods(http.MethodPost)
	api.HandleFunc("/photo", a.handleClosePhoto).Methods(http.MethodDelete)
	api.HandleFunc("/photo/crop", a.handleCropImage).Methods(http.MethodGet)
	api.HandleFunc("/results", a.handleResults).Methods(http.MethodGet)
	api.HandleFunc("/camera", a.handleCamera).Methods(http.MethodPost)

	r.Handle("/ws/signal", a.Signaling())
	r.Handle("/ws/control", a.Control())
	r.HandleFunc("/favicon.ico", handleFavicon)
	if stream := a.PreviewStream(); stream != nil {
		r.HandleFunc("/mjpeg/crop", a.withAuth(stream.Handler)).Methods(http.MethodGet)
	}

	r.PathPrefix("/").Handler(staticFileServer(staticDir))
}

type loginRequest struct {
	Password string `json:"password"`
}

type stateResponse struct {
	session.Snapshot
	Tabs           []string `json:"tabs"`
	PreviewViewers int      `json:"previewViewers"`
}

type searchRequest struct {
	Query string `json:"query"`
}

type searchResponse struct {
	Query  string   `json:"query"`
	URL    string   `json:"url"`
	Recent []string `json:"recent"`
}

type resultsResponse struct {
	Corner  string           `json:"corner"`
	Tab     string           `json:"tab"`
	Results []catalog.Result `json:"results"`
}

type cameraRequest struct {
	Op string `json:"op"`
}

// handleLogin authenticates the session.
func (a *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if !a.session.Authenticate(req.Password) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleLogout clears authentication state.
func (a *App) handleLogout(w http.ResponseWriter, _ *http.Request) {
	a.session.Logout()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleState returns the current session snapshot.
func (a *App) handleState(w http.ResponseWriter, _ *http.Request) {
	if !a.requireAuth(w) {
		return
	}
	resp := stateResponse{Snapshot: a.session.Snapshot(), Tabs: lens.Tabs()}
	if stream := a.PreviewStream(); stream != nil {
		resp.PreviewViewers = stream.Subscribers()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHome returns the home screen lists.
func (a *App) handleHome(w http.ResponseWriter, _ *http.Request) {
	if !a.requireAuth(w) {
		return
	}
	writeJSON(w, http.StatusOK, a.search.Home())
}

// handleSuggest records the search text and returns matching suggestions.
func (a *App) handleSuggest(w http.ResponseWriter, r *http.Request) {
	if !a.requireAuth(w) {
		return
	}
	text := r.URL.Query().Get("q")
	a.session.SetSearchText(text)
	writeJSON(w, http.StatusOK, a.search.Suggest(text))
}

// handleSearch records a submitted query and returns its search URL.
func (a *App) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !a.requireAuth(w) {
		return
	}
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}
	a.session.SetSearchText(query)
	if err := a.history.Add(query); err != nil {
		log.Printf("history: %v", err)
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Query:  query,
		URL:    search.QueryURL(query),
		Recent: a.history.Recent(),
	})
}

// handleUploadPhoto decodes the captured photo and opens the results screen.
func (a *App) handleUploadPhoto(w http.ResponseWriter, r *http.Request) {
	if !a.requireAuth(w) {
		return
	}
	limit := a.cfg.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "photo too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("photo")
	if err != nil {
		http.Error(w, "photo is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	img, format, err := photo.Decode(file, a.cfg.MaxUploadPixels)
	switch {
	case errors.Is(err, photo.ErrTooManyPixels):
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
		return
	}
	fitted := photo.FitContainer(img, a.session.Container())
	b := img.Bounds()
	p := session.Photo{
		ID:         uuid.NewString(),
		Format:     format,
		Width:      b.Dx(),
		Height:     b.Dy(),
		UploadedAt: time.Now().UTC(),
	}
	if err := a.openPhoto(p, fitted); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, a.session.Snapshot().Results)
}

// handleClosePhoto leaves the results screen.
func (a *App) handleClosePhoto(w http.ResponseWriter, _ *http.Request) {
	if !a.requireAuth(w) {
		return
	}
	a.closePhoto()
	w.WriteHeader(http.StatusNoContent)
}

// handleCropImage returns the current crop of the photo.
func (a *App) handleCropImage(w http.ResponseWriter, r *http.Request) {
	if !a.requireAuth(w) {
		return
	}
	format, err := photo.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	img, rect, ok := a.currentPhoto()
	if !ok {
		http.Error(w, session.ErrNoResultsScreen.Error(), http.StatusNotFound)
		return
	}
	cropped, err := photo.Crop(img, a.session.Container(), rect)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Cache-Control", "no-store")
	if err := photo.Encode(w, cropped, format, a.cfg.MJPEGQuality); err != nil {
		log.Printf("crop: encode %s: %v", format, err)
	}
}

// handleResults looks up lens results for a corner and tab.
func (a *App) handleResults(w http.ResponseWriter, r *http.Request) {
	if !a.requireAuth(w) {
		return
	}
	q := r.URL.Query()
	corner, err := crop.ParseCorner(q.Get("corner"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	tab := q.Get("tab")
	if tab == "" {
		tab = lens.TabAll
	}
	results, err := a.lens.Search(r.Context(), corner, tab)
	switch {
	case errors.Is(err, lens.ErrUnknownTab):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, "lens search unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, resultsResponse{Corner: corner.String(), Tab: tab, Results: results})
}

// handleCamera applies a capture screen control.
func (a *App) handleCamera(w http.ResponseWriter, r *http.Request) {
	if !a.requireAuth(w) {
		return
	}
	var req cameraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	settings, err := a.session.ApplyCamera(camera.Op(req.Op))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// requireAuth returns false and writes an error if the session is not authenticated.
func (a *App) requireAuth(w http.ResponseWriter) bool {
	if !a.session.IsAuthenticated() {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

// withAuth wraps a handler with requireAuth.
func (a *App) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.requireAuth(w) {
			return
		}
		next(w, r)
	}
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// staticFileServer returns a handler for static assets, preferring disk then embed.
func staticFileServer(staticDir string) http.Handler {
	if staticDir != "" {
		if info, err := os.Stat(staticDir); err == nil && info.IsDir() {
			return http.FileServer(http.Dir(staticDir))
		}
	}

	embedded, err := web.StaticFS()
	if err != nil {
		log.Printf("static assets unavailable: %v", err)
		return http.NotFoundHandler()
	}
	return http.FileServer(http.FS(embedded))
}

// handleFavicon avoids noisy 404s for the default browser request.
func handleFavicon(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
