package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"

	"github.com/frudas24/lensdeck/internal/app"
	"github.com/frudas24/lensdeck/internal/catalog"
	"github.com/frudas24/lensdeck/internal/config"
	"github.com/frudas24/lensdeck/internal/crop"
	"github.com/frudas24/lensdeck/internal/history"
	"github.com/frudas24/lensdeck/internal/session"
	"github.com/frudas24/lensdeck/internal/signaling"
	"github.com/frudas24/lensdeck/internal/webrtc"
)

// run wires the application and blocks until shutdown.
func run(debug bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	webrtc.SetDebugLogging(debug)
	if debug {
		log.Printf("debug: enabled")
	}
	logStartup(cfg)

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}
	logCatalogStatus(cfg.CatalogPath, cat)

	hist, err := history.Open(cfg.HistoryPath, cfg.HistoryLimit, cat.Recent)
	if err != nil {
		return err
	}

	container := crop.Container{Width: cfg.ContainerWidth, Height: cfg.ContainerHeight}
	sess, err := session.New(cfg.UIPassword, container, cfg.CropInset)
	if err != nil {
		return err
	}

	peers, err := webrtc.NewPeers()
	if err != nil {
		return err
	}

	policy := signaling.ViewerReject
	if cfg.ViewerPolicy == "replace" {
		policy = signaling.ViewerReplace
	}
	appInstance, err := app.New(cfg, sess, cat, hist, peers, policy)
	if err != nil {
		return err
	}
	defer func() {
		if err := appInstance.Stop(); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	router := mux.NewRouter()
	appInstance.RegisterRoutes(router, "")
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// logFatal prints and exits for startup failures.
func logFatal(err error) {
	log.Printf("fatal: %v", err)
	os.Exit(1)
}

// logStartup prints startup checks and connection info.
func logStartup(cfg config.Config) {
	log.Printf("LensDeck starting")
	logEnvStatus(cfg)
	log.Printf("crop container: %gx%g inset %g", cfg.ContainerWidth, cfg.ContainerHeight, cfg.CropInset)
	log.Printf("history: %s (limit %d)", cfg.HistoryPath, cfg.HistoryLimit)
	if cfg.MJPEGEnabled {
		log.Printf("mjpeg preview: every %dms quality %d", cfg.MJPEGIntervalMs, cfg.MJPEGQuality)
	} else {
		log.Printf("mjpeg preview: disabled")
	}
	logListenStatus(cfg.ListenAddr)
}

// logEnvStatus reports whether a .env file was found and the password mode.
func logEnvStatus(cfg config.Config) {
	envPath := filepath.Join(cfg.DataDir, ".env")
	if fileExists(envPath) {
		log.Printf("env check: ok (%s)", envPath)
	} else {
		log.Printf("env check: missing (%s)", envPath)
	}
	if cfg.PasswordMode {
		log.Printf("env UI_PASSWORD: set")
	} else {
		log.Printf("env PASSWORD_MODE: disabled (dev mode)")
	}
}

// logCatalogStatus reports where the result tables came from.
func logCatalogStatus(path string, cat catalog.Catalog) {
	source := "embedded"
	if path != "" && fileExists(path) {
		source = path
	}
	log.Printf("catalog: %s (%d suggestion keys, %d corners)", source, len(cat.Suggestions), len(cat.Lens))
}

// logListenStatus reports the listen address and a local URL helper.
func logListenStatus(addr string) {
	log.Printf("listen addr: %s", addr)
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	log.Printf("local url: http://%s", net.JoinHostPort(host, port))
}

// fileExists reports whether a path exists and is a file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
