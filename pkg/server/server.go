// Package server exposes the roast call over HTTP so clients never hold the
// model credentials. It forwards the already compressed image untouched.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/menta2k/plate-roaster/internal/log"
	"github.com/menta2k/plate-roaster/pkg/types"
)

// Roaster roasts an image that is already base64 encoded
type Roaster interface {
	RoastBase64(ctx context.Context, imgB64, mimeType string) (types.Roast, error)
}

// Config holds the listener and request limits
type Config struct {
	Addr              string
	RequestsPerMinute int
	Burst             int
	MaxBodyBytes      int64
}

// DefaultConfig listens on :8888 and allows 30 roasts a minute
func DefaultConfig() Config {
	return Config{
		Addr:              ":8888",
		RequestsPerMinute: 30,
		Burst:             5,
		MaxBodyBytes:      10 << 20,
	}
}

// Server is the roast HTTP function
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	roaster    Roaster
	limiter    *rate.Limiter
	config     Config
}

// NewServer creates a server backed by roaster
func NewServer(roaster Roaster, config Config) *Server {
	limit := rate.Inf
	if config.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(config.RequestsPerMinute))
	}
	burst := config.Burst
	if burst < 1 {
		burst = 1
	}

	s := &Server{
		mux:     http.NewServeMux(),
		roaster: roaster,
		limiter: rate.NewLimiter(limit, burst),
		config:  config,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/roast", s.enableCORS(s.handleRoast))
	s.mux.HandleFunc("/health", s.enableCORS(s.handleHealth))
}

// enableCORS adds CORS headers to the handler.
func (s *Server) enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[server] Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleRoast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		log.Printf("[server] Method not allowed: %s", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "Too many requests, please try again shortly")
		return
	}

	if s.config.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	}

	var req types.RoastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "Image too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.ImageBase64 == "" || req.MimeType == "" {
		writeError(w, http.StatusBadRequest, "Missing image data")
		return
	}

	log.Printf("[server] Roast requested: %s, %d bytes (base64)", req.MimeType, len(req.ImageBase64))

	roast, err := s.roaster.RoastBase64(r.Context(), req.ImageBase64, req.MimeType)
	if err != nil {
		log.Printf("[server] Error generating roast: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, roast)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start starts the server and blocks until it stops.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("[server] Listening on %s", s.config.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
