package solveapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"screensolve/internal/imagedata"
	"screensolve/internal/logging"
	"screensolve/internal/solver"
)

const (
	healthPath = "/health"
	solvePath  = "/screen-solve"

	maxBodyBytes = 32 << 20
)

// Server serves the solve API over HTTP.
type Server struct {
	model   Model
	cache   *lru.Cache[string, solver.Answer]
	timeout time.Duration
	logger  *slog.Logger

	server   *http.Server
	listener net.Listener
}

// Option configures a Server.
type Option func(*Server)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRequestTimeout bounds each model call.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewServer constructs a server around model with an answer cache holding
// cacheSize entries.
func NewServer(model Model, cacheSize int, opts ...Option) (*Server, error) {
	if model == nil {
		return nil, errors.New("model required")
	}
	if cacheSize <= 0 {
		cacheSize = 1
	}
	cache, err := lru.New[string, solver.Answer](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("answer cache: %w", err)
	}
	s := &Server{
		model:   model,
		cache:   cache,
		timeout: 60 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "solve-api")
	return s, nil
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(healthPath, s.handleHealth)
	mux.HandleFunc(solvePath, s.handleSolve)
	return withCORS(mux)
}

// Start listens on bind and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context, bind string) error {
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("solve api listen: %w", err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.timeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("solve api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	s.logger.Info("solve api listening",
		logging.String("address", listener.Addr().String()),
		logging.String("model", s.model.Name()),
	)
	return nil
}

// Addr returns the bound address once Start succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down.
func (s *Server) Stop() {
	if s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, solver.Health{Status: "ok", ModelConfigured: s.model.Configured()})
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req solver.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "request body must be a JSON object with image_data_url")
		return
	}
	if req.ImageDataURL == "" {
		s.writeError(w, http.StatusUnprocessableEntity, "image_data_url is required")
		return
	}
	if !strings.HasPrefix(req.ImageDataURL, "data:image/") {
		s.writeError(w, http.StatusBadRequest, "Invalid image data URL")
		return
	}
	img, err := imagedata.ParseDataURL(req.ImageDataURL)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid image data URL")
		return
	}

	key := digest(img)
	if cached, ok := s.cache.Get(key); ok {
		s.logger.Debug("answer served from cache", logging.String("digest", key[:12]))
		s.writeJSON(w, http.StatusOK, cached)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	started := time.Now()
	raw, err := s.model.Generate(ctx, SystemPrompt, img)
	if err == nil {
		var answer solver.Answer
		answer, err = ParseAnswer(raw)
		if err == nil {
			s.cache.Add(key, answer)
			s.logger.Info("screen solved",
				logging.String("model", s.model.Name()),
				logging.Float64("confidence", answer.Confidence),
				logging.Duration("elapsed", time.Since(started)),
			)
			s.writeJSON(w, http.StatusOK, answer)
			return
		}
	}
	if errors.Is(err, ErrInvalidJSON) {
		logging.WarnWithContext(s.logger, "model returned invalid json", "solve_invalid_json",
			logging.String(logging.FieldErrorHint, "check that the model supports JSON output"),
			logging.Error(err),
		)
		s.writeError(w, http.StatusBadGateway, "Model returned invalid JSON")
		return
	}
	logging.ErrorWithContext(s.logger, "model call failed", "solve_failed",
		logging.String("model", s.model.Name()),
		logging.Error(err),
	)
	s.writeError(w, http.StatusInternalServerError, err.Error())
}

func digest(img imagedata.Image) string {
	sum := sha256.Sum256(img.Data)
	return hex.EncodeToString(sum[:])
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST")
			w.Header().Set("Access-Control-Allow-Headers", "*")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"detail": message})
}
