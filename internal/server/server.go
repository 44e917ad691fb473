package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/cyclelens/internal/cache"
	"github.com/sanspareilsmyn/cyclelens/internal/config"
	"github.com/sanspareilsmyn/cyclelens/internal/cycle"
	"github.com/sanspareilsmyn/cyclelens/internal/series"
)

// SessionHeader carries the session id in both directions. Requests without
// one are assigned a fresh id.
const SessionHeader = "X-Session-ID"

const shutdownTimeout = 10 * time.Second

type Server struct {
	cfg       config.ServerConfig
	halfLife  time.Duration
	sessions  *cache.Sessions
	fallback  Fallback
	lora      LoRaReporter
	logger    *zap.Logger
	router    *mux.Router
	handler   http.Handler
	startedAt time.Time
}

// Fallback serves the last record set published elsewhere when a session
// has nothing computed yet and computing fails.
type Fallback interface {
	Latest(ctx context.Context) ([]byte, error)
}

// Option customises a Server.
type Option func(*Server)

// WithFallback serves f's document on cold-start compute failures.
func WithFallback(f Fallback) Option {
	return func(s *Server) { s.fallback = f }
}

// WithLoRa exposes the LoRa success report at /api/lora/success.
func WithLoRa(r LoRaReporter) Option {
	return func(s *Server) { s.lora = r }
}

func New(cfg config.ServerConfig, cycles config.CyclesConfig, sessions *cache.Sessions, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		halfLife:  cycles.RecencyHalfLife,
		sessions:  sessions,
		logger:    logger,
		router:    mux.NewRouter(),
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()

	accessLog := zap.NewStdLog(logger.Named("access")).Writer()
	s.handler = handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(logger.Named("panic"))),
	)(handlers.CompressHandler(handlers.LoggingHandler(accessLog, s.router)))
	return s
}

func (s *Server) routes() {
	s.router.Use(instrument)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/cycles", s.handleCycles).Methods(http.MethodGet)
	api.HandleFunc("/cycles/columns", s.handleColumns).Methods(http.MethodGet)
	api.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/session", s.handleDropSession).Methods(http.MethodDelete)
	api.HandleFunc("/econ/rebate", s.handleRebate).Methods(http.MethodGet, http.MethodPost)
	if s.lora != nil {
		api.HandleFunc("/lora/success", s.handleLoRaSuccess).Methods(http.MethodGet)
	}
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%w: %w", ErrServerFailed, err)
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%w: shutdown: %w", ErrServerFailed, err)
	}
	return nil
}

// sessionCache resolves the caller's session, issuing a new id when absent.
func (s *Server) sessionCache(w http.ResponseWriter, r *http.Request) (string, *cache.Cache) {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set(SessionHeader, id)
	c := s.sessions.Get(id)
	activeSessions.Set(float64(s.sessions.Len()))
	return id, c
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"uptime_s": int64(time.Since(s.startedAt).Seconds()),
		"sessions": s.sessions.Len(),
	})
}

type cyclesResponse struct {
	SessionID  string         `json:"session_id"`
	Generation uint64         `json:"generation"`
	ComputedAt time.Time      `json:"computed_at"`
	Stale      bool           `json:"stale,omitempty"`
	Error      string         `json:"error,omitempty"`
	Count      int            `json:"count"`
	Records    []cycle.Record `json:"records"`
	Recency    []float64      `json:"recency"`
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	id, c := s.sessionCache(w, r)
	snap, err := c.Records(r.Context())
	s.writeSnapshot(w, r, id, snap, err)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	id, c := s.sessionCache(w, r)
	snap, err := c.Refresh(r.Context())
	s.writeSnapshot(w, r, id, snap, err)
}

// handleDropSession forgets the caller's cache; the next read recomputes.
func (s *Server) handleDropSession(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing " + SessionHeader + " header"})
		return
	}
	s.sessions.Drop(id)
	activeSessions.Set(float64(s.sessions.Len()))
	w.WriteHeader(http.StatusNoContent)
}

type fallbackResponse struct {
	SessionID string          `json:"session_id"`
	Stale     bool            `json:"stale"`
	Error     string          `json:"error"`
	Source    string          `json:"source"`
	Published json.RawMessage `json:"published"`
}

func (s *Server) writeSnapshot(w http.ResponseWriter, r *http.Request, id string, snap *cache.Snapshot, err error) {
	if snap == nil {
		if s.writeFallback(w, r, id, err) {
			return
		}
		s.writeComputeError(w, id, err)
		return
	}

	resp := cyclesResponse{
		SessionID:  id,
		Generation: snap.Generation,
		ComputedAt: snap.ComputedAt,
		Count:      len(snap.Records),
		Records:    snap.Records,
		Recency:    make([]float64, len(snap.Records)),
	}
	if resp.Records == nil {
		resp.Records = []cycle.Record{}
	}
	for i, rec := range snap.Records {
		resp.Recency[i] = cycle.Recency(rec.Age, s.halfLife)
	}
	if err != nil {
		resp.Stale = true
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeFallback answers with the last published record set, if any.
func (s *Server) writeFallback(w http.ResponseWriter, r *http.Request, id string, err error) bool {
	if s.fallback == nil || err == nil {
		return false
	}
	raw, ferr := s.fallback.Latest(r.Context())
	if ferr != nil || !json.Valid(raw) {
		s.logger.Debug("No published records to fall back on", zap.String("session_id", id), zap.Error(ferr))
		return false
	}
	s.logger.Warn("Serving published records after compute failure", zap.String("session_id", id), zap.Error(err))
	writeJSON(w, http.StatusOK, fallbackResponse{
		SessionID: id,
		Stale:     true,
		Error:     err.Error(),
		Source:    "published",
		Published: raw,
	})
	return true
}

func (s *Server) writeComputeError(w http.ResponseWriter, id string, err error) {
	if err == nil {
		err = errors.New("no records computed")
	}
	status := http.StatusBadGateway
	if errors.Is(err, series.ErrInvalidInput) {
		status = http.StatusUnprocessableEntity
	}
	s.logger.Warn("Serving compute error", zap.String("session_id", id), zap.Int("status", status), zap.Error(err))
	writeJSON(w, status, map[string]string{"session_id": id, "error": err.Error()})
}

type point struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Recency float64 `json:"recency"`
}

type columnsResponse struct {
	SessionID string  `json:"session_id"`
	X         string  `json:"x"`
	Y         string  `json:"y"`
	Points    []point `json:"points"`
	Omitted   int     `json:"omitted"`
}

// handleColumns returns one (x, y) pair per record for charting. Rows where
// either value is NaN or infinite are omitted.
func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	x, y := q.Get("x"), q.Get("y")
	if err := checkField(x); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error(), "fields": cycle.FieldNames()})
		return
	}
	if err := checkField(y); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error(), "fields": cycle.FieldNames()})
		return
	}

	id, c := s.sessionCache(w, r)
	snap, err := c.Records(r.Context())
	if snap == nil {
		s.writeComputeError(w, id, err)
		return
	}

	resp := columnsResponse{SessionID: id, X: x, Y: y, Points: []point{}}
	for _, rec := range snap.Records {
		xv, _ := rec.Field(x)
		yv, _ := rec.Field(y)
		if !finite(xv) || !finite(yv) {
			resp.Omitted++
			continue
		}
		resp.Points = append(resp.Points, point{X: xv, Y: yv, Recency: cycle.Recency(rec.Age, s.halfLife)})
	}
	writeJSON(w, http.StatusOK, resp)
}

func checkField(name string) error {
	if name == "" {
		return ErrMissingField
	}
	if _, ok := (cycle.Record{}).Field(name); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// writeJSON encodes v before writing the status so an encoding failure is
// reported as a 500 rather than a truncated 200.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		body, _ = json.Marshal(map[string]string{"error": "failed to encode response: " + err.Error()})
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
