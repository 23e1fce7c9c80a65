package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/docket"
	"github.com/aretw0/docket/internal/logging"
	"github.com/aretw0/docket/pkg/document"
	"github.com/aretw0/docket/pkg/domain"
	"github.com/aretw0/docket/pkg/service"
	"github.com/aretw0/docket/pkg/session"
	"github.com/aretw0/docket/pkg/snapshot"
	"github.com/go-chi/chi/v5"
)

// DefaultMaxBodyBytes caps POST /actions bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 1 << 20

// Server exposes a Document over HTTP. Dispatch and reads are serialized
// by mu so concurrent requests queue instead of hitting
// domain.ErrReentrantMutation.
type Server struct {
	doc      *document.Document
	mu       sync.Mutex
	dispatch service.DispatchFunc
	Streams  *Broadcaster

	sessions    *session.Manager
	sessionID   string
	authSecret  []byte
	corsOrigins []string
	maxBody     int64
	metrics     http.Handler
	metricsPath string
	logger      *slog.Logger

	last *domain.Snapshot
}

// Option configures a Server.
type Option func(*Server)

// WithBroadcaster shares b, typically one whose Hooks are installed on the
// Document.
func WithBroadcaster(b *Broadcaster) Option {
	return func(s *Server) {
		if b != nil {
			s.Streams = b
		}
	}
}

// WithDispatcher replaces the plain Document.Dispatch call.
func WithDispatcher(fn service.DispatchFunc) Option {
	return func(s *Server) {
		if fn != nil {
			s.dispatch = fn
		}
	}
}

// WithSession saves the Document under sessionID after every handled action.
func WithSession(mgr *session.Manager, sessionID string) Option {
	return func(s *Server) {
		s.sessions = mgr
		s.sessionID = sessionID
	}
}

// WithAuthSecret requires an HS256 bearer token on POST /actions.
func WithAuthSecret(secret string) Option {
	return func(s *Server) {
		if secret != "" {
			s.authSecret = []byte(secret)
		}
	}
}

// WithCORSOrigins sets the allowed origins. Empty or "*" allows any.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// WithMetrics mounts h (usually promhttp.HandlerFor) at path.
func WithMetrics(path string, h http.Handler) Option {
	return func(s *Server) {
		s.metricsPath = path
		s.metrics = h
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a Server for doc.
func NewServer(doc *document.Document, opts ...Option) *Server {
	s := &Server{
		doc: doc,
		dispatch: func(ctx context.Context, doc *document.Document, action domain.Action) (bool, error) {
			return doc.Dispatch(ctx, action)
		},
		maxBody:     DefaultMaxBodyBytes,
		metricsPath: "/metrics",
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewBroadcaster(s.logger)
	}
	// Baseline for the change feed.
	if snap, err := snapshot.Capture(doc, ""); err == nil {
		s.last = snap
	}
	return s
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/document", s.GetDocument)
	r.Get("/stores", s.ListStores)
	r.Get("/stores/{key}", s.GetStore)
	r.Get("/events", s.SubscribeEvents)
	r.Group(func(r chi.Router) {
		if s.authSecret != nil {
			r.Use(requireBearer(s.authSecret))
		}
		r.Post("/actions", s.PostAction)
	})
	if s.metrics != nil {
		r.Handle(s.metricsPath, s.metrics)
	}

	return s.enableCORS(r)
}

// NewHandler is NewServer(doc, opts...).Handler().
func NewHandler(doc *document.Document, opts ...Option) http.Handler {
	return NewServer(doc, opts...).Handler()
}

func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := s.allowOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowOrigin(origin string) string {
	if len(s.corsOrigins) == 0 {
		return "*"
	}
	for _, o := range s.corsOrigins {
		if o == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

// ActionRequest is the POST /actions body.
type ActionRequest struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// PostAction handles POST /actions: 200 when handled, 404 for an unknown
// type, 422 when the handler failed. The body always carries the store
// summaries after the attempt.
func (s *Server) PostAction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}
	clean, err := service.SanitizeInput(string(body), int(s.maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var req ActionRequest
	if err := json.Unmarshal([]byte(clean), &req); err != nil {
		s.logger.Warn("PostAction: Invalid request body", "err", err)
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid action: %w", err))
		return
	}

	resp, status := s.apply(r.Context(), domain.NewAction(req.Type, req.Payload))
	writeJSON(w, status, resp)
}

func (s *Server) apply(ctx context.Context, action domain.Action) (*service.Response, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	handled, err := s.dispatch(ctx, s.doc, action)
	status := http.StatusOK
	switch {
	case !handled:
		err = document.UnknownActionError(s.doc, action.Type)
		status = http.StatusNotFound
	case err != nil:
		status = http.StatusUnprocessableEntity
	}

	if handled {
		s.publishChanges()
		if s.sessions != nil && s.sessionID != "" {
			if syncErr := s.sessions.Sync(ctx, s.doc, s.sessionID); syncErr != nil {
				s.logger.Error("Failed to save session", "session_id", s.sessionID, "err", syncErr)
				err = errors.Join(err, syncErr)
				if status == http.StatusOK {
					status = http.StatusInternalServerError
				}
			}
		}
	}

	resp := &service.Response{
		Type:    action.Type,
		Handled: handled,
		Stores:  service.Summaries(s.doc),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp, status
}

// publishChanges broadcasts a "change" event with the stores whose
// encoding differs from the previous dispatch. Callers hold mu.
func (s *Server) publishChanges() {
	current, err := snapshot.Capture(s.doc, "")
	if err != nil {
		s.logger.Warn("Failed to capture document for change feed", "err", err)
		return
	}
	diff := domain.Diff(s.last, current)
	s.last = current
	if diff.IsEmpty() {
		return
	}
	data, err := json.Marshal(diff)
	if err != nil {
		return
	}
	s.Streams.Broadcast(Event{Name: "change", Stores: diff.Keys(), Data: data})
}

type storeView struct {
	Key     string          `json:"key"`
	Summary string          `json:"summary"`
	Model   json.RawMessage `json:"model"`
}

// ListStores handles GET /stores.
func (s *Server) ListStores(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	summaries := service.Summaries(s.doc)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, summaries)
}

// GetStore handles GET /stores/{key}.
func (s *Server) GetStore(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	s.mu.Lock()
	defer s.mu.Unlock()

	store, ok := s.doc.StoreAt(key)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("store %q not found", key))
		return
	}
	model, err := json.Marshal(store.Model())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, storeView{Key: key, Summary: store.String(), Model: model})
}

// GetDocument handles GET /document.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := map[string]any{
		"summary": s.doc.String(),
		"stores":  s.doc.StoreKeys(),
		"actions": s.doc.ActionTypes(),
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "docket-http",
		"version": strings.TrimSpace(docket.Version),
	})
}

// SubscribeEvents handles GET /events (SSE). ?watch=a,b limits the stream
// to events concerning those store keys.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	var watch map[string]bool
	if raw := r.URL.Query().Get("watch"); raw != "" {
		watch = make(map[string]bool)
		for _, key := range strings.Split(raw, ",") {
			if key = strings.TrimSpace(key); key != "" {
				watch[key] = true
			}
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe()
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE Client Disconnected")
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if watch != nil && !concerns(e, watch) {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Name, e.Data)
			flusher.Flush()
		}
	}
}

func concerns(e Event, watch map[string]bool) bool {
	for _, key := range e.Stores {
		if watch[key] {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Response encode failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
