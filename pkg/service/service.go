package service

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aretw0/docket/internal/logging"
	"github.com/aretw0/docket/pkg/document"
	"github.com/aretw0/docket/pkg/domain"
	"github.com/aretw0/docket/pkg/session"
)

// ErrExit is returned by RunOnce for "exit" and "quit".
var ErrExit = errors.New("exit requested")

// Request is one decoded input line.
type Request struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Response is written for every non-blank input line.
type Response struct {
	Type    string            `json:"type,omitempty"`
	Handled bool              `json:"handled"`
	Error   string            `json:"error,omitempty"`
	Stores  map[string]string `json:"stores"`
}

// DispatchFunc dispatches action to doc. observability.Tracer.Dispatch
// satisfies it.
type DispatchFunc func(ctx context.Context, doc *document.Document, action domain.Action) (bool, error)

// Service runs the JSON-lines loop for a single Document.
type Service struct {
	doc       *document.Document
	sessions  *session.Manager
	sessionID string
	dispatch  DispatchFunc
	maxInput  int
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithSession persists the Document under sessionID after every handled
// action, and resumes from it when Run starts.
func WithSession(mgr *session.Manager, sessionID string) Option {
	return func(s *Service) {
		s.sessions = mgr
		s.sessionID = sessionID
	}
}

// WithMaxInputSize overrides the per-line size limit.
func WithMaxInputSize(n int) Option {
	return func(s *Service) {
		s.maxInput = n
	}
}

// WithDispatcher replaces the plain Document.Dispatch call.
func WithDispatcher(fn DispatchFunc) Option {
	return func(s *Service) {
		if fn != nil {
			s.dispatch = fn
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Service over doc.
func New(doc *document.Document, opts ...Option) *Service {
	s := &Service{
		doc: doc,
		dispatch: func(ctx context.Context, doc *document.Document, action domain.Action) (bool, error) {
			return doc.Dispatch(ctx, action)
		},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) persistent() bool {
	return s.sessions != nil && s.sessionID != ""
}

// Resume restores the configured session, if any.
func (s *Service) Resume(ctx context.Context) (bool, error) {
	if !s.persistent() {
		return false, nil
	}
	resumed, err := s.sessions.Resume(ctx, s.doc, s.sessionID)
	if err != nil {
		return false, err
	}
	if resumed {
		s.logger.Info("Session resumed", "session_id", s.sessionID)
	}
	return resumed, nil
}

// Run resumes the session, then processes r line by line until EOF, an
// exit command or ctx cancellation.
func (s *Service) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	if _, err := s.Resume(ctx); err != nil {
		return err
	}

	reader := bufio.NewReader(r)
	enc := json.NewEncoder(w)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, readErr := reader.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("failed to read input: %w", readErr)
		}

		// A final line without a newline is still processed.
		if line != "" {
			resp, err := s.RunOnce(ctx, line)
			if errors.Is(err, ErrExit) {
				s.logger.Debug("Exit requested")
				return nil
			}
			if err != nil {
				return err
			}
			if resp != nil {
				if err := enc.Encode(resp); err != nil {
					return fmt.Errorf("failed to write response: %w", err)
				}
			}
		}

		if errors.Is(readErr, io.EOF) {
			return nil
		}
	}
}

// RunOnce processes a single input line. It returns a nil Response for
// blank lines and ErrExit for exit commands. Decoding and dispatch problems
// are reported inside the Response, not as errors.
func (s *Service) RunOnce(ctx context.Context, line string) (*Response, error) {
	clean, err := SanitizeInput(line, s.maxInput)
	if err != nil {
		return s.respond("", false, err), nil
	}

	clean = strings.TrimSpace(clean)
	if clean == "" {
		return nil, nil
	}
	if isExit(clean) {
		return nil, ErrExit
	}

	var req Request
	if err := json.Unmarshal([]byte(clean), &req); err != nil {
		return s.respond("", false, fmt.Errorf("invalid action: %w", err)), nil
	}

	action := domain.NewAction(req.Type, req.Payload)
	handled, err := s.dispatch(ctx, s.doc, action)
	if !handled {
		err = document.UnknownActionError(s.doc, req.Type)
	}
	if handled && s.persistent() {
		// Handler errors do not roll back, so partial changes are saved too.
		if syncErr := s.sessions.Sync(ctx, s.doc, s.sessionID); syncErr != nil {
			s.logger.Error("Failed to save session", "session_id", s.sessionID, "err", syncErr)
			err = errors.Join(err, syncErr)
		}
	}
	if err != nil {
		s.logger.Debug("Action failed", "type", req.Type, "handled", handled, "err", err)
	}
	return s.respond(req.Type, handled, err), nil
}

func isExit(line string) bool {
	var quoted string
	if json.Unmarshal([]byte(line), &quoted) == nil {
		line = quoted
	}
	switch strings.ToLower(line) {
	case "exit", "quit":
		return true
	}
	return false
}

func (s *Service) respond(actionType string, handled bool, err error) *Response {
	resp := &Response{
		Type:    actionType,
		Handled: handled,
		Stores:  Summaries(s.doc),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

// Summaries maps every store key to Store.String().
func Summaries(doc *document.Document) map[string]string {
	keys := doc.StoreKeys()
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		if store, ok := doc.StoreAt(key); ok {
			out[key] = store.String()
		}
	}
	return out
}
