// Package mcp exposes a Document as an MCP server.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/docket"
	"github.com/aretw0/docket/internal/logging"
	"github.com/aretw0/docket/pkg/document"
	"github.com/aretw0/docket/pkg/domain"
	"github.com/aretw0/docket/pkg/service"
	"github.com/aretw0/docket/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// DocumentURI is the resource describing the hosted Document.
const DocumentURI = "docket://document"

// DispatchInput is the dispatch_action argument set.
type DispatchInput struct {
	Type    string `json:"type"`
	Payload string `json:"payload,omitempty"`
}

// ReadStoreInput is the read_store argument set.
type ReadStoreInput struct {
	Key string `json:"key"`
}

// DocumentDescription is returned by describe_document and DocumentURI.
type DocumentDescription struct {
	Summary string            `json:"summary" jsonschema_description:"Document.String()"`
	Stores  map[string]string `json:"stores" jsonschema_description:"Store summaries by key"`
	Actions []string          `json:"actions" jsonschema_description:"Registered action types"`
}

// StoreView is returned by read_store.
type StoreView struct {
	Key     string          `json:"key"`
	Summary string          `json:"summary"`
	Model   json.RawMessage `json:"model" jsonschema_description:"JSON encoding of the store's model"`
}

// Server wraps a Document and exposes it as an MCP Server. Tool calls are
// serialized so concurrent clients never trip the single-writer guard.
type Server struct {
	doc       *document.Document
	mu        sync.Mutex
	dispatch  service.DispatchFunc
	sessions  *session.Manager
	sessionID string
	maxInput  int
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

type Option func(*Server)

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

// WithMaxInputSize limits the payload argument.
func WithMaxInputSize(n int) Option {
	return func(s *Server) {
		s.maxInput = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(doc *document.Document, opts ...Option) *Server {
	s := &Server{
		doc: doc,
		dispatch: func(ctx context.Context, doc *document.Document, action domain.Action) (bool, error) {
			return doc.Dispatch(ctx, action)
		},
		logger: logging.NewNop(),
		mcpServer: server.NewMCPServer("docket-mcp", strings.TrimSpace(docket.Version),
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

// ServeSSE serves the SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("dispatch_action",
		mcp.WithDescription("Dispatch an action to the document. Unknown types are reported, not applied."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Action type, as listed by describe_document")),
		mcp.WithString("payload", mcp.Description("JSON-encoded action payload (optional)")),
		mcp.WithOutputSchema[service.Response](),
	), s.handleDispatch)

	s.mcpServer.AddTool(mcp.NewTool("describe_document",
		mcp.WithDescription("List the document's stores and registered action types."),
		mcp.WithOutputSchema[DocumentDescription](),
	), s.handleDescribe)

	s.mcpServer.AddTool(mcp.NewTool("read_store",
		mcp.WithDescription("Read the current model of one store."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Store key")),
		mcp.WithOutputSchema[StoreView](),
	), s.handleReadStore)
}

func (s *Server) handleDispatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input DispatchInput
	if err := request.BindArguments(&input); err != nil {
		return mcp.NewToolResultErrorFromErr("invalid dispatch_action arguments", err), nil
	}

	var payload any
	if input.Payload != "" {
		clean, err := service.SanitizeInput(input.Payload, s.maxInput)
		if err != nil {
			s.logger.Warn("MCP dispatch: Input rejected", "err", err, "size", len(input.Payload))
			return mcp.NewToolResultErrorFromErr("payload rejected", err), nil
		}
		if err := json.Unmarshal([]byte(clean), &payload); err != nil {
			return mcp.NewToolResultErrorFromErr("payload is not valid JSON", err), nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	handled, err := s.dispatch(ctx, s.doc, domain.NewAction(input.Type, payload))
	if !handled {
		err = document.UnknownActionError(s.doc, input.Type)
	}
	if handled && s.sessions != nil && s.sessionID != "" {
		if syncErr := s.sessions.Sync(ctx, s.doc, s.sessionID); syncErr != nil {
			s.logger.Error("Failed to save session", "session_id", s.sessionID, "err", syncErr)
			err = errors.Join(err, syncErr)
		}
	}

	resp := service.Response{
		Type:    input.Type,
		Handled: handled,
		Stores:  service.Summaries(s.doc),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	result := mcp.NewToolResultStructuredOnly(resp)
	result.IsError = err != nil
	return result, nil
}

func (s *Server) handleDescribe(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultStructuredOnly(s.describe()), nil
}

func (s *Server) describe() DocumentDescription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return DocumentDescription{
		Summary: s.doc.String(),
		Stores:  service.Summaries(s.doc),
		Actions: s.doc.ActionTypes(),
	}
}

func (s *Server) handleReadStore(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input ReadStoreInput
	if err := request.BindArguments(&input); err != nil {
		return mcp.NewToolResultErrorFromErr("invalid read_store arguments", err), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	store, ok := s.doc.StoreAt(input.Key)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("store %q not found", input.Key)), nil
	}
	model, err := json.Marshal(store.Model())
	if err != nil {
		return mcp.NewToolResultErrorFromErr("failed to encode store", err), nil
	}
	return mcp.NewToolResultStructuredOnly(StoreView{
		Key:     input.Key,
		Summary: store.String(),
		Model:   model,
	}), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(DocumentURI, "Hosted Document",
		mcp.WithResourceDescription("Stores and action types of the hosted document"),
		mcp.WithMIMEType("application/json"),
	), s.readDocument)
}

func (s *Server) readDocument(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(s.describe())
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      DocumentURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
