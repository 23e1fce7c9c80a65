package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/aretw0/docket/pkg/adapters/memory"
	"github.com/aretw0/docket/pkg/document"
	"github.com/aretw0/docket/pkg/domain"
	"github.com/aretw0/docket/pkg/service"
	"github.com/aretw0/docket/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Notes struct {
	Lines []string `json:"lines"`
}

func (n *Notes) String() string { return fmt.Sprintf("Notes(%d)", len(n.Lines)) }

type appendLine struct {
	Text string `json:"text"`
}

func newNotesServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	doc, err := document.New(document.WithStores(map[string]*document.Store{
		"notes": document.MustStore(&Notes{}),
	}))
	require.NoError(t, err)
	doc.Handle("appendLine", func(ctx context.Context, d *document.Document, payload any) error {
		p, err := domain.DecodePayload[appendLine](payload)
		if err != nil {
			return err
		}
		s, _ := d.StoreAt("notes")
		return document.Mutate(s, func(n *Notes) error {
			n.Lines = append(n.Lines, p.Text)
			return nil
		})
	})
	return NewServer(doc, opts...)
}

// newCallToolRequest builds a tool call request with arguments.
func newCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestNewServer_Configured(t *testing.T) {
	s := newNotesServer(t)
	require.NotNil(t, s.MCPServer())
}

func TestDispatchAction(t *testing.T) {
	s := newNotesServer(t)

	result, err := s.handleDispatch(context.Background(), newCallToolRequest("dispatch_action", map[string]any{
		"type":    "appendLine",
		"payload": `{"text":"hello"}`,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	resp, ok := result.StructuredContent.(service.Response)
	require.True(t, ok)
	assert.True(t, resp.Handled)
	assert.Equal(t, "Store { model: Notes(1) }", resp.Stores["notes"])
}

func TestDispatchAction_Unknown(t *testing.T) {
	s := newNotesServer(t)

	result, err := s.handleDispatch(context.Background(), newCallToolRequest("dispatch_action", map[string]any{
		"type": "appendLin",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	resp := result.StructuredContent.(service.Response)
	assert.False(t, resp.Handled)
	assert.Contains(t, resp.Error, `did you mean "appendLine"?`)
}

func TestDispatchAction_BadPayload(t *testing.T) {
	s := newNotesServer(t, WithMaxInputSize(8))

	result, err := s.handleDispatch(context.Background(), newCallToolRequest("dispatch_action", map[string]any{
		"type":    "appendLine",
		"payload": `{"text":`,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = s.handleDispatch(context.Background(), newCallToolRequest("dispatch_action", map[string]any{
		"type":    "appendLine",
		"payload": `{"text":"far too long"}`,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestDispatchAction_SavesSession(t *testing.T) {
	store := memory.NewStore()
	s := newNotesServer(t, WithSession(session.NewManager(store), "agent"))

	_, err := s.handleDispatch(context.Background(), newCallToolRequest("dispatch_action", map[string]any{
		"type":    "appendLine",
		"payload": `{"text":"saved"}`,
	}))
	require.NoError(t, err)

	snap, err := store.Load(context.Background(), "agent")
	require.NoError(t, err)
	assert.JSONEq(t, `{"lines":["saved"]}`, string(snap.Stores["notes"]))
}

func TestDescribeDocument(t *testing.T) {
	s := newNotesServer(t)
	result, err := s.handleDescribe(context.Background(), newCallToolRequest("describe_document", nil))
	require.NoError(t, err)

	desc := result.StructuredContent.(DocumentDescription)
	assert.Equal(t, "Document with 1 stores", desc.Summary)
	assert.Equal(t, []string{"appendLine"}, desc.Actions)
	assert.Equal(t, map[string]string{"notes": "Store { model: Notes(0) }"}, desc.Stores)
}

func TestReadStore(t *testing.T) {
	s := newNotesServer(t)
	ctx := context.Background()

	result, err := s.handleReadStore(ctx, newCallToolRequest("read_store", map[string]any{"key": "notes"}))
	require.NoError(t, err)
	view := result.StructuredContent.(StoreView)
	assert.JSONEq(t, `{"lines":null}`, string(view.Model))

	result, err = s.handleReadStore(ctx, newCallToolRequest("read_store", map[string]any{"key": "drafts"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestDocumentResource(t *testing.T) {
	s := newNotesServer(t)
	contents, err := s.readDocument(context.Background(), mcp.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, DocumentURI, text.URI)

	var desc DocumentDescription
	require.NoError(t, json.Unmarshal([]byte(text.Text), &desc))
	assert.True(t, strings.HasPrefix(desc.Summary, "Document with"))
}
