package http

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/docket/pkg/adapters/memory"
	"github.com/aretw0/docket/pkg/document"
	"github.com/aretw0/docket/pkg/domain"
	"github.com/aretw0/docket/pkg/service"
	"github.com/aretw0/docket/pkg/session"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Shelf struct {
	Books []string `json:"books"`
}

func (s *Shelf) String() string { return fmt.Sprintf("Shelf(%s)", strings.Join(s.Books, ",")) }

type shelveBook struct {
	Title string `json:"title"`
}

func newShelfDocument(t *testing.T, hooks domain.LifecycleHooks) *document.Document {
	t.Helper()
	doc, err := document.New(
		document.WithStores(map[string]*document.Store{
			"shelf": document.MustStore(&Shelf{}),
			"other": document.MustStore(&Shelf{}),
		}),
		document.WithLifecycleHooks(hooks),
	)
	require.NoError(t, err)

	doc.Handle("shelveBook", func(ctx context.Context, d *document.Document, payload any) error {
		p, err := domain.DecodePayload[shelveBook](payload)
		if err != nil {
			return err
		}
		s, _ := d.StoreAt("shelf")
		return document.Mutate(s, func(m *Shelf) error {
			if p.Title == "" {
				return errors.New("title is required")
			}
			m.Books = append(m.Books, p.Title)
			return nil
		})
	})
	return doc
}

func post(t *testing.T, h http.Handler, body string, header ...string) (*httptest.ResponseRecorder, service.Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/actions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp service.Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestPostAction_StatusCodes(t *testing.T) {
	h := NewHandler(newShelfDocument(t, domain.LifecycleHooks{}))

	w, resp := post(t, h, `{"type":"shelveBook","payload":{"title":"Dune"}}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Handled)
	assert.Equal(t, "Store { model: Shelf(Dune) }", resp.Stores["shelf"])

	w, resp = post(t, h, `{"type":"shelveBok"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, resp.Handled)
	assert.Contains(t, resp.Error, `did you mean "shelveBook"?`)

	w, resp = post(t, h, `{"type":"shelveBook","payload":{}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.True(t, resp.Handled)
	assert.Equal(t, "title is required", resp.Error)

	w, _ = post(t, h, `{nope`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostAction_BodyLimit(t *testing.T) {
	h := NewHandler(newShelfDocument(t, domain.LifecycleHooks{}), WithMaxBodyBytes(16))
	w, _ := post(t, h, `{"type":"shelveBook","payload":{"title":"War and Peace"}}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestPostAction_RequiresToken(t *testing.T) {
	secret := "s3cret"
	h := NewHandler(newShelfDocument(t, domain.LifecycleHooks{}), WithAuthSecret(secret))
	body := `{"type":"shelveBook","payload":{"title":"Emma"}}`

	w, _ := post(t, h, body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))

	bad, err := SignToken([]byte("other"), "alice", jwt.RegisteredClaims{})
	require.NoError(t, err)
	w, _ = post(t, h, body, "Authorization", "Bearer "+bad)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	expired, err := SignToken([]byte(secret), "alice", jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	require.NoError(t, err)
	w, _ = post(t, h, body, "Authorization", "Bearer "+expired)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	good, err := SignToken([]byte(secret), "alice", jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)
	w, resp := post(t, h, body, "Authorization", "Bearer "+good)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Handled)

	// Reads stay open.
	req := httptest.NewRequest(http.MethodGet, "/stores", nil)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	assert.Equal(t, http.StatusOK, rw.Code)
}

func TestPostAction_SavesSession(t *testing.T) {
	store := memory.NewStore()
	h := NewHandler(newShelfDocument(t, domain.LifecycleHooks{}),
		WithSession(session.NewManager(store), "library"))

	w, _ := post(t, h, `{"type":"shelveBook","payload":{"title":"Ulysses"}}`)
	require.Equal(t, http.StatusOK, w.Code)

	snap, err := store.Load(context.Background(), "library")
	require.NoError(t, err)
	assert.JSONEq(t, `{"books":["Ulysses"]}`, string(snap.Stores["shelf"]))
}

func TestReadRoutes(t *testing.T) {
	doc := newShelfDocument(t, domain.LifecycleHooks{})
	h := NewHandler(doc)
	post(t, h, `{"type":"shelveBook","payload":{"title":"Beloved"}}`)

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	w := get("/stores")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"other":"Store { model: Shelf() }","shelf":"Store { model: Shelf(Beloved) }"}`, w.Body.String())

	w = get("/stores/shelf")
	require.Equal(t, http.StatusOK, w.Code)
	var view storeView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "shelf", view.Key)
	assert.JSONEq(t, `{"books":["Beloved"]}`, string(view.Model))

	assert.Equal(t, http.StatusNotFound, get("/stores/attic").Code)

	w = get("/document")
	assert.JSONEq(t, `{"summary":"Document with 2 stores","stores":["other","shelf"],"actions":["shelveBook"]}`, w.Body.String())

	assert.JSONEq(t, `{"status":"ok"}`, get("/health").Body.String())
	assert.Contains(t, get("/info").Body.String(), `"app":"docket-http"`)
	assert.Equal(t, http.StatusNotFound, get("/metrics").Code)
}

func TestMetricsRoute(t *testing.T) {
	h := NewHandler(newShelfDocument(t, domain.LifecycleHooks{}),
		WithMetrics("/metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "docket_up 1")
		})))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "docket_up 1", w.Body.String())
}

func TestCORS(t *testing.T) {
	h := NewHandler(newShelfDocument(t, domain.LifecycleHooks{}), WithCORSOrigins([]string{"https://app.example"}))

	req := httptest.NewRequest(http.MethodOptions, "/actions", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func readEvents(t *testing.T, sc *bufio.Scanner, n int) []string {
	t.Helper()
	var events []string
	var current []string
	for len(events) < n && sc.Scan() {
		line := sc.Text()
		if line == "" {
			events = append(events, strings.Join(current, "\n"))
			current = nil
			continue
		}
		current = append(current, line)
	}
	require.Len(t, events, n)
	return events
}

func TestSubscribeEvents(t *testing.T) {
	b := NewBroadcaster(nil)
	doc := newShelfDocument(t, b.Hooks())
	srv := httptest.NewServer(NewHandler(doc, WithBroadcaster(b)))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events?watch=shelf", nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	sc := bufio.NewScanner(res.Body)
	assert.Equal(t, "event: ping\ndata: connected", readEvents(t, sc, 1)[0])

	body := strings.NewReader(`{"type":"shelveBook","payload":{"title":"Kindred"}}`)
	pr, err := http.Post(srv.URL+"/actions", "application/json", body)
	require.NoError(t, err)
	pr.Body.Close()

	events := readEvents(t, sc, 2)
	assert.Equal(t, `event: mutation`+"\n"+`data: {"store":"shelf"}`, events[0])
	assert.Equal(t, `event: change`+"\n"+`data: {"stores":{"shelf":{"books":["Kindred"]}}}`, events[1])
}

func TestSubscribeEvents_WatchFilter(t *testing.T) {
	assert.True(t, concerns(Event{Stores: []string{"a", "b"}}, map[string]bool{"b": true}))
	assert.False(t, concerns(Event{Stores: []string{"a"}}, map[string]bool{"b": true}))
}

func TestBroadcaster_DropsWhenFull(t *testing.T) {
	b := NewBroadcaster(nil)
	ch, cancel := b.Subscribe()
	assert.Equal(t, 1, b.Subscribers())

	for i := 0; i < 20; i++ {
		b.Broadcast(Event{Name: "x"})
	}
	assert.Len(t, ch, 10)

	cancel()
	cancel()
	assert.Equal(t, 0, b.Subscribers())
}
