package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/aretw0/docket/pkg/adapters/memory"
	"github.com/aretw0/docket/pkg/document"
	"github.com/aretw0/docket/pkg/domain"
	"github.com/aretw0/docket/pkg/service"
	"github.com/aretw0/docket/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Tally struct {
	Count int `json:"count"`
}

func (t *Tally) String() string { return fmt.Sprintf("Tally(%d)", t.Count) }

type addPayload struct {
	By int `json:"by"`
}

func newDoc(t *testing.T) *document.Document {
	t.Helper()
	doc, err := document.New(document.WithStores(map[string]*document.Store{
		"tally": document.MustStore(&Tally{}),
	}))
	require.NoError(t, err)

	doc.Handle("add", func(ctx context.Context, d *document.Document, payload any) error {
		p, err := domain.DecodePayload[addPayload](payload)
		if err != nil {
			return err
		}
		s, _ := d.StoreAt("tally")
		return document.Mutate(s, func(m *Tally) error {
			m.Count += p.By
			return nil
		})
	})
	doc.Handle("fail", func(ctx context.Context, d *document.Document, payload any) error {
		s, _ := d.StoreAt("tally")
		return document.Mutate(s, func(m *Tally) error {
			m.Count = -1
			return errors.New("boom")
		})
	})
	return doc
}

func decodeLines(t *testing.T, out string) []service.Response {
	t.Helper()
	var resps []service.Response
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		var r service.Response
		require.NoError(t, json.Unmarshal([]byte(line), &r), line)
		resps = append(resps, r)
	}
	return resps
}

func TestRun_ProcessesLinesUntilExit(t *testing.T) {
	doc := newDoc(t)
	in := strings.Join([]string{
		`{"type":"add","payload":{"by":2}}`,
		``,
		`{"type":"ad"}`,
		`not json`,
		`{"type":"add","payload":{"by":"3"}}`,
		`exit`,
		`{"type":"add","payload":{"by":100}}`,
	}, "\n")
	var out bytes.Buffer

	require.NoError(t, service.New(doc).Run(context.Background(), strings.NewReader(in), &out))

	resps := decodeLines(t, out.String())
	require.Len(t, resps, 4)

	assert.Equal(t, "add", resps[0].Type)
	assert.True(t, resps[0].Handled)
	assert.Empty(t, resps[0].Error)
	assert.Equal(t, map[string]string{"tally": "Store { model: Tally(2) }"}, resps[0].Stores)

	assert.False(t, resps[1].Handled)
	assert.Equal(t, `unknown action type "ad"; did you mean "add"?`, resps[1].Error)

	assert.False(t, resps[2].Handled)
	assert.Contains(t, resps[2].Error, "invalid action")

	assert.True(t, resps[3].Handled)
	assert.Equal(t, "Store { model: Tally(5) }", resps[3].Stores["tally"])
}

func TestRun_EOFWithoutTrailingNewline(t *testing.T) {
	doc := newDoc(t)
	var out bytes.Buffer

	err := service.New(doc).Run(context.Background(), strings.NewReader(`{"type":"add","payload":{"by":1}}`), &out)
	require.NoError(t, err)
	resps := decodeLines(t, out.String())
	require.Len(t, resps, 1)
	assert.True(t, resps[0].Handled)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := service.New(newDoc(t)).Run(ctx, strings.NewReader("{}\n"), &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunOnce(t *testing.T) {
	svc := service.New(newDoc(t))
	ctx := context.Background()

	resp, err := svc.RunOnce(ctx, "   \n")
	require.NoError(t, err)
	assert.Nil(t, resp)

	_, err = svc.RunOnce(ctx, `"quit"`)
	assert.ErrorIs(t, err, service.ErrExit)
	_, err = svc.RunOnce(ctx, "EXIT")
	assert.ErrorIs(t, err, service.ErrExit)

	resp, err = svc.RunOnce(ctx, `{"type":"fail"}`)
	require.NoError(t, err)
	assert.True(t, resp.Handled)
	assert.Equal(t, "boom", resp.Error)
	// Partial changes are kept.
	assert.Equal(t, "Store { model: Tally(-1) }", resp.Stores["tally"])
}

func TestRunOnce_RejectsOversizedInput(t *testing.T) {
	svc := service.New(newDoc(t), service.WithMaxInputSize(10))

	resp, err := svc.RunOnce(context.Background(), `{"type":"add","payload":{"by":1}}`)
	require.NoError(t, err)
	assert.False(t, resp.Handled)
	assert.Contains(t, resp.Error, service.ErrInputTooLarge.Error())
	assert.Equal(t, "Store { model: Tally(0) }", resp.Stores["tally"])
}

func TestRunOnce_CustomDispatcher(t *testing.T) {
	var seen []string
	svc := service.New(newDoc(t), service.WithDispatcher(
		func(ctx context.Context, doc *document.Document, action domain.Action) (bool, error) {
			seen = append(seen, action.Type)
			return doc.Dispatch(ctx, action)
		}))

	_, err := svc.RunOnce(context.Background(), `{"type":"add"}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"add"}, seen)
}

func TestRun_PersistsAndResumesSession(t *testing.T) {
	store := memory.NewStore()
	mgr := session.NewManager(store)
	ctx := context.Background()

	first := newDoc(t)
	in := `{"type":"add","payload":{"by":4}}` + "\n" + `{"type":"nope"}` + "\n"
	require.NoError(t, service.New(first, service.WithSession(mgr, "main")).Run(ctx, strings.NewReader(in), &bytes.Buffer{}))

	snap, err := store.Load(ctx, "main")
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":4}`, string(snap.Stores["tally"]))

	second := newDoc(t)
	var out bytes.Buffer
	require.NoError(t, service.New(second, service.WithSession(mgr, "main")).Run(ctx, strings.NewReader(`{"type":"add","payload":{"by":1}}`), &out))
	resps := decodeLines(t, out.String())
	require.Len(t, resps, 1)
	assert.Equal(t, "Store { model: Tally(5) }", resps[0].Stores["tally"])
}

func TestResume_WithoutSession(t *testing.T) {
	resumed, err := service.New(newDoc(t)).Resume(context.Background())
	require.NoError(t, err)
	assert.False(t, resumed)
}
