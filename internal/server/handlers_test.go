package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/intentd/internal/actions"
	"github.com/rendis/intentd/internal/dispatcher"
	"github.com/rendis/intentd/internal/index"
	"github.com/rendis/intentd/internal/resolver"
	"github.com/rendis/intentd/internal/session"
	"github.com/rendis/intentd/internal/snippet"
	"github.com/rendis/intentd/internal/store"
	"github.com/rendis/intentd/internal/validation"
	"github.com/rendis/intentd/pkg/schema"
)

// stubProvider returns fixed vectors from a lookup table.
type stubProvider struct {
	vecs map[string][]float32
}

func (p *stubProvider) Embed(_ context.Context, text string) ([]float32, error) {
	v, ok := p.vecs[text]
	if !ok {
		return nil, fmt.Errorf("no stub vector for %q", text)
	}
	return v, nil
}

func (p *stubProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (p *stubProvider) Dimensions() int { return 3 }
func (p *stubProvider) Name() string    { return "stub" }

// memStore is an in-memory Store for handler tests.
type memStore struct {
	mu          sync.Mutex
	embeddings  []store.StoredEmbedding
	resolutions []*store.Resolution
}

func (m *memStore) ReplaceEmbeddings(_ context.Context, model string, entries []store.StoredEmbedding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range entries {
		entries[i].Model = model
	}
	m.embeddings = entries
	return nil
}

func (m *memStore) ListEmbeddings(_ context.Context, _ string) ([]store.StoredEmbedding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embeddings, nil
}

func (m *memStore) AppendResolution(_ context.Context, res *store.Resolution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	res.ID = int64(len(m.resolutions) + 1)
	res.CreatedAt = time.Now()
	m.resolutions = append(m.resolutions, res)
	return nil
}

func (m *memStore) ListResolutions(_ context.Context, sessionID string, limit int) ([]*store.Resolution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*store.Resolution, 0)
	for _, r := range m.resolutions {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Vacuum(context.Context) error  { return nil }
func (m *memStore) Close() error                  { return nil }

// quietAction runs without output; textAction returns a fixed string.
type quietAction struct {
	name string
	desc string
}

func (a *quietAction) Name() string { return a.name }
func (a *quietAction) Schema() actions.ActionSchema {
	return actions.ActionSchema{Description: a.desc}
}
func (a *quietAction) Validate(map[string]any) error { return nil }
func (a *quietAction) Execute(context.Context, actions.ActionInput) (*actions.ActionOutput, error) {
	return nil, nil
}

type textAction struct {
	name string
	desc string
	text string
}

func (a *textAction) Name() string { return a.name }
func (a *textAction) Schema() actions.ActionSchema {
	return actions.ActionSchema{Description: a.desc}
}
func (a *textAction) Validate(map[string]any) error { return nil }
func (a *textAction) Execute(context.Context, actions.ActionInput) (*actions.ActionOutput, error) {
	return actions.TextOutput(a.text)
}

func newTestServer(t *testing.T) (*httptest.Server, *memStore) {
	t.Helper()

	reg := actions.NewRegistry()
	require.NoError(t, reg.Register(&quietAction{name: "open_chrome", desc: "Open the Chrome browser"}))
	require.NoError(t, reg.Register(&textAction{name: "get_cpu_usage", desc: "Report the current CPU usage", text: "CPU Usage: 12.0%"}))

	p := &stubProvider{vecs: map[string][]float32{
		"Open the Chrome browser":      {1, 0, 0},
		"Report the current CPU usage": {0, 1, 0},
		"open chrome":                  {0.9, 0.1, 0},
		"how much cpu":                 {0.1, 0.9, 0},
		"asdkjhasdkjh":                 {0, 0, 1},
	}}

	st := &memStore{}
	ix := index.New(p, st, nil)
	require.NoError(t, ix.Rebuild(context.Background(), reg.Catalog()))

	sessions := session.NewStore()
	srv := New(Deps{
		Registry:   reg,
		Resolver:   resolver.New(p, ix, sessions, 0, nil),
		Dispatcher: dispatcher.New(reg, validation.NewJSONSchemaValidator(), 0, nil),
		Sessions:   sessions,
		Index:      ix,
		Snippets:   snippet.NewGenerator("http://localhost:8000"),
		Store:      st,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, st
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestExecute_Success(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/execute", schema.ExecuteRequest{
		Prompt:    "open chrome",
		SessionID: "abc",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[schema.ExecuteResponse](t, resp)
	assert.Equal(t, "open_chrome", body.Function)
	assert.Equal(t, "Executed Successfully", body.Output)
	assert.Contains(t, body.Code, "package main")
	assert.Equal(t, []string{"open chrome"}, body.SessionHistory)
}

func TestExecute_TextOutput(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/execute", schema.ExecuteRequest{
		Prompt:    "how much cpu",
		SessionID: "abc",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[schema.ExecuteResponse](t, resp)
	assert.Equal(t, "get_cpu_usage", body.Function)
	assert.Equal(t, "CPU Usage: 12.0%", body.Output)
}

func TestExecute_NoMatch(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/execute", schema.ExecuteRequest{
		Prompt:    "asdkjhasdkjh",
		SessionID: "abc",
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := decode[map[string]string](t, resp)
	assert.Equal(t, schema.ErrCodeNoMatch, body["code"])
	assert.Equal(t, "No matching function found", body["error"])
}

func TestExecute_InvalidRequests(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/v1/execute", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/v1/execute", schema.ExecuteRequest{Prompt: "open chrome"})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/v1/execute", schema.ExecuteRequest{SessionID: "abc"})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExecute_DuplicatePromptNotAppendedTwice(t *testing.T) {
	ts, _ := newTestServer(t)

	for i := 0; i < 2; i++ {
		resp := postJSON(t, ts.URL+"/v1/execute", schema.ExecuteRequest{
			Prompt:    "open chrome",
			SessionID: "abc",
		})
		body := decode[schema.ExecuteResponse](t, resp)
		assert.Equal(t, []string{"open chrome"}, body.SessionHistory)
	}
}

func TestExecuteBatch_OrderAndIndependence(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/execute/batch", schema.BatchExecuteRequest{
		Prompts:   []string{"open chrome", "asdkjhasdkjh", "how much cpu"},
		SessionID: "batch",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[schema.BatchExecuteResponse](t, resp)
	require.Len(t, body.Results, 3)

	require.NotNil(t, body.Results[0].Function)
	assert.Equal(t, "open_chrome", *body.Results[0].Function)
	assert.Equal(t, "Executed Successfully", body.Results[0].Output)

	// The unresolvable prompt fails alone; its neighbors still ran.
	assert.Nil(t, body.Results[1].Function)
	assert.Equal(t, "No matching function found", body.Results[1].Output)

	require.NotNil(t, body.Results[2].Function)
	assert.Equal(t, "get_cpu_usage", *body.Results[2].Function)

	assert.Equal(t, []string{"open chrome", "asdkjhasdkjh", "how much cpu"}, body.SessionHistory)
}

func TestListActions(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/actions")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string][]actions.ActionInfo](t, resp)
	require.Len(t, body["actions"], 2)
	assert.Equal(t, "get_cpu_usage", body["actions"][0].Name)
	assert.Equal(t, "open_chrome", body["actions"][1].Name)
}

func TestSessionHistory(t *testing.T) {
	ts, _ := newTestServer(t)

	postJSON(t, ts.URL+"/v1/execute", schema.ExecuteRequest{Prompt: "open chrome", SessionID: "hist"}).Body.Close()

	resp, err := http.Get(ts.URL + "/v1/sessions/hist")
	require.NoError(t, err)

	body := decode[map[string]any](t, resp)
	assert.Equal(t, "hist", body["session_id"])
	assert.Equal(t, []any{"open chrome"}, body["history"])

	// Unknown sessions respond with an empty history, not an error.
	resp, err = http.Get(ts.URL + "/v1/sessions/ghost")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decode[map[string]any](t, resp)
	assert.Equal(t, []any{}, body["history"])
}

func TestSessionResolutions(t *testing.T) {
	ts, st := newTestServer(t)

	postJSON(t, ts.URL+"/v1/execute", schema.ExecuteRequest{Prompt: "open chrome", SessionID: "audit"}).Body.Close()
	postJSON(t, ts.URL+"/v1/execute", schema.ExecuteRequest{Prompt: "asdkjhasdkjh", SessionID: "audit"}).Body.Close()

	require.Len(t, st.resolutions, 2)

	resp, err := http.Get(ts.URL + "/v1/sessions/audit/resolutions")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		SessionID   string `json:"session_id"`
		Resolutions []struct {
			Prompt      string  `json:"prompt"`
			Action      string  `json:"action"`
			Distance    float64 `json:"distance"`
			Matched     bool    `json:"matched"`
			OutcomeCode string  `json:"outcome_code"`
		} `json:"resolutions"`
	}
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	require.Len(t, body.Resolutions, 2)
	assert.Equal(t, "open chrome", body.Resolutions[0].Prompt)
	assert.Equal(t, "open_chrome", body.Resolutions[0].Action)
	assert.True(t, body.Resolutions[0].Matched)
	assert.Empty(t, body.Resolutions[0].OutcomeCode)

	assert.Equal(t, "asdkjhasdkjh", body.Resolutions[1].Prompt)
	assert.False(t, body.Resolutions[1].Matched)
	assert.Equal(t, schema.ErrCodeNoMatch, body.Resolutions[1].OutcomeCode)
}

func TestRebuild(t *testing.T) {
	ts, st := newTestServer(t)

	resp, err := http.Post(ts.URL+"/v1/index/rebuild", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]int](t, resp)
	assert.Equal(t, 2, body["entries"])
	assert.Len(t, st.embeddings, 2)
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(2), body["actions"])
	assert.Equal(t, float64(2), body["entries"])
}
