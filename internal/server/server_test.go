package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	bridge "github.com/hanpama/livebridge/internal/bridge"
	content "github.com/hanpama/livebridge/internal/content"
	eventbus "github.com/hanpama/livebridge/internal/eventbus"
	events "github.com/hanpama/livebridge/internal/events"
	reqid "github.com/hanpama/livebridge/internal/reqid"
	schema "github.com/hanpama/livebridge/internal/schema"
)

const sdl = `
scalar JSON

type Collection {
  name: String!
  slug: String!
  label: String
  path: String!
  format: String
}

type SystemInfo {
  breadcrumbs: [String!]!
  basename: String!
  filename: String!
  path: String!
  extension: String!
  relativePath: String!
  title: String
  template: String!
  collection: Collection!
}

interface Node {
  id: ID!
}

type Post implements Node {
  id: ID!
  title: String
  _sys: SystemInfo!
  _values: JSON!
}

type Query {
  post(relativePath: String!): Post!
  node(id: String!): Node
}
`

const siteYAML = `
collections:
  - name: post
    label: Posts
    path: content/posts
    format: md
    fields:
      - name: title
        type: string
`

var remoteData = map[string]any{
	"post": map[string]any{
		"__typename": "Post",
		"title":      "Hello",
		"_internalSys": map[string]any{
			"breadcrumbs":  []any{"hello"},
			"basename":     "hello.md",
			"filename":     "hello",
			"path":         "content/posts/hello.md",
			"extension":    ".md",
			"relativePath": "hello.md",
			"title":        nil,
			"template":     "post",
			"collection": map[string]any{
				"name": "post", "slug": "post", "label": "Posts", "path": "content/posts", "format": "md",
			},
		},
		"_internalValues": map[string]any{"title": "Hello"},
	},
}

const formID = "content/posts/hello.md"

type fakeAPI struct {
	mu        sync.Mutex
	mutations []map[string]any
}

func (f *fakeAPI) Request(_ context.Context, query string, variables map[string]any) (map[string]any, error) {
	if strings.HasPrefix(query, "mutation") {
		f.mu.Lock()
		f.mutations = append(f.mutations, variables)
		f.mu.Unlock()
		return map[string]any{"updateDocument": map[string]any{"__typename": "Post"}}, nil
	}
	return remoteData, nil
}

func newTestHandler(t *testing.T, opts ...Option) (*Handler, *fakeAPI) {
	t.Helper()
	sch, err := schema.BuildFromSDL(sdl)
	require.NoError(t, err)
	site, err := content.Load(strings.NewReader(siteYAML))
	require.NoError(t, err)
	api := &fakeAPI{}
	opts = append([]Option{WithEventBus(eventbus.New())}, opts...)
	h, err := New(Config{Schema: sch, Content: site, API: api}, opts...)
	require.NoError(t, err)
	t.Cleanup(h.Close)
	return h, api
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/bridge"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readOutbound(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func titleOf(t *testing.T, msg map[string]any) any {
	t.Helper()
	data, ok := msg["data"].(map[string]any)
	require.True(t, ok, "data: %v", msg)
	post, ok := data["post"].(map[string]any)
	require.True(t, ok, "post: %v", data)
	return post["title"]
}

func TestBridge_EditAndSubmit(t *testing.T) {
	h, api := newTestHandler(t)
	srv := httptest.NewServer(h)
	defer srv.Close()
	conn := dial(t, srv)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":      bridge.TypeOpen,
		"id":        "p1",
		"query":     `query { post(relativePath: "hello.md") { title } }`,
		"variables": map[string]any{},
		"data":      map[string]any{},
	}))
	msg := readOutbound(t, conn)
	require.Equal(t, bridge.TypeUpdateData, msg["type"])
	require.Equal(t, "p1", msg["id"])
	require.Equal(t, "Hello", titleOf(t, msg))

	status, out := do(t, srv, http.MethodGet, "/api/forms", "")
	require.Equal(t, http.StatusOK, status)
	forms := out["data"].([]any)
	require.Len(t, forms, 1)
	f := forms[0].(map[string]any)
	require.Equal(t, formID, f["id"])
	require.Equal(t, "Posts", f["label"])
	require.Equal(t, []any{"p1"}, f["queries"])
	require.Equal(t, false, f["dirty"])

	status, _ = do(t, srv, http.MethodPatch, "/api/forms/"+formID, `{"path":"title","value":"Edited"}`)
	require.Equal(t, http.StatusOK, status)
	msg = readOutbound(t, conn)
	require.Equal(t, "Edited", titleOf(t, msg))

	status, out = do(t, srv, http.MethodPost, "/api/submit/"+formID, "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, out["data"].(map[string]any)["dirty"])

	api.mu.Lock()
	require.Len(t, api.mutations, 1)
	params := api.mutations[0]["params"].(map[string]any)
	api.mu.Unlock()
	if diff := cmp.Diff(map[string]any{"post": map[string]any{"title": "Edited"}}, params); diff != "" {
		t.Fatalf("mutation params mismatch (-want +got):\n%s", diff)
	}

	_, out = do(t, srv, http.MethodGet, "/api/alerts", "")
	want := []any{map[string]any{"level": "success", "message": bridge.AlertSaved}}
	if diff := cmp.Diff(want, out["data"]); diff != "" {
		t.Fatalf("alerts mismatch (-want +got):\n%s", diff)
	}
}

func TestBridge_DisconnectRemovesForms(t *testing.T) {
	h, _ := newTestHandler(t)
	srv := httptest.NewServer(h)
	defer srv.Close()
	conn := dial(t, srv)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": bridge.TypeOpen, "id": "p1",
		"query":     `{ post(relativePath: "hello.md") { title } }`,
		"variables": map[string]any{}, "data": map[string]any{},
	}))
	readOutbound(t, conn)
	require.Len(t, h.findForms(formID, ""), 1)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return len(h.findForms(formID, "")) == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestBridge_EditMode(t *testing.T) {
	h, _ := newTestHandler(t)
	srv := httptest.NewServer(h)
	defer srv.Close()
	conn := dial(t, srv)

	// Invalid messages are dropped and the connection stays usable.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"open"}`)))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": bridge.TypeIsEditMode}))
	msg := readOutbound(t, conn)
	require.Equal(t, bridge.TypeEditMode, msg["type"])
}

func TestBridge_Origin(t *testing.T) {
	h, _ := newTestHandler(t, WithCORS("http://allowed.example"))
	srv := httptest.NewServer(h)
	defer srv.Close()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/bridge"

	hdr := http.Header{"Origin": {"http://other.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(u, hdr)
	require.Error(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	hdr = http.Header{"Origin": {"http://allowed.example"}}
	conn, _, err := websocket.DefaultDialer.Dial(u, hdr)
	require.NoError(t, err)
	conn.Close()
}

func TestForms_Errors(t *testing.T) {
	h, _ := newTestHandler(t)
	srv := httptest.NewServer(h)
	defer srv.Close()
	conn := dial(t, srv)
	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": bridge.TypeOpen, "id": "p1",
		"query":     `{ post(relativePath: "hello.md") { title } }`,
		"variables": map[string]any{}, "data": map[string]any{},
	}))
	readOutbound(t, conn)

	t.Run("unknown form", func(t *testing.T) {
		status, out := do(t, srv, http.MethodPatch, "/api/forms/content/posts/missing.md", `{"path":"title","value":"x"}`)
		require.Equal(t, http.StatusNotFound, status)
		require.NotEmpty(t, out["errors"])
		status, _ = do(t, srv, http.MethodPost, "/api/submit/content/posts/missing.md", "")
		require.Equal(t, http.StatusNotFound, status)
	})
	t.Run("invalid path", func(t *testing.T) {
		status, _ := do(t, srv, http.MethodPatch, "/api/forms/"+formID, `{"path":"title.0","value":"x"}`)
		require.Equal(t, http.StatusUnprocessableEntity, status)
	})
	t.Run("empty patch", func(t *testing.T) {
		status, _ := do(t, srv, http.MethodPatch, "/api/forms/"+formID, `{}`)
		require.Equal(t, http.StatusBadRequest, status)
	})
	t.Run("replace values", func(t *testing.T) {
		status, out := do(t, srv, http.MethodPatch, "/api/forms/"+formID, `{"values":{"title":"New"}}`)
		require.Equal(t, http.StatusOK, status)
		views := out["data"].([]any)
		require.Equal(t, map[string]any{"title": "New"}, views[0].(map[string]any)["values"])
	})
}

func TestExpand(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest("POST", "/expand", bytes.NewBufferString(`{"query":"{ post(relativePath: \"a.md\") { title } }"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var res expandResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Empty(t, res.Errors)
	require.Contains(t, res.Query, "_internalSys: _sys")
	require.Contains(t, res.Query, "_internalValues: _values")
	require.NotContains(t, res.Query, "_metadata")

	q := url.QueryEscape(`{ post(relativePath: "a.md") { title } }`)
	req = httptest.NewRequest("GET", "/expand?schema=local&query="+q, nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	res = expandResult{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Contains(t, res.Query, "_metadata")
}

func TestExpand_Errors(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest("POST", "/expand", bytes.NewBufferString(`[{"query":"{ post("},{"query":"{ nope }"}]`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var res []expandResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res, 2)
	require.Len(t, res[0].Errors, 1)
	require.NotEmpty(t, res[0].Errors[0].Locations)
	require.Len(t, res[1].Errors, 1)
	require.Empty(t, res[1].Query)
}

func TestCORSAndPreflight(t *testing.T) {
	h, _ := newTestHandler(t, WithCORS("*"))

	req := httptest.NewRequest("GET", "/api/forms", nil)
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	pre := httptest.NewRequest("OPTIONS", "/api/forms/x", nil)
	pre.Header.Set("Origin", "http://example.com")
	pre.Header.Set("Access-Control-Request-Headers", "X-Test")
	pw := httptest.NewRecorder()
	h.ServeHTTP(pw, pre)
	require.Equal(t, http.StatusNoContent, pw.Code)
	require.Equal(t, "*", pw.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "X-Test", pw.Header().Get("Access-Control-Allow-Headers"))
	require.Contains(t, pw.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestMaxBodyBytes(t *testing.T) {
	h, _ := newTestHandler(t, WithMaxBodyBytes(10))

	req := httptest.NewRequest("POST", "/expand", bytes.NewBufferString(`{"query":"1234567890"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRequestEvents(t *testing.T) {
	bus := eventbus.New()
	var (
		mu       sync.Mutex
		finishes []events.HTTPFinish
		ids      []string
	)
	eventbus.On(bus, func(ctx context.Context, e events.HTTPFinish) {
		mu.Lock()
		defer mu.Unlock()
		finishes = append(finishes, e)
		id, _ := reqid.FromContext(ctx)
		ids = append(ids, id)
	})
	h, _ := newTestHandler(t, WithEventBus(bus))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/api/forms/content/posts/none.md", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, finishes, 1)
	require.Equal(t, "GET /api/forms/{id...}", finishes[0].Route)
	require.Equal(t, http.StatusNotFound, finishes[0].Status)
	require.NotEmpty(t, ids[0])
}

func TestAlertsAreBounded(t *testing.T) {
	h, _ := newTestHandler(t, WithMaxAlerts(2))
	h.addAlert(bridge.Alert{Level: bridge.AlertError, Message: "one"})
	h.addAlert(bridge.Alert{Level: bridge.AlertError, Message: "two"})
	h.addAlert(bridge.Alert{Level: bridge.AlertSuccess, Message: "three"})

	want := []bridge.Alert{
		{Level: bridge.AlertError, Message: "two"},
		{Level: bridge.AlertSuccess, Message: "three"},
	}
	if diff := cmp.Diff(want, h.alerts); diff != "" {
		t.Fatalf("alerts mismatch (-want +got):\n%s", diff)
	}
}
