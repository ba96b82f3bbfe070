package webserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tejzpr/filerequest-bot/internal/gateway"
	"github.com/tejzpr/filerequest-bot/internal/request"
)

type testEnv struct {
	server *Server
	engine *request.Engine
	broker *Broker
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	store := request.NewMemoryStore()
	engine := request.NewEngine(store)
	broker := NewBroker()
	gw := gateway.New(engine, gateway.WithNotifier(broker))
	return &testEnv{
		server: New(Config{Addr: "127.0.0.1:0", Events: gw, Requests: engine, Rooms: store, Broker: broker}),
		engine: engine,
		broker: broker,
	}
}

func postEvent(t *testing.T, h http.Handler, room, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/rooms/"+room+"/events", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeEventResponse(t *testing.T, w *httptest.ResponseRecorder) EventResponse {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp EventResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	return resp
}

func TestHandleAlive(t *testing.T) {
	env := setupTestServer(t)

	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != aliveText {
		t.Errorf("expected %q, got %q", aliveText, w.Body.String())
	}
}

func TestHandleEventCommandAndUpload(t *testing.T) {
	env := setupTestServer(t)
	h := env.server.Handler()

	resp := decodeEventResponse(t, postEvent(t, h, "-100", `{"type":"command","room_kind":"group","sender":{"id":"1","handle":"alice"},"text":"/request @bob photo http://x/1"}`))
	if !resp.Replied || !strings.Contains(resp.Reply, "New file request") {
		t.Errorf("unexpected reply %+v", resp)
	}

	resp = decodeEventResponse(t, postEvent(t, h, "-100", `{"type":"upload","room_kind":"group","sender":{"id":"2","handle":"carol"}}`))
	if resp.Replied {
		t.Errorf("expected no reply for unmatched upload, got %q", resp.Reply)
	}

	resp = decodeEventResponse(t, postEvent(t, h, "-100", `{"type":"upload","room_kind":"supergroup","sender":{"id":"3","handle":"bob"},"file_name":"photo.jpg"}`))
	if !resp.Replied || !strings.Contains(resp.Reply, "has been completed") {
		t.Errorf("unexpected reply %+v", resp)
	}

	pending, _ := env.engine.ListPending(context.Background(), "-100")
	if len(pending) != 0 {
		t.Errorf("expected no pending requests, got %d", len(pending))
	}
}

func TestHandleEventStructuredCommand(t *testing.T) {
	env := setupTestServer(t)

	resp := decodeEventResponse(t, postEvent(t, env.server.Handler(), "-100", `{"type":"command","room_kind":"group","sender":{"id":"1"},"command":"request","args":["@bob","doc","http://x/2"]}`))
	if !resp.Replied {
		t.Fatal("expected a reply")
	}
	pending, _ := env.engine.ListPending(context.Background(), "-100")
	if len(pending) != 1 || pending[0].Label != "doc" {
		t.Errorf("expected one pending 'doc' request, got %+v", pending)
	}
}

func TestHandleEventInvalid(t *testing.T) {
	env := setupTestServer(t)
	h := env.server.Handler()

	cases := map[string]string{
		"invalid json":   `not json`,
		"missing sender": `{"type":"upload","room_kind":"group"}`,
		"unknown type":   `{"type":"sticker","sender":{"id":"1"}}`,
		"not a command":  `{"type":"command","sender":{"id":"1"},"text":"hello"}`,
	}
	for name, body := range cases {
		w := postEvent(t, h, "-100", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, w.Code)
		}
	}
}

func TestHandleEventBodyTooLarge(t *testing.T) {
	env := setupTestServer(t)
	h := env.server.Handler()

	body := `{"type":"command","room_kind":"group","sender":{"id":"1"},"text":"/request @bob ` +
		strings.Repeat("x", maxEventBytes) + ` http://x/1"}`
	w := postEvent(t, h, "-100", body)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %s", w.Code, w.Body.String())
	}

	all, err := env.engine.ListRequests(context.Background(), "-100")
	if err != nil {
		t.Fatalf("ListRequests failed: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("expected no requests from an oversized body, got %d", len(all))
	}
}

func TestHandleListRequests(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	env.engine.CreateRequest(ctx, "-100", "1", "@bob", "a", "http://x/a")
	env.engine.CreateRequest(ctx, "-100", "1", "@carol", "b", "http://x/b")
	env.engine.CreateRequest(ctx, "-200", "1", "@bob", "c", "http://x/c")
	env.engine.ResolveOnUpload(ctx, "-100", "9", "carol")

	get := func(url string) []request.Request {
		w := httptest.NewRecorder()
		env.server.Handler().ServeHTTP(w, httptest.NewRequest("GET", url, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", url, w.Code, w.Body.String())
		}
		var out []request.Request
		if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		return out
	}

	pending := get("/api/rooms/-100/requests")
	if len(pending) != 1 || pending[0].Label != "a" {
		t.Errorf("expected only 'a' pending, got %+v", pending)
	}
	all := get("/api/rooms/-100/requests?status=all")
	if len(all) != 2 {
		t.Errorf("expected 2 requests in room history, got %d", len(all))
	}
	if all[1].Status != request.StatusCompleted || all[1].Fulfiller != "9" {
		t.Errorf("expected completed 'b' by 9, got %+v", all[1])
	}
	if empty := get("/api/rooms/unknown/requests"); len(empty) != 0 {
		t.Errorf("expected empty list for unknown room, got %d", len(empty))
	}

	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/api/rooms/-100/requests?status=weird", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown filter, got %d", w.Code)
	}
}

func TestHandleGetRequest(t *testing.T) {
	env := setupTestServer(t)
	created, _ := env.engine.CreateRequest(context.Background(), "-100", "1", "@bob", "a", "http://x/a")

	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/api/rooms/-100/requests/"+created.ID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got request.Request
	json.NewDecoder(w.Body).Decode(&got)
	if got.ID != created.ID || got.Target != "@bob" {
		t.Errorf("unexpected request %+v", got)
	}

	w = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/api/rooms/-200/requests/"+created.ID, nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 from another room, got %d", w.Code)
	}
}

func TestHandleListRooms(t *testing.T) {
	env := setupTestServer(t)
	env.engine.CreateRequest(context.Background(), "-200", "1", "@bob", "a", "http://x/a")
	env.engine.CreateRequest(context.Background(), "-100", "1", "@bob", "a", "http://x/a")

	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/api/rooms", nil))
	var body map[string][]string
	json.NewDecoder(w.Body).Decode(&body)
	if len(body["rooms"]) != 2 || body["rooms"][0] != "-100" {
		t.Errorf("expected sorted rooms, got %v", body["rooms"])
	}
}

func TestCORSMiddleware(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := corsMiddleware(inner)

	req := httptest.NewRequest("GET", "/api/rooms", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS origin header")
	}
	if w.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("expected CORS methods header")
	}
}

func TestStartPrimaryThenSecondary(t *testing.T) {
	env := setupTestServer(t)
	primary, err := env.server.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !primary {
		t.Fatal("expected first server to be primary")
	}
	defer env.server.Shutdown(context.Background())

	second := New(Config{Addr: env.server.Addr()})
	primary, err = second.Start()
	if err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	if primary {
		t.Error("expected second server to be secondary")
	}
}

func TestStartAddressHeldByStranger(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer ln.Close()

	s := New(Config{Addr: ln.Addr().String()})
	if _, err := s.Start(); err == nil {
		t.Fatal("expected error when address is held by another program")
	}
}

func TestSSEStreamsNotifications(t *testing.T) {
	env := setupTestServer(t)
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	defer resp.Body.Close()

	// wait for the keepalive so the subscription exists
	buf := make([]byte, 256)
	if _, err := resp.Body.Read(buf); err != nil {
		t.Fatalf("failed to read keepalive: %v", err)
	}

	postEvent(t, env.server.Handler(), "-100", `{"type":"command","room_kind":"group","sender":{"id":"1"},"text":"/request @bob photo http://x/1"}`)

	n, err := resp.Body.Read(buf)
	if err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	chunk := string(buf[:n])
	if !strings.Contains(chunk, "event: request-created") {
		t.Errorf("expected request-created event, got %q", chunk)
	}
}
