// Package webserver runs the keep-alive HTTP endpoint and a small JSON API
// over the room gateway. A second process started on the same address
// detects the first and forwards its events there instead.
package webserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/tejzpr/filerequest-bot/internal/gateway"
	"github.com/tejzpr/filerequest-bot/internal/request"
)

const (
	healthMagic = "filerequest-bot-ok"
	aliveText   = "Bot is alive!"
)

// EventHandler processes room events. Both *gateway.Gateway and *Client
// implement it.
type EventHandler interface {
	Handle(ctx context.Context, ev gateway.Event) (*gateway.Reply, error)
}

// Requests is the read side of the request engine used by the API.
type Requests interface {
	ListPending(ctx context.Context, roomID string) ([]request.Request, error)
	ListRequests(ctx context.Context, roomID string) ([]request.Request, error)
	GetRequest(ctx context.Context, roomID, id string) (request.Request, error)
}

// RoomLister reports which rooms hold requests.
type RoomLister interface {
	Rooms(ctx context.Context) ([]string, error)
}

// Server serves the keep-alive endpoint and the API.
type Server struct {
	addr     string
	events   EventHandler
	requests Requests
	rooms    RoomLister
	broker   *Broker
	logger   *slog.Logger

	srv   *http.Server
	bound string
}

// Config wires a Server to its collaborators.
type Config struct {
	Addr     string
	Events   EventHandler
	Requests Requests
	Rooms    RoomLister
	Broker   *Broker
	Logger   *slog.Logger
}

// New creates a Server. It does not listen until Start is called.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	broker := cfg.Broker
	if broker == nil {
		broker = NewBroker()
	}
	return &Server{
		addr:     cfg.Addr,
		events:   cfg.Events,
		requests: cfg.Requests,
		rooms:    cfg.Rooms,
		broker:   broker,
		logger:   logger,
	}
}

// Handler returns the routed API with CORS headers applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleAlive)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/rooms", s.handleListRooms)
	mux.HandleFunc("POST /api/rooms/{room}/events", s.handleEvent)
	mux.HandleFunc("GET /api/rooms/{room}/requests", s.handleListRequests)
	mux.HandleFunc("GET /api/rooms/{room}/requests/{id}", s.handleGetRequest)
	mux.HandleFunc("GET /api/events", s.handleSSE)
	mux.HandleFunc("OPTIONS /api/", handleCORS)

	return corsMiddleware(mux)
}

// Start binds the listen address and serves in the background. If the
// address is held by another instance of this server, Start returns
// primary=false and a nil error so the caller can forward events to it.
func (s *Server) Start() (primary bool, err error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		if IsRunning(context.Background(), BaseURL(s.addr)) {
			s.logger.Info("webserver.secondary", "addr", s.addr)
			return false, nil
		}
		return false, fmt.Errorf("address %s in use by unknown process: %w", s.addr, err)
	}

	s.bound = ln.Addr().String()
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("webserver.serve", "error", err)
		}
	}()
	s.logger.Info("webserver.listening", "addr", s.bound)
	return true, nil
}

// Addr returns the bound address after a successful primary Start.
func (s *Server) Addr() string {
	return s.bound
}

// Shutdown stops a server started with Start.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}

func handleCORS(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleAlive(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, aliveText)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": healthMagic})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.rooms.Rooms(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string][]string{"rooms": rooms})
}

// maxEventBytes caps the JSON body of a posted room event.
const maxEventBytes = 64 << 10

// handleEvent accepts a room event from a chat transport or a secondary
// instance and runs it through the gateway.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var body EventPayload
	r.Body = http.MaxBytesReader(w, r.Body, maxEventBytes)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	ev, err := body.Event(r.PathValue("room"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	reply, err := s.events.Handle(r.Context(), ev)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := EventResponse{}
	if reply != nil {
		resp.Replied = true
		resp.Reply = reply.Text
	}
	writeJSON(w, resp)
}

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	room := r.PathValue("room")

	var (
		requests []request.Request
		err      error
	)
	switch status := r.URL.Query().Get("status"); status {
	case "", string(request.StatusPending):
		requests, err = s.requests.ListPending(r.Context(), room)
	case "all":
		requests, err = s.requests.ListRequests(r.Context(), room)
	default:
		http.Error(w, fmt.Sprintf("unknown status filter %q", status), http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, requests)
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.requests.GetRequest(r.Context(), r.PathValue("room"), r.PathValue("id"))
	if errors.Is(err, request.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, req)
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.broker.Subscribe()
	defer s.broker.Unsubscribe(ch)

	fmt.Fprintf(w, ": keepalive\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", msg.ID, msg.Event, msg.Data)
			flusher.Flush()
		}
	}
}
