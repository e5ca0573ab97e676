package status_server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sugawarayuuta/sonnet"

	"seq-aggregator/shared/middleware"
)

const statusComponent = "Status Server"

// codeOK is the success code the dashboard expects in every envelope
const codeOK = 20000

// Progress is a snapshot of the aggregation job
type Progress struct {
	Phase    string `json:"phase"`
	Filled   int    `json:"filled"`
	Target   int    `json:"target"`
	Buffered int    `json:"buffered"`
	Clients  int    `json:"clients"`
}

// ProgressSource reports the current job progress
type ProgressSource interface {
	Progress() Progress
}

type envelope struct {
	Code int         `json:"code"`
	Data interface{} `json:"data"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StatusServer serves the read-only throughput and progress endpoints
type StatusServer struct {
	port     string
	meter    *Meter
	progress ProgressSource
	hub      *Hub

	listener net.Listener
	server   *http.Server
	wg       sync.WaitGroup
}

// NewStatusServer creates a server on port. Every meter sample is pushed to the
// websocket feed.
func NewStatusServer(port string, meter *Meter, progress ProgressSource) *StatusServer {
	s := &StatusServer{
		port:     port,
		meter:    meter,
		progress: progress,
		hub:      newHub(),
	}
	meter.Subscribe(s.publishSample)
	return s
}

// Handler returns the HTTP routes
func (s *StatusServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/x", s.handleThroughput)
	mux.HandleFunc("/status", s.handleProgress)
	mux.HandleFunc("/ws", s.handleFeed)
	return mux
}

// Start listens on the configured port and serves in the background
func (s *StatusServer) Start() error {
	listener, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return fmt.Errorf("failed to start status server on port %s: %w", s.port, err)
	}
	s.listener = listener
	s.server = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.hub.run()
	}()
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			middleware.LogError(statusComponent, "Serve failed: %v", err)
		}
	}()

	middleware.LogInfo(statusComponent, "Listening on %s", listener.Addr())
	return nil
}

// Addr returns the bound address, or "" before Start
func (s *StatusServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the HTTP server down and disconnects every feed client
func (s *StatusServer) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	s.hub.stop()
	s.wg.Wait()
	middleware.LogInfo(statusComponent, "Stopped")
	return err
}

func (s *StatusServer) handleThroughput(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, envelope{Code: codeOK, Data: s.meter.Last()})
}

func (s *StatusServer) handleProgress(w http.ResponseWriter, r *http.Request) {
	if s.progress == nil {
		http.Error(w, "no job", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, envelope{Code: codeOK, Data: s.progress.Progress()})
}

func (s *StatusServer) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		middleware.LogWarn(statusComponent, "Websocket upgrade failed: %v", err)
		return
	}
	client := &feedClient{id: uuid.New(), conn: conn, send: make(chan []byte, 16)}
	if !s.hub.join(client) {
		conn.Close()
		return
	}
	middleware.LogDebug(statusComponent, "Feed client %s connected", client.id)

	go s.hub.writePump(client)
	go s.hub.readPump(client)
}

func (s *StatusServer) publishSample(sample Sample) {
	message, err := sonnet.Marshal(sample)
	if err != nil {
		middleware.LogError(statusComponent, "Failed to encode sample: %v", err)
		return
	}
	s.hub.publish(message)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	body, err := sonnet.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Write(body)
}
