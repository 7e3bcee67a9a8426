// Package progress streams organizer progress to websocket clients.
//
// Every event is a JSON Message broadcast to all clients connected on /ws.
// Slow clients are dropped rather than allowed to stall a run.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/mschirtzinger/yoloprep/internal/yolo"
)

// MessageType defines the type of progress message
type MessageType string

const (
	MessageTypeHello         MessageType = "hello"
	MessageTypeSplitStarted  MessageType = "split_started"
	MessageTypeSample        MessageType = "sample"
	MessageTypeSplitFinished MessageType = "split_finished"
	MessageTypeRunFinished   MessageType = "run_finished"
)

// Message is one broadcast event.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// SplitStartedData announces a split.
type SplitStartedData struct {
	Split string `json:"split"`
	Total int    `json:"total"`
}

// SampleData describes one processed row.
type SampleData struct {
	Split    string `json:"split"`
	Filename string `json:"filename"`
	ClassID  int    `json:"class_id"`
	Outcome  string `json:"outcome"`
}

// RunFinishedData closes the stream for a run.
type RunFinishedData struct {
	Copied int    `json:"copied"`
	Error  string `json:"error,omitempty"`
}

// Config holds server configuration.
type Config struct {
	// Host to bind (default: 127.0.0.1)
	Host string

	// Port to listen on; 0 picks a free port
	Port int

	// Logger for server activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:   "127.0.0.1",
		Port:   8765,
		Logger: log.Default(),
	}
}

// Server manages websocket clients and broadcasts progress.
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server

	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	broadcast chan Message
	dropped   atomic.Int64

	// publishMu guards closed so Publish never sends on a closed channel
	publishMu sync.RWMutex
	closed    bool
	flushed   chan struct{}
	stopOnce  sync.Once

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// NewServer creates a progress server. Call Start to listen.
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Host == "" {
		config.Host = "127.0.0.1"
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:      net.JoinHostPort(config.Host, fmt.Sprint(config.Port)),
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 1024),
		flushed:   make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		logger:    config.Logger,
	}
}

// Start begins serving /ws and /healthz.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)

	s.server = &http.Server{
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}

	s.wg.Add(2)
	go s.broadcastLoop()
	go func() {
		defer s.wg.Done()
		s.logger.Printf("progress server listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("progress server error: %v", err)
		}
	}()

	return nil
}

// Stop delivers queued events, then closes all clients and shuts the server
// down. Events still queued after FlushTimeout are dropped.
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() { err = s.stop() })
	return err
}

// FlushTimeout bounds how long Stop waits for queued events to reach clients.
const FlushTimeout = 5 * time.Second

func (s *Server) stop() error {
	s.publishMu.Lock()
	s.closed = true
	close(s.broadcast)
	s.publishMu.Unlock()

	if s.listener != nil {
		select {
		case <-s.flushed:
		case <-time.After(FlushTimeout):
			s.logger.Printf("progress queue not flushed after %v", FlushTimeout)
		}
	}
	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "run finished")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shut down progress server: %w", err)
		}
	}

	s.wg.Wait()

	if n := s.dropped.Load(); n > 0 {
		s.logger.Printf("dropped %d progress messages", n)
	}
	return nil
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Publish queues an event for broadcast. It never blocks; when the queue is
// full the event is dropped and counted.
func (s *Server) Publish(typ MessageType, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		s.logger.Printf("failed to marshal %s: %v", typ, err)
		return
	}
	msg := Message{Type: typ, Timestamp: time.Now(), Data: raw}

	s.publishMu.RLock()
	defer s.publishMu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.broadcast <- msg:
	default:
		s.dropped.Add(1)
	}
}

// RunFinished announces the end of an organize pass. err is the reason a
// pass failed, or nil.
func (s *Server) RunFinished(copied int, err error) {
	data := RunFinishedData{Copied: copied}
	if err != nil {
		data.Error = err.Error()
	}
	s.Publish(MessageTypeRunFinished, data)
}

// SplitStarted implements yolo.Observer.
func (s *Server) SplitStarted(split yolo.Split, total int) {
	s.Publish(MessageTypeSplitStarted, SplitStartedData{Split: string(split), Total: total})
}

// SampleDone implements yolo.Observer.
func (s *Server) SampleDone(split yolo.Split, sample yolo.Sample) {
	s.Publish(MessageTypeSample, SampleData{
		Split:    string(split),
		Filename: sample.Filename,
		ClassID:  sample.ClassID,
		Outcome:  string(sample.Outcome),
	})
}

// SplitFinished implements yolo.Observer.
func (s *Server) SplitFinished(result yolo.SplitResult) {
	s.Publish(MessageTypeSplitFinished, result)
}

// broadcastLoop runs until Stop closes the queue, so everything published
// before Stop is delivered.
func (s *Server) broadcastLoop() {
	defer s.wg.Done()
	defer close(s.flushed)

	for msg := range s.broadcast {
		data, err := json.Marshal(msg)
		if err != nil {
			s.logger.Printf("failed to marshal message: %v", err)
			continue
		}

		s.clientsMu.RLock()
		clients := make([]*websocket.Conn, 0, len(s.clients))
		for conn := range s.clients {
			clients = append(clients, conn)
		}
		s.clientsMu.RUnlock()

		for _, conn := range clients {
			ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
			err := conn.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				s.removeClient(conn)
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		s.logger.Printf("websocket upgrade failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	s.clientsMu.Unlock()

	hello, _ := json.Marshal(Message{Type: MessageTypeHello, Timestamp: time.Now()})
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	_ = conn.Write(ctx, websocket.MessageText, hello)
	cancel()

	s.wg.Add(1)
	go s.readLoop(conn)
}

// readLoop drains client frames so close handshakes are noticed.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.wg.Done()
	defer s.removeClient(conn)

	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	_, exists := s.clients[conn]
	delete(s.clients, conn)
	s.clientsMu.Unlock()

	if exists {
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}
