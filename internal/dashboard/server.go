// Package dashboard provides the local HTTP and WebSocket bridge between the
// aggregation engine and a tray UI.
//
// The server broadcasts state snapshots, completion confirmations, overdue
// alerts, and error events to connected WebSocket clients, and exposes the
// engine commands as HTTP endpoints.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/todotray/todotray/internal/engine"
	"github.com/todotray/todotray/internal/state"
)

// MessageType defines the type of dashboard message
type MessageType string

const (
	// MessageTypeState carries a full state snapshot after a version change
	MessageTypeState MessageType = "state_changed"

	// MessageTypeCompleted confirms an item completion
	MessageTypeCompleted MessageType = "item_completed"

	// MessageTypeOverdue alerts on items that newly became overdue
	MessageTypeOverdue MessageType = "overdue"

	// MessageTypeError reports a failed background mutation or source error
	MessageTypeError MessageType = "error"
)

// Message represents a dashboard broadcast message
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// CompletedData confirms a completed item by title
type CompletedData struct {
	Title string `json:"title"`
}

// OverdueData alerts on newly overdue items
type OverdueData struct {
	Count  int      `json:"count"`
	Titles []string `json:"titles"`
}

// ErrorData reports a user-visible error
type ErrorData struct {
	Message string `json:"message"`
}

// Commands is the subset of engine commands the server exposes over HTTP.
type Commands interface {
	Complete(id string) error
	Snooze(id, label string) error
	ResolveNotification(account, threadID string) error
	ToggleAutostart() (bool, error)
	SnoozeLabels() []string
}

// Server manages WebSocket connections and serves the command API
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server

	store     *state.Store
	commands  Commands
	refresher engine.Refresher

	// WebSocket client management
	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	// Message broadcasting
	broadcast chan Message

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Logging
	logger *log.Logger
}

// Config holds server configuration
type Config struct {
	// Port to listen on (default: 8080; 0 picks a free port)
	Port int

	// Store provides the current snapshot for GET /state
	Store *state.Store

	// Commands executes user actions
	Commands Commands

	// Refresher triggers background refresh cycles
	Refresher engine.Refresher

	// Logger for server activity (default: stderr logger)
	Logger *log.Logger
}

// NewServer creates a new dashboard server
func NewServer(config *Config) *Server {
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:      fmt.Sprintf("127.0.0.1:%d", config.Port),
		store:     config.Store,
		commands:  config.Commands,
		refresher: config.Refresher,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    config.Logger,
	}
}

// Start begins the HTTP server and WebSocket handler
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/state", s.handleState)
	mux.HandleFunc("/snoozes", s.handleSnoozes)
	mux.HandleFunc("/refresh", s.handleRefresh)
	mux.HandleFunc("/complete", s.handleComplete)
	mux.HandleFunc("/snooze", s.handleSnooze)
	mux.HandleFunc("/resolve", s.handleResolve)
	mux.HandleFunc("/autostart/toggle", s.handleAutostartToggle)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("dashboard listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.wg.Wait()
	return nil
}

// StateChanged implements engine.Observer. It runs under the store lock and
// must not block, so it only enqueues onto the buffered broadcast channel.
func (s *Server) StateChanged(st state.AppState) {
	data, err := json.Marshal(st)
	if err != nil {
		s.logger.Printf("failed to marshal state: %v", err)
		return
	}
	s.Broadcast(Message{Type: MessageTypeState, Data: data})
}

// ItemCompleted implements engine.Observer.
func (s *Server) ItemCompleted(title string) {
	data, _ := json.Marshal(CompletedData{Title: title})
	s.Broadcast(Message{Type: MessageTypeCompleted, Data: data})
}

// Error implements engine.Observer.
func (s *Server) Error(message string) {
	data, _ := json.Marshal(ErrorData{Message: message})
	s.Broadcast(Message{Type: MessageTypeError, Data: data})
}

// Overdue implements engine.Notifier.
func (s *Server) Overdue(count int, titles []string) {
	data, _ := json.Marshal(OverdueData{Count: count, Titles: titles})
	s.Broadcast(Message{Type: MessageTypeOverdue, Data: data})
}

// Broadcast sends a message to all connected clients
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
		return
	default:
		s.logger.Println("warning: broadcast channel full, dropping message")
	}
}

// broadcastLoop handles message broadcasting to all clients
func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}

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

			// Send outside the read lock to avoid blocking broadcasts
			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()

				if err != nil {
					s.logger.Printf("failed to send to client: %v", err)
					s.removeClient(conn)
				}
			}
		}
	}
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // local-only server
	})
	if err != nil {
		s.logger.Printf("websocket upgrade failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Printf("client connected (total: %d)", clientCount)

	// Send the current snapshot so new clients render without waiting
	// for the next refresh cycle.
	if s.store != nil {
		if data, err := json.Marshal(s.store.Current()); err == nil {
			msg, _ := json.Marshal(Message{
				Type:      MessageTypeState,
				Timestamp: time.Now(),
				Data:      data,
			})
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = conn.Write(ctx, websocket.MessageText, msg)
			cancel()
		}
	}

	go s.readLoop(conn)
}

// readLoop keeps the WebSocket connection alive and handles client disconnects
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		_, _, err := conn.Read(s.ctx)
		if err != nil {
			return
		}
		// Client messages are not processed
	}
}

// removeClient safely removes a client connection
func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; exists {
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("client disconnected (total: %d)", clientCount)
	} else {
		s.clientsMu.Unlock()
	}
}

// GetAddr returns the server's listening address
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
