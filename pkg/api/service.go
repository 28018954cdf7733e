package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/NotCoffee418/humidity_monitor/pkg/serialport"
	"github.com/NotCoffee418/humidity_monitor/pkg/session"
	"github.com/NotCoffee418/humidity_monitor/pkg/types"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	defaultPollInterval = 250 * time.Millisecond
	pingInterval        = 30 * time.Second
	writeTimeout        = 5 * time.Second
)

func NewServer(opts Options) *Server {
	if opts.ListPorts == nil {
		opts.ListPorts = serialport.ListPorts
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	return &Server{
		opts: opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Dashboards are served from other origins
			},
		},
		clients: make(map[*wsClient]bool),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /latest", s.handleLatest)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /ports", s.handlePorts)
	mux.HandleFunc("GET /sessions", s.handleSessions)
	mux.HandleFunc("POST /open", s.handleOpen)
	mux.HandleFunc("POST /close", s.handleClose)
	mux.HandleFunc("POST /identifier", s.handleIdentifier)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Humidity Monitor API",
		"status":  "running",
	})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	reading := types.ReadingFromSnapshot(s.opts.Sessions.Latest())
	if reading == nil {
		writeError(w, http.StatusNotFound, "No readings available yet")
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handlePorts(w http.ResponseWriter, r *http.Request) {
	ports, err := s.opts.ListPorts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ports == nil {
		ports = []serialport.PortInfo{}
	}
	writeJSON(w, http.StatusOK, ports)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		writeError(w, http.StatusNotFound, "Session log is disabled")
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive number")
			return
		}
		limit = n
	}

	sessions, err := s.opts.History.RecentSessions(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := s.opts.Sessions.Open(req.Device)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, s.status())
	case errors.Is(err, session.ErrNoPortSelected):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrAlreadyOpen):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if err := s.opts.Sessions.Close(); err != nil {
		log.Warn().Err(err).Msg("Error closing port")
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleIdentifier(w http.ResponseWriter, r *http.Request) {
	var req identifierRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Identifier == "" {
		req.Identifier = s.opts.Identifier
	}

	err := s.opts.Sessions.SendIdentifier(req.Identifier)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"sent": req.Identifier})
	case errors.Is(err, session.ErrNotOpen):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := &wsClient{conn: conn}
	s.addClient(client)

	// Send current reading immediately if available
	if reading := types.ReadingFromSnapshot(s.opts.Sessions.Latest()); reading != nil {
		if err := client.write(websocket.TextMessage, reading.ToJsonBytes()); err != nil {
			s.removeClient(client)
			return
		}
	}

	// Keep connection alive until the peer goes away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.removeClient(client)
			return
		}
	}
}

// RunBroadcaster polls the latest value and pushes every new one to the
// websocket clients. Returns when ctx is done.
func (s *Server) RunBroadcaster(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	pings := time.NewTicker(pingInterval)
	defer pings.Stop()

	var lastSequence uint64
	for {
		select {
		case <-ctx.Done():
			s.closeClients()
			return nil
		case <-pings.C:
			s.broadcast(websocket.PingMessage, nil)
		case <-ticker.C:
			snap := s.opts.Sessions.Latest()
			if snap.Sequence == lastSequence {
				continue
			}
			lastSequence = snap.Sequence
			if reading := types.ReadingFromSnapshot(snap); reading != nil {
				s.broadcast(websocket.TextMessage, reading.ToJsonBytes())
			}
		}
	}
}

func (s *Server) broadcast(messageType int, data []byte) {
	s.clientsMu.RLock()
	clients := make([]*wsClient, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.clientsMu.RUnlock()

	for _, client := range clients {
		if err := client.write(messageType, data); err != nil {
			s.removeClient(client)
		}
	}
}

func (s *Server) addClient(client *wsClient) {
	s.clientsMu.Lock()
	s.clients[client] = true
	s.clientsMu.Unlock()
}

func (s *Server) removeClient(client *wsClient) {
	s.clientsMu.Lock()
	delete(s.clients, client)
	s.clientsMu.Unlock()
	client.conn.Close()
}

func (s *Server) closeClients() {
	s.clientsMu.Lock()
	clients := s.clients
	s.clients = make(map[*wsClient]bool)
	s.clientsMu.Unlock()

	for client := range clients {
		client.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		client.conn.Close()
	}
}

func (s *Server) status() types.Status {
	status := s.opts.Sessions.Status()
	return types.Status{
		Open:   status.Open,
		Device: status.Device,
		Driver: status.Driver,
		Exit:   types.ExitInfoFromStatus(status.LastExit),
	}
}

func (c *wsClient) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(messageType, data)
}

// decodeBody accepts an empty body as the zero request.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
