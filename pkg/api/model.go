package api

import (
	"sync"
	"time"

	"github.com/NotCoffee418/humidity_monitor/pkg/serialport"
	"github.com/NotCoffee418/humidity_monitor/pkg/session"
	"github.com/NotCoffee418/humidity_monitor/pkg/sessiondb"
	"github.com/gorilla/websocket"
)

// SessionLister is the read side of the session log.
type SessionLister interface {
	RecentSessions(limit int) ([]sessiondb.SessionRow, error)
}

type Options struct {
	Sessions *session.Manager

	// Sent by POST /identifier when the request has none
	Identifier string

	// Defaults to serialport.ListPorts
	ListPorts func() ([]serialport.PortInfo, error)

	// Optional, GET /sessions answers 404 without it
	History SessionLister

	// How often the broadcaster checks for a new value
	PollInterval time.Duration
}

type Server struct {
	opts     Options
	upgrader websocket.Upgrader

	// ws clients for broadcasting live readings
	clientsMu sync.RWMutex
	clients   map[*wsClient]bool
}

// gorilla/websocket allows one concurrent writer per connection.
type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

type openRequest struct {
	Device string `json:"device"`
}

type identifierRequest struct {
	Identifier string `json:"identifier"`
}
