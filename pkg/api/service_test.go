package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/NotCoffee418/humidity_monitor/pkg/port_reader"
	"github.com/NotCoffee418/humidity_monitor/pkg/serialport"
	"github.com/NotCoffee418/humidity_monitor/pkg/session"
	"github.com/NotCoffee418/humidity_monitor/pkg/sessiondb"
	"github.com/NotCoffee418/humidity_monitor/pkg/types"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type chunkPort struct {
	chunks chan string
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	written bytes.Buffer
}

func newChunkPort() *chunkPort {
	return &chunkPort{chunks: make(chan string, 8), closed: make(chan struct{})}
}

func (p *chunkPort) Read(b []byte) (int, error) {
	select {
	case chunk := <-p.chunks:
		return copy(b, chunk), nil
	case <-p.closed:
		return 0, serialport.ErrPortClosed
	case <-time.After(5 * time.Millisecond):
		return 0, serialport.ErrReadTimeout
	}
}

func (p *chunkPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

func (p *chunkPort) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *chunkPort) writtenString() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

type stubHistory struct{ rows []sessiondb.SessionRow }

func (s stubHistory) RecentSessions(limit int) ([]sessiondb.SessionRow, error) {
	if limit < len(s.rows) {
		return s.rows[:limit], nil
	}
	return s.rows, nil
}

func newTestServer(t *testing.T, port *chunkPort, history SessionLister) (*Server, *httptest.Server) {
	t.Helper()
	manager := session.NewManager(session.Options{
		Serial: serialport.Config{Driver: serialport.DriverBugst},
		Reader: port_reader.Options{PollInterval: time.Millisecond, MaxConsecutiveTimeouts: 1000},
		Open: func(cfg serialport.Config) (serialport.Port, error) {
			if cfg.Device == "/dev/missing" {
				return nil, errors.New("no such file or directory")
			}
			return port, nil
		},
	})
	t.Cleanup(func() { manager.Close() })

	server := NewServer(Options{
		Sessions:   manager,
		Identifier: "20231234",
		ListPorts: func() ([]serialport.PortInfo, error) {
			return []serialport.PortInfo{{Name: "/dev/ttyUSB0", IsUSB: true}}, nil
		},
		History:      history,
		PollInterval: time.Millisecond,
	})
	httpServer := httptest.NewServer(server.Handler())
	t.Cleanup(httpServer.Close)
	return server, httpServer
}

func request(t *testing.T, method, url, body string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, buf.Bytes()
}

func TestSessionEndpoints(t *testing.T) {
	port := newChunkPort()
	_, server := newTestServer(t, port, nil)

	code, body := request(t, http.MethodGet, server.URL+"/", "")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, string(body), "running")

	code, _ = request(t, http.MethodGet, server.URL+"/latest", "")
	require.Equal(t, http.StatusNotFound, code)

	code, _ = request(t, http.MethodPost, server.URL+"/identifier", "")
	require.Equal(t, http.StatusConflict, code)

	code, _ = request(t, http.MethodPost, server.URL+"/open", "")
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = request(t, http.MethodPost, server.URL+"/open", `{"device":"/dev/missing"}`)
	require.Equal(t, http.StatusBadGateway, code)

	code, body = request(t, http.MethodPost, server.URL+"/open", `{"device":"/dev/ttyUSB0"}`)
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"open":true,"device":"/dev/ttyUSB0","driver":"bugst"}`, string(body))

	code, _ = request(t, http.MethodPost, server.URL+"/open", `{"device":"/dev/ttyUSB0"}`)
	require.Equal(t, http.StatusConflict, code)

	code, _ = request(t, http.MethodPost, server.URL+"/identifier", "")
	require.Equal(t, http.StatusOK, code)
	code, _ = request(t, http.MethodPost, server.URL+"/identifier", `{"identifier":"A1"}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "20231234A1", port.writtenString())

	port.chunks <- "Humidity:52%"
	require.Eventually(t, func() bool {
		resp, err := http.Get(server.URL + "/latest")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, time.Second, 5*time.Millisecond)

	_, body = request(t, http.MethodGet, server.URL+"/latest", "")
	var reading types.Reading
	require.NoError(t, json.Unmarshal(body, &reading))
	require.Equal(t, "52", reading.Value)
	require.Equal(t, 52.0, *reading.HumidityPercent)

	code, body = request(t, http.MethodPost, server.URL+"/close", "")
	require.Equal(t, http.StatusOK, code)
	var status types.Status
	require.NoError(t, json.Unmarshal(body, &status))
	require.False(t, status.Open)
	require.Equal(t, "stopped", status.Exit.Reason)

	code, _ = request(t, http.MethodPost, server.URL+"/open", `{not json`)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestPortsAndSessions(t *testing.T) {
	_, server := newTestServer(t, newChunkPort(), nil)

	code, body := request(t, http.MethodGet, server.URL+"/ports", "")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `[{"name":"/dev/ttyUSB0","is_usb":true}]`, string(body))

	code, _ = request(t, http.MethodGet, server.URL+"/sessions", "")
	require.Equal(t, http.StatusNotFound, code)

	history := stubHistory{rows: []sessiondb.SessionRow{
		{ID: 2, Device: "COM3", Driver: "tarm", ExitReason: "failed"},
		{ID: 1, Device: "COM3", Driver: "tarm", ExitReason: "timed_out"},
	}}
	_, server = newTestServer(t, newChunkPort(), history)

	code, body = request(t, http.MethodGet, server.URL+"/sessions?limit=1", "")
	require.Equal(t, http.StatusOK, code)
	var rows []sessiondb.SessionRow
	require.NoError(t, json.Unmarshal(body, &rows))
	require.Len(t, rows, 1)
	require.Equal(t, int64(2), rows[0].ID)

	code, _ = request(t, http.MethodGet, server.URL+"/sessions?limit=zero", "")
	require.Equal(t, http.StatusBadRequest, code)
}

func TestWebSocketBroadcast(t *testing.T) {
	port := newChunkPort()
	api, server := newTestServer(t, port, nil)

	ctx, cancel := context.WithCancel(context.Background())
	broadcasterDone := make(chan error, 1)
	go func() { broadcasterDone <- api.RunBroadcaster(ctx) }()
	defer func() {
		cancel()
		<-broadcasterDone
	}()

	code, _ := request(t, http.MethodPost, server.URL+"/open", `{"device":"/dev/ttyUSB0"}`)
	require.Equal(t, http.StatusOK, code)
	port.chunks <- "Humidity:40%"
	require.Eventually(t, func() bool {
		return api.opts.Sessions.Latest().Value == "40"
	}, time.Second, time.Millisecond)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	// Current value arrives right after connecting
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, "40", types.ReadingFromJsonBytes(message).Value)

	port.chunks <- "Humidity:41%Humidity:42%"
	for {
		_, message, err = conn.ReadMessage()
		require.NoError(t, err)
		if reading := types.ReadingFromJsonBytes(message); reading.Value == "42" {
			break
		}
	}
}
