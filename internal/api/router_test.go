package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cudisync/internal/config"
	"cudisync/internal/relay"
)

type testServer struct {
	hub *relay.Hub
	srv *httptest.Server
}

func newTestServer(t *testing.T, limits relay.Limits) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	hub := relay.NewHub(relay.Options{
		Limits:  limits,
		Logger:  logger,
		Metrics: relay.NewMetrics(reg),
	})
	srv := httptest.NewServer(SetupRouter(hub, config.Server{}, logger, reg))
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Stop)
	return &testServer{hub: hub, srv: srv}
}

func (s *testServer) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + path
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func (s *testServer) getJSON(t *testing.T, path string, v any) {
	t.Helper()
	resp, err := http.Get(s.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func readJSON(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m map[string]any
	require.NoError(t, ws.ReadJSON(&m))
	return m
}

func send(t *testing.T, ws *websocket.Conn, raw string) {
	t.Helper()
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(raw)))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, relay.Limits{})

	for _, path := range []string{"/health", "/"} {
		var body map[string]any
		s.getJSON(t, path, &body)
		assert.Equal(t, map[string]any{"ok": true, "service": "cudisync"}, body)
	}
}

func TestRelayEndToEnd(t *testing.T) {
	s := newTestServer(t, relay.Limits{})

	host := s.dial(t, "/ws")
	send(t, host, `{"appType":"cudi-sync","type":"join","room":"mesa","alias":"Host"}`)
	created := readJSON(t, host)
	assert.Equal(t, "room_created", created["type"])
	assert.Equal(t, "mesa", created["room"])
	assert.Equal(t, "cudi-sync", created["appType"])
	hostID, _ := created["peerId"].(string)
	require.NotEmpty(t, hostID)

	// 根路径同样可以升级
	guest := s.dial(t, "/")
	send(t, guest, `{"appType":"cudi-sync","type":"join","room":"mesa","alias":"Ana"}`)
	joined := readJSON(t, guest)
	assert.Equal(t, "joined", joined["type"])
	guestID, _ := joined["peerId"].(string)

	notice := readJSON(t, host)
	assert.Equal(t, "player_joined", notice["type"])
	assert.Equal(t, guestID, notice["peerId"])
	assert.Equal(t, "Ana", notice["alias"])

	raw := `{"appType":"cudi-sync","type":"signal","targetId":"` + hostID + `","sdp":{"type":"offer",  "n":1.0}}`
	send(t, guest, raw)
	require.NoError(t, host.SetReadDeadline(time.Now().Add(2*time.Second)))
	mt, data, err := host.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, mt)
	assert.Equal(t, raw, string(data))

	var stats relay.Stats
	s.getJSON(t, "/stats", &stats)
	assert.Equal(t, relay.Stats{Rooms: 1, Connections: 2}, stats)

	host.Close()
	closed := readJSON(t, guest)
	assert.Equal(t, "room_closed", closed["type"])
}

func TestOversizedMessageCloses(t *testing.T) {
	s := newTestServer(t, relay.Limits{MaxMessageBytes: 1024})
	ws := s.dial(t, "/ws")

	send(t, ws, `{"appType":"cudi-sync","pad":"`+strings.Repeat("x", 2000)+`"}`)

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseMessageTooBig, closeErr.Code)

	require.Eventually(t, func() bool {
		return s.hub.Stats().Connections == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPerAddressCap(t *testing.T) {
	s := newTestServer(t, relay.Limits{MaxConnsPerAddr: 2})
	s.dial(t, "/ws")
	s.dial(t, "/ws")
	require.Eventually(t, func() bool {
		return s.hub.Stats().Connections == 2
	}, 2*time.Second, 10*time.Millisecond)

	// 升级成功后立即被断开
	extra := s.dial(t, "/ws")
	require.NoError(t, extra.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := extra.ReadMessage()
	require.Error(t, err)
	var netErr net.Error
	if errors.As(err, &netErr) {
		assert.False(t, netErr.Timeout(), "连接应被服务端断开而不是读超时")
	}
	assert.Equal(t, 2, s.hub.Stats().Connections)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, relay.Limits{})
	s.dial(t, "/ws")
	require.Eventually(t, func() bool {
		return s.hub.Stats().Connections == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(s.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "cudisync_connections 1")
}
