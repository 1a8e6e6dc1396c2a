package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, b *Broadcaster) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewHandler(b, "video/webm").Register(mux)
	srv := httptest.NewServer(loggingMiddleware(mux))
	t.Cleanup(srv.Close)
	return srv
}

func TestStreamEndpoint(t *testing.T) {
	init := []byte{0x1A, 0x45, 0xDF, 0xA3, 0x9F, 0x42, 0x86, 0x81, 0x01}
	cluster := []byte{0x1F, 0x43, 0xB6, 0x75, 0x84, 0xE7, 0x81, 0x00, 0xA0}

	b := NewBroadcaster()
	b.AppendInit(init)
	srv := newTestServer(t, b)

	resp, err := http.Get(srv.URL + "/stream")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "video/webm", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	got := make([]byte, len(init))
	_, err = io.ReadFull(resp.Body, got)
	require.NoError(t, err)
	assert.Equal(t, init, got, "init segment should arrive before any cluster")

	// The init read proves the handler subscribed, so this broadcast
	// reaches it.
	b.Broadcast(cluster)
	got = make([]byte, len(cluster))
	_, err = io.ReadFull(resp.Body, got)
	require.NoError(t, err)
	assert.Equal(t, cluster, got)

	// Closing the broadcaster ends the stream cleanly.
	b.Close()
	rest, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Empty(t, rest)
}

func TestStreamClientDisconnect(t *testing.T) {
	b := NewBroadcaster()
	b.AppendInit([]byte{0x1A, 0x45, 0xDF, 0xA3})
	srv := newTestServer(t, b)
	defer b.Close()

	resp, err := http.Get(srv.URL + "/stream")
	require.NoError(t, err)

	got := make([]byte, 4)
	_, err = io.ReadFull(resp.Body, got)
	require.NoError(t, err)
	require.Equal(t, 1, b.SubscriberCount())

	resp.Body.Close()
	require.Eventually(t, func() bool {
		return b.SubscriberCount() == 0
	}, time.Second, 10*time.Millisecond, "handler should unsubscribe when the client disconnects")
}

func TestStreamWebSocket(t *testing.T) {
	init := []byte{0x1A, 0x45, 0xDF, 0xA3, 0x9F}
	cluster := []byte{0x1F, 0x43, 0xB6, 0x75, 0x84}

	b := NewBroadcaster()
	b.AppendInit(init)
	srv := newTestServer(t, b)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	mt, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, mt)
	assert.Equal(t, init, data)

	b.Broadcast(cluster)
	mt, data, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, mt)
	assert.Equal(t, cluster, data)

	b.Close()
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "connection should end once the broadcaster closes")
}

func TestStatsEndpoint(t *testing.T) {
	b := NewBroadcaster()
	b.AppendInit([]byte{0x1A, 0x45})
	b.Broadcast([]byte{0x01, 0x02, 0x03})
	b.Broadcast([]byte{0x04, 0x05})
	srv := newTestServer(t, b)

	resp, err := http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var stats struct {
		Subscribers int    `json:"subscribers"`
		Clusters    uint64 `json:"clusters"`
		Bytes       uint64 `json:"bytes"`
		Uptime      string `json:"uptime"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 0, stats.Subscribers)
	assert.Equal(t, uint64(2), stats.Clusters)
	assert.Equal(t, uint64(5), stats.Bytes)
	assert.NotEmpty(t, stats.Uptime)
}
