package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/sharetube/watchsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Errors  []struct {
		Field string `json:"field"`
	} `json:"errors"`
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Host:       "127.0.0.1",
		Port:       4000,
		LogLevel:   "DEBUG",
		RoomStore:  RoomStoreMemory,
		SendBuffer: 64,
	}
}

func newTestServer(t *testing.T, cfg *AppConfig) *httptest.Server {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	logger, err := newLogger(io.Discard, cfg.LogLevel)
	require.NoError(t, err)

	handler, cleanup, err := newHandler(ctx, cfg, logger)
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		cleanup()
		cancel()
	})

	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	return ws
}

func send(t *testing.T, ws *websocket.Conn, messageType string, payload any) {
	t.Helper()

	require.NoError(t, ws.WriteJSON(map[string]any{
		"type":    messageType,
		"payload": payload,
	}))
}

func read(t *testing.T, ws *websocket.Conn) envelope {
	t.Helper()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg envelope
	require.NoError(t, ws.ReadJSON(&msg))

	return msg
}

func readState(t *testing.T, ws *websocket.Conn) domain.RoomState {
	t.Helper()

	msg := read(t, ws)
	require.Equal(t, "syncVideo", msg.Type)
	var state domain.RoomState
	require.NoError(t, json.Unmarshal(msg.Payload, &state))

	return state
}

func readEvent(t *testing.T, ws *websocket.Conn) domain.VideoEvent {
	t.Helper()

	msg := read(t, ws)
	require.Equal(t, "videoEvent", msg.Type)
	var event domain.VideoEvent
	require.NoError(t, json.Unmarshal(msg.Payload, &event))

	return event
}

func readError(t *testing.T, ws *websocket.Conn) errorPayload {
	t.Helper()

	msg := read(t, ws)
	require.Equal(t, "error", msg.Type)
	var payload errorPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))

	return payload
}

// flush waits until everything ws sent before has been handled. Frames of one connection are
// handled in order, so the probe snapshot arrives only after earlier messages were processed.
func flush(t *testing.T, ws *websocket.Conn) {
	t.Helper()

	send(t, ws, "joinRoom", map[string]any{"roomId": "probe"})
	state := readState(t, ws)
	require.Equal(t, "probe", state.RoomId)
}

func TestAppConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*AppConfig)
		wantErr bool
	}{
		{name: "default", modify: func(*AppConfig) {}},
		{name: "redis store", modify: func(c *AppConfig) { c.RoomStore = RoomStoreRedis }},
		{name: "unknown store", modify: func(c *AppConfig) { c.RoomStore = "postgres" }, wantErr: true},
		{name: "negative ttl", modify: func(c *AppConfig) { c.RoomTTL = -time.Second }, wantErr: true},
		{name: "zero send buffer", modify: func(c *AppConfig) { c.SendBuffer = 0 }, wantErr: true},
		{name: "bad port", modify: func(c *AppConfig) { c.Port = 70000 }, wantErr: true},
		{name: "bad log level", modify: func(c *AppConfig) { c.LogLevel = "LOUD" }, wantErr: true},
		{name: "lowercase log level", modify: func(c *AppConfig) { c.LogLevel = "warn" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHTTPRoutes(t *testing.T) {
	srv := newTestServer(t, defaultConfig())

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Server is running", string(body))

	resp, err = http.Get(srv.URL + "/api/v1/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "watchsync_connections_open")
}

func TestCreateJoinAndRelay(t *testing.T) {
	srv := newTestServer(t, defaultConfig())
	owner := dial(t, srv)
	viewer := dial(t, srv)

	send(t, owner, "createRoom", map[string]any{"roomId": "R1", "videoUrl": "https://example.com/v"})
	assert.Equal(t, domain.RoomState{
		RoomId:   "R1",
		VideoUrl: "https://example.com/v",
		State:    domain.PlaybackStatePaused,
	}, readState(t, owner))

	send(t, viewer, "joinRoom", map[string]any{"roomId": "R1"})
	assert.Equal(t, "https://example.com/v", readState(t, viewer).VideoUrl)

	send(t, owner, "videoEvent", map[string]any{"type": "play", "currentTime": 5000})
	// the sender never gets its own event back
	flush(t, owner)

	assert.Equal(t, domain.VideoEvent{Type: domain.VideoEventPlay, CurrentTime: 5000}, readEvent(t, viewer))

	late := dial(t, srv)
	send(t, late, "joinRoom", map[string]any{"roomId": "R1"})
	state := readState(t, late)
	assert.Equal(t, int64(5000), state.LastKnownTime)
	assert.Equal(t, domain.PlaybackStatePlaying, state.State)

	resp, err := http.Get(srv.URL + "/api/v1/rooms/R1")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body struct {
		Data domain.RoomState `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, state, body.Data)
}

func TestJoinUnknownRoom(t *testing.T) {
	srv := newTestServer(t, defaultConfig())
	ws := dial(t, srv)

	send(t, ws, "joinRoom", map[string]any{"roomId": "nope"})
	assert.Equal(t, domain.DefaultRoomState("nope"), readState(t, ws))
}

func TestEmptyRoomIdIsARoom(t *testing.T) {
	srv := newTestServer(t, defaultConfig())
	owner := dial(t, srv)
	viewer := dial(t, srv)

	send(t, owner, "createRoom", map[string]any{"roomId": "", "videoUrl": "v"})
	assert.Equal(t, domain.NewRoomState("", "v"), readState(t, owner))

	send(t, viewer, "joinRoom", map[string]any{})
	assert.Equal(t, "v", readState(t, viewer).VideoUrl)
}

func TestRoomIsolation(t *testing.T) {
	srv := newTestServer(t, defaultConfig())
	a := dial(t, srv)
	b := dial(t, srv)

	send(t, a, "createRoom", map[string]any{"roomId": "A", "videoUrl": "a"})
	readState(t, a)
	send(t, b, "createRoom", map[string]any{"roomId": "B", "videoUrl": "b"})
	readState(t, b)

	send(t, a, "videoEvent", map[string]any{"type": "seek", "currentTime": 42})
	flush(t, a)

	// b's next message is its own probe, not a's event
	flush(t, b)
}

func TestUpdateRoomReachesEveryMember(t *testing.T) {
	srv := newTestServer(t, defaultConfig())
	owner := dial(t, srv)
	viewer := dial(t, srv)

	send(t, owner, "createRoom", map[string]any{"roomId": "R1", "videoUrl": "old"})
	readState(t, owner)
	send(t, viewer, "joinRoom", map[string]any{"roomId": "R1"})
	readState(t, viewer)

	send(t, owner, "updateRoom", map[string]any{"roomId": "R1", "videoUrl": "new"})
	assert.Equal(t, "new", readState(t, owner).VideoUrl)
	assert.Equal(t, "new", readState(t, viewer).VideoUrl)

	send(t, owner, "updateRoom", map[string]any{"roomId": "missing", "videoUrl": "x"})
	flush(t, owner)
}

func TestInvalidMessages(t *testing.T) {
	srv := newTestServer(t, defaultConfig())
	ws := dial(t, srv)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.NotEmpty(t, readError(t, ws).Message)

	send(t, ws, "rewind", map[string]any{})
	assert.Contains(t, readError(t, ws).Message, "unknown message type")

	send(t, ws, "videoEvent", map[string]any{"type": "rewind", "currentTime": 1})
	errPayload := readError(t, ws)
	require.Len(t, errPayload.Errors, 1)
	assert.Equal(t, "type", errPayload.Errors[0].Field)

	send(t, ws, "joinRoom", map[string]any{"roomId": strings.Repeat("r", 129)})
	errPayload = readError(t, ws)
	require.Len(t, errPayload.Errors, 1)
	assert.Equal(t, "roomId", errPayload.Errors[0].Field)

	send(t, ws, "videoEvent", map[string]any{"type": "play", "currentTime": 1, "roomId": "not-joined"})
	assert.Contains(t, readError(t, ws).Message, "not a member")

	// the connection survives bad input
	flush(t, ws)
}

func TestDisconnectKeepsRoomState(t *testing.T) {
	srv := newTestServer(t, defaultConfig())
	owner := dial(t, srv)

	send(t, owner, "createRoom", map[string]any{"roomId": "R1", "videoUrl": "v"})
	readState(t, owner)
	send(t, owner, "videoEvent", map[string]any{"type": "pause", "currentTime": 900})
	flush(t, owner)
	require.NoError(t, owner.Close())

	viewer := dial(t, srv)
	send(t, viewer, "joinRoom", map[string]any{"roomId": "R1"})
	state := readState(t, viewer)
	assert.Equal(t, int64(900), state.LastKnownTime)
	assert.Equal(t, domain.PlaybackStatePaused, state.State)
}

func TestLeaveRoomStopsDelivery(t *testing.T) {
	srv := newTestServer(t, defaultConfig())
	owner := dial(t, srv)
	viewer := dial(t, srv)

	send(t, owner, "createRoom", map[string]any{"roomId": "R1", "videoUrl": "v"})
	readState(t, owner)
	send(t, viewer, "joinRoom", map[string]any{"roomId": "R1"})
	readState(t, viewer)

	send(t, viewer, "leaveRoom", map[string]any{"roomId": "R1"})
	flush(t, viewer)

	send(t, owner, "videoEvent", map[string]any{"type": "play", "currentTime": 1, "roomId": "R1"})
	flush(t, owner)
	flush(t, viewer)
}

func TestRedisRoomStore(t *testing.T) {
	s := miniredis.RunT(t)

	cfg := defaultConfig()
	cfg.RoomStore = RoomStoreRedis
	cfg.RedisHost = s.Host()
	cfg.RedisPort = mustAtoi(t, s.Port())
	cfg.RoomTTL = time.Hour

	srv := newTestServer(t, cfg)
	owner := dial(t, srv)
	viewer := dial(t, srv)

	send(t, owner, "createRoom", map[string]any{"roomId": "R1", "videoUrl": "v"})
	readState(t, owner)
	send(t, owner, "videoEvent", map[string]any{"type": "play", "currentTime": 300})
	flush(t, owner)

	send(t, viewer, "joinRoom", map[string]any{"roomId": "R1"})
	state := readState(t, viewer)
	assert.Equal(t, int64(300), state.LastKnownTime)
	assert.Equal(t, domain.PlaybackStatePlaying, state.State)
	assert.True(t, s.Exists("room:R1:state"))
}

func TestRedisRoomStoreUnavailable(t *testing.T) {
	s := miniredis.RunT(t)
	cfg := defaultConfig()
	cfg.RoomStore = RoomStoreRedis
	cfg.RedisHost = s.Host()
	cfg.RedisPort = mustAtoi(t, s.Port())
	s.Close()

	logger, err := newLogger(io.Discard, cfg.LogLevel)
	require.NoError(t, err)
	_, _, err = newHandler(context.Background(), cfg, logger)
	assert.Error(t, err)
}

func mustAtoi(t *testing.T, s string) int {
	t.Helper()

	n, err := strconv.Atoi(s)
	require.NoError(t, err)

	return n
}

func TestConcurrentEventsOverWebsocket(t *testing.T) {
	srv := newTestServer(t, defaultConfig())
	a := dial(t, srv)
	b := dial(t, srv)
	observer := dial(t, srv)

	send(t, a, "createRoom", map[string]any{"roomId": "R1", "videoUrl": "v"})
	readState(t, a)
	send(t, b, "joinRoom", map[string]any{"roomId": "R1"})
	readState(t, b)
	send(t, observer, "joinRoom", map[string]any{"roomId": "R1"})
	state := readState(t, observer)

	const perMember = 20
	var wg sync.WaitGroup
	for i, ws := range []*websocket.Conn{a, b} {
		wg.Add(1)
		go func(ws *websocket.Conn, offset int) {
			defer wg.Done()
			for j := 0; j < perMember; j++ {
				eventType := "play"
				if j%2 == 1 {
					eventType = "pause"
				}
				assert.NoError(t, ws.WriteJSON(map[string]any{
					"type":    "videoEvent",
					"payload": map[string]any{"type": eventType, "currentTime": offset + j},
				}))
			}
		}(ws, (i+1)*1000)
	}
	wg.Wait()

	for i := 0; i < 2*perMember; i++ {
		state = domain.Reconcile(state, readEvent(t, observer))
	}

	resp, err := http.Get(srv.URL + "/api/v1/rooms/R1")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body struct {
		Data domain.RoomState `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, body.Data, state)
}
