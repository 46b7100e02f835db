package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokmz/netgate/pkg/config"
	"github.com/tokmz/netgate/pkg/eventbus"
	"github.com/tokmz/netgate/pkg/transport/websocket"
)

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, settings config.ServerSettings) (*eventbus.Bus, *httptest.Server) {
	t.Helper()

	bus, err := eventbus.New(nil, eventbus.WithWorkerCount(1))
	require.NoError(t, err)
	ws := websocket.NewServer(bus, nil, nil)
	bus.SetTransport(ws)
	require.NoError(t, bus.Start())

	srv := httptest.NewServer(New(bus, ws, settings, nil).Handler())
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = ws.Shutdown(ctx)
		_ = bus.Shutdown(ctx)
	})
	return bus, srv
}

func getJSON(t *testing.T, url string) apiResponse {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// 统计接口返回快照 JSON
func TestStatsEndpoint(t *testing.T) {
	bus, srv := newTestServer(t, config.ServerSettings{})

	handle := &struct{}{}
	bus.OnOpen(handle)

	out := getJSON(t, srv.URL+"/api/v1/stats")
	assert.Equal(t, 0, out.Code)

	var stats eventbus.StatsSnapshot
	require.NoError(t, json.Unmarshal(out.Data, &stats))
	assert.Equal(t, uint64(1), stats.ConnectionsTotal)
	assert.Equal(t, uint64(1), stats.ConnectionsActive)
}

// 统计重置接口
func TestStatsResetEndpoint(t *testing.T) {
	bus, srv := newTestServer(t, config.ServerSettings{})
	bus.OnOpen(&struct{}{})

	resp, err := http.Post(srv.URL+"/api/v1/stats/reset", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, uint64(0), bus.Stats().ConnectionsTotal)
}

// 回调列表接口
func TestCallbacksEndpoint(t *testing.T) {
	bus, srv := newTestServer(t, config.ServerSettings{})

	id := bus.RegisterCallbackWithPriority(
		eventbus.Filter{Types: []eventbus.EventType{eventbus.EventMessageReceived}},
		eventbus.PriorityHigh,
		func(*eventbus.Event) {},
	)

	out := getJSON(t, srv.URL+"/api/v1/callbacks")

	var infos []eventbus.CallbackInfo
	require.NoError(t, json.Unmarshal(out.Data, &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, id, infos[0].ID)
	assert.Equal(t, "high", infos[0].Priority)
}

// WebSocket 入口经路由升级后可正常通信
func TestWebSocketRoute(t *testing.T) {
	bus, srv := newTestServer(t, config.ServerSettings{})

	bus.OnMessageReceived(func(ev *eventbus.Event, ctx eventbus.MessageContext) {
		bus.SendMessage(ctx.Conn.ID, string(ctx.Data), nil)
	})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	client, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.WriteMessage(gorilla.TextMessage, []byte("ping")))
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "ping", string(data))
}

// 静态文件路由
func TestStaticRoute(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>ui</html>"), 0o644))

	_, srv := newTestServer(t, config.ServerSettings{StaticDir: dir})

	resp, err := http.Get(srv.URL + "/ui/index.html")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
