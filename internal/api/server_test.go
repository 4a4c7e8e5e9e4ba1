package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/relief-mobility/internal/config"
	"github.com/talgya/relief-mobility/internal/engine"
	"github.com/talgya/relief-mobility/internal/world"
)

const scenarioDoc = `
seed: 5
days: 1
map:
  generate: {columns: 6, rows: 5, spacing: 100}
  sites: {home: 3, hospital: 1, airport: 1, rdc: 1, osocc: 1, base_camp: 1, town_hall: 1, food: 1}
groups:
  - {role: Healthy, count: 2, sleep_time_min: 21600, sleep_time_max: 28800}
  - {role: DRO, count: 1, sleep_time_min: 21600, sleep_time_max: 28800}
`

func newTestServer(t *testing.T, hub *Hub) (*Server, *httptest.Server) {
	t.Helper()
	scn, err := config.Parse([]byte(scenarioDoc))
	require.NoError(t, err)
	sim, err := engine.Build(scn)
	require.NoError(t, err)

	s := &Server{
		Sim: sim,
		Eng: engine.NewEngine(1, scn.DayLength, scn.Days),
		Hub: hub,
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK && out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestStatus(t *testing.T) {
	_, ts := newTestServer(t, NewHub(2))

	var status map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/status", &status))
	assert.Equal(t, float64(3), status["agents"])
	assert.Equal(t, "Day 0, 00:00:00", status["sim_time"])
	assert.Equal(t, false, status["running"])
	assert.Equal(t, float64(0), status["subscribers"])
}

func TestAgents(t *testing.T) {
	_, ts := newTestServer(t, nil)

	var all []engine.AgentView
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/agents", &all))
	assert.Len(t, all, 3)

	var dro []engine.AgentView
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/agents?role=dro", &dro))
	require.Len(t, dro, 1)
	assert.Equal(t, "DRO", dro[0].Role)
	assert.Equal(t, "Arrival", dro[0].Activity)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/v1/agents?role=Pilot", nil))

	var limited []engine.AgentView
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/agents?limit=1", &limited))
	assert.Len(t, limited, 1)
}

func TestAgentDetail(t *testing.T) {
	_, ts := newTestServer(t, nil)

	var v engine.AgentView
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/agent/1", &v))
	assert.Equal(t, "Healthy", v.Role)

	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/v1/agent/999", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/v1/agent/abc", nil))
}

func TestRunWithoutDB(t *testing.T) {
	_, ts := newTestServer(t, nil)
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/v1/run", nil))
}

func TestStreamWithoutHub(t *testing.T) {
	_, ts := newTestServer(t, nil)
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/v1/stream", nil))
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/stream"
}

func TestStream_DeliversPaths(t *testing.T) {
	hub := NewHub(2)
	_, ts := newTestServer(t, hub)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	sent := engine.PathEvent{
		Seq:       7,
		AgentID:   1,
		Agent:     "Healthy-1",
		Role:      "Healthy",
		Activity:  "Healthy",
		Time:      120,
		Speed:     1.2,
		Waypoints: []world.Coord{{X: 0, Y: 0}, {X: 100, Y: 0}},
	}
	require.NoError(t, hub.Record(sent))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var got engine.PathEvent
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, sent, got)

	hub.Close()
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestStream_Busy(t *testing.T) {
	hub := NewHub(1)
	_, ts := newTestServer(t, hub)

	first, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer first.Close()
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	second, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer second.Close()
	_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = second.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseTryAgainLater), "got %v", err)
	assert.Equal(t, 1, hub.Subscribers())
}

func TestHub_DropsForSlowSubscriber(t *testing.T) {
	hub := NewHub(1)
	id, ch, ok := hub.subscribe()
	require.True(t, ok)
	defer hub.unsubscribe(id)

	for i := 0; i < subscriberBuffer+5; i++ {
		require.NoError(t, hub.Record(engine.PathEvent{Seq: uint64(i + 1)}))
	}
	assert.Len(t, ch, subscriberBuffer)
	assert.Equal(t, uint64(5), hub.Dropped())
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "clients are limited separately")
	assert.Equal(t, 61, rl.RetryAfter("a"))

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("a"), "window resets")
	assert.Zero(t, rl.RetryAfter("unknown"))
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	h := RateLimitMiddleware(rl, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stream", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	rec := httptest.NewRecorder()
	h(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	req.Header.Set("X-Forwarded-For", "192.0.2.9, 10.0.0.1")
	assert.Equal(t, "192.0.2.9", clientAddr(req))
}
