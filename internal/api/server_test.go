package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dsa-planner/internal/config"
	"github.com/sells-group/dsa-planner/internal/fixture"
	"github.com/sells-group/dsa-planner/internal/layers"
	"github.com/sells-group/dsa-planner/internal/model"
	"github.com/sells-group/dsa-planner/internal/ranking"
	"github.com/sells-group/dsa-planner/internal/scorer"
	"github.com/sells-group/dsa-planner/internal/session"
	"github.com/sells-group/dsa-planner/internal/simulation"
)

// idleTicker never fires, so only explicit steps change the session.
type idleTicker struct{}

func (idleTicker) Chan() <-chan time.Time { return nil }
func (idleTicker) Stop()                  {}

func plannerConfig() config.PlannerConfig {
	return config.PlannerConfig{
		Scorer:           scorer.DefaultScorerConfig(),
		Compliance:       config.ComplianceConfig{BufferMeters: 200},
		Recommend:        config.RecommendConfig{PressureBonus: 0.04},
		OvercrowdedRatio: 0.85,
		HighAQI:          95,
		ModerateAQI:      85,
		HotspotLimit:     6,
		GapLimit:         3,
	}
}

func simConfig() config.SimulationConfig {
	return config.SimulationConfig{
		TickInterval:   time.Second,
		OccupancyDelta: 4,
		OverCapacity:   10,
		AQIDelta:       5,
		AQIMin:         55,
		AQIMax:         115,
		Seed:           7,
	}
}

type testServer struct {
	srv  *Server
	sess *session.Session
	sim  *simulation.Simulator
	h    http.Handler
}

func newTestServer(t *testing.T, srvCfg config.ServerConfig) *testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	sess, err := session.New(fixture.Default(), plannerConfig())
	require.NoError(t, err)
	sim, err := simulation.New(sess, simConfig(),
		simulation.WithTicker(func(time.Duration) simulation.Ticker { return idleTicker{} }))
	require.NoError(t, err)
	t.Cleanup(sim.Stop)

	if srvCfg.AllowedOrigins == nil {
		srvCfg.AllowedOrigins = []string{"*"}
	}
	srv := New(ctx, sess, sim, plannerConfig(), srvCfg)
	return &testServer{srv: srv, sess: sess, sim: sim, h: srv.Handler()}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	ts.h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})
	rr := ts.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, "ok", decode[map[string]string](t, rr)["status"])
}

func TestOverview(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})
	rr := ts.do(t, http.MethodGet, "/overview", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		ActiveAreas       int `json:"active_areas"`
		ProtectedZones    int `json:"protected_zones"`
		ApprovedProposals int `json:"approved_proposals"`
		AverageAQI        int `json:"average_aqi"`
		WorstSensor       struct {
			ID string `json:"id"`
		} `json:"worst_sensor"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 12, body.ActiveAreas)
	assert.Equal(t, 8, body.ProtectedZones)
	assert.Equal(t, 1, body.ApprovedProposals)
	assert.Equal(t, 88, body.AverageAQI)
	assert.Equal(t, "A4", body.WorstSensor.ID)
}

func TestSnapshot(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})
	rr := ts.do(t, http.MethodGet, "/snapshot", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"Raffles Place Corner A"`)
}

func TestAreaScore(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})

	rr := ts.do(t, http.MethodGet, "/areas/N2/score", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	score := decode[session.AreaScore](t, rr)
	assert.Equal(t, "N2", score.Area.ID)

	rr = ts.do(t, http.MethodGet, "/areas/nope/score", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, decode[map[string]string](t, rr)["error"], "nope")
}

func TestProposalCompliance(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})

	rr := ts.do(t, http.MethodGet, "/proposals/P1/compliance", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"P1"`)

	rr = ts.do(t, http.MethodGet, "/proposals/P9/compliance", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHotspots(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})

	rr := ts.do(t, http.MethodGet, "/hotspots", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	hs := decode[[]ranking.Hotspot](t, rr)
	assert.Len(t, hs, 6)
	for i := 1; i < len(hs); i++ {
		assert.GreaterOrEqual(t, hs[i-1].Score, hs[i].Score)
	}

	rr = ts.do(t, http.MethodGet, "/hotspots?n=2", nil)
	assert.Len(t, decode[[]ranking.Hotspot](t, rr), 2)

	rr = ts.do(t, http.MethodGet, "/hotspots?n=lots", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGaps(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})

	rr := ts.do(t, http.MethodGet, "/gaps", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]map[string]any](t, rr), 3)

	rr = ts.do(t, http.MethodGet, "/gaps?n=x", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRecommendations(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})
	rr := ts.do(t, http.MethodGet, "/recommendations", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]map[string]any](t, rr), 3)
}

func TestSetProposalStatus(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})

	rr := ts.do(t, http.MethodGet, "/reviews", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	rr = ts.do(t, http.MethodPost, "/proposals/P3/status", map[string]string{"status": "approve"})
	require.Equal(t, http.StatusOK, rr.Code)
	ev := decode[session.ReviewEvent](t, rr)
	assert.Equal(t, "P3", ev.ProposalID)
	assert.Equal(t, model.StatusPending, ev.From)
	assert.Equal(t, model.StatusApproved, ev.To)

	rr = ts.do(t, http.MethodGet, "/reviews", nil)
	assert.Len(t, decode[[]session.ReviewEvent](t, rr), 1)

	rr = ts.do(t, http.MethodPost, "/proposals/P3/status", map[string]string{"status": "maybe"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(t, http.MethodPost, "/proposals/P9/status", map[string]string{"status": "Rejected"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/proposals/P3/status", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	ts.h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAlerts(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})
	rr := ts.do(t, http.MethodGet, "/alerts", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"high_aqi"`)
}

func TestLayers(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})

	rr := ts.do(t, http.MethodGet, "/layers", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]string](t, rr), len(layers.All()))

	rr = ts.do(t, http.MethodGet, "/layers/density", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/geo+json", rr.Header().Get("Content-Type"))
	var fc struct {
		Type     string           `json:"type"`
		Features []map[string]any `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Len(t, fc.Features, 12)

	rr = ts.do(t, http.MethodGet, "/layers/rivers", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAgent(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})

	rr := ts.do(t, http.MethodPost, "/agent", map[string]string{"text": "AQI summary"})
	require.Equal(t, http.StatusOK, rr.Code)
	reply := decode[map[string]string](t, rr)
	assert.Equal(t, "aqi", reply["intent"])
	assert.Contains(t, reply["text"], "Average AQI: 88")

	rr = ts.do(t, http.MethodPost, "/agent", map[string]string{"text": ""})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSimulationControl(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})

	rr := ts.do(t, http.MethodGet, "/simulation", nil)
	assert.JSONEq(t, `{"running":false,"tick":0}`, rr.Body.String())

	rr = ts.do(t, http.MethodPost, "/simulation/step", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"running":false,"tick":1}`, rr.Body.String())

	rr = ts.do(t, http.MethodPost, "/simulation/start", nil)
	assert.JSONEq(t, `{"running":true,"tick":1}`, rr.Body.String())
	assert.True(t, ts.sim.Running())

	rr = ts.do(t, http.MethodPost, "/simulation/stop", nil)
	assert.JSONEq(t, `{"running":false,"tick":1}`, rr.Body.String())
	assert.False(t, ts.sim.Running())
}

func TestReset(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})
	ts.do(t, http.MethodPost, "/simulation/step", nil)
	ts.do(t, http.MethodPost, "/proposals/P3/status", map[string]string{"status": "Rejected"})

	rr := ts.do(t, http.MethodPost, "/reset", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	snap := ts.sess.Snapshot()
	assert.Equal(t, fixture.Default().Areas, snap.Dataset.Areas)
	assert.Equal(t, model.StatusPending, snap.Dataset.Proposals[2].Status)
}

func TestRecompute(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})
	ts.do(t, http.MethodPost, "/simulation/step", nil)
	before := ts.sess.Snapshot()

	var pushes int
	unsubscribe := ts.sess.Subscribe(func(session.Derived) { pushes++ })
	defer unsubscribe()

	rr := ts.do(t, http.MethodPost, "/recompute", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"running":false,"tick":1}`, rr.Body.String())

	after := ts.sess.Snapshot()
	assert.Equal(t, before.Dataset, after.Dataset)
	assert.Equal(t, before.Derived.Ranked, after.Derived.Ranked)
	assert.Equal(t, 1, pushes)
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{RateLimit: 0.001, RateBurst: 1})

	rr := ts.do(t, http.MethodPost, "/agent", map[string]string{"text": "help"})
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = ts.do(t, http.MethodPost, "/agent", map[string]string{"text": "help"})
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	// Reads are not limited.
	rr = ts.do(t, http.MethodGet, "/overview", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{AllowedOrigins: []string{"https://planner.example"}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://planner.example")
	rr := httptest.NewRecorder()
	ts.h.ServeHTTP(rr, req)
	assert.Equal(t, "https://planner.example", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	ts.h.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestWebsocket_PushesUpdates(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})
	httpSrv := httptest.NewServer(ts.h)
	defer httpSrv.Close()

	url := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close() //nolint:errcheck

	read := func() Update {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var u Update
		require.NoError(t, conn.ReadJSON(&u))
		return u
	}

	first := read()
	assert.Equal(t, "update", first.Type)
	assert.Equal(t, int64(0), first.Overview.Tick)
	assert.Len(t, first.Hotspots, 6)
	assert.Eventually(t, func() bool { return ts.srv.hub.clientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, ts.sim.Step())
	assert.Equal(t, int64(1), read().Overview.Tick)
}
