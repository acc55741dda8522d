package simulation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dsa-planner/internal/config"
	"github.com/sells-group/dsa-planner/internal/geo"
	"github.com/sells-group/dsa-planner/internal/model"
	"github.com/sells-group/dsa-planner/internal/scorer"
	"github.com/sells-group/dsa-planner/internal/session"
)

// fixedSource always returns the same signed fraction of the limit.
type fixedSource struct{ sign int }

func (f fixedSource) Delta(limit int) int { return f.sign * limit }

type fakeTicker struct {
	c       chan time.Time
	stopped chan struct{}
}

func newFakeTicker() *fakeTicker {
	return &fakeTicker{c: make(chan time.Time), stopped: make(chan struct{})}
}

func (f *fakeTicker) Chan() <-chan time.Time { return f.c }
func (f *fakeTicker) Stop()                  { close(f.stopped) }

func simConfig() config.SimulationConfig {
	return config.SimulationConfig{
		TickInterval:   3500 * time.Millisecond,
		OccupancyDelta: 4,
		OverCapacity:   10,
		AQIDelta:       5,
		AQIMin:         55,
		AQIMax:         115,
	}
}

func testDataset() model.Dataset {
	at := geo.Coordinate{Lat: 1.30, Lng: 103.85}
	return model.Dataset{
		Areas: []model.MonitoredArea{
			{ID: "A", District: "CBD", Location: at, Capacity: 20, Occupancy: 10},
			{ID: "B", District: "East", Location: at, Capacity: 5, Occupancy: 14},
		},
		Sensors: []model.AirQualitySensor{
			{ID: "S1", Location: at, AQI: 112},
			{ID: "S2", Location: at, AQI: 57},
		},
	}
}

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	s, err := session.New(testDataset(), config.PlannerConfig{
		Scorer:     scorer.DefaultScorerConfig(),
		Compliance: config.ComplianceConfig{BufferMeters: 200},
	})
	require.NoError(t, err)
	return s
}

func TestRandSource_Bounds(t *testing.T) {
	src := NewRandSource(42)
	seen := map[int]bool{}
	for range 2000 {
		d := src.Delta(4)
		require.GreaterOrEqual(t, d, -4)
		require.LessOrEqual(t, d, 4)
		seen[d] = true
	}
	assert.Len(t, seen, 9)
	assert.Equal(t, 0, src.Delta(0))
	assert.Equal(t, 0, src.Delta(-3))
}

func TestRandSource_SeedIsDeterministic(t *testing.T) {
	a, b := NewRandSource(7), NewRandSource(7)
	for range 50 {
		assert.Equal(t, a.Delta(5), b.Delta(5))
	}
}

func TestPerturb_Clamps(t *testing.T) {
	ds := testDataset()
	Perturb(&ds, fixedSource{sign: 1}, simConfig())
	assert.Equal(t, 14, ds.Areas[0].Occupancy)
	assert.Equal(t, 15, ds.Areas[1].Occupancy, "capped at capacity + 10")
	assert.Equal(t, 115, ds.Sensors[0].AQI)
	assert.Equal(t, 62, ds.Sensors[1].AQI)

	ds = testDataset()
	ds.Areas[0].Occupancy = 2
	Perturb(&ds, fixedSource{sign: -1}, simConfig())
	assert.Equal(t, 0, ds.Areas[0].Occupancy)
	assert.Equal(t, 10, ds.Areas[1].Occupancy)
	assert.Equal(t, 107, ds.Sensors[0].AQI)
	assert.Equal(t, 55, ds.Sensors[1].AQI)
}

func TestPerturb_ZeroDeltaLeavesDataUnchanged(t *testing.T) {
	ds := testDataset()
	Perturb(&ds, fixedSource{sign: 0}, simConfig())
	assert.Equal(t, testDataset(), ds)
}

func TestNew_Validates(t *testing.T) {
	sess := newTestSession(t)

	cfg := simConfig()
	cfg.TickInterval = 0
	_, err := New(sess, cfg)
	require.Error(t, err)

	cfg = simConfig()
	cfg.AQIMin = 200
	_, err = New(sess, cfg)
	require.Error(t, err)
}

func TestStep_AdvancesSession(t *testing.T) {
	sess := newTestSession(t)
	sim, err := New(sess, simConfig(), WithDeltaSource(fixedSource{sign: 1}))
	require.NoError(t, err)

	require.NoError(t, sim.Step())
	snap := sess.Snapshot()
	assert.Equal(t, int64(1), snap.Derived.Tick)
	assert.Equal(t, 14, snap.Dataset.Areas[0].Occupancy)
	assert.False(t, sim.Running())
}

func TestSimulator_TicksUntilStopped(t *testing.T) {
	sess := newTestSession(t)
	ticker := newFakeTicker()
	var interval time.Duration
	sim, err := New(sess, simConfig(),
		WithDeltaSource(fixedSource{sign: 0}),
		WithTicker(func(d time.Duration) Ticker { interval = d; return ticker }),
	)
	require.NoError(t, err)

	ticks := make(chan int64, 10)
	defer sess.Subscribe(func(d session.Derived) { ticks <- d.Tick })()

	require.True(t, sim.Start(context.Background()))
	assert.False(t, sim.Start(context.Background()), "second start is a no-op")
	assert.True(t, sim.Running())
	assert.Equal(t, 3500*time.Millisecond, interval)

	for want := int64(1); want <= 3; want++ {
		ticker.c <- time.Now()
		select {
		case got := <-ticks:
			assert.Equal(t, want, got)
		case <-time.After(5 * time.Second):
			t.Fatal("tick was not applied")
		}
	}

	// The zero-delta source must leave readings exactly where they started.
	assert.Equal(t, testDataset(), sess.Snapshot().Dataset)

	sim.Stop()
	assert.False(t, sim.Running())
	select {
	case <-ticker.stopped:
	default:
		t.Fatal("ticker was not stopped")
	}

	// No ticks after Stop returns.
	tick := sess.Derived().Tick
	select {
	case ticker.c <- time.Now():
		t.Fatal("loop still receiving after Stop")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, tick, sess.Derived().Tick)

	sim.Stop()
}

func TestSimulator_StopsOnContextCancel(t *testing.T) {
	sess := newTestSession(t)
	sim, err := New(sess, simConfig(), WithTicker(func(time.Duration) Ticker { return newFakeTicker() }))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = sim.Run(ctx)
		close(done)
	}()

	require.Eventually(t, sim.Running, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
	assert.False(t, sim.Running())
}

func TestSimulator_Restart(t *testing.T) {
	sess := newTestSession(t)
	sim, err := New(sess, simConfig(), WithTicker(func(time.Duration) Ticker { return newFakeTicker() }))
	require.NoError(t, err)

	require.True(t, sim.Start(context.Background()))
	sim.Stop()
	require.True(t, sim.Start(context.Background()))
	assert.True(t, sim.Running())
	sim.Stop()
}

func TestResetScheduler(t *testing.T) {
	sess := newTestSession(t)

	off, err := NewResetScheduler(sess, "")
	require.NoError(t, err)
	assert.False(t, off.Enabled())
	require.NoError(t, off.Run(context.Background()))

	_, err = NewResetScheduler(sess, "not a schedule")
	require.Error(t, err)

	r, err := NewResetScheduler(sess, "@daily")
	require.NoError(t, err)
	assert.True(t, r.Enabled())

	require.NoError(t, sess.Update(func(ds *model.Dataset) { ds.Areas[0].Occupancy = 0 }))
	r.reset()
	assert.Equal(t, 10, sess.Snapshot().Dataset.Areas[0].Occupancy)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = r.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reset scheduler did not stop")
	}
}
