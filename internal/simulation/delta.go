package simulation

import (
	"math/rand/v2"
	"sync"

	"github.com/sells-group/dsa-planner/internal/config"
	"github.com/sells-group/dsa-planner/internal/model"
)

// DeltaSource produces the random walk steps applied on each tick.
type DeltaSource interface {
	// Delta returns an integer in [-limit, limit]. limit <= 0 yields 0.
	Delta(limit int) int
}

// RandSource is the default DeltaSource backed by math/rand/v2. It is safe
// for concurrent use.
type RandSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRandSource returns a uniform source. A zero seed draws a random one.
func NewRandSource(seed uint64) *RandSource {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &RandSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Delta implements DeltaSource.
func (s *RandSource) Delta(limit int) int {
	if limit <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(2*limit+1) - limit
}

// Perturb applies one tick of drift to ds in place: every area's occupancy and
// every sensor's reading moves by a bounded delta and is clamped.
func Perturb(ds *model.Dataset, src DeltaSource, cfg config.SimulationConfig) {
	for i := range ds.Areas {
		a := &ds.Areas[i]
		a.Occupancy = clampInt(a.Occupancy+src.Delta(cfg.OccupancyDelta), 0, max(a.Capacity, 0)+cfg.OverCapacity)
	}
	for i := range ds.Sensors {
		s := &ds.Sensors[i]
		s.AQI = clampInt(s.AQI+src.Delta(cfg.AQIDelta), cfg.AQIMin, cfg.AQIMax)
	}
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
