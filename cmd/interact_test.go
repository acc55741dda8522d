package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dsa-planner/internal/agent"
	"github.com/sells-group/dsa-planner/internal/config"
	"github.com/sells-group/dsa-planner/internal/monitoring"
	"github.com/sells-group/dsa-planner/internal/session"
	"github.com/sells-group/dsa-planner/internal/simulation"
)

func TestConverse(t *testing.T) {
	sess := testSession(t)
	in := strings.NewReader("AQI summary\n\n   \nfind coverage gaps\n")
	var out bytes.Buffer

	require.NoError(t, converse(in, &out, agent.New(sess, testPlanner())))

	text := out.String()
	assert.True(t, strings.HasPrefix(text, agent.Greeting+"\n"))
	assert.Contains(t, text, "AQI summary:")
	assert.Contains(t, text, "Coverage gaps:")
}

func TestRunTicks(t *testing.T) {
	sess := testSession(t)
	sim, err := simulation.New(sess, config.SimulationConfig{
		TickInterval:   time.Second,
		OccupancyDelta: 4,
		OverCapacity:   10,
		AQIDelta:       5,
		AQIMin:         55,
		AQIMax:         115,
		Seed:           42,
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, runTicks(&buf, sess, sim, monitoring.NewCollector(testPlanner()), 3))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[2], "1 "))
	assert.True(t, strings.HasPrefix(lines[4], "3 "))
	assert.Equal(t, int64(3), sess.Derived().Tick)
}

func TestFormatReviewEvent(t *testing.T) {
	var buf bytes.Buffer
	formatReviewEvent(&buf, session.ReviewEvent{ProposalID: "P3", From: "Pending", To: "Approved"})
	assert.Equal(t, "P3: Pending -> Approved\n\n", buf.String())
}
