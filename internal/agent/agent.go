// Package agent implements the scripted planning assistant. It matches a
// question to a fixed intent by keyword and answers from the live session.
// There is no language model behind it.
package agent

import (
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/dsa-planner/internal/compliance"
	"github.com/sells-group/dsa-planner/internal/config"
	"github.com/sells-group/dsa-planner/internal/monitoring"
	"github.com/sells-group/dsa-planner/internal/session"
)

// Intent is the topic a question was matched to.
type Intent string

const (
	IntentAQI        Intent = "aqi"
	IntentHotspots   Intent = "hotspots"
	IntentRecommend  Intent = "recommend"
	IntentCompliance Intent = "compliance"
	IntentGaps       Intent = "gaps"
	IntentHelp       Intent = "help"
)

// hotspotCount is how many areas the hotspot answer lists.
const hotspotCount = 5

// Greeting is the assistant's opening message.
const Greeting = "Hi! I'm the planning agent. Ask me about hotspots, AQI, proposals, compliance, or coverage gaps."

// keywords are checked in order; the first intent with a matching keyword wins.
var keywords = []struct {
	intent Intent
	words  []string
}{
	{IntentAQI, []string{"aqi"}},
	{IntentHotspots, []string{"hotspot", "overcrowd"}},
	{IntentRecommend, []string{"recommend", "proposal", "new location"}},
	{IntentCompliance, []string{"compliance", "school"}},
	{IntentGaps, []string{"gap"}},
}

// Classify maps free text to an intent, case-insensitively.
func Classify(text string) Intent {
	t := strings.ToLower(text)
	for _, k := range keywords {
		for _, w := range k.words {
			if strings.Contains(t, w) {
				return k.intent
			}
		}
	}
	return IntentHelp
}

// Reply is the assistant's answer.
type Reply struct {
	Intent Intent `json:"intent"`
	Text   string `json:"text"`
}

// Agent answers questions about a session.
type Agent struct {
	sess      *session.Session
	cfg       config.PlannerConfig
	collector *monitoring.Collector
	p         *message.Printer
}

// New creates an agent over sess.
func New(sess *session.Session, cfg config.PlannerConfig) *Agent {
	return &Agent{
		sess:      sess,
		cfg:       cfg,
		collector: monitoring.NewCollector(cfg),
		p:         message.NewPrinter(language.English),
	}
}

// Respond answers text. Every answer reads one consistent session state.
func (a *Agent) Respond(text string) Reply {
	intent := Classify(text)
	var lines []string
	switch intent {
	case IntentAQI:
		lines = a.aqi()
	case IntentHotspots:
		lines = a.hotspots()
	case IntentRecommend:
		lines = a.recommend()
	case IntentCompliance:
		lines = a.compliance()
	case IntentGaps:
		lines = a.gaps()
	default:
		lines = help()
	}
	return Reply{Intent: intent, Text: strings.Join(lines, "\n")}
}

func (a *Agent) aqi() []string {
	ov := a.collector.Collect(a.sess.Snapshot())
	if ov.WorstSensor == nil {
		return []string{"No air quality sensors are loaded."}
	}
	lines := []string{
		"AQI summary:",
		a.p.Sprintf("- Average AQI: %d", ov.AverageAQI),
		a.p.Sprintf("- Worst sensor: %s at AQI %d", ov.WorstSensor.Name, ov.WorstSensor.AQI),
	}
	if ov.PressureDistrict != "" {
		lines = append(lines, a.p.Sprintf(
			"Suggestion: prioritize relocations or new DSAs away from pedestrian bottlenecks in the %s district during peak hours.",
			ov.PressureDistrict))
	}
	return lines
}

func (a *Agent) hotspots() []string {
	ranked := a.sess.Hotspots(hotspotCount)
	if len(ranked) == 0 {
		return []string{"No monitored areas are loaded."}
	}
	lines := []string{"Top hotspots (crowding + AQI):"}
	for i, h := range ranked {
		lines = append(lines, a.p.Sprintf("- %d) %s (%s) • score %.2f • occ %d/%d",
			i+1, h.Area.Name, h.Area.District, h.Score, h.Area.Occupancy, h.Area.Capacity))
	}
	return append(lines, "", "Action idea: add or relocate capacity to reduce repeated exposure around these nodes.")
}

func (a *Agent) recommend() []string {
	recs := a.sess.Recommendations()
	if len(recs) == 0 {
		return []string{"There are no proposals to rank."}
	}
	lines := []string{"Recommendations:"}
	for _, r := range recs {
		lines = append(lines, a.p.Sprintf("- %s (%s) • score %.2f • school buffer %s (%s)",
			r.Proposal.Name, r.Proposal.District, r.AdjustedScore, passFail(r.Compliance.Compliant), a.meters(r.Compliance)))
	}
	return append(lines, "", "You can review these proposals and approve, hold or reject them.")
}

func (a *Agent) compliance() []string {
	snap := a.sess.Snapshot()
	var lines []string
	for _, p := range snap.Dataset.Proposals {
		r, ok := snap.Derived.Compliance[p.ID]
		if !ok || r.Compliant {
			continue
		}
		lines = append(lines, a.p.Sprintf("- %s: %s • min distance %s (FAIL)", p.ID, p.Name, a.meters(r)))
	}
	if len(lines) == 0 {
		return []string{a.p.Sprintf("All current proposals pass the %.0fm school buffer check.", a.cfg.Compliance.BufferMeters)}
	}
	lines = append([]string{"School buffer compliance flags:"}, lines...)
	return append(lines, "Suggestion: nudge candidate points further along pedestrian-accessible corridors away from school perimeters.")
}

func (a *Agent) gaps() []string {
	gaps := a.sess.CoverageGaps(a.cfg.GapLimit)
	if len(gaps) == 0 {
		return []string{"There are no candidate sites to check."}
	}
	lines := []string{"Coverage gaps:"}
	for _, g := range gaps {
		dist := "no DSA yet"
		if !math.IsInf(g.DistanceMeters, 1) {
			dist = a.p.Sprintf("nearest DSA ≈ %dm", int(math.Round(g.DistanceMeters)))
		}
		lines = append(lines, a.p.Sprintf("- %s • %s", g.Site.Name, dist))
	}
	return append(lines, "Tip: add DSAs where distance-to-nearest is highest and not within school buffers.")
}

func help() []string {
	return []string{
		"I can help with:",
		`- "AQI summary"`,
		`- "List hotspots"`,
		`- "Recommend new locations"`,
		`- "Check school compliance"`,
		`- "Find coverage gaps"`,
		"",
		"Try one of those phrases.",
	}
}

func (a *Agent) meters(r compliance.Result) string {
	if r.Unconstrained() {
		return "no protected zones"
	}
	return a.p.Sprintf("%dm", int(math.Round(r.MinDistanceMeters)))
}

func passFail(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}
