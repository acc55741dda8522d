// Package api exposes a planning session over HTTP: JSON queries, reviewer
// actions, simulation control, GeoJSON map layers and a websocket feed that
// pushes the overview after every recompute.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/dsa-planner/internal/agent"
	"github.com/sells-group/dsa-planner/internal/config"
	"github.com/sells-group/dsa-planner/internal/layers"
	"github.com/sells-group/dsa-planner/internal/model"
	"github.com/sells-group/dsa-planner/internal/monitoring"
	"github.com/sells-group/dsa-planner/internal/ranking"
	"github.com/sells-group/dsa-planner/internal/session"
	"github.com/sells-group/dsa-planner/internal/simulation"
)

// Server serves one session.
type Server struct {
	ctx       context.Context
	sess      *session.Session
	sim       *simulation.Simulator
	planner   config.PlannerConfig
	cfg       config.ServerConfig
	agent     *agent.Agent
	collector *monitoring.Collector
	alerter   *monitoring.Alerter
	layers    *layers.Builder
	hub       *hub
	limiter   *rate.Limiter
}

// Update is the websocket message sent after every recompute.
type Update struct {
	Type     string              `json:"type"`
	Overview monitoring.Overview `json:"overview"`
	Hotspots []ranking.Hotspot   `json:"hotspots"`
	Running  bool                `json:"running"`
}

// New builds a server. ctx bounds the websocket hub, the session
// subscription and any simulation loop started through the API.
func New(ctx context.Context, sess *session.Session, sim *simulation.Simulator, planner config.PlannerConfig, cfg config.ServerConfig) *Server {
	s := &Server{
		ctx:       ctx,
		sess:      sess,
		sim:       sim,
		planner:   planner,
		cfg:       cfg,
		agent:     agent.New(sess, planner),
		collector: monitoring.NewCollector(planner),
		alerter:   monitoring.NewAlerter(planner, config.MonitoringConfig{}),
		layers:    layers.NewBuilder(planner),
		hub:       newHub(originChecker(cfg.AllowedOrigins)),
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.RateBurst, 1))
	}

	go s.hub.run(ctx)
	unsubscribe := sess.Subscribe(func(session.Derived) { s.hub.publish(s.updateMessage()) })
	go func() {
		<-ctx.Done()
		unsubscribe()
	}()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/overview", s.handleOverview)
	r.Get("/snapshot", s.handleSnapshot)
	r.Get("/alerts", s.handleAlerts)
	r.Get("/areas/{id}/score", s.handleAreaScore)
	r.Get("/proposals/{id}/compliance", s.handleCompliance)
	r.Get("/hotspots", s.handleHotspots)
	r.Get("/gaps", s.handleGaps)
	r.Get("/recommendations", s.handleRecommendations)
	r.Get("/reviews", s.handleReviews)
	r.Get("/layers", s.handleLayerNames)
	r.Get("/layers/{name}", s.handleLayer)
	r.Get("/simulation", s.handleSimulationStatus)
	r.Get("/ws", s.handleWebsocket)

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Post("/proposals/{id}/status", s.handleSetStatus)
		r.Post("/agent", s.handleAgent)
		r.Post("/simulation/start", s.handleSimulationStart)
		r.Post("/simulation/stop", s.handleSimulationStop)
		r.Post("/simulation/step", s.handleSimulationStep)
		r.Post("/reset", s.handleReset)
		r.Post("/recompute", s.handleRecompute)
	})

	return r
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(allowed, "*") {
			return true
		}
		return slices.Contains(allowed, origin)
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limitParam reads an integer query parameter, falling back to def when it is
// absent.
func limitParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("query parameter %s must be an integer, got %q", name, raw)
	}
	return n, nil
}

func (s *Server) updateMessage() []byte {
	msg := Update{
		Type:     "update",
		Overview: s.collector.Collect(s.sess.Snapshot()),
		Hotspots: s.sess.Hotspots(s.planner.HotspotLimit),
		Running:  s.sim.Running(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		zap.L().Error("api: encode update", zap.Error(err))
		return nil
	}
	return data
}

func (s *Server) handleOverview(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.collector.Collect(s.sess.Snapshot()))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sess.Snapshot())
}

func (s *Server) handleAlerts(w http.ResponseWriter, _ *http.Request) {
	alerts := s.alerter.Evaluate(s.sess.Snapshot())
	if alerts == nil {
		alerts = []monitoring.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleAreaScore(w http.ResponseWriter, r *http.Request) {
	score, err := s.sess.AreaScore(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func (s *Server) handleCompliance(w http.ResponseWriter, r *http.Request) {
	check, err := s.sess.ProposalCompliance(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	status, err := model.ParseProposalStatus(req.Status)
	if err != nil {
		writeError(w, badRequest("unknown proposal status %q", req.Status))
		return
	}
	ev, err := s.sess.SetProposalStatus(chi.URLParam(r, "id"), status)
	if err != nil {
		writeError(w, err)
		return
	}
	zap.L().Info("api: proposal status changed",
		zap.String("proposal", ev.ProposalID),
		zap.String("from", string(ev.From)),
		zap.String("to", string(ev.To)),
	)
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleHotspots(w http.ResponseWriter, r *http.Request) {
	n, err := limitParam(r, "n", s.planner.HotspotLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sess.Hotspots(n))
}

func (s *Server) handleGaps(w http.ResponseWriter, r *http.Request) {
	n, err := limitParam(r, "n", s.planner.GapLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sess.CoverageGaps(n))
}

func (s *Server) handleRecommendations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sess.Recommendations())
}

func (s *Server) handleReviews(w http.ResponseWriter, _ *http.Request) {
	log := s.sess.ReviewLog()
	if log == nil {
		log = []session.ReviewEvent{}
	}
	writeJSON(w, http.StatusOK, log)
}

func (s *Server) handleLayerNames(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, layers.All())
}

func (s *Server) handleLayer(w http.ResponseWriter, r *http.Request) {
	fc, err := s.layers.Build(layers.Name(chi.URLParam(r, "name")), s.sess.Snapshot())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	if err := json.NewEncoder(w).Encode(fc); err != nil {
		zap.L().Error("api: encode layer", zap.Error(err))
	}
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Text == "" {
		writeError(w, badRequest("text is required"))
		return
	}
	writeJSON(w, http.StatusOK, s.agent.Respond(req.Text))
}

type simulationStatus struct {
	Running bool  `json:"running"`
	Tick    int64 `json:"tick"`
}

func (s *Server) status() simulationStatus {
	return simulationStatus{Running: s.sim.Running(), Tick: s.sess.Derived().Tick}
}

func (s *Server) handleSimulationStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleSimulationStart(w http.ResponseWriter, _ *http.Request) {
	// The loop outlives the request, so it is bound to the server context.
	if s.sim.Start(s.ctx) {
		zap.L().Info("api: simulation started")
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleSimulationStop(w http.ResponseWriter, _ *http.Request) {
	s.sim.Stop()
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleSimulationStep(w http.ResponseWriter, _ *http.Request) {
	if err := s.sim.Step(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	if err := s.sess.Reset(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleRecompute(w http.ResponseWriter, _ *http.Request) {
	if err := s.sess.Recompute(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	s.hub.serve(s.ctx, w, r, s.updateMessage())
}
