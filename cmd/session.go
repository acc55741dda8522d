package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dsa-planner/internal/fixture"
	"github.com/sells-group/dsa-planner/internal/session"
)

// initSession loads the configured fixture and builds a planning session.
func initSession() (*session.Session, error) {
	ds, err := fixture.Load(cfg.Fixture.Path)
	if err != nil {
		return nil, err
	}
	sess, err := session.New(ds, cfg.Planner)
	if err != nil {
		return nil, eris.Wrap(err, "init session")
	}
	zap.L().Debug("session initialized",
		zap.String("fixture", fixtureName(cfg.Fixture.Path)),
		zap.Int("areas", len(ds.Areas)),
		zap.Int("proposals", len(ds.Proposals)),
	)
	return sess, nil
}

func fixtureName(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
