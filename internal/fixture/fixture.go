// Package fixture loads planning datasets from YAML and validates them at the
// boundary so scoring code never sees malformed records.
package fixture

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/dsa-planner/internal/model"
)

//go:embed singapore.yaml
var singaporeYAML []byte

// Default returns a fresh copy of the embedded Singapore sample dataset.
func Default() model.Dataset {
	ds, err := Parse(singaporeYAML)
	if err != nil {
		panic(eris.Wrap(err, "fixture: embedded sample is invalid"))
	}
	return ds
}

// Load reads and validates a dataset from a YAML file. An empty path returns
// the embedded sample.
func Load(path string) (model.Dataset, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Dataset{}, eris.Wrapf(err, "fixture: read %s", path)
	}
	ds, err := Parse(data)
	if err != nil {
		return model.Dataset{}, eris.Wrapf(err, "fixture: load %s", path)
	}
	return ds, nil
}

// Parse decodes and validates a YAML dataset.
func Parse(data []byte) (model.Dataset, error) {
	var ds model.Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return model.Dataset{}, eris.Wrap(err, "fixture: parse")
	}
	for i := range ds.Proposals {
		if ds.Proposals[i].Status == "" {
			ds.Proposals[i].Status = model.StatusPending
		}
	}
	if err := ds.Validate(); err != nil {
		return model.Dataset{}, err
	}
	return ds, nil
}
