/*
Package fixture holds named portfolio datasets for demos and tests.

PURPOSE:
  Each dataset is a YAML document embedded in the binary: scenario metadata
  plus the nine record collections. Loading a dataset replaces the whole
  contents of a store.

AVAILABLE DATASETS:
  morrison-portfolio:  three projects tripping every detector
  clean-books:         one healthy project, no alerts

ADDING DATASETS:
  Drop a <id>.yaml file into data/. The id inside the file must match the
  file name.

NOTE:
  Loading replaces store contents. Only use in development/demo environments.
*/
package fixture

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/warp/margin-engine/margin"
	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var files embed.FS

// ErrUnknownScenario is returned for an id with no dataset.
var ErrUnknownScenario = errors.New("unknown scenario")

// Scenario describes one dataset.
type Scenario struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// Dataset is a scenario with its records.
type Dataset struct {
	Scenario `yaml:",inline"`
	Records  margin.Records `yaml:"records"`
}

// =============================================================================
// LOOKUP
// =============================================================================

// List returns every embedded scenario ordered by id.
func List() ([]Scenario, error) {
	entries, err := files.ReadDir("data")
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	out := make([]Scenario, 0, len(entries))
	for _, e := range entries {
		id := strings.TrimSuffix(e.Name(), ".yaml")
		ds, err := Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, ds.Scenario)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Get parses the dataset named id.
func Get(id string) (*Dataset, error) {
	data, err := files.ReadFile(path.Join("data", id+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScenario, id)
	}
	ds, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", id, err)
	}
	if ds.ID != id {
		return nil, fmt.Errorf("dataset %s: id %q does not match file name", id, ds.ID)
	}
	return ds, nil
}

// Parse decodes a dataset document. Unknown keys are rejected.
func Parse(data []byte) (*Dataset, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var ds Dataset
	if err := dec.Decode(&ds); err != nil {
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}
	if err := validate(&ds); err != nil {
		return nil, err
	}
	return &ds, nil
}

// validate checks identity fields only. Dangling references are legal data.
func validate(ds *Dataset) error {
	if ds.ID == "" {
		return errors.New("dataset id is required")
	}
	seen := make(map[margin.ProjectID]bool, len(ds.Records.Contracts))
	for _, c := range ds.Records.Contracts {
		if c.ProjectID == "" {
			return errors.New("contract without project_id")
		}
		if seen[c.ProjectID] {
			return fmt.Errorf("duplicate contract %s", c.ProjectID)
		}
		seen[c.ProjectID] = true
	}
	for _, e := range ds.Records.LaborEntries {
		if e.LogID == "" {
			return fmt.Errorf("labor entry on %s without log_id", e.ProjectID)
		}
	}
	for _, c := range ds.Records.ScopeCreepCandidates {
		if c.ScopeID == "" {
			return fmt.Errorf("scope creep candidate on %s without scope_id", c.ProjectID)
		}
	}
	return nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load replaces the contents of w with the dataset named id.
func Load(ctx context.Context, w margin.Writer, id string) (*Dataset, error) {
	ds, err := Get(id)
	if err != nil {
		return nil, err
	}
	if err := w.Replace(ctx, ds.Records); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", id, err)
	}
	return ds, nil
}
