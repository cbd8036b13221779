package schedule

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Override adjusts scheduling knobs for one target table.
type Override struct {
	StalenessHours int `yaml:"staleness_hours"`
	LagDays        int `yaml:"lag_days"`
	BatchSize      int `yaml:"batch_size"`
}

// Overrides maps table name to its per-table schedule tuning.
type Overrides map[string]Override

// LoadOverrides reads per-table schedule overrides from a YAML file. A
// missing file is not an error; it just means global defaults apply
// everywhere.
func LoadOverrides(path string) (Overrides, error) {
	if path == "" {
		return Overrides{}, nil
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Overrides{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "schedule: read overrides %s", path)
	}

	var doc struct {
		Tables Overrides `yaml:"tables"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, eris.Wrapf(err, "schedule: parse overrides %s", path)
	}
	if doc.Tables == nil {
		doc.Tables = Overrides{}
	}
	return doc.Tables, nil
}

// Staleness returns the staleness threshold for a table, falling back to the
// global default when no override is set.
func (o Overrides) Staleness(table string, global time.Duration) time.Duration {
	if ov, ok := o[table]; ok && ov.StalenessHours > 0 {
		return time.Duration(ov.StalenessHours) * time.Hour
	}
	return global
}

// LagDays returns the reporting lag for a table, falling back to the global
// default when no override is set.
func (o Overrides) LagDays(table string, global int) int {
	if ov, ok := o[table]; ok && ov.LagDays > 0 {
		return ov.LagDays
	}
	return global
}

// BatchSize returns the batch cap for a table, falling back to the global
// default when no override is set.
func (o Overrides) BatchSize(table string, global int) int {
	if ov, ok := o[table]; ok && ov.BatchSize > 0 {
		return ov.BatchSize
	}
	return global
}
