package tuning

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"sandfall.io/internal/sim/grid"
)

//go:embed sim.schema.json
var schemaJSON string

const schemaURL = "sim.schema.json"

type Tuning struct {
	Source    Point    `yaml:"source" json:"source"`
	Modes     []string `yaml:"modes" json:"modes"`
	MaxGrains int      `yaml:"max_grains" json:"max_grains"`

	Snapshot bool `yaml:"snapshot" json:"snapshot"`
	GrainLog bool `yaml:"grain_log" json:"grain_log"`
}

type Point struct {
	X int `yaml:"x" json:"x"`
	Y int `yaml:"y" json:"y"`
}

func (p Point) Coord() grid.Coord { return grid.Coord{X: p.X, Y: p.Y} }

func Defaults() Tuning {
	return Tuning{
		Source:    Point{X: 500, Y: 0},
		Modes:     []string{grid.Bounded.String(), grid.Floored.String()},
		MaxGrains: 1_000_000,
		Snapshot:  true,
		GrainLog:  true,
	}
}

// Load reads sim.yaml on top of Defaults. An empty path yields the defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (Tuning, error) {
	t := Defaults()
	if err := validateSchema(raw); err != nil {
		return t, fmt.Errorf("sim.yaml: %w", err)
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("sim.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("sim.yaml: %w", err)
	}
	return t, nil
}

// Normalize maps mode names and aliases to their canonical form and drops
// duplicates. Unknown names are kept for Validate to report.
func (t *Tuning) Normalize() {
	if t == nil {
		return
	}
	seen := map[string]bool{}
	modes := t.Modes[:0]
	for _, m := range t.Modes {
		m = strings.ToLower(strings.TrimSpace(m))
		var fm grid.FloorMode
		if err := fm.UnmarshalText([]byte(m)); err == nil {
			m = fm.String()
		}
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		modes = append(modes, m)
	}
	t.Modes = modes
	if len(t.Modes) == 0 {
		t.Modes = Defaults().Modes
	}
}

func (t Tuning) Validate() error {
	if t.MaxGrains < 0 {
		return fmt.Errorf("max_grains must be >= 0")
	}
	if len(t.Modes) == 0 {
		return fmt.Errorf("modes must not be empty")
	}
	for _, m := range t.Modes {
		if _, err := grid.ParseFloorMode(m); err != nil {
			return err
		}
	}
	return nil
}

// FloorModes returns the configured modes in order.
func (t Tuning) FloorModes() []grid.FloorMode {
	out := make([]grid.FloorMode, 0, len(t.Modes))
	for _, m := range t.Modes {
		fm, err := grid.ParseFloorMode(m)
		if err != nil {
			continue
		}
		out = append(out, fm)
	}
	return out
}

var (
	schemaOnce sync.Once
	compiled   *jsonschema.Schema
	compileErr error
)

func schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiled, compileErr = jsonschema.CompileString(schemaURL, schemaJSON)
	})
	return compiled, compileErr
}

// validateSchema checks the raw YAML document against sim.schema.json. The
// document is round-tripped through JSON so the validator sees plain JSON types.
func validateSchema(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	s, err := schema()
	if err != nil {
		return err
	}
	return s.Validate(v)
}
