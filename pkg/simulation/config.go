package simulation

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/lao-tseu-is-alive/go-boids/pkg/behavior"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/config.schema.json
var configSchema string

const configSchemaURL = "config.schema.json"

// Config is the immutable description of a world. A World copies it at
// construction; changing a Config afterwards has no effect on running worlds.
type Config struct {
	// World Dimensions
	WorldWidth  float64 `json:"worldWidth"`
	WorldHeight float64 `json:"worldHeight"`

	// Spatial index. CellSize should be >= ViewRadius so that a 3x3 block of
	// buckets covers the whole view circle; smaller cells still work, the
	// query just scans more buckets.
	CellSize   float64 `json:"cellSize"`
	ViewRadius float64 `json:"viewRadius"`

	// Boids flocking parameters
	SeparationRadius float64 `json:"separationRadius"` // Personal space radius
	SeparationWeight float64 `json:"separationWeight"`
	AlignmentWeight  float64 `json:"alignmentWeight"`
	CohesionWeight   float64 `json:"cohesionWeight"`

	// Edges
	BoundaryMargin float64 `json:"boundaryMargin"`
	BoundaryForce  float64 `json:"boundaryForce"`

	// Physics
	MaxSpeed float64 `json:"maxSpeed"`
	MinSpeed float64 `json:"minSpeed"` // 0 disables

	// Population & runtime
	Population int    `json:"population"`
	Groups     int    `json:"groups"`   // 0 = everybody flocks together
	Workers    int    `json:"workers"`  // goroutines for the force pass, <= 1 is serial
	TickRate   int    `json:"tickRate"` // ticks per second for the headless runner
	Seed       uint64 `json:"seed"`     // 0 picks a random seed
}

func DefaultConfig() *Config {
	return &Config{
		WorldWidth:       1920,
		WorldHeight:      600,
		CellSize:         100,
		ViewRadius:       100,
		SeparationRadius: 25,
		SeparationWeight: 1.5,
		AlignmentWeight:  0.05,
		CohesionWeight:   0.005,
		BoundaryMargin:   50,
		BoundaryForce:    0.5,
		MaxSpeed:         5.0,
		MinSpeed:         0,
		Population:       400,
		Groups:           5,
		Workers:          1,
		TickRate:         60,
	}
}

// Validate checks the invariants the schema cannot express and the ones a
// programmatic Config skipped by not going through LoadConfig.
func (c *Config) Validate() error {
	var errs []error
	type field struct {
		name string
		v    float64
	}
	positive := []field{
		{"worldWidth", c.WorldWidth},
		{"worldHeight", c.WorldHeight},
		{"cellSize", c.CellSize},
		{"viewRadius", c.ViewRadius},
		{"maxSpeed", c.MaxSpeed},
	}
	for _, f := range positive {
		if !(f.v > 0) || math.IsInf(f.v, 0) {
			errs = append(errs, fmt.Errorf("%s must be a positive finite number, got %v", f.name, f.v))
		}
	}
	nonNegative := []field{
		{"separationRadius", c.SeparationRadius},
		{"minSpeed", c.MinSpeed},
		{"boundaryMargin", c.BoundaryMargin},
		{"boundaryForce", c.BoundaryForce},
	}
	for _, f := range nonNegative {
		if !(f.v >= 0) || math.IsInf(f.v, 0) {
			errs = append(errs, fmt.Errorf("%s must be a non-negative finite number, got %v", f.name, f.v))
		}
	}
	for _, w := range []float64{c.SeparationWeight, c.AlignmentWeight, c.CohesionWeight} {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			errs = append(errs, fmt.Errorf("flocking weights must be finite, got %v", w))
			break
		}
	}
	if c.MinSpeed > c.MaxSpeed {
		errs = append(errs, fmt.Errorf("minSpeed %v exceeds maxSpeed %v", c.MinSpeed, c.MaxSpeed))
	}
	if c.Population < 0 || c.Groups < 0 || c.Workers < 0 {
		errs = append(errs, errors.New("population, groups and workers must not be negative"))
	}
	return errors.Join(errs...)
}

// Settings converts the config into the per-tick steering constants.
func (c *Config) Settings() behavior.Settings {
	return behavior.Settings{
		Weights: behavior.Weights{
			Separation: c.SeparationWeight,
			Alignment:  c.AlignmentWeight,
			Cohesion:   c.CohesionWeight,
		},
		SeparationRadius: c.SeparationRadius,
		BoundaryMargin:   c.BoundaryMargin,
		BoundaryForce:    c.BoundaryForce,
		MaxSpeed:         c.MaxSpeed,
		MinSpeed:         c.MinSpeed,
		Width:            c.WorldWidth,
		Height:           c.WorldHeight,
	}
}

// LoadConfig loads a JSON configuration file, validates it against the
// embedded schema and overlays it on DefaultConfig, so a file only needs the
// fields it wants to change.
func LoadConfig(configFile string) (*Config, error) {
	b, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(b)
}

// ParseConfig is LoadConfig for an in-memory document.
func ParseConfig(b []byte) (*Config, error) {
	// 1. Compile Schema
	sch, err := jsonschema.CompileString(configSchemaURL, configSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	// 2. Validate the raw document
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("failed to decode config json: %w", err)
	}
	if err := sch.Validate(v); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// 3. Unmarshal into Struct, on top of the defaults
	cfg := DefaultConfig()
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}
