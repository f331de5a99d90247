// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Bound space modes.
const (
	BoundOpen   = "open"
	BoundClosed = "closed"
)

// Diffusion scheme names.
const (
	MethodEuler      = "euler"
	MethodRungeKutta = "runge-kutta"
)

// Config holds all simulation configuration parameters.
type Config struct {
	Simulation SimulationConfig  `yaml:"simulation"`
	Substances []SubstanceConfig `yaml:"substances"`
	Population PopulationConfig  `yaml:"population"`
	Telemetry  TelemetryConfig   `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// SimulationConfig holds the core engine parameters.
type SimulationConfig struct {
	TimeStep        float64 `yaml:"time_step"`        // length of one discrete step
	MaxDisplacement float64 `yaml:"max_displacement"` // per-step displacement cap
	BoundSpace      string  `yaml:"bound_space"`      // "open" or "closed"
	MinBound        float64 `yaml:"min_bound"`        // lower clamp when closed
	MaxBound        float64 `yaml:"max_bound"`        // upper clamp when closed
	DiffusionMethod string  `yaml:"diffusion_method"` // "euler" or "runge-kutta"
	Workers         int     `yaml:"workers"`          // 0 = GOMAXPROCS
	NeighborGuards  bool    `yaml:"neighbor_guards"`  // per-box locking during Execute
	Seed            int64   `yaml:"seed"`             // 0 = time-based
}

// SubstanceConfig defines one diffusing substance.
type SubstanceConfig struct {
	ID                   int     `yaml:"id"`
	Name                 string  `yaml:"name"`
	DiffusionCoefficient float64 `yaml:"diffusion_coefficient"`
	DecayConstant        float64 `yaml:"decay_constant"`
	Resolution           int     `yaml:"resolution"` // lattice points per axis
	Gradient             bool    `yaml:"gradient"`   // maintain gradient buffer
	Initializer          string  `yaml:"initializer"`
	InitMean             float64 `yaml:"init_mean"`  // gaussian band center
	InitSigma            float64 `yaml:"init_sigma"` // gaussian band width
	InitValue            float64 `yaml:"init_value"` // uniform value / noise amplitude
}

// PopulationConfig holds the initial agent population parameters.
type PopulationConfig struct {
	CellsPerDim  int     `yaml:"cells_per_dim"` // cells along each axis of the seed lattice
	Spacing      float64 `yaml:"spacing"`       // lattice spacing
	Diameter     float64 `yaml:"diameter"`      // initial cell diameter
	Adherence    float64 `yaml:"adherence"`     // force threshold below which a cell stays put
	GrowthSpeed  float64 `yaml:"growth_speed"`  // volume increase per unit time
	DivideVolume float64 `yaml:"divide_volume"` // volume at which a cell divides (0 disables)
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	Window              int `yaml:"window"`                // steps between stats records
	PerfCollectorWindow int `yaml:"perf_collector_window"` // ticks to average phase timings over
	SnapshotEvery       int `yaml:"snapshot_every"`        // steps between lattice snapshots (0 disables)
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Workers int // effective worker count
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.computeDerived()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	workers := c.Simulation.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	c.Derived.Workers = workers
}

func (c *Config) validate() error {
	if c.Simulation.TimeStep <= 0 {
		return fmt.Errorf("config: time_step must be positive, got %v", c.Simulation.TimeStep)
	}
	switch c.Simulation.BoundSpace {
	case BoundOpen, BoundClosed:
	default:
		return fmt.Errorf("config: unknown bound_space %q", c.Simulation.BoundSpace)
	}
	if c.Simulation.BoundSpace == BoundClosed && c.Simulation.MaxBound <= c.Simulation.MinBound {
		return fmt.Errorf("config: max_bound %v must exceed min_bound %v",
			c.Simulation.MaxBound, c.Simulation.MinBound)
	}
	for _, s := range c.Substances {
		if s.Resolution < 2 {
			return fmt.Errorf("config: substance %q needs resolution >= 2, got %d", s.Name, s.Resolution)
		}
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
