package bedform

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"bedform/internal/core"
)

// Params holds the transport-model coefficients of Nishimori & Ouchi (1993).
type Params struct {
	// D is the diffusion rate for rolling and sliding transport.
	D float64 `yaml:"d"`

	// Q is the mass entrained from every cell per step by saltation.
	Q float64 `yaml:"q"`

	// L0 is the minimum saltation hop length.
	L0 float64 `yaml:"l0"`

	// B scales the hop length with local elevation.
	B float64 `yaml:"b"`

	// LegacyDiagonals selects the asymmetric diagonal sum of the
	// classic cellbedform code, which samples the (x-1, y+1) neighbor
	// twice and never samples (x-1, y-1). When false the stencil uses
	// all four true diagonals.
	LegacyDiagonals bool `yaml:"legacy_diagonals"`
}

// Config controls the bedform simulation dimensions and run behavior.
type Config struct {
	Width  int   `yaml:"w"`
	Height int   `yaml:"h"`
	Seed   int64 `yaml:"seed"`

	// Workers bounds the goroutines used for the diffusion pass.
	// Zero means one per available CPU.
	Workers int `yaml:"workers"`

	Params Params `yaml:",inline"`
}

// DefaultConfig returns the standard configuration.
func DefaultConfig() Config {
	return Config{
		Width:  100,
		Height: 50,
		Seed:   42,
		Params: Params{
			D:  0.8,
			Q:  0.6,
			L0: 7.3,
			B:  2.0,
		},
	}
}

// FromMap populates the config from a string map (flag-style key/value pairs).
func FromMap(cfg map[string]string) Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	if v, ok := cfg["w"]; ok {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			c.Width = parsed
		}
	}
	if v, ok := cfg["h"]; ok {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			c.Height = parsed
		}
	}
	if v, ok := cfg["seed"]; ok {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Seed = parsed
		}
	}
	if v, ok := cfg["workers"]; ok {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			c.Workers = parsed
		}
	}
	if v, ok := cfg["d"]; ok {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && !math.IsNaN(parsed) && !math.IsInf(parsed, 0) {
			c.Params.D = parsed
		}
	}
	if v, ok := cfg["q"]; ok {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed >= 0 && !math.IsInf(parsed, 0) {
			c.Params.Q = parsed
		}
	}
	if v, ok := cfg["l0"]; ok {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && !math.IsNaN(parsed) && !math.IsInf(parsed, 0) {
			c.Params.L0 = parsed
		}
	}
	if v, ok := cfg["b"]; ok {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && !math.IsNaN(parsed) && !math.IsInf(parsed, 0) {
			c.Params.B = parsed
		}
	}
	if v, ok := cfg["legacy_diagonals"]; ok {
		if parsed, err := strconv.ParseBool(v); err == nil {
			c.Params.LegacyDiagonals = parsed
		}
	}
	return c
}

// LoadFile reads a YAML configuration, merging it over the defaults.
func LoadFile(path string) (Config, error) {
	c := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("parse %s: %w", path, err)
	}
	return c, nil
}

// Validate reports the first invalid construction parameter, if any.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: grid dimensions must be positive, got %dx%d",
			core.ErrInvalidArgument, c.Width, c.Height)
	}
	for _, p := range []struct {
		name  string
		value float64
	}{
		{"d", c.Params.D},
		{"q", c.Params.Q},
		{"l0", c.Params.L0},
		{"b", c.Params.B},
	} {
		if math.IsNaN(p.value) || math.IsInf(p.value, 0) {
			return fmt.Errorf("%w: parameter %s must be finite, got %v",
				core.ErrInvalidArgument, p.name, p.value)
		}
	}
	if c.Params.Q < 0 {
		return fmt.Errorf("%w: parameter q must be non-negative, got %v",
			core.ErrInvalidArgument, c.Params.Q)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be non-negative, got %d",
			core.ErrInvalidArgument, c.Workers)
	}
	return nil
}
