// Package config carries the run-level configuration of the attribute
// selection engine: which analysis engine label to report, how many cores
// to reserve, and whether multiprocessing is enabled for measures and
// explorations. Modeled on the teacher's struct-of-structs-with-yaml-tags
// configuration style, trimmed to what the engine actually needs.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AnalysisEngine labels the data-processing backend, mirroring the
// "pandas"/"modin" choice of the original tool. brfast-go always computes
// natively; the label is only carried through to the trace parameters for
// provenance and to decide whether multiprocessing should be forced off.
type AnalysisEngine string

const (
	// EngineNative is the only analysis engine this module actually runs;
	// kernels are plain Go, always deterministic and NaN-free.
	EngineNative AnalysisEngine = "native"

	// EngineModin mirrors the original tool's modin label. When selected,
	// multiprocessing for measures and explorations is forced off, the same
	// engine-agnostic contract the original enforces because modin already
	// parallelizes internally.
	EngineModin AnalysisEngine = "modin"
)

// MultiprocessingConfig toggles parallel execution of the measure kernels
// and of the FPSelect level expansion independently.
type MultiprocessingConfig struct {
	Measures     bool `yaml:"measures"`
	Explorations bool `yaml:"explorations"`
	FreeCores    int  `yaml:"free_cores"`
}

// DataAnalysisConfig selects the analysis engine label.
type DataAnalysisConfig struct {
	Engine AnalysisEngine `yaml:"engine"`
}

// RunConfig is the top-level configuration of one exploration run.
type RunConfig struct {
	Multiprocessing MultiprocessingConfig `yaml:"multiprocessing"`
	DataAnalysis    DataAnalysisConfig    `yaml:"data_analysis"`
}

// Default returns the configuration the original tool ships with: one free
// core reserved, multiprocessing enabled for both measures and explorations,
// native analysis engine.
func Default() *RunConfig {
	return &RunConfig{
		Multiprocessing: MultiprocessingConfig{
			Measures:     true,
			Explorations: true,
			FreeCores:    1,
		},
		DataAnalysis: DataAnalysisConfig{Engine: EngineNative},
	}
}

// Load reads a YAML configuration file, applying the defaults for any field
// left unset.
func Load(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// EffectiveMultiprocessing reports whether multiprocessing for measures and
// for explorations is effectively enabled, forcing both off when the
// analysis engine is modin (it already parallelizes internally).
func (c *RunConfig) EffectiveMultiprocessing() (measures, explorations bool) {
	if c.DataAnalysis.Engine == EngineModin {
		return false, false
	}
	return c.Multiprocessing.Measures, c.Multiprocessing.Explorations
}

// AnalysisEngineLabel renders the analysis-engine parameter the way the
// trace expects it to be reported.
func (c *RunConfig) AnalysisEngineLabel() string {
	return string(c.DataAnalysis.Engine)
}

// Cores returns the worker-pool size given the number of available CPU
// cores: max(1, cores-free_cores).
func (c *RunConfig) Cores(cpuCount int) int {
	n := cpuCount - c.Multiprocessing.FreeCores
	if n < 1 {
		return 1
	}
	return n
}
