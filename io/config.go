/*package io reads run configuration files and model description files and
turns them into the objects the simulation core consumes.
*/
package io

import (
	"fmt"

	"gopkg.in/gcfg.v1"

	"gomc/sim"
	"gomc/transport"
)

const (
	ExampleRunFile = `[Run]

#######################
# Required Parameters #
#######################

# Number of source particles per cycle.
Particles = 10000

# Cycles discarded while the fission source converges, then cycles that
# accumulate statistics.
InactiveCycles = 50
ActiveCycles   = 200

#######################
# Optional Parameters #
#######################

# Master seed for the run. Histories derive their streams from this and
# their global index only, so results do not depend on thread count.
# Seed = 1

# Number of worker threads. Default is the number of logical cores.
# Threads = 8

# Russian roulette parameters and the low-energy cutoff (MeV).
# WeightCutoff  = 0.25
# WeightSurvive = 1.0
# EnergyCutoff  = 0.0

# Reduce weight at collisions instead of sampling absorption.
# SurvivalBiasing = false

# Abort the run when more than this many particles get stuck.
# MaxLostParticles = 10

# Record the Shannon entropy of the fission source on a regular mesh.
# EntropyCells sets the mesh resolution per axis; Lower/Upper its box.
# EntropyOn    = true
# EntropyCells = 8
# EntropyLower = -10 -10 -10
# EntropyUpper = 10 10 10

# Per-cycle log lines appear at Verbosity >= 6.
# Verbosity = 7

# LogFile   = run.log
# TallyFile = tallies.csv`
)

// RunConfig mirrors the [Run] section of a configuration file.
type RunConfig struct {
	// Required
	Particles      int
	InactiveCycles int
	ActiveCycles   int

	// Optional
	Seed             int64
	Threads          int
	WeightCutoff     float64
	WeightSurvive    float64
	SurvivalBiasing  bool
	EnergyCutoff     float64
	MaxLostParticles int
	EntropyOn        bool
	EntropyCells     int
	EntropyLower     string
	EntropyUpper     string
	Verbosity        int
	LogFile          string
	TallyFile        string
}

// RunWrapper is the gcfg file wrapper for [Run].
type RunWrapper struct {
	Run RunConfig
}

// DefaultRunWrapper returns a wrapper pre-loaded with the standard
// defaults.
func DefaultRunWrapper() *RunWrapper {
	rc := RunConfig{}
	rc.Seed = 1
	rc.WeightCutoff = 0.25
	rc.WeightSurvive = 1.0
	rc.MaxLostParticles = 10
	rc.EntropyCells = 8
	rc.Verbosity = 7
	return &RunWrapper{rc}
}

func (con *RunConfig) ValidParticles() bool {
	return con.Particles > 0
}
func (con *RunConfig) ValidInactiveCycles() bool {
	return con.InactiveCycles >= 0
}
func (con *RunConfig) ValidActiveCycles() bool {
	return con.ActiveCycles > 0
}
func (con *RunConfig) ValidWeightCutoff() bool {
	return con.WeightCutoff > 0 && con.WeightCutoff < con.WeightSurvive
}
func (con *RunConfig) ValidEntropyCells() bool {
	return con.EntropyCells > 0
}

// ReadRunConfig reads and validates a [Run] configuration file.
func ReadRunConfig(fname string) (*RunConfig, error) {
	wrap := DefaultRunWrapper()
	if err := gcfg.ReadFileInto(wrap, fname); err != nil {
		return nil, fmt.Errorf("io: reading %s: %v", fname, err)
	}
	con := &wrap.Run

	switch {
	case !con.ValidParticles():
		return nil, fmt.Errorf("io: %s: Particles must be positive", fname)
	case !con.ValidInactiveCycles():
		return nil, fmt.Errorf(
			"io: %s: InactiveCycles must not be negative", fname)
	case !con.ValidActiveCycles():
		return nil, fmt.Errorf("io: %s: ActiveCycles must be positive", fname)
	case !con.ValidWeightCutoff():
		return nil, fmt.Errorf(
			"io: %s: WeightCutoff must be in (0, WeightSurvive)", fname)
	case !con.ValidEntropyCells():
		return nil, fmt.Errorf("io: %s: EntropyCells must be positive", fname)
	}
	return con, nil
}

// Settings converts the configuration into simulation settings.
func (con *RunConfig) Settings() (sim.Settings, error) {
	set := sim.Settings{
		Particles:        con.Particles,
		InactiveCycles:   con.InactiveCycles,
		ActiveCycles:     con.ActiveCycles,
		Seed:             uint64(con.Seed),
		Threads:          con.Threads,
		MaxLostParticles: int64(con.MaxLostParticles),
		Verbosity:        con.Verbosity,
		Transport: transport.Config{
			WeightCutoff:   con.WeightCutoff,
			WeightSurvive:  con.WeightSurvive,
			EnergyCutoff:   con.EnergyCutoff,
			MaxLostRetries: transport.DefaultConfig().MaxLostRetries,
		},
	}

	if con.EntropyOn {
		mesh := &sim.EntropyMesh{
			Dims: [3]int{con.EntropyCells, con.EntropyCells, con.EntropyCells},
		}
		if _, err := fmt.Sscan(con.EntropyLower,
			&mesh.Lower[0], &mesh.Lower[1], &mesh.Lower[2]); err != nil {
			return set, fmt.Errorf("io: bad EntropyLower %q", con.EntropyLower)
		}
		if _, err := fmt.Sscan(con.EntropyUpper,
			&mesh.Upper[0], &mesh.Upper[1], &mesh.Upper[2]); err != nil {
			return set, fmt.Errorf("io: bad EntropyUpper %q", con.EntropyUpper)
		}
		set.Entropy = mesh
	}
	return set, nil
}
