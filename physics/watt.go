package physics

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"gomc/rng"
)

// Default Watt spectrum parameters for thermal fission of U-235, used when
// a material does not override them.
const (
	DefaultWattA = 0.988 // MeV
	DefaultWattB = 2.249 // 1/MeV
)

// SampleWatt draws a fission energy in MeV from the material's Watt
// spectrum, p(E) ~ exp(-E/a) sinh(sqrt(b E)).
//
// A Watt variate is a Maxwellian variate shifted by a direction term:
// E = w + a^2 b/4 + (2 xi - 1) sqrt(a^2 b w), with w Maxwellian of
// temperature a, i.e. Gamma(3/2, a).
func (m *Material) SampleWatt(s *rng.Stream) float64 {
	a, b := m.WattA, m.WattB
	if a <= 0 {
		a, b = DefaultWattA, DefaultWattB
	}
	return SampleWatt(a, b, s)
}

// SampleWatt draws from the Watt spectrum with the given parameters.
func SampleWatt(a, b float64, s *rng.Stream) float64 {
	maxwell := distuv.Gamma{Alpha: 1.5, Beta: 1 / a, Src: s}
	w := maxwell.Rand()
	return w + a*a*b/4 + (2*s.Float64()-1)*math.Sqrt(a*a*b*w)
}
