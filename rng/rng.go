/*package rng provides the pseudo-random streams used by the transport
engine. Every particle history gets its own stream, seeded purely from the
history's global index, so results are bitwise identical for any worker
count or scheduling order.

The generator is a 63-bit multiplicative linear congruential generator with
an O(log n) skip-ahead, which makes jumping to an arbitrary history's
stream cheap.
*/
package rng

const (
	// Generator parameters: seed' = g*seed + c mod 2^63.
	mult   uint64 = 2806196910506780709
	add    uint64 = 1
	mask   uint64 = (1 << 63) - 1
	norm          = 1.0 / (1 << 63)

	// Stride is the seed separation between consecutive history streams.
	Stride uint64 = 152917

	// DefaultSeed is the master seed used when a run specifies none.
	DefaultSeed uint64 = 1
)

// Stream is a single pseudo-random stream. The zero value is not valid;
// use New or NewHistory.
type Stream struct {
	seed uint64
}

// New returns a stream starting at the given master seed.
func New(seed uint64) *Stream {
	return &Stream{seed: seed & mask}
}

// NewHistory returns the stream for one particle history, reached by
// skipping Stride numbers per history index from the master seed. The
// stream depends only on the history index, never on worker identity.
func NewHistory(master uint64, history int64) *Stream {
	return &Stream{seed: skipAhead(master&mask, Stride*uint64(history))}
}

// Bookkeeping streams (initial source sampling, per-cycle bank
// resampling) live far above the history streams so the two can never
// overlap in practice.
const (
	sourceOffset uint64 = 1 << 62
	cycleOffset  uint64 = 1<<62 + 1<<61
)

// NewSource returns the dedicated stream used to sample the initial
// source bank, distinct from every history stream.
func NewSource(master uint64) *Stream {
	return &Stream{seed: skipAhead(master&mask, sourceOffset)}
}

// NewCycle returns the dedicated stream used by the bank redistribution
// of one cycle. It depends only on the master seed and cycle index.
func NewCycle(master uint64, cycle int64) *Stream {
	return &Stream{seed: skipAhead(master&mask, cycleOffset+Stride*uint64(cycle))}
}

// Jump advances the stream by n draws in O(log n).
func (s *Stream) Jump(n uint64) {
	s.seed = skipAhead(s.seed, n)
}

// Float64 returns the next number in [0, 1).
func (s *Stream) Float64() float64 {
	s.seed = (mult*s.seed + add) & mask
	return float64(s.seed) * norm
}

// Uint64 combines the top halves of two draws into a full 64-bit word,
// satisfying math/rand/v2's Source so gonum's samplers can draw from a
// history stream directly.
func (s *Stream) Uint64() uint64 {
	s.seed = (mult*s.seed + add) & mask
	hi := s.seed >> 31
	s.seed = (mult*s.seed + add) & mask
	lo := s.seed >> 31
	return hi<<32 | lo&0xffffffff
}

// Int63 makes Stream usable as a math/rand Source.
func (s *Stream) Int63() int64 {
	s.seed = (mult*s.seed + add) & mask
	return int64(s.seed)
}

// Seed resets the stream state, satisfying math/rand's Source interface.
func (s *Stream) Seed(seed int64) {
	s.seed = uint64(seed) & mask
}

// skipAhead computes the seed n steps forward using the standard
// log-time decomposition of the affine map g*x + c mod 2^63.
func skipAhead(seed, n uint64) uint64 {
	g, c := mult, add
	gNew, cNew := uint64(1), uint64(0)
	for n > 0 {
		if n&1 == 1 {
			gNew = gNew * g & mask
			cNew = (cNew*g + c) & mask
		}
		c = (g + 1) * c & mask
		g = g * g & mask
		n >>= 1
	}
	return (gNew*seed + cNew) & mask
}
