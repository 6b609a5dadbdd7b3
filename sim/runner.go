/*package sim runs criticality calculations: batches of independent
particle histories per cycle, inactive cycles to converge the source,
active cycles to accumulate the eigenvalue and tallies, and the
fission-bank synchronization between cycles.
*/
package sim

import (
	"fmt"
	"log"
	"math"
	"runtime"
	"time"

	"gonum.org/v1/gonum/stat"

	"gomc/geom"
	"gomc/physics"
	"gomc/rng"
	"gomc/tally"
	"gomc/transport"
)

// Settings holds the run-wide parameters of a criticality calculation.
type Settings struct {
	// Particles is the fixed number of source particles per cycle.
	Particles int
	// InactiveCycles converge the source before statistics accumulate
	// over ActiveCycles.
	InactiveCycles, ActiveCycles int

	// Seed is the master seed; every history stream derives from it and
	// the history's global index alone.
	Seed uint64

	// Threads is the worker count; <= 0 means all logical cores. The
	// resolved results never depend on it.
	Threads int

	Transport transport.Config

	// MaxLostParticles aborts the run when the lost-particle total
	// crosses it.
	MaxLostParticles int64

	// Entropy, when set, records the Shannon entropy of each cycle's
	// fission source.
	Entropy *EntropyMesh

	// Verbosity >= 6 logs a line per cycle.
	Verbosity int
}

// RunResult aggregates the outputs of a completed run.
type RunResult struct {
	// KEff is the eigenvalue estimate over active cycles, with the
	// standard deviation of its mean.
	KEff, KEffStd float64

	// CycleKEff holds every cycle's eigenvalue, inactive ones included.
	CycleKEff []float64

	// Entropy holds the per-cycle source entropy when enabled.
	Entropy []float64

	Lost      int64
	Histories int64

	TransportTime, SyncTime time.Duration
}

// Runner owns one calculation: model, sampler, settings and tallies. The
// model and sampler are shared read-only across workers; everything
// mutable is per-worker until the end-of-cycle barrier.
type Runner struct {
	Model   *geom.Model
	Sampler physics.Sampler
	Set     Settings

	// Tallies accumulate during active cycles.
	Tallies []*tally.Tally

	// Source is the initial bank. Empty means the default source: an
	// isotropic point source at the origin with a Watt spectrum.
	Source []physics.Site
}

// multiScorer fans one score out to every tally.
type multiScorer []*tally.Tally

func (ms multiScorer) Score(pre, post *transport.Snapshot, kind transport.Score) {
	for _, t := range ms {
		t.Score(pre, post, kind)
	}
}

type workerOut struct {
	id    int
	sites []BankedSite
	lost  int64
	err   error
}

// historyIndex gives the global, worker-independent index of one history.
// Indices start at 1 so that history 0 never aliases the master seed.
func (r *Runner) historyIndex(cycle, i int) int64 {
	return int64(cycle)*int64(r.Set.Particles) + int64(i) + 1
}

// Run executes all scheduled cycles and returns the aggregate result. A
// geometry or physics error aborts the whole run; there is no partial
// completion.
func (r *Runner) Run() (*RunResult, error) {
	set := &r.Set
	if set.Particles <= 0 {
		return nil, fmt.Errorf("sim: Particles must be positive")
	}
	if set.ActiveCycles <= 0 {
		return nil, fmt.Errorf("sim: ActiveCycles must be positive")
	}
	threads := set.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	source := r.Source
	if len(source) == 0 {
		source = r.defaultSource()
	}
	if len(source) != set.Particles {
		return nil, fmt.Errorf(
			"sim: initial source has %d sites, want %d",
			len(source), set.Particles)
	}

	res := new(RunResult)
	var keffs []float64
	total := set.InactiveCycles + set.ActiveCycles

	for cycle := 0; cycle < total; cycle++ {
		active := cycle >= set.InactiveCycles

		start := time.Now()
		bank, lost, err := r.transportCycle(cycle, source, active, threads)
		if err != nil {
			return nil, err
		}
		res.TransportTime += time.Since(start)
		res.Lost += lost
		if res.Lost > set.MaxLostParticles {
			return nil, fmt.Errorf(
				"sim: %d particles lost, over the limit of %d",
				res.Lost, set.MaxLostParticles)
		}

		// End-of-cycle barrier: all workers are done, now exchange the
		// bank and fold the statistics.
		start = time.Now()
		if set.Entropy != nil {
			res.Entropy = append(res.Entropy, set.Entropy.Entropy(bank))
		}
		next, bankedWeight, err := Synchronize(
			bank, set.Particles, rng.NewCycle(set.Seed, int64(cycle)))
		if err != nil {
			return nil, err
		}
		res.SyncTime += time.Since(start)

		keff := bankedWeight / float64(set.Particles)
		res.CycleKEff = append(res.CycleKEff, keff)
		if active {
			keffs = append(keffs, keff)
			for _, t := range r.Tallies {
				t.EndCycle(set.Particles)
			}
		} else {
			for _, t := range r.Tallies {
				t.Reset()
			}
		}

		if set.Verbosity >= 6 {
			tag := "active"
			if !active {
				tag = "inactive"
			}
			log.Printf("cycle %4d/%d (%s)  k = %8.5f", cycle+1, total, tag, keff)
		}

		// The source bank is replaced wholesale, never mutated in place.
		source = next
	}

	res.KEff = stat.Mean(keffs, nil)
	// A single active cycle has no spread estimate.
	if len(keffs) > 1 {
		_, std := stat.MeanStdDev(keffs, nil)
		res.KEffStd = std / math.Sqrt(float64(len(keffs)))
	}
	res.Histories = int64(total) * int64(set.Particles)
	return res, nil
}

// transportCycle fans the cycle's histories across workers and gathers
// their banks. The last chunk runs on the calling goroutine.
func (r *Runner) transportCycle(cycle int, source []physics.Site,
	active bool, threads int) ([]BankedSite, int64, error) {

	n := len(source)
	if threads > n {
		threads = n
	}

	var workerTallies []multiScorer
	if active && len(r.Tallies) > 0 {
		workerTallies = make([]multiScorer, threads)
		for w := range workerTallies {
			ms := make(multiScorer, len(r.Tallies))
			for ti, t := range r.Tallies {
				ms[ti] = tally.New(t.Name, t.Kind)
			}
			workerTallies[w] = ms
		}
	}

	scorer := func(w int) transport.Scorer {
		if workerTallies == nil {
			return nil
		}
		return workerTallies[w]
	}

	out := make(chan workerOut, threads)
	for w := 0; w < threads-1; w++ {
		lo, hi := w*n/threads, (w+1)*n/threads
		go r.transportChunk(w, cycle, source, lo, hi, scorer(w), out)
	}
	w := threads - 1
	r.transportChunk(w, cycle, source, w*n/threads, n, scorer(w), out)

	var bank []BankedSite
	var lost int64
	var firstErr error
	for i := 0; i < threads; i++ {
		wo := <-out
		if wo.err != nil && firstErr == nil {
			firstErr = wo.err
		}
		bank = append(bank, wo.sites...)
		lost += wo.lost
	}
	if firstErr != nil {
		return nil, lost, firstErr
	}

	for _, ms := range workerTallies {
		for ti := range r.Tallies {
			r.Tallies[ti].FoldFrom(ms[ti])
		}
	}

	// Restore the global site order before anything downstream sums over
	// the bank, so no result can depend on worker arrival order.
	sortBank(bank)
	return bank, lost, nil
}

// transportChunk transports histories [lo, hi) of one cycle. Each history
// gets its stream from its global index, so chunk boundaries are
// statistically invisible.
func (r *Runner) transportChunk(id, cycle int, source []physics.Site,
	lo, hi int, scorer transport.Scorer, out chan<- workerOut) {

	engine := transport.NewEngine(r.Model, r.Sampler, r.Set.Transport)
	engine.Scorer = scorer

	wo := workerOut{id: id}
	var p transport.Particle
	for i := lo; i < hi; i++ {
		hist := r.historyIndex(cycle, i)
		stream := rng.NewHistory(r.Set.Seed, hist)
		p.InitFromSite(hist, &source[i], r.Model.Root, stream)

		if _, err := engine.TransportOne(&p); err != nil {
			wo.err = err
			break
		}
		for seq := range p.Sites {
			wo.sites = append(wo.sites, BankedSite{
				Site: p.Sites[seq], History: hist, Seq: seq,
			})
		}
	}
	wo.lost = engine.Lost
	out <- wo
}

// TransportOne runs a single history to its terminal state, for restarts
// and tests. The history index determines the random stream.
func (r *Runner) TransportOne(site *physics.Site, history int64) (transport.State, error) {
	engine := transport.NewEngine(r.Model, r.Sampler, r.Set.Transport)
	var p transport.Particle
	p.InitFromSite(history, site, r.Model.Root, rng.NewHistory(r.Set.Seed, history))
	return engine.TransportOne(&p)
}

// defaultSource builds the fallback initial bank: an isotropic point
// source at the origin with the default Watt spectrum.
func (r *Runner) defaultSource() []physics.Site {
	s := rng.NewSource(r.Set.Seed)
	sites := make([]physics.Site, r.Set.Particles)
	for i := range sites {
		sites[i] = physics.Site{
			Pos:    geom.Vec{},
			Dir:    physics.IsotropicDir(s),
			Energy: physics.SampleWatt(physics.DefaultWattA, physics.DefaultWattB, s),
			Weight: 1.0,
		}
	}
	return sites
}
