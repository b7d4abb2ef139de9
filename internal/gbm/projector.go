package gbm

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"

	"market-feature-lab/internal/domain"
)

// ProjectorOptions configures a Projector.
type ProjectorOptions struct {
	Replicates int     // paths per estimate (default 500)
	Horizon    float64 // T (default 1)
	Step       float64 // dt (default 0.01)
	Workers    int     // parallel workers (default GOMAXPROCS)
	Seed       uint64  // base seed; 0 draws a fresh one

	// OnSimulated, if set, is called with the number of paths each worker ran.
	OnSimulated func(paths int)
}

// Projector turns (drift, volatility) pairs into expected forward returns
// E[S_T]/S0 - 1, spreading work across isolated per-worker simulators.
type Projector struct {
	replicates  int
	horizon     float64
	step        float64
	workers     int
	seed        uint64
	onSimulated func(int)
}

// NewProjector creates a Projector, filling unset options with defaults.
func NewProjector(opts ProjectorOptions) *Projector {
	p := &Projector{
		replicates:  opts.Replicates,
		horizon:     opts.Horizon,
		step:        opts.Step,
		workers:     opts.Workers,
		seed:        opts.Seed,
		onSimulated: opts.OnSimulated,
	}
	if p.replicates == 0 {
		p.replicates = DefaultReplicates
	}
	if p.horizon == 0 {
		p.horizon = DefaultHorizon
	}
	if p.step == 0 {
		p.step = DefaultStep
	}
	if p.workers <= 0 {
		p.workers = runtime.GOMAXPROCS(0)
	}
	if p.seed == 0 {
		p.seed = rand.Uint64()
	}
	return p
}

// Replicates returns the number of paths per estimate.
func (p *Projector) Replicates() int {
	return p.replicates
}

// params builds the process for one pair.
func (p *Projector) params(drift, volatility float64) Params {
	return Params{
		Start:      DefaultStart,
		Drift:      drift,
		Volatility: volatility,
		Horizon:    p.horizon,
		Step:       p.step,
	}
}

// ExpectedReturns estimates E[S_T]-1 for every (drift[i], vol[i]) pair.
// Pairs are split into contiguous chunks, one per worker. Worker k draws
// from the PCG stream (seed+k, hash(stream)), so distinct stream keys
// (e.g. ticker and horizon) get independent normals while a fixed seed,
// key and worker count reproduce the same output.
// Non-finite inputs yield NaN cells. Invalid process settings yield an
// all-NaN result together with an ErrInvalidParameters error.
func (p *Projector) ExpectedReturns(ctx context.Context, stream string, drift, vol []float64) ([]float64, error) {
	if len(drift) != len(vol) {
		return nil, fmt.Errorf("drift/volatility length mismatch: %d vs %d", len(drift), len(vol))
	}

	out := make([]float64, len(drift))
	if err := p.validate(); err != nil {
		for i := range out {
			out[i] = math.NaN()
		}
		return out, err
	}
	if len(out) == 0 {
		return out, nil
	}

	workers := p.workers
	if workers > len(out) {
		workers = len(out)
	}
	chunk := (len(out) + workers - 1) / workers
	key := streamKey(stream)

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, len(out))
		if lo >= hi {
			break
		}
		sim := NewSimulator(NewStreamSource(p.seed+uint64(w), key))
		g.Go(func() error {
			paths := 0
			for i := lo; i < hi; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				params := p.params(drift[i], vol[i])
				if !params.finite() {
					out[i] = math.NaN()
					continue
				}
				est, err := sim.ExpectedTerminalValue(params, p.replicates)
				if err != nil {
					return err
				}
				out[i] = est - DefaultStart
				paths += p.replicates
			}
			if p.onSimulated != nil {
				p.onSimulated(paths)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Projector) validate() error {
	if p.replicates < 1 {
		return fmt.Errorf("%w: %d replicates", domain.ErrInvalidParameters, p.replicates)
	}
	return p.params(0, 0).Validate()
}

func streamKey(stream string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(stream))
	return h.Sum64()
}
