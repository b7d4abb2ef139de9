// Package gbm simulates geometric Brownian motion price paths and
// estimates expected terminal values by Monte-Carlo averaging.
package gbm

import (
	"fmt"
	"math"
	"math/rand/v2"

	"market-feature-lab/internal/domain"
)

// Default simulation settings.
const (
	DefaultStart      = 1.0
	DefaultHorizon    = 1.0
	DefaultStep       = 0.01
	DefaultReplicates = 500
)

// Params describes one GBM process.
// Drift and Volatility are per-unit-time rates consistent with Step.
type Params struct {
	Start      float64 // S0
	Drift      float64 // mu
	Volatility float64 // sigma
	Horizon    float64 // T
	Step       float64 // dt
}

// NewParams returns params with the default start level, horizon and step.
func NewParams(drift, volatility float64) Params {
	return Params{
		Start:      DefaultStart,
		Drift:      drift,
		Volatility: volatility,
		Horizon:    DefaultHorizon,
		Step:       DefaultStep,
	}
}

// Steps returns N = floor(T/dt).
func (p Params) Steps() int {
	n := p.Horizon / p.Step
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return int(n)
}

// Validate checks T > 0, dt > 0 and N >= 1.
// Drift and volatility are not checked: non-finite values propagate as NaN.
func (p Params) Validate() error {
	if !(p.Horizon > 0) || math.IsInf(p.Horizon, 0) {
		return fmt.Errorf("%w: horizon %v", domain.ErrInvalidParameters, p.Horizon)
	}
	if !(p.Step > 0) {
		return fmt.Errorf("%w: step %v", domain.ErrInvalidParameters, p.Step)
	}
	if p.Steps() < 1 {
		return fmt.Errorf("%w: horizon %v / step %v gives no steps",
			domain.ErrInvalidParameters, p.Horizon, p.Step)
	}
	return nil
}

func (p Params) finite() bool {
	return !math.IsNaN(p.Drift) && !math.IsInf(p.Drift, 0) &&
		!math.IsNaN(p.Volatility) && !math.IsInf(p.Volatility, 0)
}

// Ticks returns N equally spaced times over [0, T], endpoints included.
func Ticks(p Params) []float64 {
	n := p.Steps()
	ticks := make([]float64, n)
	if n == 1 {
		return ticks
	}
	for i := range ticks {
		ticks[i] = float64(i) * p.Horizon / float64(n-1)
	}
	return ticks
}

// NormalSource produces independent standard-normal variates.
// *rand.Rand satisfies it. Implementations need not be safe for concurrent use.
type NormalSource interface {
	NormFloat64() float64
}

// NewSource returns a reproducible PCG-backed normal source.
func NewSource(seed uint64) NormalSource {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewStreamSource returns a reproducible PCG source for one of many
// independent streams sharing a seed.
func NewStreamSource(seed, stream uint64) NormalSource {
	return rand.New(rand.NewPCG(seed, stream^0x9e3779b97f4a7c15))
}

// Simulator draws GBM paths from one randomness source.
// A Simulator is not safe for concurrent use; give each worker its own.
type Simulator struct {
	rng NormalSource
}

// NewSimulator creates a simulator over rng.
func NewSimulator(rng NormalSource) *Simulator {
	return &Simulator{rng: rng}
}

// NewSeeded creates a simulator with a deterministic source.
func NewSeeded(seed uint64) *Simulator {
	return NewSimulator(NewSource(seed))
}

// Simulate returns one price path of N levels:
//
//	W(t_i) = sqrt(dt) * sum_{k<=i} z_k
//	S(t_i) = S0 * exp((mu - sigma^2/2) * t_i + sigma * W(t_i))
func (s *Simulator) Simulate(p Params) ([]float64, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	ticks := Ticks(p)
	path := make([]float64, len(ticks))
	if !p.finite() {
		for i := range path {
			path[i] = math.NaN()
		}
		return path, nil
	}

	sqrtDt := math.Sqrt(p.Step)
	driftTerm := p.Drift - p.Volatility*p.Volatility/2
	cum := 0.0
	for i, t := range ticks {
		cum += s.rng.NormFloat64()
		w := cum * sqrtDt
		path[i] = p.Start * math.Exp(driftTerm*t+p.Volatility*w)
	}
	return path, nil
}

// ExpectedTerminalValue averages the final level of n independent paths.
// The estimate carries O(1/sqrt(n)) sampling noise.
func (s *Simulator) ExpectedTerminalValue(p Params, n int) (float64, error) {
	if n < 1 {
		return math.NaN(), fmt.Errorf("%w: %d simulations", domain.ErrInvalidParameters, n)
	}
	if err := p.Validate(); err != nil {
		return math.NaN(), err
	}
	if !p.finite() {
		return math.NaN(), nil
	}

	sum := 0.0
	for i := 0; i < n; i++ {
		path, err := s.Simulate(p)
		if err != nil {
			return math.NaN(), err
		}
		sum += path[len(path)-1]
	}
	return sum / float64(n), nil
}
