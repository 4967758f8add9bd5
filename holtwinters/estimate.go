package holtwinters

import (
	"context"
	"math"
)

// estimate picks smoothing parameters by a coarse grid search followed by
// coordinate descent with a shrinking step. Constraints: 0 < alpha < 1,
// 0 <= beta <= 1, 0 <= gamma <= 1-alpha, 0.8 <= phi <= 0.98.
func (s *smoother) estimate(ctx context.Context) error {
	hasTrend := s.cfg.Trend != None
	hasSeason := s.cfg.Seasonal != None

	s.p.Phi = 1
	phis := []float64{1}
	if s.cfg.Damped {
		phis = []float64{0.8, 0.9, 0.98}
	}

	best := s.p
	bestSSE := math.Inf(1)
	try := func(p Params) {
		if !feasible(p, hasTrend, hasSeason, s.cfg.Damped) {
			return
		}
		if sse := s.run(p, nil); sse < bestSSE {
			bestSSE = sse
			best = p
		}
	}

	grid := []float64{0.05, 0.15, 0.25, 0.35, 0.45, 0.55, 0.65, 0.75, 0.85, 0.95}
	zero := []float64{0}
	betas, gammas := zero, zero
	if hasTrend {
		betas = append([]float64{0.01}, grid[:5]...)
	}
	if hasSeason {
		gammas = append([]float64{0.01}, grid[:6]...)
	}

	for _, alpha := range grid {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, beta := range betas {
			for _, gamma := range gammas {
				for _, phi := range phis {
					p := s.p
					p.Alpha, p.Beta, p.Gamma, p.Phi = alpha, beta, gamma, phi
					try(p)
				}
			}
		}
	}

	for step := 0.05; step > 1e-4; step /= 2 {
		if err := ctx.Err(); err != nil {
			return err
		}
		improved := true
		for improved {
			improved = false
			before := bestSSE
			for _, d := range []float64{-step, step} {
				center := best
				p := center
				p.Alpha += d
				try(p)
				if hasTrend {
					p = center
					p.Beta += d
					try(p)
				}
				if hasSeason {
					p = center
					p.Gamma += d
					try(p)
				}
				if s.cfg.Damped {
					p = center
					p.Phi += d
					try(p)
				}
			}
			if bestSSE < before-1e-12*math.Abs(before) {
				improved = true
			}
		}
	}

	s.p = best
	return nil
}

func feasible(p Params, hasTrend, hasSeason, damped bool) bool {
	if p.Alpha <= 0 || p.Alpha >= 1 {
		return false
	}
	if hasTrend && (p.Beta < 0 || p.Beta > 1) {
		return false
	}
	if hasSeason && (p.Gamma < 0 || p.Gamma > 1-p.Alpha) {
		return false
	}
	if damped && (p.Phi < 0.8 || p.Phi > 0.98) {
		return false
	}
	return true
}
