package dsp

import "math"

type (
	// FilterKind selects the response of a filter stage. The order matches
	// chipbox.FilterType.
	FilterKind int

	// Coefficients are biquad coefficients normalized so that a0 = 1.
	Coefficients struct {
		B0, B1, B2, A1, A2 float64
	}

	// FilterChain is a series of up to MaxFilterStages biquad stages, run in
	// Direct Form I. When the target coefficients of a stage change, the
	// coefficients move to the target linearly. Stable biquads form a convex
	// set in the (a1, a2) plane, so every point along the way is stable
	// when both ends are.
	FilterChain struct {
		stages [MaxFilterStages]filterStage
		n      int
	}

	filterStage struct {
		c, target, step Coefficients
		left            int
		x1, x2, y1, y2  float64
	}
)

const (
	LowPass FilterKind = iota
	HighPass
	BandPass
	Peak
	LowPass1
	HighPass1
	NumFilterKinds
)

const (
	MaxFilterStages = 8

	MinFilterHz     = 10
	MaxFilterRatio  = 0.45 // of the sample rate
	MinFilterQ      = 0.1
	MaxFilterQ      = 16
	MaxFilterGainDB = 24
)

// Passthrough are the coefficients of a stage that does nothing.
var Passthrough = Coefficients{B0: 1}

// ClampFrequency clamps a cutoff frequency into the range the filters
// support at the sample rate.
func ClampFrequency(hz, sampleRate float64) float64 {
	return math.Min(math.Max(hz, MinFilterHz), MaxFilterRatio*sampleRate)
}

// Design computes the coefficients of a stage, using the formulas of the
// Audio EQ Cookbook by Robert Bristow-Johnson for the two-pole stages.
// The frequency, Q and gain are clamped into their supported ranges.
func Design(kind FilterKind, hz, q, gainDB, sampleRate float64) Coefficients {
	hz = ClampFrequency(hz, sampleRate)
	q = math.Min(math.Max(q, MinFilterQ), MaxFilterQ)
	gainDB = math.Min(math.Max(gainDB, -MaxFilterGainDB), MaxFilterGainDB)
	w0 := 2 * math.Pi * hz / sampleRate
	switch kind {
	case LowPass1:
		p := math.Exp(-w0)
		return Coefficients{B0: 1 - p, A1: -p}
	case HighPass1:
		p := math.Exp(-w0)
		return Coefficients{B0: (1 + p) / 2, B1: -(1 + p) / 2, A1: -p}
	}
	cos, alpha := math.Cos(w0), math.Sin(w0)/(2*q)
	var b0, b1, b2, a0, a1, a2 float64
	switch kind {
	case HighPass:
		b0, b1, b2 = (1+cos)/2, -(1 + cos), (1+cos)/2
		a0, a1, a2 = 1+alpha, -2*cos, 1-alpha
	case BandPass:
		b0, b1, b2 = alpha, 0, -alpha
		a0, a1, a2 = 1+alpha, -2*cos, 1-alpha
	case Peak:
		A := math.Pow(10, gainDB/40)
		b0, b1, b2 = 1+alpha*A, -2*cos, 1-alpha*A
		a0, a1, a2 = 1+alpha/A, -2*cos, 1-alpha/A
	default:
		b0, b1, b2 = (1-cos)/2, 1-cos, (1-cos)/2
		a0, a1, a2 = 1+alpha, -2*cos, 1-alpha
	}
	return Coefficients{B0: b0 / a0, B1: b1 / a0, B2: b2 / a0, A1: a1 / a0, A2: a2 / a0}
}

// Stable reports whether the poles of the coefficients are inside the unit
// circle.
func (c Coefficients) Stable() bool {
	return math.Abs(c.A2) < 1 && math.Abs(c.A1) < 1+c.A2
}

// Len returns the number of active stages.
func (f *FilterChain) Len() int { return f.n }

// SetLen changes the number of active stages. Stages that become active
// start from silence, at the passthrough coefficients.
func (f *FilterChain) SetLen(n int) {
	n = min(max(n, 0), MaxFilterStages)
	for i := f.n; i < n; i++ {
		f.stages[i] = filterStage{c: Passthrough, target: Passthrough}
	}
	f.n = n
}

// SetTarget sets the coefficients stage i moves to over the given number of
// samples. With samples <= 0 the coefficients jump.
func (f *FilterChain) SetTarget(i int, c Coefficients, samples int) {
	if i < 0 || i >= f.n {
		return
	}
	s := &f.stages[i]
	if samples <= 0 {
		s.c, s.target, s.left = c, c, 0
		return
	}
	s.target = c
	s.left = samples
	inv := 1 / float64(samples)
	s.step = Coefficients{
		B0: (c.B0 - s.c.B0) * inv,
		B1: (c.B1 - s.c.B1) * inv,
		B2: (c.B2 - s.c.B2) * inv,
		A1: (c.A1 - s.c.A1) * inv,
		A2: (c.A2 - s.c.A2) * inv,
	}
}

// Coefficients returns the current coefficients of stage i.
func (f *FilterChain) Coefficients(i int) Coefficients {
	return f.stages[i].c
}

// Clear silences the state of all stages, keeping the coefficients.
func (f *FilterChain) Clear() {
	for i := range f.stages {
		s := &f.stages[i]
		s.x1, s.x2, s.y1, s.y2 = 0, 0, 0, 0
	}
}

// Process filters one sample through all the active stages.
func (f *FilterChain) Process(x float64) float64 {
	for i := 0; i < f.n; i++ {
		s := &f.stages[i]
		c := &s.c
		y := c.B0*x + c.B1*s.x1 + c.B2*s.x2 - c.A1*s.y1 - c.A2*s.y2
		s.x2, s.x1 = s.x1, x
		s.y2, s.y1 = s.y1, y
		x = y
		if s.left > 0 {
			s.left--
			if s.left == 0 {
				s.c = s.target
			} else {
				c.B0 += s.step.B0
				c.B1 += s.step.B1
				c.B2 += s.step.B2
				c.A1 += s.step.A1
				c.A2 += s.step.A2
			}
		}
	}
	return x
}
