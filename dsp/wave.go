package dsp

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

type (
	// Wave is a single cycle waveform, stored as the running integral of its
	// samples. Playing it back with Sample averages the waveform over the
	// phase step of the sample, which removes most of the aliasing of high
	// pitches without any oversampling. The mean of the samples is removed
	// when the wave is built, so the integral is periodic.
	Wave struct {
		samples  []float64
		integral []float64
	}

	// Oscillator is the phase of a wave, in cycles.
	Oscillator struct {
		Phase float64
	}
)

const (
	chipWaveLength  = 256
	harmonicsLength = 2048
	// NoiseLength is the length of the noise and spectrum tables. The noise
	// tables repeat; at the reference rate and pitch 60 they repeat about
	// every 0.74 seconds.
	NoiseLength = 1 << 15
)

// NewWave builds a wave from one cycle of samples.
func NewWave(samples []float64) *Wave {
	n := len(samples)
	if n == 0 {
		samples = []float64{0}
		n = 1
	}
	var mean float64
	for _, s := range samples {
		mean += s
	}
	mean /= float64(n)
	w := &Wave{samples: make([]float64, n), integral: make([]float64, n+1)}
	for i, s := range samples {
		w.samples[i] = s - mean
		w.integral[i+1] = w.integral[i] + w.samples[i]/float64(n)
	}
	w.integral[n] = 0 // exactly periodic
	return w
}

// Len returns the number of samples in one cycle.
func (w *Wave) Len() int { return len(w.samples) }

// At returns the sample at the given phase, interpolating linearly.
func (w *Wave) At(phase float64) float64 {
	n := len(w.samples)
	pos := (phase - math.Floor(phase)) * float64(n)
	i := int(pos)
	if i >= n {
		i = n - 1
	}
	frac := pos - float64(i)
	return w.samples[i] + frac*(w.samples[(i+1)%n]-w.samples[i])
}

func (w *Wave) integralAt(phase float64) float64 {
	n := len(w.samples)
	pos := (phase - math.Floor(phase)) * float64(n)
	i := int(pos)
	if i >= n {
		i = n - 1
	}
	frac := pos - float64(i)
	return w.integral[i] + frac*w.samples[i]/float64(n)
}

// Sample returns the average of the wave over [phase, phase+delta), both in
// cycles. A delta of zero returns the sample at phase.
func (w *Wave) Sample(phase, delta float64) float64 {
	if delta < 1e-9 {
		return w.At(phase)
	}
	// full cycles integrate to zero, so the wrapped integral is enough
	return (w.integralAt(phase+delta) - w.integralAt(phase)) / delta
}

// Next returns the box filtered sample of the wave for a phase step of delta
// and advances the oscillator.
func (o *Oscillator) Next(w *Wave, delta float64) float64 {
	v := w.Sample(o.Phase, delta)
	o.Phase += delta
	o.Phase -= math.Floor(o.Phase)
	return v
}

// ChipWave returns the built-in chip wave with the given index, wrapping out
// of range indices. The order matches chipbox.ChipWaves.
func ChipWave(index int) *Wave {
	return chipWaves[((index%len(chipWaves))+len(chipWaves))%len(chipWaves)]
}

var chipWaves = func() []*Wave {
	shapes := []func(x float64) float64{
		func(x float64) float64 { // rounded
			s := math.Sin(2 * math.Pi * x)
			return math.Copysign(math.Sqrt(math.Abs(s)), s)
		},
		func(x float64) float64 { return 1 - 4*math.Abs(x-0.5) }, // triangle
		func(x float64) float64 { return pulse(x, 0.5) },
		func(x float64) float64 { return pulse(x, 0.25) },
		func(x float64) float64 { return pulse(x, 0.125) },
		func(x float64) float64 { return 2*x - 1 }, // sawtooth
		func(x float64) float64 { // doublesaw
			return 0.5*(2*x-1) + 0.5*(4*x-2*math.Floor(2*x)-1)
		},
		func(x float64) float64 { // doublepulse
			if x < 0.125 || (x >= 0.5 && x < 0.625) {
				return 1
			}
			return -1
		},
		func(x float64) float64 { // spiky
			switch {
			case x < 1.0/16:
				return 1
			case x >= 0.5 && x < 0.5+1.0/16:
				return -1
			}
			return 0
		},
		func(x float64) float64 { return math.Sin(2 * math.Pi * x) },
	}
	ret := make([]*Wave, len(shapes))
	for i, f := range shapes {
		s := make([]float64, chipWaveLength)
		for j := range s {
			s[j] = f((float64(j) + 0.5) / chipWaveLength)
		}
		ret[i] = NewWave(s)
	}
	return ret
}()

func pulse(x, width float64) float64 {
	if x < width {
		return 1
	}
	return -1
}

// CustomWave builds a wave from a user drawn cycle, normalizing the peak to
// 1.
func CustomWave(samples []float64) *Wave {
	return NewWave(normalize(append([]float64(nil), samples...)))
}

// HarmonicsWave builds a wave from the amplitudes of its harmonics, the first
// amplitude being the fundamental. The phases are random but the same on
// every call.
func HarmonicsWave(amplitudes []float64) *Wave {
	bins := make([]complex128, harmonicsLength)
	rng := lcg(1)
	for h, a := range amplitudes {
		k := h + 1
		if k >= harmonicsLength/2 {
			break
		}
		setBin(bins, k, a, rng.next())
	}
	return NewWave(normalize(realIFFT(bins)))
}

// SpectrumNoise builds a noise table whose spectrum follows the given band
// amplitudes. The bands are spread evenly over ten octaves, the lowest
// starting at about 5 Hz at pitch 60 and the reference rate. The seed
// selects the random phases.
func SpectrumNoise(bands []float64, seed uint32) *Wave {
	bins := make([]complex128, NoiseLength)
	if len(bands) > 0 {
		rng := lcg(seed)
		const lowest, octaves = 4, 10
		for b, a := range bands {
			lo := int(lowest * math.Exp2(float64(b)*octaves/float64(len(bands))))
			hi := int(lowest * math.Exp2(float64(b+1)*octaves/float64(len(bands))))
			for k := lo; k < hi && k < NoiseLength/2; k++ {
				setBin(bins, k, a, rng.next())
			}
		}
	}
	return NewWave(normalize(realIFFT(bins)))
}

// NoiseWave returns the built-in noise table with the given index, wrapping
// out of range indices. The order matches chipbox.NoiseWaves.
func NoiseWave(index int) *Wave {
	return noiseWaves[((index%len(noiseWaves))+len(noiseWaves))%len(noiseWaves)]
}

var noiseWaves = func() []*Wave {
	lfsr := func(tap int) []float64 {
		ret := make([]float64, NoiseLength)
		reg := 1
		for i := range ret {
			ret[i] = float64(reg&1)*2 - 1
			next := reg >> 1
			if (reg+next)&1 == 1 {
				next += tap
			}
			reg = next
		}
		return ret
	}
	white := make([]float64, NoiseLength)
	rng := lcg(12345)
	for i := range white {
		white[i] = rng.next()*2 - 1
	}
	hollow := make([]float64, 24)
	for i := range hollow {
		if i >= 10 && i < 18 {
			hollow[i] = 1
		}
	}
	return []*Wave{
		NewWave(lfsr(1 << 14)), // retro
		NewWave(white),
		NewWave(lfsr(2 << 14)), // clang
		NewWave(lfsr(10 << 2)), // buzz
		SpectrumNoise(hollow, 7),
	}
}()

// NoiseDelta returns the phase step per output sample that plays a noise
// table at the given pitch.
func NoiseDelta(pitch, sampleRate float64) float64 {
	return PitchToHz(pitch) / PitchToHz(60) * ReferenceRate / sampleRate / NoiseLength
}

func setBin(bins []complex128, k int, amplitude, phase float64) {
	v := cmplx.Rect(amplitude, 2*math.Pi*phase)
	bins[k] = v
	bins[len(bins)-k] = cmplx.Conj(v)
}

func realIFFT(bins []complex128) []float64 {
	out := fft.IFFT(bins)
	ret := make([]float64, len(out))
	for i, v := range out {
		ret[i] = real(v)
	}
	return ret
}

func normalize(s []float64) []float64 {
	var peak float64
	for _, v := range s {
		peak = max(peak, math.Abs(v))
	}
	if peak > 0 {
		for i := range s {
			s[i] /= peak
		}
	}
	return s
}
