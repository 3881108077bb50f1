package dsp_test

import (
	"math"
	"testing"

	"github.com/vsariola/chipbox/dsp"
)

func TestPitchToHz(t *testing.T) {
	if got := dsp.PitchToHz(69); got != 440 {
		t.Fatalf("PitchToHz(69) = %v, want 440", got)
	}
	if got := dsp.PitchToHz(81); math.Abs(got-880) > 1e-9 {
		t.Fatalf("PitchToHz(81) = %v, want 880", got)
	}
	if got := dsp.HzToPitch(dsp.PitchToHz(60.5)); math.Abs(got-60.5) > 1e-9 {
		t.Fatalf("HzToPitch did not invert PitchToHz: got %v", got)
	}
}

func TestRampLandsExactly(t *testing.T) {
	var r dsp.Ramp
	r.Set(0.1)
	r.To(0.7, 7)
	if v := r.Next(); v != 0.1 {
		t.Fatalf("first sample after retarget = %v, want the old value 0.1", v)
	}
	prev := 0.1
	for i := 0; i < 10; i++ {
		v := r.Next()
		if v < prev || v > 0.7 {
			t.Fatalf("sample %d = %v, not monotonic within [0.1, 0.7]", i, v)
		}
		prev = v
	}
	if r.Value() != 0.7 || !r.Done() {
		t.Fatalf("ramp ended at %v, want exactly 0.7", r.Value())
	}
}

func TestWavesHaveNoDC(t *testing.T) {
	waves := map[string]*dsp.Wave{
		"square":    dsp.ChipWave(2),
		"pulse8":    dsp.ChipWave(4),
		"harmonics": dsp.HarmonicsWave([]float64{1, 0.5, 0.25}),
		"spectrum":  dsp.SpectrumNoise([]float64{1, 0, 1, 0.5}, 3),
		"retro":     dsp.NoiseWave(0),
		"custom":    dsp.CustomWave([]float64{1, 1, 1, -0.5}),
	}
	for name, w := range waves {
		t.Run(name, func(t *testing.T) {
			var sum float64
			for i := 0; i < w.Len(); i++ {
				sum += w.At(float64(i) / float64(w.Len()))
			}
			if mean := sum / float64(w.Len()); math.Abs(mean) > 1e-9 {
				t.Fatalf("mean of the wave = %v, want 0", mean)
			}
		})
	}
}

func TestWaveSampleAveragesOverStep(t *testing.T) {
	w := dsp.ChipWave(2) // square
	// a step of one full cycle averages to the mean, which is zero
	if v := w.Sample(0.3, 1); math.Abs(v) > 1e-9 {
		t.Fatalf("average over a full cycle = %v, want 0", v)
	}
	// small steps inside the flat part give the flat value
	if v := w.Sample(0.1, 0.01); math.Abs(v-1) > 1e-9 {
		t.Fatalf("average inside the high half = %v, want 1", v)
	}
}

func TestHarmonicsWaveIsNormalized(t *testing.T) {
	w := dsp.HarmonicsWave([]float64{1, 0, 0.3})
	var peak float64
	for i := 0; i < w.Len(); i++ {
		peak = math.Max(peak, math.Abs(w.At(float64(i)/float64(w.Len()))))
	}
	if peak < 0.5 || peak > 1.01 {
		t.Fatalf("peak of harmonics wave = %v, want about 1", peak)
	}
}

func TestPulseHasNoDC(t *testing.T) {
	for _, width := range []float64{0.1, 0.25, 0.5} {
		const n = 1000
		var sum float64
		for i := 0; i < n; i++ {
			sum += dsp.Pulse(float64(i)/n, 1.0/n, width)
		}
		if mean := sum / n; math.Abs(mean) > 0.01 {
			t.Errorf("pulse width %v: mean = %v, want 0", width, mean)
		}
	}
}

func TestFMAlgorithmsModulateDownwards(t *testing.T) {
	for a, alg := range dsp.FMAlgorithms {
		for op, mods := range alg.Modulators {
			for _, m := range mods {
				if m <= op {
					t.Errorf("algorithm %d: operator %d modulated by %d, which is not later", a, op, m)
				}
			}
		}
		if alg.Carriers < 1 || alg.Carriers > 4 {
			t.Errorf("algorithm %d has %d carriers", a, alg.Carriers)
		}
	}
}

func TestFiltersStayStable(t *testing.T) {
	const sampleRate = 44100
	for kind := dsp.LowPass; kind < dsp.NumFilterKinds; kind++ {
		var chain dsp.FilterChain
		chain.SetLen(dsp.MaxFilterStages)
		var peak float64
		for i := 0; i < 10*sampleRate; i++ {
			if i%441 == 0 {
				// sweep the cutoff over the whole range at maximum resonance
				hz := 20 * math.Pow(1000, float64(i%44100)/44100)
				c := dsp.Design(kind, hz, dsp.MaxFilterQ, dsp.MaxFilterGainDB, sampleRate)
				if !c.Stable() {
					t.Fatalf("%v: unstable coefficients at %v Hz", kind, hz)
				}
				for s := 0; s < dsp.MaxFilterStages; s++ {
					chain.SetTarget(s, c, 256)
				}
			}
			x := 0.0
			if i%100 < 50 {
				x = 0.1
			}
			y := chain.Process(x)
			if math.IsNaN(y) || math.IsInf(y, 0) {
				t.Fatalf("filter kind %d blew up at sample %d", kind, i)
			}
			peak = math.Max(peak, math.Abs(y))
		}
		if peak > 1e12 {
			t.Fatalf("filter kind %d output grew to %v", kind, peak)
		}
	}
}

func TestFilterCoefficientsLandOnTarget(t *testing.T) {
	var chain dsp.FilterChain
	chain.SetLen(1)
	target := dsp.Design(dsp.LowPass, 1000, 0.707, 0, 44100)
	chain.SetTarget(0, target, 64)
	for i := 0; i < 64; i++ {
		chain.Process(0)
	}
	if got := chain.Coefficients(0); got != target {
		t.Fatalf("coefficients after ramp = %+v, want %+v", got, target)
	}
}

func TestDelayLineStartsSilent(t *testing.T) {
	d := dsp.NewDelayLine(100)
	for delay := 1.0; delay < float64(d.Len()); delay += 0.5 {
		if v := d.Read(delay); v != 0 {
			t.Fatalf("read at delay %v before any write = %v, want 0", delay, v)
		}
	}
	d.Write(1)
	d.Write(2)
	if v := d.Read(1); v != 2 {
		t.Fatalf("Read(1) = %v, want 2", v)
	}
	if v := d.Read(1.5); v != 1.5 {
		t.Fatalf("Read(1.5) = %v, want 1.5", v)
	}
}

func TestReverbDecays(t *testing.T) {
	r := dsp.NewReverb(44100)
	r.Next(1)
	var late float64
	for i := 0; i < 44100*20; i++ {
		l, rr := r.Next(0)
		if i > 44100*19 {
			late = math.Max(late, math.Max(math.Abs(l), math.Abs(rr)))
		}
	}
	if late > 1e-3 {
		t.Fatalf("reverb tail still at %v after 19 seconds", late)
	}
}

func TestWaveshapeIdentityAtHalf(t *testing.T) {
	for _, v := range []float64{-1, -0.3, 0, 0.5, 1} {
		if got := dsp.Waveshape(v, 0.5); math.Abs(got-v) > 1e-12 {
			t.Fatalf("Waveshape(%v, 0.5) = %v", v, got)
		}
	}
	if got := dsp.Distort(0.3, 0); got != 0.3 {
		t.Fatalf("Distort with zero amount = %v, want 0.3", got)
	}
}

func TestPanIsConstantPower(t *testing.T) {
	for _, p := range []float64{-1, -0.5, 0, 0.3, 1} {
		l, r := dsp.PanGains(p)
		if math.Abs(l*l+r*r-1) > 1e-12 {
			t.Fatalf("pan %v: power %v, want 1", p, l*l+r*r)
		}
	}
}
