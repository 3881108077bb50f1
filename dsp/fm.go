package dsp

import "math"

// FMAlgorithm describes how the four operators of an FM voice are connected.
// Modulators[i] lists the operators whose output modulates the phase of
// operator i; a modulator always has a higher index than the operator it
// modulates, so the operators can be evaluated from the last to the first.
// The first Carriers operators are summed to the output.
type FMAlgorithm struct {
	Carriers   int
	Modulators [4][]int
}

// FMAlgorithms lists the FM algorithms.
var FMAlgorithms = [...]FMAlgorithm{
	{1, [4][]int{{1, 2, 3}}},        // 1←(2 3 4)
	{1, [4][]int{{1, 2}, nil, {3}}}, // 1←(2 3←4)
	{1, [4][]int{{1}, {2, 3}}},      // 1←2←(3 4)
	{1, [4][]int{{1, 2}, {3}, {3}}}, // 1←(2 3)←4
	{1, [4][]int{{1}, {2}, {3}}},    // 1←2←3←4
	{2, [4][]int{{2}, {3}}},         // 1←3 2←4
	{2, [4][]int{nil, {2, 3}}},      // 1 2←(3 4)
	{2, [4][]int{nil, {2}, {3}}},    // 1 2←3←4
	{2, [4][]int{{2}, {2}, {3}}},    // (1 2)←3←4
	{2, [4][]int{{2, 3}, {2, 3}}},   // (1 2)←(3 4)
	{3, [4][]int{nil, nil, {3}}},    // 1 2 3←4
	{3, [4][]int{{3}, {3}, {3}}},    // (1 2 3)←4
}

// FMFeedbackAll is the feedback type where every operator feeds back to
// itself. Feedback types below it select the single operator that does.
const FMFeedbackAll = 4

// FMModulationDepth is the phase deviation, in cycles, of an operator
// modulated by a full amplitude modulator.
const FMModulationDepth = 1.0

const sineTableLength = 4096

var sineTable = func() []float64 {
	ret := make([]float64, sineTableLength+1)
	for i := range ret {
		ret[i] = math.Sin(2 * math.Pi * float64(i) / sineTableLength)
	}
	return ret
}()

// Sine returns sin(2π·phase) from a lookup table, interpolating linearly.
func Sine(phase float64) float64 {
	pos := (phase - math.Floor(phase)) * sineTableLength
	i := int(pos)
	if i >= sineTableLength {
		i = sineTableLength - 1
	}
	frac := pos - float64(i)
	return sineTable[i] + frac*(sineTable[i+1]-sineTable[i])
}

// OperatorWave returns the output of an FM operator waveform at the phase.
// The waveform index follows chipbox.OperatorWaveforms.
func OperatorWave(waveform int, phase float64) float64 {
	phase -= math.Floor(phase)
	switch waveform {
	case 1: // triangle
		return 1 - 4*math.Abs(phase-0.5)
	case 2: // sawtooth
		return 2*phase - 1
	case 3: // square
		return pulse(phase, 0.5)
	}
	return Sine(phase)
}

// PolyBLEP returns the polynomial band-limited step correction for a
// discontinuity at phase 0. t is the phase in [0, 1) and dt the phase step
// per sample.
func PolyBLEP(t, dt float64) float64 {
	if dt <= 0 {
		return 0
	}
	if t < dt {
		t /= dt
		return t + t - t*t - 1
	} else if t > 1-dt {
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}

// Pulse returns a band-limited pulse wave of the given width at the phase,
// with its DC offset removed.
func Pulse(phase, delta, width float64) float64 {
	phase -= math.Floor(phase)
	v := pulse(phase, width)
	v += PolyBLEP(phase, delta)
	t := phase - width
	t -= math.Floor(t)
	v -= PolyBLEP(t, delta)
	return v - (2*width - 1)
}
