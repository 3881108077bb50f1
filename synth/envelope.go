package synth

import (
	"math"

	"github.com/vsariola/chipbox"
)

// curveValue returns the value in [0, 1] of an envelope curve, seconds after
// the start of the note. noteSize is the value of the note's pins, used by
// CurveNoteSize.
func curveValue(curve chipbox.EnvelopeCurve, seconds, speed, noteSize float64) float64 {
	t := seconds * speed
	switch curve {
	case chipbox.CurveNoteSize:
		return noteSize
	case chipbox.CurvePunch:
		return 0.5 + 0.5*math.Max(0, 1-10*t)
	case chipbox.CurveFlare:
		if t < 0.1 {
			return t * 10
		}
		return math.Exp(-4 * (t - 0.1))
	case chipbox.CurveTwang:
		return math.Exp(-16 * t)
	case chipbox.CurveSwell:
		return 1 - math.Exp(-4*t)
	case chipbox.CurveDecay:
		return math.Exp(-2 * t)
	case chipbox.CurveTriangle:
		return math.Abs(2*(t-math.Floor(t)) - 1)
	case chipbox.CurveSine:
		return 0.5 + 0.5*math.Cos(2*math.Pi*t)
	}
	return 1 // steady
}

// envelopeFactors are the products of the envelopes of a voice, per
// target, at one instant. Targets without envelopes have factor 1; pitch
// is the bend in semitones.
type envelopeFactors struct {
	volume      float64
	pitch       float64
	noteFilter  [chipbox.MaxFilterStages]float64
	vibrato     float64
	arpeggio    float64
	pulseWidth  float64
	fmFeedback  float64
	opAmplitude [4]float64
}

// evaluateEnvelopes computes the envelope factors of an instrument's
// envelopes.
func evaluateEnvelopes(instr *chipbox.Instrument, seconds, noteSize float64, f *envelopeFactors) {
	*f = envelopeFactors{volume: 1, vibrato: 1, arpeggio: 1, pulseWidth: 1, fmFeedback: 1}
	for i := range f.noteFilter {
		f.noteFilter[i] = 1
	}
	for i := range f.opAmplitude {
		f.opAmplitude[i] = 1
	}
	for i := range instr.Envelopes {
		env := &instr.Envelopes[i]
		v := curveValue(env.Curve, seconds, env.Speed, noteSize)
		v = env.Start + v*(env.End-env.Start)
		switch env.Target {
		case chipbox.ParamVolume:
			f.volume *= v
		case chipbox.ParamPitch:
			f.pitch += chipbox.ParamPitch.Denormalize(v)
		case chipbox.ParamNoteFilterCutoff:
			for s := range f.noteFilter {
				if env.Index < 0 || env.Index == s {
					f.noteFilter[s] *= v
				}
			}
		case chipbox.ParamVibratoDepth:
			f.vibrato *= v
		case chipbox.ParamArpeggioSpeed:
			f.arpeggio *= v
		case chipbox.ParamPulseWidth:
			f.pulseWidth *= v
		case chipbox.ParamFMFeedback:
			f.fmFeedback *= v
		case chipbox.ParamOperatorAmplitude:
			for o := range f.opAmplitude {
				if env.Index < 0 || env.Index == o {
					f.opAmplitude[o] *= v
				}
			}
		}
	}
}
