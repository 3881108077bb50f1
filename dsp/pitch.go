// Package dsp contains the signal processing building blocks of the engine:
// band-limited wave tables, filters, delay lines and the channel effects.
// Nothing in here allocates after construction, so everything can be used
// on the audio goroutine.
package dsp

import "math"

// ReferenceRate is the sample rate the noise tables and the reverb are
// tuned for. At other rates they are resampled so that they sound the same.
const ReferenceRate = 44100

// PitchToHz converts a pitch in semitones, possibly fractional, to Hz. Pitch
// 69 is A4 = 440 Hz and 60 is middle C.
func PitchToHz(pitch float64) float64 {
	return 440 * math.Exp2((pitch-69)/12)
}

// HzToPitch is the inverse of PitchToHz.
func HzToPitch(hz float64) float64 {
	return 69 + 12*math.Log2(hz/440)
}

// Ramp is a linearly smoothed value. Next returns the current value and then
// steps towards the target, landing exactly on it after the given number of
// samples and holding it afterwards. Because Next returns the value before
// stepping, the first sample after a retarget still has the old value.
type Ramp struct {
	value, target, step float64
	left                int
}

// Set jumps to the value immediately.
func (r *Ramp) Set(value float64) {
	r.value, r.target, r.step, r.left = value, value, 0, 0
}

// To starts ramping towards target over the given number of samples. With
// samples <= 0 the value jumps.
func (r *Ramp) To(target float64, samples int) {
	if samples <= 0 {
		r.Set(target)
		return
	}
	r.target = target
	r.step = (target - r.value) / float64(samples)
	r.left = samples
}

// Next returns the current value and advances the ramp by one sample.
func (r *Ramp) Next() float64 {
	v := r.value
	if r.left > 0 {
		r.left--
		if r.left == 0 {
			r.value = r.target
		} else {
			r.value += r.step
			// never step past the target because of rounding
			if (r.step > 0 && r.value > r.target) || (r.step < 0 && r.value < r.target) {
				r.value = r.target
			}
		}
	}
	return v
}

// Value returns the current value without advancing.
func (r *Ramp) Value() float64 { return r.value }

// Target returns the value the ramp is heading to.
func (r *Ramp) Target() float64 { return r.target }

// Done reports whether the ramp has reached its target.
func (r *Ramp) Done() bool { return r.left == 0 }

// lcg is a small deterministic random number generator, so that the random
// phases of the generated tables are the same on every run.
type lcg uint32

func (l *lcg) next() float64 {
	*l = *l*1664525 + 1013904223
	return float64(*l) / (1 << 32)
}

// NextPow2 returns the smallest power of two >= n.
func NextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
