package dsp

import "math"

type (
	// Hold is a sample and hold that lowers the effective sample rate of a
	// signal. Rate 1 passes the signal through.
	Hold struct {
		phase float64
		held  float64
	}

	// RingMod multiplies the signal by a sine carrier.
	RingMod struct {
		osc Oscillator
	}

	// Chorus turns a mono signal into stereo by mixing it with two copies
	// delayed by slowly modulated, opposite phase amounts.
	Chorus struct {
		line DelayLine
		lfo  Oscillator
	}

	// Reverb is a small Schroeder reverb: a pre-delay, four parallel comb
	// filters and two allpass diffusers per side. The right side has
	// slightly longer delays to decorrelate it from the left.
	Reverb struct {
		preDelay DelayLine
		preLen   int
		sides    [2]reverbSide
	}

	reverbSide struct {
		combs    [4]delayBuffer
		allpass  [2]delayBuffer
		combGain [4]float64
	}

	delayBuffer struct {
		buf []float64
		pos int
	}
)

const (
	chorusBaseSeconds  = 0.012
	chorusDepthSeconds = 0.004
	chorusRate         = 0.7 // Hz

	reverbPreDelaySeconds = 0.008
	reverbAllpassGain     = 0.5
	reverbAttenuation     = 0.3
	reverbStereoSpread    = 23
)

var (
	reverbCombs   = [4]int{1687, 1601, 2053, 2251}
	reverbDecays  = [4]float64{0.97, 0.95, 0.93, 0.91}
	reverbAllpass = [2]int{389, 307}
)

// Waveshape distorts the value. Amount 0.5 passes the value through, higher
// amounts saturate and lower amounts soften it.
func Waveshape(value, amount float64) float64 {
	return value * amount / (1 - amount + (2*amount-1)*math.Abs(value))
}

// Distort maps a distortion setting in [0, 1] onto Waveshape.
func Distort(value, distortion float64) float64 {
	if distortion <= 0 {
		return value
	}
	return Waveshape(value, 0.5+0.49*math.Min(distortion, 1))
}

func nonLinearMap(value float64) float64 {
	return math.Exp2(-24 * value)
}

// Crush quantizes the value to steps of 2^(-24·amount).
func Crush(value, amount float64) float64 {
	n := nonLinearMap(amount)
	return math.Round(value/n) * n
}

// Bitcrush maps a bitcrusher setting in [0, 1] onto Crush; 0 bypasses.
func Bitcrush(value, bitcrusher float64) float64 {
	if bitcrusher <= 0 {
		return value
	}
	return Crush(value, 0.04+0.625*(1-math.Min(bitcrusher, 1)))
}

// Next passes the input through, holding it for 1/rate samples.
func (h *Hold) Next(x, rate float64) float64 {
	h.phase -= rate
	if h.phase <= 0 {
		h.held = x
		h.phase += 1
	}
	return h.held
}

// HoldRate maps a hold setting in [0, 1] to a Hold rate.
func HoldRate(hold float64) float64 {
	r := 1 - math.Min(math.Max(hold, 0), 1)
	return math.Max(r*r, 0.01)
}

// Reset forgets the held sample.
func (h *Hold) Reset() { *h = Hold{} }

// Next mixes the ring modulated input by amount.
func (r *RingMod) Next(x, amount, hz, sampleRate float64) float64 {
	c := Sine(r.osc.Phase)
	r.osc.Phase += hz / sampleRate
	r.osc.Phase -= math.Floor(r.osc.Phase)
	return x * (1 - amount + amount*c)
}

// Reset sets the carrier to phase 0.
func (r *RingMod) Reset() { r.osc.Phase = 0 }

// NewChorus allocates the delay line of a chorus.
func NewChorus(sampleRate float64) Chorus {
	return Chorus{line: NewDelayLine(int((chorusBaseSeconds + chorusDepthSeconds) * sampleRate))}
}

// Next returns the left and right outputs for input x; amount 0 is dry.
func (c *Chorus) Next(x, amount, sampleRate float64) (l, r float64) {
	c.line.Write(x)
	m := Sine(c.lfo.Phase) * chorusDepthSeconds * sampleRate
	c.lfo.Phase += chorusRate / sampleRate
	c.lfo.Phase -= math.Floor(c.lfo.Phase)
	base := chorusBaseSeconds * sampleRate
	l = x + amount*c.line.Read(base+m)
	r = x + amount*c.line.Read(base-m)
	g := 1 / (1 + 0.5*amount)
	return l * g, r * g
}

// Reset clears the delay line.
func (c *Chorus) Reset() {
	c.line.Clear()
	c.lfo.Phase = 0
}

// NewReverb allocates the delay buffers of a reverb for the sample rate.
func NewReverb(sampleRate float64) Reverb {
	scale := sampleRate / ReferenceRate
	r := Reverb{preLen: max(int(reverbPreDelaySeconds*sampleRate), 1)}
	r.preDelay = NewDelayLine(r.preLen)
	for s := range r.sides {
		side := &r.sides[s]
		spread := s * reverbStereoSpread
		for i, n := range reverbCombs {
			side.combs[i] = delayBuffer{buf: make([]float64, max(int(float64(n+spread)*scale), 1))}
			side.combGain[i] = reverbDecays[i]
		}
		for i, n := range reverbAllpass {
			side.allpass[i] = delayBuffer{buf: make([]float64, max(int(float64(n+spread)*scale), 1))}
		}
	}
	return r
}

// Next feeds the mono send x into the reverb and returns the wet stereo
// output.
func (r *Reverb) Next(x float64) (l, rr float64) {
	r.preDelay.Write(x)
	in := r.preDelay.Read(float64(r.preLen))
	var out [2]float64
	for s := range r.sides {
		side := &r.sides[s]
		var sum float64
		for i := range side.combs {
			c := &side.combs[i]
			d := c.buf[c.pos]
			c.buf[c.pos] = in + d*side.combGain[i]
			c.pos = (c.pos + 1) % len(c.buf)
			sum += d
		}
		for i := range side.allpass {
			a := &side.allpass[i]
			d := a.buf[a.pos]
			a.buf[a.pos] = sum + d*reverbAllpassGain
			a.pos = (a.pos + 1) % len(a.buf)
			sum = d - sum
		}
		out[s] = sum * reverbAttenuation
	}
	return out[0], out[1]
}

// Reset clears all the buffers of the reverb.
func (r *Reverb) Reset() {
	r.preDelay.Clear()
	for s := range r.sides {
		for i := range r.sides[s].combs {
			clear(r.sides[s].combs[i].buf)
			r.sides[s].combs[i].pos = 0
		}
		for i := range r.sides[s].allpass {
			clear(r.sides[s].allpass[i].buf)
			r.sides[s].allpass[i].pos = 0
		}
	}
}

// PanGains returns the constant power gains of the left and right sides
// for a pan in [-1, 1].
func PanGains(pan float64) (l, r float64) {
	theta := (math.Min(math.Max(pan, -1), 1) + 1) * math.Pi / 4
	return math.Cos(theta), math.Sin(theta)
}

// Widen scales the side signal of a stereo pair by 1+width; -1 collapses
// the pair to mono.
func Widen(l, r, width float64) (float64, float64) {
	mid := (l + r) / 2
	side := (l - r) / 2 * (1 + width)
	return mid + side, mid - side
}
