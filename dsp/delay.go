package dsp

import "math"

// DelayLine is a circular buffer with a power of two length, read at
// fractional delays. The buffer is allocated once and zeroed, so reading
// before anything was written gives silence.
type DelayLine struct {
	buf  []float64
	mask int
	pos  int
}

// NewDelayLine allocates a delay line that can delay by at least
// maxDelay samples.
func NewDelayLine(maxDelay int) DelayLine {
	n := NextPow2(max(maxDelay+2, 4))
	return DelayLine{buf: make([]float64, n), mask: n - 1}
}

// Len returns the length of the buffer; the longest usable delay is Len()-2.
func (d *DelayLine) Len() int { return len(d.buf) }

// Write stores the sample and advances the write position.
func (d *DelayLine) Write(x float64) {
	if len(d.buf) == 0 {
		return
	}
	d.buf[d.pos] = x
	d.pos = (d.pos + 1) & d.mask
}

// Read returns the sample written delay samples ago, interpolating linearly
// between samples. A delay of 1 is the most recently written sample. The
// delay is clamped to [1, Len()-2].
func (d *DelayLine) Read(delay float64) float64 {
	if len(d.buf) == 0 {
		return 0
	}
	delay = math.Min(math.Max(delay, 1), float64(len(d.buf)-2))
	i := int(delay)
	frac := delay - float64(i)
	a := d.buf[(d.pos-i)&d.mask]
	b := d.buf[(d.pos-i-1)&d.mask]
	return a + frac*(b-a)
}

// Clear zeroes the buffer.
func (d *DelayLine) Clear() {
	clear(d.buf)
	d.pos = 0
}
