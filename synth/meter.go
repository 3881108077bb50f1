package synth

import (
	"math"

	"github.com/viterin/vek/vek32"
)

// meter follows the level of the engine output. The peak falls by the decay
// factor per block unless a louder block comes; the RMS is of the last
// block only.
type meter struct {
	peak [2]float32
	rms  [2]float32
	last [2]float32 // peak of the last block, without the decay
	tmp  [MaxBlockSize]float32
	sq   [MaxBlockSize]float32
}

// silenceLevel is the level below which a block counts as silent.
const silenceLevel = 1e-4

func (m *meter) measure(out []float32, n int, decay float32) {
	if n == 0 {
		return
	}
	for side := 0; side < 2; side++ {
		buf := m.tmp[:n]
		for i := range buf {
			buf[i] = out[2*i+side]
		}
		sq := vek32.Mul_Into(m.sq[:n], buf, buf)
		m.rms[side] = float32(math.Sqrt(float64(vek32.Mean(sq))))
		vek32.Abs_Inplace(buf)
		m.last[side] = vek32.Max(buf)
		m.peak[side] = max(m.last[side], m.peak[side]*decay)
	}
}

func (m *meter) silent() bool {
	return m.last[0] < silenceLevel && m.last[1] < silenceLevel
}

func addInplace(dst, src []float32) {
	vek32.Add_Inplace(dst, src)
}
