package chipbox

import (
	"io"
	"math"
)

type (
	// AudioBuffer is a buffer of stereo audio samples of variable length, each
	// sample represented by [2]float32. [0] is left channel, [1] is right
	AudioBuffer [][2]float32

	// AudioSource fills the buffer with audio. It returns io.EOF once there
	// is nothing more to play; the buffer is then filled with silence.
	AudioSource func(buf AudioBuffer) error

	// AudioContext plays audio from a source on an output device until the
	// source returns an error or the returned CloserWaiter is closed.
	AudioContext interface {
		Play(r AudioSource) CloserWaiter
		Close() error
	}

	// CloserWaiter is an io.Closer whose Wait blocks until playback has
	// stopped, whether because it was closed or because the source ended.
	CloserWaiter interface {
		io.Closer
		Wait()
	}
)

// Fill fills the AudioBuffer from the source. Note that this advances the
// source.
func (buffer AudioBuffer) Fill(src AudioSource) error {
	return src(buffer)
}

// Interleave copies the buffer into dst as interleaved stereo, returning the
// number of frames copied.
func (buffer AudioBuffer) Interleave(dst []float32) int {
	n := min(len(buffer), len(dst)/2)
	for i := 0; i < n; i++ {
		dst[2*i] = buffer[i][0]
		dst[2*i+1] = buffer[i][1]
	}
	return n
}

// Deinterleave makes an AudioBuffer of interleaved stereo samples.
func Deinterleave(src []float32) AudioBuffer {
	ret := make(AudioBuffer, len(src)/2)
	for i := range ret {
		ret[i] = [2]float32{src[2*i], src[2*i+1]}
	}
	return ret
}

// Peak returns the largest absolute sample value in the buffer.
func (buffer AudioBuffer) Peak() float32 {
	var ret float32
	for _, s := range buffer {
		ret = max(ret, float32(math.Abs(float64(s[0]))), float32(math.Abs(float64(s[1]))))
	}
	return ret
}
