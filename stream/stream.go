// Package stream adapts the engine to the beep audio library and encodes
// rendered songs as WAV files.
package stream

import (
	"io"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
	"github.com/vsariola/chipbox"
	"github.com/vsariola/chipbox/synth"
)

type (
	// Streamer is a beep.Streamer that renders an engine. It drains once
	// the engine has finished.
	Streamer struct {
		engine *synth.Engine
		buf    [2 * synth.MaxBlockSize]float32
		err    error
	}

	bufferStreamer struct {
		buf chipbox.AudioBuffer
		pos int
	}
)

// New returns a streamer for the engine. The streamer must be the only
// caller of the engine's render methods.
func New(e *synth.Engine) *Streamer {
	return &Streamer{engine: e}
}

// Format returns the beep format of the engine's output, for the given
// number of bytes per sample.
func Format(sampleRate, precision int) beep.Format {
	return beep.Format{SampleRate: beep.SampleRate(sampleRate), NumChannels: 2, Precision: precision}
}

func (s *Streamer) Stream(samples [][2]float64) (n int, ok bool) {
	if s.err != nil || s.engine.Finished() {
		return 0, false
	}
	for n < len(samples) {
		k := min(len(samples)-n, synth.MaxBlockSize)
		if _, err := s.engine.RenderFrames(s.buf[:2*k], k); err != nil {
			s.err = err
			return n, n > 0
		}
		for i := 0; i < k; i++ {
			samples[n+i] = [2]float64{float64(s.buf[2*i]), float64(s.buf[2*i+1])}
		}
		n += k
	}
	return n, true
}

func (s *Streamer) Err() error { return s.err }

func (b *bufferStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	if b.pos >= len(b.buf) {
		return 0, false
	}
	for n < len(samples) && b.pos < len(b.buf) {
		v := b.buf[b.pos]
		samples[n] = [2]float64{float64(v[0]), float64(v[1])}
		n++
		b.pos++
	}
	return n, true
}

func (b *bufferStreamer) Err() error { return nil }

// EncodeWAV writes the buffer as a stereo WAV file, with 16 bit samples if
// pcm16 is set and 24 bit samples otherwise.
func EncodeWAV(w io.WriteSeeker, buf chipbox.AudioBuffer, sampleRate int, pcm16 bool) error {
	precision := 3
	if pcm16 {
		precision = 2
	}
	if err := wav.Encode(w, &bufferStreamer{buf: buf}, Format(sampleRate, precision)); err != nil {
		return fault.Wrap(err, fmsg.With("cannot encode wav"))
	}
	return nil
}
