package synth

import (
	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/vsariola/chipbox"
)

const exportChunk = 4096

// NewForExport creates an engine that plays the song once from the start,
// with the loop disabled, and is already playing.
func NewForExport(song chipbox.Song, cfg Config, bank SampleBank) (*Engine, error) {
	song.Loop.Enabled = false
	e, err := NewEngine(song, cfg, bank)
	if err != nil {
		return nil, err
	}
	e.seq.SetPlaying(true)
	return e, nil
}

// RenderWholeSong renders the song from the start to the end, followed by
// cfg.ExportTail seconds of release and effect tails. It uses the same
// render path as live playback, so the result is identical to what plays.
func RenderWholeSong(song chipbox.Song, sampleRate int, cfg Config, bank SampleBank) (chipbox.AudioBuffer, error) {
	cfg.SampleRate = sampleRate
	e, err := NewForExport(song, cfg, bank)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("cannot render song"))
	}
	cfg = e.Config()
	tail := int(cfg.ExportTail * float64(cfg.SampleRate))
	buf := make([]float32, 2*exportChunk)
	var ret chipbox.AudioBuffer
	total := -1
	for total < 0 {
		n, err := e.RenderFrames(buf, exportChunk)
		if err != nil {
			return nil, fault.Wrap(err, fmsg.With("cannot render song"))
		}
		ret = append(ret, chipbox.Deinterleave(buf)...)
		if n < exportChunk {
			total = len(ret) - exportChunk + n + tail
		}
	}
	for len(ret) < total {
		if _, err := e.RenderFrames(buf, exportChunk); err != nil {
			return nil, fault.Wrap(err, fmsg.With("cannot render song"))
		}
		ret = append(ret, chipbox.Deinterleave(buf)...)
	}
	return ret[:total], nil
}
