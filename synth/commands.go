package synth

import (
	"errors"

	"github.com/vsariola/chipbox"
)

type (
	// command is a request from the control plane to the render goroutine.
	// Commands are plain values; the only pointer is the prepared song, which
	// is built before sending and never touched by the sender afterwards.
	command struct {
		kind       commandKind
		channel    int
		instrument int
		pos        chipbox.SongPos
		param      chipbox.ParameterID
		value      float64
		flag       bool
		loop       chipbox.Loop
		song       *preparedSong
	}

	commandKind int
)

const (
	cmdPlay commandKind = iota
	cmdPause
	cmdStop
	cmdSeek
	cmdLoop
	cmdSong
	cmdParameter
	cmdMute
	cmdSolo
)

const (
	commandQueueSize      = 1024
	notificationQueueSize = 16
	diagnosticQueueSize   = 256
)

var (
	// ErrQueueFull is returned when a command cannot be queued because the
	// render goroutine has not drained the queue.
	ErrQueueFull = errors.New("synth: command queue full")
	// ErrNegativeFrames is returned by RenderFrames for a negative count.
	ErrNegativeFrames = errors.New("synth: negative frame count")
	// ErrShortBuffer is returned by RenderFrames when the buffer cannot hold
	// the requested frames.
	ErrShortBuffer = errors.New("synth: buffer shorter than the frame count")
)

// TrySend is a helper function to send a value to a channel if it is not full.
// It is guaranteed to be non-blocking. Return true if the value was sent, false
// otherwise.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

func (e *Engine) send(cmd command) error {
	if !TrySend(e.commands, cmd) {
		return ErrQueueFull
	}
	return nil
}

// Play starts playing from the current position. After the song has ended,
// playing starts again from the beginning.
func (e *Engine) Play() error { return e.send(command{kind: cmdPlay}) }

// Pause stops advancing, releasing the sounding notes.
func (e *Engine) Pause() error { return e.send(command{kind: cmdPause}) }

// Stop stops playing and moves to the beginning of the song. With hard, the
// voices and the effect tails are cut immediately; otherwise the voices
// are released.
func (e *Engine) Stop(hard bool) error { return e.send(command{kind: cmdStop, flag: hard}) }

// Seek moves the playback position to the start of the given tick. The
// sounding voices are released. Positions outside the song are clamped into
// it.
func (e *Engine) Seek(bar, tick int) error {
	return e.send(command{kind: cmdSeek, pos: chipbox.SongPos{Bar: bar, Tick: tick}})
}

// SetLoopRange sets the loop range, in bars. end is exclusive. A range
// outside the song is clamped into it, with a DiagLoopClamped diagnostic.
func (e *Engine) SetLoopRange(start, end int, enabled bool) error {
	return e.send(command{kind: cmdLoop, loop: chipbox.Loop{Start: start, End: end, Enabled: enabled}})
}

// SetMute mutes or unmutes a channel. A muted channel keeps rendering; only
// its output is left out of the mix.
func (e *Engine) SetMute(channel int, muted bool) error {
	return e.send(command{kind: cmdMute, channel: channel, flag: muted})
}

// SetSolo solos or unsolos a channel. When any channel is soloed, only the
// soloed channels are heard.
func (e *Engine) SetSolo(channel int, solo bool) error {
	return e.send(command{kind: cmdSolo, channel: channel, flag: solo})
}

// SetInstrumentParameter changes a parameter of an instrument of the
// playing song. The value is normalized to [0, 1]. The change takes effect
// on the next tick and is smoothed like any other parameter change.
func (e *Engine) SetInstrumentParameter(channel, instrument int, id chipbox.ParameterID, value float64) error {
	return e.send(command{kind: cmdParameter, channel: channel, instrument: instrument, param: id, value: value})
}

// SetSong replaces the song being played, keeping the position. The song is
// copied, validated and prepared on the calling goroutine; the render
// goroutine only swaps it in. Validation problems are sent as diagnostics.
// The mute and solo states of the existing channels are kept.
func (e *Engine) SetSong(song chipbox.Song) error {
	p, err := e.prepare(song)
	if err != nil {
		return err
	}
	return e.send(command{kind: cmdSong, song: p})
}

func (e *Engine) processCommands() {
	for {
		select {
		case cmd := <-e.commands:
			e.apply(cmd)
		default:
			return
		}
	}
}

func (e *Engine) apply(cmd command) {
	switch cmd.kind {
	case cmdPlay:
		if e.ended {
			e.seq.Seek(0, 0)
			e.ended = false
		}
		e.seq.SetPlaying(true)
	case cmdPause:
		e.releaseAll()
		e.seq.SetPlaying(false)
	case cmdStop:
		if cmd.flag {
			for _, c := range e.channels {
				c.reset()
			}
		} else {
			e.releaseAll()
		}
		e.seq.SetPlaying(false)
		e.seq.Seek(0, 0)
		e.ended = false
	case cmdSeek:
		e.releaseAll()
		pos := e.song.song.Clamp(cmd.pos)
		e.seq.Seek(pos.Bar, pos.Tick)
		e.ended = false
	case cmdLoop:
		loop, ok := cmd.loop.Clamp(e.song.song.Bars)
		if !ok {
			e.diagnose(chipbox.DiagLoopClamped, -1, -1, -1, float64(cmd.loop.Start))
		}
		e.seq.SetLoop(loop)
	case cmdSong:
		e.install(cmd.song)
	case cmdParameter:
		song := &e.song.song
		if cmd.channel < 0 || cmd.channel >= len(song.Channels) || cmd.instrument < 0 || cmd.instrument >= len(song.Channels[cmd.channel].Instruments) {
			e.report(chipbox.Diagnostic{Kind: chipbox.DataIntegrity, Code: chipbox.DiagMissingChannel, Channel: cmd.channel, Instrument: cmd.instrument, Bar: -1})
			return
		}
		song.Channels[cmd.channel].Instruments[cmd.instrument].SetParameter(cmd.param, cmd.param.Denormalize(cmd.value))
	case cmdMute, cmdSolo:
		if cmd.channel < 0 || cmd.channel >= MaxChannels {
			e.report(chipbox.Diagnostic{Kind: chipbox.DataIntegrity, Code: chipbox.DiagMissingChannel, Channel: cmd.channel, Instrument: -1, Bar: -1})
			return
		}
		if cmd.kind == cmdMute {
			e.muted[cmd.channel] = cmd.flag
		} else {
			e.solo[cmd.channel] = cmd.flag
		}
	}
}
