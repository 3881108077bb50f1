//go:build portaudio

// Package portaudio plays audio sources with PortAudio. It needs the
// PortAudio C library and is only built with the portaudio build tag.
package portaudio

import (
	"errors"
	"io"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	pa "github.com/gordonklaus/portaudio"
	"github.com/vsariola/chipbox"
)

type (
	// Context is the default PortAudio output device. It implements
	// chipbox.AudioContext.
	Context struct {
		sampleRate   int
		bufferFrames int
	}

	// Playback is a source playing on its own PortAudio stream.
	Playback struct {
		stream *pa.Stream
		src    chipbox.AudioSource
		buf    chipbox.AudioBuffer
		err    error
		done   chan struct{}
		ended  sync.Once
		closed sync.Once
	}
)

// NewContext initializes PortAudio. bufferFrames is the size of the
// callback buffers; zero lets PortAudio choose.
func NewContext(sampleRate, bufferFrames int) (*Context, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fault.Wrap(err, fmsg.With("cannot initialize portaudio"))
	}
	return &Context{sampleRate: sampleRate, bufferFrames: bufferFrames}, nil
}

// Play opens a stream on the default output device and starts playing the
// source. If the stream cannot be opened, the returned playback is already
// done and Err tells why.
func (c *Context) Play(src chipbox.AudioSource) chipbox.CloserWaiter {
	p := &Playback{src: src, done: make(chan struct{})}
	if c.bufferFrames > 0 {
		p.buf = make(chipbox.AudioBuffer, c.bufferFrames)
	}
	frames := c.bufferFrames
	if frames <= 0 {
		frames = pa.FramesPerBufferUnspecified
	}
	stream, err := pa.OpenDefaultStream(0, 2, float64(c.sampleRate), frames, p.callback)
	if err == nil {
		err = stream.Start()
	}
	if err != nil {
		p.end(fault.Wrap(err, fmsg.With("cannot start portaudio stream")))
		return p
	}
	p.stream = stream
	return p
}

// Close terminates PortAudio.
func (c *Context) Close() error {
	if err := pa.Terminate(); err != nil {
		return fault.Wrap(err, fmsg.With("cannot terminate portaudio"))
	}
	return nil
}

// callback runs on the PortAudio thread. After the source has ended it
// only outputs silence.
func (p *Playback) callback(out []float32) {
	frames := len(out) / 2
	select {
	case <-p.done:
		clear(out)
		return
	default:
	}
	if cap(p.buf) < frames {
		p.buf = make(chipbox.AudioBuffer, frames)
	}
	buf := p.buf[:frames]
	if err := buf.Fill(p.src); err != nil {
		p.end(err)
	}
	buf.Interleave(out)
}

func (p *Playback) end(err error) {
	p.ended.Do(func() {
		p.err = err
		close(p.done)
	})
}

// Wait blocks until the source has ended or the playback is closed.
func (p *Playback) Wait() { <-p.done }

// Err returns the error that ended the source, nil if it ended with io.EOF
// or is still playing.
func (p *Playback) Err() error {
	select {
	case <-p.done:
		if errors.Is(p.err, io.EOF) {
			return nil
		}
		return p.err
	default:
		return nil
	}
}

func (p *Playback) Close() error {
	var err error
	p.closed.Do(func() {
		p.end(io.EOF)
		if p.stream == nil {
			return
		}
		if err = p.stream.Stop(); err == nil {
			err = p.stream.Close()
		}
	})
	if err != nil {
		return fault.Wrap(err, fmsg.With("cannot close portaudio stream"))
	}
	return nil
}
