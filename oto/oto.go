// Package oto plays audio sources with the oto library.
package oto

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/ebitengine/oto/v3"
	"github.com/vsariola/chipbox"
)

type (
	// Context is an oto output device. It implements chipbox.AudioContext.
	Context struct {
		ctx *oto.Context
	}

	// Playback is a source being played. Closing it stops the playback.
	Playback struct {
		player *oto.Player
		reader *reader
		once   sync.Once
		closed chan struct{}
	}

	// reader pulls audio from the source as float32 little endian frames,
	// the format oto asks for.
	reader struct {
		src  chipbox.AudioSource
		buf  chipbox.AudioBuffer
		err  error
		done chan struct{}
	}
)

const bytesPerFrame = 8

// NewContext opens the default output device. bufferFrames is the size of
// the device buffer; zero lets oto choose.
func NewContext(sampleRate, bufferFrames int) (*Context, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
	}
	if bufferFrames > 0 {
		op.BufferSize = time.Duration(bufferFrames) * time.Second / time.Duration(sampleRate)
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("cannot create oto context"))
	}
	<-ready
	return &Context{ctx: ctx}, nil
}

// Play starts playing the source. The playback ends when the source returns
// an error, io.EOF included, or when it is closed.
func (c *Context) Play(src chipbox.AudioSource) chipbox.CloserWaiter {
	r := newReader(src)
	p := &Playback{player: c.ctx.NewPlayer(r), reader: r, closed: make(chan struct{})}
	p.player.Play()
	return p
}

// Close suspends the device. oto contexts cannot be reopened, so a closed
// context should not be used any more.
func (c *Context) Close() error {
	if err := c.ctx.Suspend(); err != nil {
		return fault.Wrap(err, fmsg.With("cannot close oto context"))
	}
	return nil
}

func (p *Playback) Close() error {
	var err error
	p.once.Do(func() {
		close(p.closed)
		err = p.player.Close()
	})
	if err != nil {
		return fault.Wrap(err, fmsg.With("cannot close oto player"))
	}
	return nil
}

// Wait blocks until the source has ended and oto has played what was read
// from it, or until the playback is closed.
func (p *Playback) Wait() {
	select {
	case <-p.reader.done:
	case <-p.closed:
		return
	}
	for p.player.IsPlaying() {
		select {
		case <-p.closed:
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Err returns the error that ended the source, nil if it ended with io.EOF
// or has not ended.
func (p *Playback) Err() error {
	select {
	case <-p.reader.done:
		if errors.Is(p.reader.err, io.EOF) {
			return nil
		}
		return p.reader.err
	default:
		return nil
	}
}

func newReader(src chipbox.AudioSource) *reader {
	return &reader{src: src, done: make(chan struct{})}
}

func (r *reader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	frames := len(p) / bytesPerFrame
	if cap(r.buf) < frames {
		r.buf = make(chipbox.AudioBuffer, frames)
	}
	buf := r.buf[:frames]
	if err := buf.Fill(r.src); err != nil {
		r.err = err
		close(r.done)
		if !errors.Is(err, io.EOF) {
			return 0, err
		}
		return encodeFloat32LE(p, buf), io.EOF
	}
	return encodeFloat32LE(p, buf), nil
}

func encodeFloat32LE(dst []byte, buf chipbox.AudioBuffer) int {
	for i, s := range buf {
		binary.LittleEndian.PutUint32(dst[i*bytesPerFrame:], math.Float32bits(s[0]))
		binary.LittleEndian.PutUint32(dst[i*bytesPerFrame+4:], math.Float32bits(s[1]))
	}
	return len(buf) * bytesPerFrame
}
