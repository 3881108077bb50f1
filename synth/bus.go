package synth

import (
	"math"

	"github.com/vsariola/chipbox"
	"github.com/vsariola/chipbox/dsp"
)

type (
	// channelState is everything a channel keeps between blocks: its voices
	// and the state of its effect bus. Channel states are allocated when a
	// song is prepared and never freed, so that the render goroutine never
	// allocates.
	channelState struct {
		voices [MaxVoices]voice
		age    int64

		// busInstrument is the instrument whose effect settings the bus
		// uses: the one that most recently started a note.
		busInstrument int

		mono [MaxBlockSize]float64
		out  [2 * MaxBlockSize]float32

		params  [numBusParams]dsp.Ramp
		eq      dsp.FilterChain
		ring    dsp.RingMod
		chorus  dsp.Chorus
		holds   [2]dsp.Hold
		echo    [2]dsp.DelayLine
		echoOK  bool
		reverb  dsp.Reverb
		started bool
	}
)

const (
	busDistortion = iota
	busChorus
	busBitcrusher
	busBitcrusherHold
	busRingMod
	busRingModHz
	busPan
	busStereoWidth
	busEchoDelay
	busEchoFeedback
	busEchoMix
	busReverb
	numBusParams
)

var busParameters = [numBusParams]chipbox.ParameterID{
	busDistortion:     chipbox.ParamDistortion,
	busChorus:         chipbox.ParamChorus,
	busBitcrusher:     chipbox.ParamBitcrusher,
	busBitcrusherHold: chipbox.ParamBitcrusherHold,
	busRingMod:        chipbox.ParamRingMod,
	busRingModHz:      chipbox.ParamRingModHz,
	busPan:            chipbox.ParamPan,
	busStereoWidth:    chipbox.ParamStereoWidth,
	busEchoDelay:      chipbox.ParamEchoDelay,
	busEchoFeedback:   chipbox.ParamEchoFeedback,
	busEchoMix:        chipbox.ParamEchoMix,
	busReverb:         chipbox.ParamReverb,
}

// echoFrames returns the length of the echo buffers for the config, and
// whether they fit in MaxDelayFrames.
func echoFrames(cfg Config) (int, bool) {
	n := int(math.Ceil(cfg.MaxEchoSeconds * float64(cfg.SampleRate)))
	return n, dsp.NextPow2(n+2) <= cfg.MaxDelayFrames
}

func newChannelState(cfg Config) *channelState {
	sr := float64(cfg.SampleRate)
	c := &channelState{
		chorus: dsp.NewChorus(sr),
		reverb: dsp.NewReverb(sr),
	}
	if n, ok := echoFrames(cfg); ok {
		c.echo = [2]dsp.DelayLine{dsp.NewDelayLine(n), dsp.NewDelayLine(n)}
		c.echoOK = true
	}
	return c
}

// allocate returns the voice for a new note: a free one, else the oldest
// released one, else the oldest one.
func (c *channelState) allocate() *voice {
	var oldest, oldestReleased *voice
	for i := range c.voices {
		v := &c.voices[i]
		if !v.active {
			return v
		}
		if v.released && (oldestReleased == nil || v.age < oldestReleased.age) {
			oldestReleased = v
		}
		if oldest == nil || v.age < oldest.age {
			oldest = v
		}
	}
	if oldestReleased != nil {
		return oldestReleased
	}
	return oldest
}

// pendingTie returns a voice of the instrument waiting to be continued by a
// tied note, or nil.
func (c *channelState) pendingTie(instrument int) *voice {
	for i := range c.voices {
		v := &c.voices[i]
		if v.active && v.tiePending && v.instrument == instrument {
			return v
		}
	}
	return nil
}

func (c *channelState) releaseAll(minRelease, sampleRate float64) {
	for i := range c.voices {
		c.voices[i].release(minRelease, sampleRate)
	}
}

// reset silences the channel immediately: voices are cut and the effect
// buffers cleared.
func (c *channelState) reset() {
	for i := range c.voices {
		c.voices[i].active = false
	}
	c.eq.Clear()
	c.ring.Reset()
	c.chorus.Reset()
	for i := range c.holds {
		c.holds[i].Reset()
	}
	for i := range c.echo {
		c.echo[i].Clear()
	}
	c.reverb.Reset()
	c.started = false
}

func (c *channelState) activeVoices() int {
	n := 0
	for i := range c.voices {
		if c.voices[i].active {
			n++
		}
	}
	return n
}

// heldPitch returns the pitch of the newest voice still held, -1 if none.
func (c *channelState) heldPitch() int {
	pitch, age := -1, int64(-1)
	for i := range c.voices {
		v := &c.voices[i]
		if p := v.heldPitch(); p >= 0 && v.age > age {
			pitch, age = p, v.age
		}
	}
	return pitch
}

// startTick moves the effect settings of the bus towards the values of the
// instrument on this tick.
func (c *channelState) startTick(instr *chipbox.Instrument, p *voiceParams, rampLen int) {
	bi := c.busInstrument
	for k, id := range busParameters {
		base, _ := instr.Parameter(id)
		target := p.mods.value(p.channel, bi, id, base)
		if !c.started {
			c.params[k].Set(target)
			continue
		}
		c.params[k].To(target, rampLen)
	}
	if c.eq.Len() != len(instr.EQFilter) {
		c.eq.SetLen(len(instr.EQFilter))
	}
	shift := p.mods.value(p.channel, bi, chipbox.ParamEQFilterCutoff, instr.EQFilterShift)
	for s, stage := range instr.EQFilter {
		coeffs := dsp.Design(dsp.FilterKind(stage.Type), stage.Frequency*math.Exp2(shift), resonance(stage.Resonance), stage.Gain, p.sampleRate)
		if !c.started {
			c.eq.SetTarget(s, coeffs, 0)
			continue
		}
		c.eq.SetTarget(s, coeffs, rampLen)
	}
	c.started = true
}

// process runs the mono voice sum of frames [from, to) through the effects
// into the stereo output of the bus.
func (c *channelState) process(from, to int, sampleRate float64) {
	for i := from; i < to; i++ {
		var v [numBusParams]float64
		for k := range c.params {
			v[k] = c.params[k].Next()
		}
		x := dsp.Distort(c.mono[i], v[busDistortion])
		x = c.eq.Process(x)
		if v[busRingMod] > 0 {
			x = c.ring.Next(x, v[busRingMod], v[busRingModHz], sampleRate)
		}
		l, r := c.chorus.Next(x, v[busChorus], sampleRate)
		rate := dsp.HoldRate(v[busBitcrusherHold])
		l = dsp.Bitcrush(c.holds[0].Next(l, rate), v[busBitcrusher])
		r = dsp.Bitcrush(c.holds[1].Next(r, rate), v[busBitcrusher])
		gl, gr := dsp.PanGains(v[busPan])
		l *= gl * math.Sqrt2
		r *= gr * math.Sqrt2
		if c.echoOK {
			delay := v[busEchoDelay] * sampleRate
			el, er := c.echo[0].Read(delay), c.echo[1].Read(delay)
			c.echo[0].Write(l + el*v[busEchoFeedback])
			c.echo[1].Write(r + er*v[busEchoFeedback])
			l += el * v[busEchoMix]
			r += er * v[busEchoMix]
		}
		wl, wr := c.reverb.Next((l + r) / 2 * v[busReverb])
		l, r = dsp.Widen(l+wl, r+wr, v[busStereoWidth])
		c.out[2*i] = float32(l)
		c.out[2*i+1] = float32(r)
	}
}
