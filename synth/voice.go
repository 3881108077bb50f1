package synth

import (
	"math"

	"github.com/vsariola/chipbox"
	"github.com/vsariola/chipbox/dsp"
)

// MaxVoices is the number of voices of one channel. When all of them are
// busy, a new note steals the oldest released voice, or if there are none,
// the oldest voice.
const MaxVoices = 16

const maxTones = chipbox.MaxChordSize * chipbox.MaxUnisonVoices

type (
	// voice plays one note of one instrument: every pitch of the chord and
	// every unison copy of them, through the note filter.
	voice struct {
		active     bool
		released   bool
		tiePending bool // the note ended, but a tied note may continue it
		fresh      bool // no tick has been started yet
		age        int64

		instrument int
		instr      *chipbox.Instrument
		tables     *instrumentTables

		// the note that started the voice, matched by note-offs
		bar, pattern, note int

		pins       []chipbox.Pin
		duration   int
		ticks      int // ticks since the start of the note
		elapsed    int // samples since the voice started
		pitches    [chipbox.MaxChordSize]int
		numPitches int

		slide      float64 // semitones the pitch starts from when sliding
		slideTicks int

		arpTime float64

		attack                  int
		releaseLen, releaseLeft int

		gain, bend, vibrato, pulseWidth, fmFeedback dsp.Ramp
		opAmp                                       [4]dsp.Ramp
		filter                                      dsp.FilterChain

		tones    [maxTones]tone
		numTones int
	}

	tone struct {
		chord  int     // index to the pitches of the voice
		offset float64 // unison detune, in semitones
		amp    float64
		delay  int // samples before a strummed tone starts
		drum   int
		state  toneState
	}

	// toneState is what a tied note inherits from the note it continues.
	toneState struct {
		osc      dsp.Oscillator
		ops      [4]float64 // FM operator phases
		fb       [4]float64 // last FM operator outputs
		pos      float64    // sample playback position
		decay    float64
		decayMul float64
		done     bool
	}

	// voiceParams are the inputs of a voice that come from the engine.
	voiceParams struct {
		mods       *modState
		channel    int
		tickLen    int
		sampleRate float64
		minRelease float64
	}
)

func (v *voice) trigger(instrument int, instr *chipbox.Instrument, tables *instrumentTables, note *chipbox.Note, ev *Event, octave int, age int64, p *voiceParams) {
	*v = voice{
		active:     true,
		fresh:      true,
		age:        age,
		instrument: instrument,
		instr:      instr,
		tables:     tables,
		bar:        ev.Bar,
		pattern:    ev.Pattern,
		note:       ev.Note,
		pins:       note.Pins,
		duration:   note.Duration,
		attack:     int(instr.Attack * p.sampleRate),
	}
	v.setPitches(note, octave)
	v.filter.SetLen(len(instr.NoteFilter))
	v.setupTones(false, ev.Length, p.sampleRate)
}

// tie continues the voice with a new note, keeping its phases and its
// envelope time.
func (v *voice) tie(note *chipbox.Note, ev *Event, octave int, p *voiceParams) {
	from := v.pitches[0]
	v.setPitches(note, octave)
	v.bar, v.pattern, v.note = ev.Bar, ev.Pattern, ev.Note
	v.pins = note.Pins
	v.duration = note.Duration
	v.ticks = 0
	v.tiePending = false
	v.slide = 0
	if note.Slide {
		v.slide = float64(from - v.pitches[0])
		v.slideTicks = max(v.instr.SlideTicks, 1)
	}
	v.setupTones(true, ev.Length, p.sampleRate)
}

func (v *voice) setPitches(note *chipbox.Note, octave int) {
	v.numPitches = min(len(note.Pitches), chipbox.MaxChordSize)
	for i := 0; i < v.numPitches; i++ {
		v.pitches[i] = note.Pitches[i] + octave*12
	}
}

// setupTones lays out the tones for the chord mode and the unison of the
// instrument. With keep, tones that already existed keep their state.
func (v *voice) setupTones(keep bool, tickLen int, sampleRate float64) {
	instr := v.instr
	u := instr.Unison
	copies := max(u.Voices, 1)
	chords := v.numPitches
	if instr.Chord == chipbox.Arpeggio {
		chords = min(chords, 1)
	}
	old := v.numTones
	v.numTones = chords * copies
	for k := 0; k < chords; k++ {
		for j := 0; j < copies; j++ {
			i := k*copies + j
			t := &v.tones[i]
			state := t.state
			*t = tone{chord: k, offset: u.Offset, amp: u.Expression / float64(copies)}
			if copies > 1 {
				t.offset += u.Spread * (float64(j)/float64(copies-1) - 0.5)
			}
			if j%2 == 1 {
				t.amp *= u.Sign
			}
			if instr.Type == chipbox.Drumset && len(v.tables.drums) > 0 {
				t.drum = drumIndex(v.pitches[k], len(v.tables.drums))
			}
			if keep && i < old {
				t.state = state
				continue
			}
			t.state = toneState{decay: 1, decayMul: 1}
			if instr.Type == chipbox.Drumset && t.drum < len(instr.Drums) {
				if d := instr.Drums[t.drum].Decay; d > 0 {
					t.state.decayMul = math.Exp(-1 / (d * sampleRate))
				}
			}
			if instr.Chord == chipbox.Strum && !keep {
				t.delay = k * tickLen
			}
		}
	}
}

// release starts the release fade. The fade is linear and at least
// minRelease seconds long.
func (v *voice) release(minRelease, sampleRate float64) {
	if v.released || !v.active {
		return
	}
	v.released = true
	v.tiePending = false
	v.releaseLen = max(int(math.Max(v.instr.Release, minRelease)*sampleRate), 1)
	v.releaseLeft = v.releaseLen
}

func (v *voice) slideOffset(ticks int) float64 {
	if v.slide == 0 || v.slideTicks <= 0 {
		return 0
	}
	return v.slide * math.Max(0, 1-float64(ticks)/float64(v.slideTicks))
}

// startTick computes where the smoothed parameters of the voice should be
// at the end of the tick and starts ramping them there. A fresh voice first
// jumps to the values of the start of the tick.
func (v *voice) startTick(p *voiceParams) {
	instr := v.instr
	sr := p.sampleRate
	n := p.tickLen
	if !v.released && v.ticks > v.duration {
		v.release(p.minRelease, sr)
	}
	if v.filter.Len() != len(instr.NoteFilter) {
		v.filter.SetLen(len(instr.NoteFilter))
	}
	mod := func(id chipbox.ParameterID, base float64) float64 {
		return p.mods.value(p.channel, v.instrument, id, base)
	}
	gain := chipbox.DecibelsToGain(mod(chipbox.ParamVolume, instr.Volume))
	detune := mod(chipbox.ParamDetune, instr.Detune) / 100
	depth := mod(chipbox.ParamVibratoDepth, instr.Vibrato.Depth)
	width := mod(chipbox.ParamPulseWidth, instr.PulseWidth)
	feedback := mod(chipbox.ParamFMFeedback, instr.FM.Feedback)
	shift := mod(chipbox.ParamNoteFilterCutoff, instr.NoteFilterShift)
	arpSpeed := mod(chipbox.ParamArpeggioSpeed, instr.ArpeggioSpeed)

	var start, end envelopeFactors
	sizeStart, intervalStart := pinValue(v.pins, float64(v.ticks))
	sizeEnd, intervalEnd := pinValue(v.pins, float64(v.ticks+1))
	evaluateEnvelopes(instr, float64(v.elapsed)/sr, sizeStart, &start)
	evaluateEnvelopes(instr, float64(v.elapsed+n)/sr, sizeEnd, &end)
	bendStart := intervalStart + start.pitch + detune + v.slideOffset(v.ticks)
	bendEnd := intervalEnd + end.pitch + detune + v.slideOffset(v.ticks+1)

	if v.fresh {
		v.gain.Set(gain * start.volume)
		v.bend.Set(bendStart)
		v.vibrato.Set(depth * start.vibrato)
		v.pulseWidth.Set(width * start.pulseWidth)
		v.fmFeedback.Set(feedback * start.fmFeedback)
		for o := range v.opAmp {
			v.opAmp[o].Set(instr.FM.Operators[o].Amplitude * start.opAmplitude[o])
		}
		for s := 0; s < v.filter.Len(); s++ {
			v.filter.SetTarget(s, v.noteFilter(s, shift, start.noteFilter[s], bendStart, sr), 0)
		}
	}
	v.gain.To(gain*end.volume, n)
	v.bend.To(bendEnd, n)
	v.vibrato.To(depth*end.vibrato, n)
	v.pulseWidth.To(width*end.pulseWidth, n)
	v.fmFeedback.To(feedback*end.fmFeedback, n)
	for o := range v.opAmp {
		v.opAmp[o].To(instr.FM.Operators[o].Amplitude*end.opAmplitude[o], n)
	}
	for s := 0; s < v.filter.Len(); s++ {
		v.filter.SetTarget(s, v.noteFilter(s, shift, end.noteFilter[s], bendEnd, sr), n)
	}
	if instr.Chord == chipbox.Arpeggio && v.numPitches > 0 {
		index := int(v.arpTime/4) % v.numPitches
		for t := 0; t < v.numTones; t++ {
			v.tones[t].chord = index
		}
		v.arpTime += arpSpeed * start.arpeggio
	}
	v.fresh = false
	v.ticks++
}

// noteFilter designs stage s of the note filter. The shift and its
// envelope factor combine in normalized space; key tracking moves the
// cutoff with the pitch relative to middle C.
func (v *voice) noteFilter(s int, shift, envelope, bend, sampleRate float64) dsp.Coefficients {
	stage := v.instr.NoteFilter[s]
	id := chipbox.ParamNoteFilterCutoff
	octaves := id.Denormalize(id.Normalize(shift) * envelope)
	pitch := float64(v.pitches[0]) + bend
	octaves += v.instr.KeyTracking * (pitch - 60) / 12
	return dsp.Design(dsp.FilterKind(stage.Type), stage.Frequency*math.Exp2(octaves), resonance(stage.Resonance), stage.Gain, sampleRate)
}

func resonance(q float64) float64 {
	if q <= 0 {
		return math.Sqrt2 / 2
	}
	return q
}

// render adds the output of the voice to out.
func (v *voice) render(out []float64, sampleRate float64) {
	instr := v.instr
	for i := range out {
		if !v.active {
			return
		}
		gain := v.gain.Next()
		bend := v.bend.Next()
		depth := v.vibrato.Next()
		width := v.pulseWidth.Next()
		feedback := v.fmFeedback.Next()
		var amps [4]float64
		for o := range amps {
			amps[o] = v.opAmp[o].Next()
		}
		fade := 1.0
		if v.elapsed < v.attack {
			fade = float64(v.elapsed) / float64(v.attack)
		}
		if v.released {
			if v.releaseLeft <= 0 {
				v.active = false
				return
			}
			fade *= float64(v.releaseLeft) / float64(v.releaseLen)
			v.releaseLeft--
		}
		if depth != 0 {
			if t := float64(v.elapsed)/sampleRate - instr.Vibrato.Delay; t >= 0 {
				bend += depth * dsp.Sine(instr.Vibrato.Speed*t)
			}
		}
		var x float64
		for t := 0; t < v.numTones; t++ {
			x += v.toneSample(&v.tones[t], bend, width, feedback, &amps, sampleRate)
		}
		out[i] += v.filter.Process(x) * gain * fade
		v.elapsed++
	}
}

func (v *voice) toneSample(t *tone, bend, width, feedback float64, amps *[4]float64, sampleRate float64) float64 {
	st := &t.state
	if st.done {
		return 0
	}
	if t.delay > 0 {
		t.delay--
		return 0
	}
	pitch := float64(v.pitches[t.chord]) + t.offset + bend
	var s float64
	switch v.instr.Type {
	case chipbox.ChipWave, chipbox.CustomChipWave, chipbox.Harmonics:
		s = st.osc.Next(v.tables.wave, dsp.PitchToHz(pitch)/sampleRate)
	case chipbox.Spectrum, chipbox.Noise:
		s = st.osc.Next(v.tables.wave, dsp.NoiseDelta(pitch, sampleRate))
	case chipbox.PWM:
		delta := dsp.PitchToHz(pitch) / sampleRate
		s = dsp.Pulse(st.osc.Phase, delta, math.Min(math.Max(width, 0.01), 0.5))
		st.osc.Phase += delta
		st.osc.Phase -= math.Floor(st.osc.Phase)
	case chipbox.FMSynth:
		s = v.fmSample(st, dsp.PitchToHz(pitch)/sampleRate, feedback, amps)
	case chipbox.PitchedSample:
		smp := &v.tables.sample
		rate := math.Exp2((pitch-float64(v.instr.Sample.RootPitch))/12) * smp.rate / sampleRate
		set := &v.instr.Sample
		s = st.playSample(smp, rate, set.Loop, set.LoopStart, set.LoopEnd)
	case chipbox.Drumset:
		if len(v.tables.drums) == 0 {
			return 0
		}
		d := &v.tables.drums[t.drum]
		if d.sample.ok {
			s = st.playSample(&d.sample, d.sample.rate/sampleRate, false, 0, 0)
		} else if d.wave != nil {
			s = st.osc.Next(d.wave, dsp.NoiseDelta(60, sampleRate))
		}
		s *= st.decay
		st.decay *= st.decayMul
	}
	return s * t.amp
}

// fmSample runs the operators from the last to the first, so that every
// modulator has its output ready before the operators it modulates.
func (v *voice) fmSample(st *toneState, delta, feedback float64, amps *[4]float64) float64 {
	fm := &v.instr.FM
	alg := &dsp.FMAlgorithms[fm.Algorithm]
	var outs [4]float64
	for op := 3; op >= 0; op-- {
		phase := st.ops[op]
		for _, m := range alg.Modulators[op] {
			phase += outs[m] * dsp.FMModulationDepth
		}
		if fm.FeedbackType == dsp.FMFeedbackAll || fm.FeedbackType == op {
			phase += feedback * st.fb[op] * dsp.FMModulationDepth
		}
		outs[op] = amps[op] * dsp.OperatorWave(v.tables.opWaves[op], phase)
		st.fb[op] = outs[op]
		st.ops[op] += delta * fm.Operators[op].Ratio
		st.ops[op] -= math.Floor(st.ops[op])
	}
	var sum float64
	for op := 0; op < alg.Carriers; op++ {
		sum += outs[op]
	}
	return sum / float64(alg.Carriers)
}

// playSample reads the sample at the playback position, interpolating
// linearly, and advances the position by rate. Without a loop the tone is
// done at the end of the sample.
func (st *toneState) playSample(s *sampleData, rate float64, loop bool, loopStart, loopEnd int) float64 {
	if !s.ok {
		st.done = true
		return 0
	}
	last := len(s.data) - 1
	end := last
	start := 0
	if loop {
		start = min(max(loopStart, 0), last-1)
		if loopEnd > start && loopEnd <= last {
			end = loopEnd
		}
	}
	if st.pos >= float64(end) {
		if !loop {
			st.done = true
			return 0
		}
		span := float64(end - start)
		st.pos = float64(start) + math.Mod(st.pos-float64(start), span)
	}
	i := int(st.pos)
	frac := st.pos - float64(i)
	a, b := float64(s.data[i]), float64(s.data[i+1])
	st.pos += rate
	return a + frac*(b-a)
}

// heldPitch returns the first pitch of the voice if it is sounding and not
// released, -1 otherwise.
func (v *voice) heldPitch() int {
	if !v.active || v.released || v.numPitches == 0 {
		return -1
	}
	return v.pitches[0]
}
