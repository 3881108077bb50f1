package synth

import (
	"io"
	"sync/atomic"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/vsariola/chipbox"
	"github.com/vsariola/chipbox/dsp"
)

type (
	// Engine renders a song into audio. All the rendering happens on the
	// goroutine that calls RenderFrames or Process; the other methods only
	// queue commands for it, so they are safe to call from anywhere. The
	// render path does not allocate, lock or block.
	Engine struct {
		cfg      Config
		bank     SampleBank
		song     *preparedSong
		seq      *Sequencer
		channels []*channelState
		reserved atomic.Int32 // number of channel states allocated so far

		commands      chan command
		notifications chan Notification
		diagnostics   chan chipbox.Diagnostic

		params     voiceParams
		masterGain dsp.Ramp
		master     [2 * MaxBlockSize]float32
		scratch    [2 * MaxBlockSize]float32
		muted      [MaxChannels]bool
		solo       [MaxChannels]bool
		ended      bool
		meter      meter
	}

	// preparedSong is a private, validated copy of a song with everything
	// the render goroutine needs to play it.
	preparedSong struct {
		song       chipbox.Song
		tables     [][]*instrumentTables
		mods       *modState
		states     []*channelState // new channel states, starting at index statesFrom
		statesFrom int
	}

	// Notification tells the user interface what the engine is doing. Notes
	// holds the pitch held in each channel, -1 for none.
	Notification struct {
		Playing bool
		Pos     chipbox.SongPos
		Notes   [MaxChannels]int16
		Level   [2]float32 // peak level of the left and right output
		RMS     [2]float32 // RMS level of the last block
	}
)

// MaxChannels is the number of channels the engine can play. Channels
// beyond it are bypassed.
const MaxChannels = 64

// NewEngine creates an engine for the song. The engine starts stopped at
// the beginning of the song. bank may be nil if the song uses no samples.
func NewEngine(song chipbox.Song, cfg Config, bank SampleBank) (*Engine, error) {
	cfg = cfg.Normalized()
	e := &Engine{
		cfg:           cfg,
		bank:          bank,
		channels:      make([]*channelState, 0, MaxChannels),
		commands:      make(chan command, commandQueueSize),
		notifications: make(chan Notification, notificationQueueSize),
		diagnostics:   make(chan chipbox.Diagnostic, diagnosticQueueSize),
		params: voiceParams{
			sampleRate: float64(cfg.SampleRate),
			minRelease: cfg.MinRelease,
		},
	}
	p, err := e.prepare(song)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("cannot create engine"))
	}
	e.install(p)
	e.masterGain.Set(p.song.MasterGain())
	return e, nil
}

// Config returns the settings of the engine, with defaults filled in.
func (e *Engine) Config() Config { return e.cfg }

// Notifications returns the channel of notifications. At most one
// notification is sent per RenderFrames call, and none when the channel
// is full.
func (e *Engine) Notifications() <-chan Notification { return e.notifications }

// Diagnostics returns the channel of diagnostics. Diagnostics are dropped
// when the channel is full.
func (e *Engine) Diagnostics() <-chan chipbox.Diagnostic { return e.diagnostics }

func (e *Engine) report(d chipbox.Diagnostic) {
	TrySend(e.diagnostics, d)
}

func (e *Engine) diagnose(code chipbox.DiagnosticCode, channel, instrument, bar int, value float64) {
	e.report(chipbox.Diagnostic{Kind: code.Kind(), Code: code, Channel: channel, Instrument: instrument, Bar: bar, Value: value})
}

func (e *Engine) prepare(song chipbox.Song) (*preparedSong, error) {
	p := &preparedSong{song: song.Copy()}
	diags, err := p.song.Validate()
	if err != nil {
		return nil, err
	}
	for _, d := range diags {
		e.report(d)
	}
	for c := MaxChannels; c < len(p.song.Channels); c++ {
		e.diagnose(chipbox.DiagChannelBypassed, c, -1, -1, 0)
	}
	p.tables = prepareTables(&p.song, e.bank)
	p.mods = newModState(&p.song)
	want := int32(min(len(p.song.Channels), MaxChannels))
	for {
		have := e.reserved.Load()
		if have >= want {
			break
		}
		if e.reserved.CompareAndSwap(have, want) {
			p.statesFrom = int(have)
			for i := have; i < want; i++ {
				p.states = append(p.states, newChannelState(e.cfg))
			}
			break
		}
	}
	if _, ok := echoFrames(e.cfg); !ok {
		for c := range p.song.Channels {
			for i, instr := range p.song.Channels[c].Instruments {
				if instr.Effects.EchoMix > 0 {
					e.diagnose(chipbox.DiagEchoBypassed, c, i, -1, e.cfg.MaxEchoSeconds)
				}
			}
		}
	}
	return p, nil
}

// install swaps in a prepared song. Sounding voices keep playing; they
// follow the edits of their instrument if it still exists with the same
// type, and are released otherwise. Channels that existed before keep the
// mute and solo state set with SetMute and SetSolo; new channels take the
// flags of the song.
func (e *Engine) install(p *preparedSong) {
	known := 0
	if e.song != nil {
		known = len(e.song.song.Channels)
	}
	for i, st := range p.states {
		if p.statesFrom+i == len(e.channels) && len(e.channels) < cap(e.channels) {
			e.channels = append(e.channels, st)
		}
	}
	e.song = p
	if e.seq == nil {
		e.seq = NewSequencer(&p.song, e.cfg.SampleRate)
		e.seq.SetReport(e.report)
	} else {
		e.seq.SetSong(&p.song)
	}
	e.params.mods = p.mods
	song := &p.song
	for c := known; c < len(e.muted); c++ {
		e.muted[c], e.solo[c] = false, false
		if c < len(song.Channels) {
			e.muted[c], e.solo[c] = song.Channels[c].Muted, song.Channels[c].Solo
		}
	}
	for c, cs := range e.channels {
		for v := range cs.voices {
			voice := &cs.voices[v]
			if !voice.active {
				continue
			}
			if c < len(song.Channels) && voice.instrument < len(song.Channels[c].Instruments) {
				if instr := &song.Channels[c].Instruments[voice.instrument]; instr.Type == voice.instr.Type {
					voice.instr = instr
					continue
				}
			}
			voice.release(e.cfg.MinRelease, e.params.sampleRate)
		}
		if c < len(song.Channels) && cs.busInstrument >= len(song.Channels[c].Instruments) {
			cs.busInstrument = 0
		}
	}
}

func (e *Engine) releaseAll() {
	for _, c := range e.channels {
		c.releaseAll(e.cfg.MinRelease, e.params.sampleRate)
	}
}

// RenderFrames renders frameCount frames of interleaved stereo into dst.
// It returns the number of frames the song played: frameCount while
// playing or stopped, less on the call where a song without a loop reaches
// its end, and 0 on the calls after that. The whole of dst[:2*frameCount]
// is always filled; after the end it holds the release and effect tails.
func (e *Engine) RenderFrames(dst []float32, frameCount int) (int, error) {
	if frameCount < 0 {
		return 0, ErrNegativeFrames
	}
	if len(dst) < 2*frameCount {
		return 0, ErrShortBuffer
	}
	e.processCommands()
	wasEnded := e.ended
	played := frameCount
	for pos := 0; pos < frameCount; {
		n := min(frameCount-pos, MaxBlockSize)
		if end := e.renderBlock(dst[2*pos:2*(pos+n)], n); end >= 0 && !wasEnded && played == frameCount {
			played = pos + end
		}
		pos += n
	}
	e.notify()
	if wasEnded {
		return 0, nil
	}
	return played, nil
}

// Process fills the buffer with audio, for the audio contexts.
func (e *Engine) Process(buf chipbox.AudioBuffer) error {
	for len(buf) > 0 {
		n := min(len(buf), MaxBlockSize)
		if _, err := e.RenderFrames(e.scratch[:2*n], n); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			buf[i] = [2]float32{e.scratch[2*i], e.scratch[2*i+1]}
		}
		buf = buf[n:]
	}
	return nil
}

// Source returns the engine as an audio source. The source returns io.EOF
// once the song has ended and its tails have died out.
func (e *Engine) Source() chipbox.AudioSource {
	return func(buf chipbox.AudioBuffer) error {
		if err := e.Process(buf); err != nil {
			return err
		}
		if e.Finished() {
			return io.EOF
		}
		return nil
	}
}

// Finished reports whether a song without a loop has played to its end and
// all of its tails have died out.
func (e *Engine) Finished() bool {
	if !e.ended {
		return false
	}
	for _, c := range e.channels {
		if c.activeVoices() > 0 {
			return false
		}
	}
	return e.meter.silent()
}

// renderBlock renders at most MaxBlockSize frames. It returns the offset
// where the song ended during the block, -1 if it did not.
func (e *Engine) renderBlock(out []float32, n int) int {
	for _, c := range e.channels {
		clear(c.mono[:n])
	}
	ev := e.seq.Advance(n)
	if ev.Dropped > 0 {
		e.diagnose(chipbox.DiagEventOverflow, -1, -1, e.seq.Position().Bar, float64(ev.Dropped))
	}
	end := -1
	cursor := 0
	for i := range ev.Events {
		event := &ev.Events[i]
		if event.Offset > cursor {
			e.renderSegment(cursor, event.Offset)
			cursor = event.Offset
		}
		if event.Kind == EventEnd {
			end = event.Offset
		}
		e.handle(event)
	}
	if cursor < n {
		e.renderSegment(cursor, n)
	}
	e.mix(out, n)
	return end
}

func (e *Engine) renderSegment(from, to int) {
	for _, c := range e.channels {
		seg := c.mono[from:to]
		for v := range c.voices {
			if c.voices[v].active {
				c.voices[v].render(seg, e.params.sampleRate)
			}
		}
		c.process(from, to, e.params.sampleRate)
	}
}

// mix sums the audible channels into the output and applies the song
// volume. Muted channels have been rendered like the others; they are only
// left out here.
func (e *Engine) mix(out []float32, n int) {
	m := e.master[:2*n]
	clear(m)
	anySolo := false
	for c := range e.channels {
		anySolo = anySolo || e.solo[c]
	}
	for c, cs := range e.channels {
		if (anySolo && !e.solo[c]) || (!anySolo && e.muted[c]) {
			continue
		}
		addInplace(m, cs.out[:2*n])
	}
	for i := 0; i < n; i++ {
		g := float32(e.masterGain.Next())
		out[2*i] = m[2*i] * g
		out[2*i+1] = m[2*i+1] * g
	}
	e.meter.measure(out[:2*n], n, float32(e.cfg.MeterDecay))
}

func (e *Engine) handle(ev *Event) {
	switch ev.Kind {
	case EventLoop:
		if e.seq.Loop().HardCut {
			for _, c := range e.channels {
				c.reset()
			}
		}
	case EventEnd:
		e.releaseAll()
		e.ended = true
	case EventNoteOff:
		e.noteOff(ev)
	case EventNoteOn:
		e.noteOn(ev)
	case EventParamChange:
		e.paramChange(ev)
	case EventTick:
		e.tick(ev)
	}
}

func (e *Engine) channel(index int) *channelState {
	if index < 0 || index >= len(e.channels) {
		return nil
	}
	return e.channels[index]
}

func (e *Engine) noteOff(ev *Event) {
	c := e.channel(ev.Channel)
	if c == nil {
		return
	}
	for i := range c.voices {
		v := &c.voices[i]
		if !v.active || v.released || v.tiePending || v.bar != ev.Bar || v.pattern != ev.Pattern || v.note != ev.Note {
			continue
		}
		if ev.Tie {
			v.tiePending = true
			continue
		}
		v.release(e.cfg.MinRelease, e.params.sampleRate)
	}
}

func (e *Engine) noteOn(ev *Event) {
	ch := &e.song.song.Channels[ev.Channel]
	pat := &ch.Patterns[ev.Pattern]
	note := &pat.Notes[ev.Note]
	if len(note.Pitches) == 0 {
		return
	}
	c := e.channel(ev.Channel)
	if c == nil {
		e.diagnose(chipbox.DiagChannelBypassed, ev.Channel, -1, ev.Bar, 0)
		return
	}
	for k := 0; k < max(len(pat.Instruments), 1); k++ {
		ii := pat.InstrumentIndex(k)
		if ii < 0 || ii >= len(ch.Instruments) {
			e.diagnose(chipbox.DiagMissingInstrument, ev.Channel, ii, ev.Bar, float64(ii))
			continue
		}
		instr := &ch.Instruments[ii]
		if ev.Tie {
			if v := c.pendingTie(ii); v != nil {
				v.tie(note, ev, ch.Octave, &e.params)
				c.busInstrument = ii
				continue
			}
		}
		tables := e.song.tables[ev.Channel][ii]
		if tables.missingSample(instr, note.Pitches[0]+ch.Octave*12) {
			e.diagnose(chipbox.DiagMissingSample, ev.Channel, ii, ev.Bar, 0)
			continue
		}
		c.age++
		c.allocate().trigger(ii, instr, tables, note, ev, ch.Octave, c.age, &e.params)
		c.busInstrument = ii
	}
}

// paramChange only checks the mod note: the mods themselves are evaluated
// from the patterns on every tick.
func (e *Engine) paramChange(ev *Event) {
	ch := &e.song.song.Channels[ev.Channel]
	note := &ch.Patterns[ev.Pattern].Notes[ev.Note]
	for _, p := range note.Pitches {
		if p < 0 || p >= len(ch.Mods) {
			e.diagnose(chipbox.DiagMissingModSetting, ev.Channel, -1, ev.Bar, float64(p))
		}
	}
}

func (e *Engine) tick(ev *Event) {
	song := &e.song.song
	mods := e.params.mods
	mods.evaluate(song, ev.Bar, ev.Tick)
	e.params.tickLen = ev.Length
	rampLen := min(e.cfg.FilterRampSamples, ev.Length)
	e.masterGain.To(chipbox.DecibelsToGain(mods.songValue(chipbox.ParamSongVolume, song.Volume)), rampLen)
	for c, cs := range e.channels {
		if c >= len(song.Channels) || song.Channels[c].Type == chipbox.ModChannel {
			continue
		}
		e.params.channel = c
		for v := range cs.voices {
			voice := &cs.voices[v]
			if !voice.active {
				continue
			}
			if voice.tiePending {
				voice.release(e.cfg.MinRelease, e.params.sampleRate)
			}
			voice.startTick(&e.params)
		}
		if instrs := song.Channels[c].Instruments; cs.busInstrument < len(instrs) {
			cs.startTick(&instrs[cs.busInstrument], &e.params, rampLen)
		}
	}
}

func (e *Engine) notify() {
	n := Notification{
		Playing: e.seq.Playing(),
		Pos:     e.seq.Position(),
		Level:   e.meter.peak,
		RMS:     e.meter.rms,
	}
	for c := range n.Notes {
		n.Notes[c] = -1
		if c < len(e.channels) {
			n.Notes[c] = int16(e.channels[c].heldPitch())
		}
	}
	TrySend(e.notifications, n)
}
