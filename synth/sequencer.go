package synth

import (
	"math"

	"github.com/vsariola/chipbox"
)

type (
	// Sequencer advances the playback cursor through a song and reports what
	// happens on the way as events with exact sample offsets. It does not
	// render anything; the Engine applies the events to the voices.
	Sequencer struct {
		song       *chipbox.Song
		sampleRate int
		cursor     Cursor
		playing    bool
		loop       chipbox.Loop
		prevBar    int // the bar played before the current one, -1 if none
		events     TickEvents
		report     func(chipbox.Diagnostic)
	}

	// Cursor is the playback position. The length of each tick is derived
	// from the exact rational number of samples per tick, sampleRate*60 /
	// (BPM*TicksPerBeat), by carrying the remainder of the division from one
	// tick to the next, so the position never drifts.
	Cursor struct {
		Bar          int
		Tick         int // tick in the bar
		SampleInTick int // samples played of the current tick
		TickLength   int // length of the current tick in samples
		BPM          int // tempo of the current tick

		remainder int64 // numerator left over from the previous ticks
		den       int64
		started   bool // the events of the current tick have been emitted
	}

	// Event is something that happens at an exact sample of an Advance call.
	// Pattern and Note locate the note of EventNoteOn, EventNoteOff and
	// EventParamChange in the channel.
	Event struct {
		Kind    EventKind
		Offset  int // frames from the start of the Advance call
		Channel int
		Pattern int
		Note    int
		Bar     int
		Tick    int
		Length  int  // length of the tick the event happens on, in samples
		Tie     bool // for EventNoteOff: the note is continued by a tied note
	}

	EventKind uint8

	// TickEvents are the events of one Advance call, ordered by offset. At the
	// same offset, loop, bar and end events come first, then note-offs, then
	// note-ons, then mod changes, and finally the tick event. Dropped counts
	// the events that did not fit in the preallocated buffer.
	TickEvents struct {
		Events  []Event
		Dropped int
	}
)

const (
	EventLoop EventKind = iota
	EventBar
	EventEnd
	EventNoteOff
	EventNoteOn
	EventParamChange
	EventTick
)

// maxEvents is the capacity of the event buffer of one Advance call.
const maxEvents = 8192

var eventKindNames = []string{"loop", "bar", "end", "noteoff", "noteon", "paramchange", "tick"}

func (k EventKind) String() string {
	if int(k) >= len(eventKindNames) {
		return "unknown"
	}
	return eventKindNames[k]
}

// NewSequencer creates a sequencer for the song. The song must have been
// validated; the sequencer reads it but never modifies it.
func NewSequencer(song *chipbox.Song, sampleRate int) *Sequencer {
	s := &Sequencer{
		sampleRate: sampleRate,
		prevBar:    -1,
		events:     TickEvents{Events: make([]Event, 0, maxEvents)},
	}
	s.SetSong(song)
	s.Seek(0, 0)
	return s
}

// SetSong switches to another song, keeping the position. The loop range
// becomes the loop range of the song.
func (s *Sequencer) SetSong(song *chipbox.Song) {
	s.song = song
	s.loop = song.Loop
	if tpb := song.TicksPerBar(); s.cursor.Tick >= tpb {
		s.cursor.Tick = 0
		s.cursor.Bar++
		s.cursor.started = false
	}
}

// SetReport sets the function that receives the diagnostics found while
// sequencing. It is called on the render goroutine and must not block.
func (s *Sequencer) SetReport(report func(chipbox.Diagnostic)) {
	s.report = report
}

// SetLoop sets the loop range.
func (s *Sequencer) SetLoop(loop chipbox.Loop) {
	s.loop = loop
}

// Loop returns the loop range.
func (s *Sequencer) Loop() chipbox.Loop { return s.loop }

// SetPlaying starts or stops advancing.
func (s *Sequencer) SetPlaying(playing bool) { s.playing = playing }

// Playing reports whether the sequencer advances.
func (s *Sequencer) Playing() bool { return s.playing }

// Position returns the current bar and tick.
func (s *Sequencer) Position() chipbox.SongPos {
	return chipbox.SongPos{Bar: s.cursor.Bar, Tick: s.cursor.Tick}
}

// Cursor returns a copy of the cursor.
func (s *Sequencer) Cursor() Cursor { return s.cursor }

// Seek moves to the start of the given tick. The remainder is set to what it
// would be after playing from the start at the song tempo, so seeking to a
// position gives the same tick lengths as playing up to it.
func (s *Sequencer) Seek(bar, tick int) {
	tpb := s.song.TicksPerBar()
	tick = min(max(tick, 0), max(tpb-1, 0))
	bar = max(bar, 0)
	num, den := s.ratio(s.song.BPM)
	songTick := int64(bar)*int64(tpb) + int64(tick)
	s.cursor = Cursor{Bar: bar, Tick: tick, BPM: s.song.BPM, remainder: (songTick * num) % den, den: den}
	s.prevBar = -1
}

func (s *Sequencer) ratio(bpm int) (num, den int64) {
	return int64(s.sampleRate) * 60, int64(max(bpm, 1)) * int64(max(s.song.TicksPerBeat, 1))
}

// Advance consumes sampleCount frames, returning the events that happen
// during them. The returned events are valid until the next call. When the
// sequencer is not playing, or stops at the end of the song, the rest of the
// frames pass without events.
func (s *Sequencer) Advance(sampleCount int) *TickEvents {
	s.events.Events = s.events.Events[:0]
	s.events.Dropped = 0
	pos := 0
	for pos < sampleCount && s.playing {
		if !s.cursor.started {
			s.startTick(pos)
			if !s.playing {
				break
			}
		}
		step := min(sampleCount-pos, s.cursor.TickLength-s.cursor.SampleInTick)
		pos += step
		s.cursor.SampleInTick += step
		if s.cursor.SampleInTick >= s.cursor.TickLength {
			s.nextTick()
		}
	}
	return &s.events
}

func (s *Sequencer) nextTick() {
	c := &s.cursor
	c.started = false
	c.SampleInTick = 0
	c.Tick++
	if c.Tick >= s.song.TicksPerBar() {
		c.Tick = 0
		s.prevBar = c.Bar
		c.Bar++
	}
}

func (s *Sequencer) emit(e Event) {
	if len(s.events.Events) == cap(s.events.Events) {
		s.events.Dropped++
		return
	}
	if s.cursor.started {
		e.Length = s.cursor.TickLength
	}
	s.events.Events = append(s.events.Events, e)
}

func (s *Sequencer) diagnose(code chipbox.DiagnosticCode, channel, bar int, value float64) {
	if s.report != nil {
		s.report(chipbox.Diagnostic{Kind: code.Kind(), Code: code, Channel: channel, Instrument: -1, Bar: bar, Value: value})
	}
}

func (s *Sequencer) startTick(offset int) {
	c := &s.cursor
	song := s.song
	tpb := song.TicksPerBar()
	if s.loop.Enabled && c.Tick == 0 && c.Bar == s.loop.End && s.loop.Start < s.loop.End {
		c.Bar = s.loop.Start
		s.emit(Event{Kind: EventLoop, Offset: offset, Channel: -1, Bar: c.Bar})
	}
	if c.Bar < 0 || c.Bar >= song.Bars {
		s.emit(Event{Kind: EventEnd, Offset: offset, Channel: -1, Bar: c.Bar})
		s.playing = false
		return
	}
	bpm := song.BPM
	if v, ok := songParameter(song, chipbox.ParamTempo, c.Bar, c.Tick); ok {
		bpm = int(math.Round(v))
	}
	num, den := s.ratio(bpm)
	c.start(num, den)
	c.BPM = bpm
	if c.Tick == 0 {
		s.emit(Event{Kind: EventBar, Offset: offset, Channel: -1, Bar: c.Bar})
	}
	for ch := range song.Channels {
		channel := &song.Channels[ch]
		if channel.Type == chipbox.ModChannel {
			continue
		}
		cur, curIndex, curOk, _ := channel.PatternAt(c.Bar)
		tied := curOk && tieStartsAt(cur, c.Tick)
		if c.Tick == 0 {
			if s.prevBar < 0 {
				continue
			}
			if p, pi, ok, _ := channel.PatternAt(s.prevBar); ok {
				for n := range p.Notes {
					if p.Notes[n].End() == tpb {
						s.emit(Event{Kind: EventNoteOff, Offset: offset, Channel: ch, Pattern: pi, Note: n, Bar: s.prevBar, Tick: c.Tick, Tie: tied})
					}
				}
			}
			continue
		}
		if !curOk {
			continue
		}
		for n := range cur.Notes {
			if cur.Notes[n].End() == c.Tick {
				s.emit(Event{Kind: EventNoteOff, Offset: offset, Channel: ch, Pattern: curIndex, Note: n, Bar: c.Bar, Tick: c.Tick, Tie: tied})
			}
		}
	}
	for ch := range song.Channels {
		channel := &song.Channels[ch]
		if channel.Type == chipbox.ModChannel {
			continue
		}
		p, pi, ok, valid := channel.PatternAt(c.Bar)
		if !valid && c.Tick == 0 {
			s.diagnose(chipbox.DiagMissingPattern, ch, c.Bar, float64(pi))
		}
		if !ok {
			continue
		}
		for n := range p.Notes {
			if p.Notes[n].Start == c.Tick {
				s.emit(Event{Kind: EventNoteOn, Offset: offset, Channel: ch, Pattern: pi, Note: n, Bar: c.Bar, Tick: c.Tick, Tie: p.Notes[n].Tie})
			}
		}
	}
	for ch := range song.Channels {
		channel := &song.Channels[ch]
		if channel.Type != chipbox.ModChannel {
			continue
		}
		p, pi, ok, valid := channel.PatternAt(c.Bar)
		if !valid && c.Tick == 0 {
			s.diagnose(chipbox.DiagMissingPattern, ch, c.Bar, float64(pi))
		}
		if !ok {
			continue
		}
		for n := range p.Notes {
			if p.Notes[n].Start == c.Tick {
				s.emit(Event{Kind: EventParamChange, Offset: offset, Channel: ch, Pattern: pi, Note: n, Bar: c.Bar, Tick: c.Tick})
			}
		}
	}
	s.emit(Event{Kind: EventTick, Offset: offset, Channel: -1, Bar: c.Bar, Tick: c.Tick})
}

// start begins a tick, computing its length. When the denominator changed
// since the previous tick, the remainder is rescaled so that the fraction
// of a sample it represents is kept.
func (c *Cursor) start(num, den int64) {
	if c.den != 0 && c.den != den {
		c.remainder = c.remainder * den / c.den
	}
	c.den = den
	total := c.remainder + num
	c.TickLength = max(int(total/den), 1)
	c.remainder = total % den
	c.SampleInTick = 0
	c.started = true
}

func tieStartsAt(p *chipbox.Pattern, tick int) bool {
	for i := range p.Notes {
		if p.Notes[i].Start == tick && p.Notes[i].Tie {
			return true
		}
	}
	return false
}
