package chipbox

import (
	"math"
	"slices"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

type (
	// Song is the declarative description of a piece: its tempo and meter,
	// the length and loop range in bars, and the channels with their
	// patterns and instruments. The engine never mutates a Song given to it;
	// it plays a private copy, so the editor can keep changing its own.
	//
	// Channels are ordered pitch channels first, then noise channels, then
	// mod channels. Mod channels are applied in channel order, so the order
	// matters when several mod channels write the same parameter.
	Song struct {
		Name         string `yaml:",omitempty"`
		BPM          int
		BeatsPerBar  int
		TicksPerBeat int
		Bars         int // length of the song, in bars

		// Key and Scale are only used by editors; they do not affect
		// rendering.
		Key   int    `yaml:",omitempty"`
		Scale string `yaml:",omitempty"`

		// Volume is the master gain in decibels.
		Volume float64 `yaml:",omitempty"`

		Loop     Loop
		Channels []Channel
	}

	// Loop is the loop range of a song, in bars. End is exclusive. When
	// HardCut is false, the voices sounding at the wrap are released and
	// their tails overlap the start of the loop; when true, they are cut.
	Loop struct {
		Start   int
		End     int
		Enabled bool `yaml:",omitempty"`
		HardCut bool `yaml:",omitempty"`
	}

	// SongPos is a position in a song, in bars and ticks within the bar.
	SongPos struct {
		Bar  int
		Tick int
	}
)

const (
	DefaultBPM          = 120
	DefaultBeatsPerBar  = 4
	DefaultTicksPerBeat = 24

	MinVolume = -42 // decibels
	MaxVolume = 6

	MinBPM          = 30
	MaxBPM          = 320
	MaxTicksPerBeat = 96
	MaxBeatsPerBar  = 32
)

// TicksPerBar returns the number of ticks in one bar.
func (s *Song) TicksPerBar() int {
	return s.BeatsPerBar * s.TicksPerBeat
}

// LengthInTicks returns the length of the song in ticks.
func (s *Song) LengthInTicks() int {
	return s.Bars * s.TicksPerBar()
}

// SongPos converts an absolute tick to a bar and a tick in that bar. Negative
// ticks wrap to negative bars, so that SongTick(SongPos(t)) == t for all t.
func (s *Song) SongPos(songTick int) SongPos {
	tpb := s.TicksPerBar()
	if tpb <= 0 {
		return SongPos{}
	}
	tick := (songTick%tpb + tpb) % tpb
	return SongPos{Bar: (songTick - tick) / tpb, Tick: tick}
}

// SongTick converts a position to an absolute tick.
func (s *Song) SongTick(pos SongPos) int {
	return pos.Bar*s.TicksPerBar() + pos.Tick
}

// Clamp moves the position into the song: before the start means the start
// and anything past the end means the last tick.
func (s *Song) Clamp(pos SongPos) SongPos {
	t := s.SongTick(pos)
	if l := s.LengthInTicks(); t >= l {
		t = l - 1
	}
	if t < 0 {
		t = 0
	}
	return s.SongPos(t)
}

// Clamp moves an enabled loop range inside a song of the given number of
// bars, so that it spans at least one bar. ok is false if the range had to
// be changed.
func (l Loop) Clamp(bars int) (loop Loop, ok bool) {
	if !l.Enabled || (l.Start >= 0 && l.End <= bars && l.Start < l.End) {
		return l, true
	}
	l.Start = clampInt(l.Start, 0, max(bars-1, 0))
	l.End = clampInt(l.End, l.Start+1, max(bars, l.Start+1))
	return l, false
}

// MasterGain returns the master gain as a linear factor.
func (s *Song) MasterGain() float64 {
	return DecibelsToGain(s.Volume)
}

// DecibelsToGain converts decibels to a linear factor. Anything at or below
// MinVolume is silence.
func DecibelsToGain(db float64) float64 {
	if db <= MinVolume {
		return 0
	}
	return math.Pow(10, db/20)
}

// Copy makes a deep copy of a Song.
func (s *Song) Copy() Song {
	ret := *s
	ret.Channels = make([]Channel, len(s.Channels))
	for i := range s.Channels {
		ret.Channels[i] = s.Channels[i].Copy()
	}
	return ret
}

// Validate coerces the song into something the engine can play, clamping
// every out-of-range value in place. Every coercion is reported as a
// diagnostic. An error is returned only when the song cannot be played at
// all.
func (s *Song) Validate() ([]Diagnostic, error) {
	if len(s.Channels) == 0 {
		return nil, fault.New("song contains no channels", fmsg.With("invalid song"), ftag.With(ftag.InvalidArgument))
	}
	var diags []Diagnostic
	report := func(code DiagnosticCode, ch, instr, bar int, value float64) {
		diags = append(diags, Diagnostic{Kind: code.Kind(), Code: code, Channel: ch, Instrument: instr, Bar: bar, Value: value})
	}
	if s.BPM < MinBPM || s.BPM > MaxBPM {
		report(DiagTempoClamped, -1, -1, -1, float64(s.BPM))
		if s.BPM <= 0 {
			s.BPM = DefaultBPM
		} else {
			s.BPM = clampInt(s.BPM, MinBPM, MaxBPM)
		}
	}
	if s.BeatsPerBar < 1 || s.BeatsPerBar > MaxBeatsPerBar {
		report(DiagMeterClamped, -1, -1, -1, float64(s.BeatsPerBar))
		if s.BeatsPerBar < 1 {
			s.BeatsPerBar = DefaultBeatsPerBar
		} else {
			s.BeatsPerBar = MaxBeatsPerBar
		}
	}
	if s.TicksPerBeat < 1 || s.TicksPerBeat > MaxTicksPerBeat {
		report(DiagMeterClamped, -1, -1, -1, float64(s.TicksPerBeat))
		if s.TicksPerBeat < 1 {
			s.TicksPerBeat = DefaultTicksPerBeat
		} else {
			s.TicksPerBeat = MaxTicksPerBeat
		}
	}
	if s.Bars < 0 {
		report(DiagLengthClamped, -1, -1, -1, float64(s.Bars))
		s.Bars = 0
	}
	if s.Volume < MinVolume || s.Volume > MaxVolume {
		report(DiagParameterClamped, -1, -1, -1, s.Volume)
		s.Volume = clampFloat(s.Volume, MinVolume, MaxVolume)
	}
	if loop, ok := s.Loop.Clamp(s.Bars); !ok {
		report(DiagLoopClamped, -1, -1, -1, float64(s.Loop.Start))
		s.Loop = loop
	}
	tpb := s.TicksPerBar()
	for c := range s.Channels {
		ch := &s.Channels[c]
		for p := range ch.Patterns {
			for n := range ch.Patterns[p].Notes {
				note := &ch.Patterns[p].Notes[n]
				if note.Start < 0 || note.Duration < 1 || note.End() > tpb {
					report(DiagNoteClamped, c, -1, -1, float64(note.Start))
					note.Start = clampInt(note.Start, 0, tpb-1)
					note.Duration = clampInt(note.Duration, 1, tpb-note.Start)
				}
				if len(note.Pitches) > MaxChordSize {
					report(DiagNoteClamped, c, -1, -1, float64(len(note.Pitches)))
					note.Pitches = note.Pitches[:MaxChordSize]
				}
				if !slices.IsSortedFunc(note.Pins, comparePins) {
					report(DiagNoteClamped, c, -1, -1, float64(note.Start))
					slices.SortStableFunc(note.Pins, comparePins)
				}
				for k := range note.Pins {
					pin := &note.Pins[k]
					if pin.Tick < 0 || pin.Tick > note.Duration {
						report(DiagNoteClamped, c, -1, -1, float64(pin.Tick))
						pin.Tick = clampInt(pin.Tick, 0, note.Duration)
					}
					if pin.Value < 0 || pin.Value > 1 {
						report(DiagParameterClamped, c, -1, -1, pin.Value)
						pin.Value = clampFloat(pin.Value, 0, 1)
					}
				}
			}
		}
		if ch.Type == ModChannel {
			for m, mod := range ch.Mods {
				if !s.ValidModTarget(mod) {
					report(DiagMissingModSetting, c, m, -1, float64(mod.Parameter))
				}
			}
			continue
		}
		for i := range ch.Instruments {
			ch.Instruments[i].validate(func(code DiagnosticCode, value float64) {
				report(code, c, i, -1, value)
			})
		}
	}
	return diags, nil
}

// ValidModTarget reports whether a mod setting points to a parameter that
// exists and can be modulated.
func (s *Song) ValidModTarget(mod ModSetting) bool {
	if !mod.Parameter.Valid() || !Parameters[mod.Parameter].CanModulate {
		return false
	}
	if Parameters[mod.Parameter].Scope == SongScope {
		return mod.Channel < 0
	}
	if mod.Channel < 0 || mod.Channel >= len(s.Channels) || s.Channels[mod.Channel].Type == ModChannel {
		return false
	}
	return mod.Instrument < len(s.Channels[mod.Channel].Instruments)
}

func comparePins(a, b Pin) int { return a.Tick - b.Tick }

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func clampFloat(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
