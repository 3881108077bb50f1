package synth

import (
	"github.com/vsariola/chipbox"
)

type (
	// modState holds what the mod channels do to every parameter on the
	// current tick. Writers are combined in channel order: an overwrite
	// replaces the value and forgets earlier multipliers, a multiply scales
	// the normalized value of whatever came before it.
	modState struct {
		slots   []modSlot
		offsets []int // index of the first slot of each channel, -1 for mod channels
		counts  []int // number of instruments of each channel
		song    [chipbox.NumParameters]modSlot
	}

	modSlot struct {
		set       bool
		overwrite float64 // native units
		mul       float64 // normalized factor
	}
)

// newModState allocates the slots for the song. It is called when the song
// is prepared, never while rendering.
func newModState(song *chipbox.Song) *modState {
	m := &modState{offsets: make([]int, len(song.Channels)), counts: make([]int, len(song.Channels))}
	n := 0
	for c, ch := range song.Channels {
		if ch.Type == chipbox.ModChannel {
			m.offsets[c] = -1
			continue
		}
		m.offsets[c] = n
		m.counts[c] = len(ch.Instruments)
		n += len(ch.Instruments) * int(chipbox.NumParameters)
	}
	m.slots = make([]modSlot, n)
	m.reset()
	return m
}

func (m *modState) reset() {
	for i := range m.slots {
		m.slots[i] = modSlot{mul: 1}
	}
	for i := range m.song {
		m.song[i] = modSlot{mul: 1}
	}
}

// evaluate computes the mod slots for the given tick.
func (m *modState) evaluate(song *chipbox.Song, bar, tick int) {
	m.reset()
	forEachMod(song, bar, tick, func(mod chipbox.ModSetting, value float64) {
		if chipbox.Parameters[mod.Parameter].Scope == chipbox.SongScope {
			m.song[mod.Parameter].apply(mod.Mode, mod.Parameter, value)
			return
		}
		if mod.Channel >= len(m.offsets) || m.offsets[mod.Channel] < 0 {
			return
		}
		first, last := mod.Instrument, mod.Instrument
		if mod.Instrument < 0 {
			first, last = 0, m.counts[mod.Channel]-1
		}
		for i := first; i <= last && i < m.counts[mod.Channel]; i++ {
			m.slots[m.offsets[mod.Channel]+i*int(chipbox.NumParameters)+int(mod.Parameter)].apply(mod.Mode, mod.Parameter, value)
		}
	})
}

// value returns the parameter of an instrument after the mods, given its
// own value base.
func (m *modState) value(channel, instrument int, id chipbox.ParameterID, base float64) float64 {
	if channel < 0 || channel >= len(m.offsets) || m.offsets[channel] < 0 || instrument < 0 || instrument >= m.counts[channel] {
		return base
	}
	return m.slots[m.offsets[channel]+instrument*int(chipbox.NumParameters)+int(id)].value(id, base)
}

// songValue returns a song parameter after the mods.
func (m *modState) songValue(id chipbox.ParameterID, base float64) float64 {
	return m.song[id].value(id, base)
}

func (s *modSlot) apply(mode chipbox.ModMode, id chipbox.ParameterID, value float64) {
	switch mode {
	case chipbox.ModMultiply:
		s.mul *= value
	default:
		s.set = true
		s.overwrite = id.Denormalize(value)
		s.mul = 1
	}
}

func (s *modSlot) value(id chipbox.ParameterID, base float64) float64 {
	v := base
	if s.set {
		v = s.overwrite
	}
	if s.mul != 1 {
		v = id.Denormalize(id.Normalize(v) * s.mul)
	}
	return v
}

// forEachMod calls f for every mod note sounding at the tick, in channel
// order, with the normalized value of the note at the tick. Mod notes
// pointing to a missing or invalid mod setting are skipped.
func forEachMod(song *chipbox.Song, bar, tick int, f func(mod chipbox.ModSetting, value float64)) {
	for c := range song.Channels {
		ch := &song.Channels[c]
		if ch.Type != chipbox.ModChannel {
			continue
		}
		p, _, ok, _ := ch.PatternAt(bar)
		if !ok {
			continue
		}
		for n := range p.Notes {
			note := &p.Notes[n]
			if tick < note.Start || tick >= note.End() {
				continue
			}
			value, _ := pinValue(note.Pins, float64(tick-note.Start))
			for _, pitch := range note.Pitches {
				if pitch < 0 || pitch >= len(ch.Mods) || !song.ValidModTarget(ch.Mods[pitch]) {
					continue
				}
				f(ch.Mods[pitch], value)
			}
		}
	}
}

// songParameter returns a song parameter at the tick after the mods. ok is
// false if no mod channel targets the parameter at the tick.
func songParameter(song *chipbox.Song, id chipbox.ParameterID, bar, tick int) (value float64, ok bool) {
	base, valid := song.Parameter(id)
	if !valid {
		return 0, false
	}
	slot := modSlot{mul: 1}
	forEachMod(song, bar, tick, func(mod chipbox.ModSetting, v float64) {
		if mod.Channel < 0 && mod.Parameter == id {
			slot.apply(mod.Mode, id, v)
			ok = true
		}
	})
	if !ok {
		return base, false
	}
	return slot.value(id, base), true
}

// pinValue returns the value and the pitch bend of a note's shape at t
// ticks from the start of the note, interpolating linearly between the
// pins. The value always lies between the values of the surrounding pins.
func pinValue(pins []chipbox.Pin, t float64) (value, interval float64) {
	if len(pins) == 0 {
		return 1, 0
	}
	if t <= float64(pins[0].Tick) {
		return pins[0].Value, pins[0].Interval
	}
	for i := 1; i < len(pins); i++ {
		b := pins[i]
		if t > float64(b.Tick) {
			continue
		}
		a := pins[i-1]
		span := float64(b.Tick - a.Tick)
		if span <= 0 {
			return b.Value, b.Interval
		}
		f := (t - float64(a.Tick)) / span
		value = a.Value + f*(b.Value-a.Value)
		value = min(max(value, min(a.Value, b.Value)), max(a.Value, b.Value))
		return value, a.Interval + f*(b.Interval-a.Interval)
	}
	last := pins[len(pins)-1]
	return last.Value, last.Interval
}
