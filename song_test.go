package chipbox_test

import (
	"math"
	"testing"

	"github.com/vsariola/chipbox"
	"gopkg.in/yaml.v3"
)

func TestSongPosRoundTrip(t *testing.T) {
	song := chipbox.Song{BeatsPerBar: 3, TicksPerBeat: 8}
	for tick := -100; tick <= 100; tick++ {
		pos := song.SongPos(tick)
		if pos.Tick < 0 || pos.Tick >= 24 {
			t.Fatalf("tick %v: position %v has the tick outside the bar", tick, pos)
		}
		if got := song.SongTick(pos); got != tick {
			t.Fatalf("tick %v: round trip gave %v", tick, got)
		}
	}
	if pos := song.SongPos(-1); pos != (chipbox.SongPos{Bar: -1, Tick: 23}) {
		t.Fatalf("negative tick: got %v", pos)
	}
}

func TestCopyIsDeep(t *testing.T) {
	song := chipbox.Song{BPM: 120, BeatsPerBar: 4, TicksPerBeat: 24, Bars: 1, Channels: []chipbox.Channel{{
		Order:       chipbox.Order{0},
		Patterns:    []chipbox.Pattern{{Notes: []chipbox.Note{{Start: 0, Duration: 4, Pitches: []int{60}, Pins: []chipbox.Pin{{Value: 1}}}}}},
		Instruments: []chipbox.Instrument{chipbox.DefaultInstrument(chipbox.Drumset)},
	}}}
	c := song.Copy()
	c.Channels[0].Order[0] = 5
	c.Channels[0].Patterns[0].Notes[0].Pitches[0] = 1
	c.Channels[0].Patterns[0].Notes[0].Pins[0].Value = 0
	c.Channels[0].Instruments[0].Drums[0].Spectrum[0] = 0
	c.Channels[0].Instruments[0].Envelopes[0].End = 0
	orig := song.Channels[0]
	if orig.Order[0] != 0 || orig.Patterns[0].Notes[0].Pitches[0] != 60 || orig.Patterns[0].Notes[0].Pins[0].Value != 1 ||
		orig.Instruments[0].Drums[0].Spectrum[0] != 1 || orig.Instruments[0].Envelopes[0].End != 1 {
		t.Fatalf("modifying the copy changed the original: %+v", orig)
	}
}

func TestValidateClamps(t *testing.T) {
	song := chipbox.Song{BPM: 5000, BeatsPerBar: 0, TicksPerBeat: 24, Bars: 2, Volume: 20,
		Loop: chipbox.Loop{Start: 1, End: 7, Enabled: true},
		Channels: []chipbox.Channel{{
			Order: chipbox.Order{0},
			Patterns: []chipbox.Pattern{{Notes: []chipbox.Note{
				{Start: 90, Duration: 20, Pitches: []int{60, 62, 64, 65, 67}, Pins: []chipbox.Pin{{Tick: 4, Value: 2}, {Tick: 0, Value: 0.5}}},
			}}},
			Instruments: []chipbox.Instrument{{Type: chipbox.ChipWave, ChipWave: "nope", Volume: -100}},
		}},
	}
	diags, err := song.Validate()
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if song.BPM != chipbox.MaxBPM || song.BeatsPerBar != chipbox.DefaultBeatsPerBar || song.Volume != chipbox.MaxVolume {
		t.Errorf("song settings not clamped: %v %v %v", song.BPM, song.BeatsPerBar, song.Volume)
	}
	if song.Loop.Start != 1 || song.Loop.End != 2 {
		t.Errorf("loop not clamped: %+v", song.Loop)
	}
	note := song.Channels[0].Patterns[0].Notes[0]
	if note.End() > song.TicksPerBar() || len(note.Pitches) != chipbox.MaxChordSize {
		t.Errorf("note not clamped: %+v", note)
	}
	if note.Pins[0].Tick != 0 || note.Pins[1].Tick != 4 || note.Pins[1].Value != 1 {
		t.Errorf("pins not sorted and clamped: %+v", note.Pins)
	}
	instr := song.Channels[0].Instruments[0]
	if instr.ChipWave != chipbox.ChipWaves[0] || instr.Volume != chipbox.MinVolume || instr.Unison.Voices != 1 {
		t.Errorf("instrument not clamped: %+v", instr)
	}
	codes := map[chipbox.DiagnosticCode]bool{}
	for _, d := range diags {
		codes[d.Code] = true
		if d.Kind != d.Code.Kind() {
			t.Errorf("diagnostic %v has the wrong kind", d)
		}
	}
	for _, code := range []chipbox.DiagnosticCode{chipbox.DiagTempoClamped, chipbox.DiagMeterClamped, chipbox.DiagLoopClamped, chipbox.DiagNoteClamped, chipbox.DiagUnknownWave, chipbox.DiagParameterClamped} {
		if !codes[code] {
			t.Errorf("missing diagnostic: %v", code)
		}
	}
	if _, err := (&chipbox.Song{}).Validate(); err == nil {
		t.Errorf("a song without channels should not validate")
	}
}

func TestValidateReportsBadModTargets(t *testing.T) {
	song := chipbox.Song{BPM: 120, BeatsPerBar: 4, TicksPerBeat: 24, Bars: 1, Channels: []chipbox.Channel{
		{Instruments: []chipbox.Instrument{chipbox.DefaultInstrument(chipbox.ChipWave)}},
		{Type: chipbox.ModChannel, Mods: []chipbox.ModSetting{
			{Channel: 0, Instrument: 0, Parameter: chipbox.ParamVolume},
			{Channel: 0, Instrument: 3, Parameter: chipbox.ParamVolume},
			{Channel: 1, Instrument: 0, Parameter: chipbox.ParamVolume},
			{Channel: -1, Parameter: chipbox.ParamTempo},
			{Channel: 0, Parameter: chipbox.ParamTempo},
		}},
	}}
	diags, err := song.Validate()
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	var bad []int
	for _, d := range diags {
		if d.Code == chipbox.DiagMissingModSetting {
			bad = append(bad, d.Instrument)
		}
	}
	if len(bad) != 3 || bad[0] != 1 || bad[1] != 2 || bad[2] != 4 {
		t.Fatalf("wrong mod settings reported: %v", bad)
	}
}

func TestSongYAML(t *testing.T) {
	const text = `
bpm: 140
beatsperbar: 3
ticksperbeat: 8
bars: 1
channels:
  - type: mod
    order: [0]
    mods:
      - {channel: -1, instrument: 0, parameter: tempo, mode: multiply}
  - order: [0]
    instruments:
      - type: fm
        chord: arpeggio
        envelopes:
          - {target: pitch, curve: twang, speed: 2, start: 0, end: 1}
        eqfilter:
          - {type: peak, frequency: 800, resonance: 2, gain: 3}
`
	var song chipbox.Song
	if err := yaml.Unmarshal([]byte(text), &song); err != nil {
		t.Fatalf("could not parse the song: %v", err)
	}
	mod := song.Channels[0].Mods[0]
	if song.Channels[0].Type != chipbox.ModChannel || mod.Parameter != chipbox.ParamTempo || mod.Mode != chipbox.ModMultiply {
		t.Fatalf("wrong mod channel: %+v", song.Channels[0])
	}
	instr := song.Channels[1].Instruments[0]
	if instr.Type != chipbox.FMSynth || instr.Chord != chipbox.Arpeggio || instr.Envelopes[0].Curve != chipbox.CurveTwang || instr.EQFilter[0].Type != chipbox.Peak {
		t.Fatalf("wrong instrument: %+v", instr)
	}
	out, err := yaml.Marshal(song)
	if err != nil {
		t.Fatalf("could not marshal the song: %v", err)
	}
	var again chipbox.Song
	if err := yaml.Unmarshal(out, &again); err != nil {
		t.Fatalf("could not parse the marshaled song: %v\n%s", err, out)
	}
	if again.Channels[1].Instruments[0].EQFilter[0].Gain != 3 {
		t.Fatalf("marshaled song lost the filter gain:\n%s", out)
	}
	if err := yaml.Unmarshal([]byte("channels: [{type: drone}]"), &song); err == nil {
		t.Fatalf("an unknown channel type should not parse")
	}
}

func TestDecibelsToGain(t *testing.T) {
	if g := chipbox.DecibelsToGain(0); g != 1 {
		t.Errorf("0 dB: got %v", g)
	}
	if g := chipbox.DecibelsToGain(chipbox.MinVolume); g != 0 {
		t.Errorf("minimum volume should be silent, got %v", g)
	}
	if g := chipbox.DecibelsToGain(-6); math.Abs(g-0.501) > 0.001 {
		t.Errorf("-6 dB: got %v", g)
	}
}

func TestLoopClamp(t *testing.T) {
	for _, c := range []struct {
		loop, expected chipbox.Loop
		ok             bool
	}{
		{chipbox.Loop{Start: 1, End: 3, Enabled: true}, chipbox.Loop{Start: 1, End: 3, Enabled: true}, true},
		{chipbox.Loop{Start: 3, End: 1, Enabled: true}, chipbox.Loop{Start: 3, End: 4, Enabled: true}, false},
		{chipbox.Loop{Start: -1, End: 9, Enabled: true}, chipbox.Loop{Start: 0, End: 4, Enabled: true}, false},
		{chipbox.Loop{Start: 7, End: 9, Enabled: true}, chipbox.Loop{Start: 3, End: 4, Enabled: true}, false},
		{chipbox.Loop{Start: 7, End: 9}, chipbox.Loop{Start: 7, End: 9}, true},
	} {
		if got, ok := c.loop.Clamp(4); got != c.expected || ok != c.ok {
			t.Errorf("%+v: got %+v, %v, expected %+v, %v", c.loop, got, ok, c.expected, c.ok)
		}
	}
}

func TestSongClamp(t *testing.T) {
	song := chipbox.Song{BeatsPerBar: 4, TicksPerBeat: 24, Bars: 2}
	for _, c := range []struct{ pos, expected chipbox.SongPos }{
		{chipbox.SongPos{Bar: 1, Tick: 10}, chipbox.SongPos{Bar: 1, Tick: 10}},
		{chipbox.SongPos{Bar: -3, Tick: 5}, chipbox.SongPos{}},
		{chipbox.SongPos{Bar: 5, Tick: 0}, chipbox.SongPos{Bar: 1, Tick: 95}},
		{chipbox.SongPos{Bar: 0, Tick: 100}, chipbox.SongPos{Bar: 1, Tick: 4}},
	} {
		if got := song.Clamp(c.pos); got != c.expected {
			t.Errorf("%v: got %v, expected %v", c.pos, got, c.expected)
		}
	}
}
