package synth_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vsariola/chipbox"
	"github.com/vsariola/chipbox/synth"
	"gopkg.in/yaml.v3"
)

func loadSong(t *testing.T, name string) chipbox.Song {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name+".yml"))
	if err != nil {
		t.Fatalf("cannot read the song: %v", err)
	}
	var song chipbox.Song
	if err := yaml.Unmarshal(data, &song); err != nil {
		t.Fatalf("could not parse the .yml file: %v", err)
	}
	return song
}

func emptySong(bpm, beatsPerBar, ticksPerBeat, bars int) chipbox.Song {
	return chipbox.Song{BPM: bpm, BeatsPerBar: beatsPerBar, TicksPerBeat: ticksPerBeat, Bars: bars, Channels: []chipbox.Channel{{}}}
}

func TestTickLengthsDoNotDrift(t *testing.T) {
	song := emptySong(120, 4, 24, 1000)
	seq := synth.NewSequencer(&song, 44100)
	seq.SetPlaying(true)
	const total = 1000 * 88200
	var sum, ticks int
	for frames := 0; frames < total; frames += 44100 {
		for _, e := range seq.Advance(44100).Events {
			if e.Kind == synth.EventTick {
				sum += e.Length
				ticks++
			}
		}
	}
	if ticks != 1000*96 {
		t.Fatalf("wrong number of ticks: got %v, expected %v", ticks, 1000*96)
	}
	if sum != total {
		t.Fatalf("tick lengths drifted: got %v samples, expected %v", sum, total)
	}
	events := seq.Advance(1).Events
	if len(events) == 0 || events[0].Kind != synth.EventEnd || events[0].Offset != 0 {
		t.Fatalf("expected the song to end exactly after 1000 bars, got %v", events)
	}
	if seq.Playing() {
		t.Fatalf("sequencer still playing after the end of the song")
	}
}

func TestNonDivisibleTempo(t *testing.T) {
	const sampleRate, bpm, tpb = 44100, 137, 7
	song := emptySong(bpm, 4, tpb, 100)
	seq := synth.NewSequencer(&song, sampleRate)
	seq.SetPlaying(true)
	num, den := int64(sampleRate*60), int64(bpm*tpb)
	var cumulative int64
	var k int64
	for k < 2000 {
		for _, e := range seq.Advance(10000).Events {
			if e.Kind != synth.EventTick {
				continue
			}
			k++
			cumulative += int64(e.Length)
			if expected := k * num / den; cumulative != expected {
				t.Fatalf("after %v ticks: got %v samples, expected %v", k, cumulative, expected)
			}
		}
	}
}

func TestEventOrder(t *testing.T) {
	song := loadSong(t, "sequence")
	if _, err := song.Validate(); err != nil {
		t.Fatalf("song did not validate: %v", err)
	}
	seq := synth.NewSequencer(&song, 44100)
	seq.SetPlaying(true)
	var events []synth.Event
	offset := 0
	for offset < 2*88200 {
		for _, e := range seq.Advance(1000).Events {
			e.Offset += offset
			events = append(events, e)
		}
		offset += 1000
	}
	for i := 1; i < len(events); i++ {
		if a, b := events[i-1], events[i]; a.Offset > b.Offset || (a.Offset == b.Offset && a.Kind > b.Kind) {
			t.Fatalf("events out of order: %v (%v) before %v (%v)", a.Kind, a.Offset, b.Kind, b.Offset)
		}
	}
	var atTick4 []synth.EventKind
	for _, e := range events {
		if e.Offset == 3675 {
			atTick4 = append(atTick4, e.Kind)
		}
	}
	expected := []synth.EventKind{synth.EventNoteOff, synth.EventNoteOn, synth.EventParamChange, synth.EventTick}
	if len(atTick4) != len(expected) {
		t.Fatalf("wrong events at tick 4: got %v, expected %v", atTick4, expected)
	}
	for i := range expected {
		if atTick4[i] != expected[i] {
			t.Fatalf("wrong events at tick 4: got %v, expected %v", atTick4, expected)
		}
	}
}

func TestNoteOffsAtBarEnd(t *testing.T) {
	song := loadSong(t, "sequence")
	if _, err := song.Validate(); err != nil {
		t.Fatalf("song did not validate: %v", err)
	}
	seq := synth.NewSequencer(&song, 44100)
	seq.SetPlaying(true)
	seq.Advance(88200 - 10)
	events := seq.Advance(20).Events
	var offs, ons int
	for _, e := range events {
		if e.Offset != 10 {
			t.Fatalf("event %v at offset %v, expected all at the bar line", e.Kind, e.Offset)
		}
		switch e.Kind {
		case synth.EventNoteOff:
			offs++
			if e.Bar != 0 {
				t.Errorf("note-off of a note of bar 0 reported in bar %v", e.Bar)
			}
		case synth.EventNoteOn:
			ons++
		}
	}
	if offs != 2 || ons != 1 {
		t.Fatalf("got %v note-offs and %v note-ons at the bar line, expected 2 and 1", offs, ons)
	}
}

func TestLoopWraps(t *testing.T) {
	song := emptySong(120, 4, 24, 2)
	song.Loop = chipbox.Loop{Start: 0, End: 1, Enabled: true}
	seq := synth.NewSequencer(&song, 44100)
	seq.SetPlaying(true)
	seq.Advance(88200 - 5)
	events := seq.Advance(10).Events
	if len(events) < 2 || events[0].Kind != synth.EventLoop || events[0].Offset != 5 || events[1].Kind != synth.EventBar || events[1].Bar != 0 {
		t.Fatalf("expected a loop back to bar 0 at offset 5, got %v", events)
	}
	if pos := seq.Position(); pos.Bar != 0 || pos.Tick != 0 {
		t.Fatalf("wrong position after the loop: %v", pos)
	}
}

func TestSeekKeepsTickGrid(t *testing.T) {
	const sampleRate, bpm, tpb = 48000, 133, 5
	song := emptySong(bpm, 4, tpb, 10)
	played := synth.NewSequencer(&song, sampleRate)
	played.SetPlaying(true)
	var lengths []int
	for len(lengths) < 60 {
		for _, e := range played.Advance(512).Events {
			if e.Kind == synth.EventTick {
				lengths = append(lengths, e.Length)
			}
		}
	}
	seeked := synth.NewSequencer(&song, sampleRate)
	seeked.Seek(2, 3) // tick 43
	seeked.SetPlaying(true)
	var after []int
	for len(after) < 10 {
		for _, e := range seeked.Advance(512).Events {
			if e.Kind == synth.EventTick {
				after = append(after, e.Length)
			}
		}
	}
	for i := range after {
		if after[i] != lengths[43+i] {
			t.Fatalf("tick %v after seeking is %v samples long, %v when played", 43+i, after[i], lengths[43+i])
		}
	}
}

func TestTempoModChangesTickLength(t *testing.T) {
	song := emptySong(120, 4, 24, 1)
	song.Channels = append(song.Channels, chipbox.Channel{
		Type:     chipbox.ModChannel,
		Order:    chipbox.Order{0},
		Mods:     []chipbox.ModSetting{{Channel: -1, Parameter: chipbox.ParamTempo}},
		Patterns: []chipbox.Pattern{{Notes: []chipbox.Note{{Start: 48, Duration: 48, Pitches: []int{0}, Pins: []chipbox.Pin{{Tick: 0, Value: 1}}}}}},
	})
	seq := synth.NewSequencer(&song, 44100)
	seq.SetPlaying(true)
	var lengths []int
	sum := 0
	for seq.Playing() {
		for _, e := range seq.Advance(1000).Events {
			if e.Kind == synth.EventTick {
				lengths = append(lengths, e.Length)
				sum += e.Length
			}
		}
	}
	if len(lengths) != 96 {
		t.Fatalf("got %v ticks, expected 96", len(lengths))
	}
	for i, l := range lengths {
		// 918.75 samples per tick at 120 BPM, 344.53 at the top tempo
		lo, hi := 918, 919
		if i >= 48 {
			lo, hi = 344, 345
		}
		if l < lo || l > hi {
			t.Fatalf("tick %v is %v samples long, expected %v-%v", i, l, lo, hi)
		}
	}
	if sum != 44100+16537 {
		t.Fatalf("the bar took %v samples, expected %v", sum, 44100+16537)
	}
}
