package synth

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/vsariola/chipbox"
	"gopkg.in/yaml.v3"
)

func readSong(t *testing.T, name string) chipbox.Song {
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

func TestTieContinuesVoice(t *testing.T) {
	for _, tie := range []bool{true, false} {
		song := readSong(t, "ties")
		song.Channels[0].Patterns[0].Notes[1].Tie = tie
		e, err := NewForExport(song, DefaultConfig(), nil)
		if err != nil {
			t.Fatalf("NewForExport failed: %v", err)
		}
		dst := make([]float32, 2*44200)
		if _, err := e.RenderFrames(dst, 44200); err != nil {
			t.Fatalf("RenderFrames failed: %v", err)
		}
		c := e.channels[0]
		if tie {
			if n := c.activeVoices(); n != 1 {
				t.Fatalf("tied note: got %v active voices, expected 1", n)
			}
			for i := range c.voices {
				v := &c.voices[i]
				if v.active && (v.pitches[0] != 64 || v.released || v.slide != -4) {
					t.Fatalf("tied voice: pitch %v, released %v, slide %v", v.pitches[0], v.released, v.slide)
				}
			}
			continue
		}
		if n := c.activeVoices(); n != 2 {
			t.Fatalf("untied note: got %v active voices, expected 2", n)
		}
		if p := c.heldPitch(); p != 64 {
			t.Fatalf("untied note: held pitch %v, expected 64", p)
		}
	}
}

func TestSlideOffset(t *testing.T) {
	v := voice{slide: -4, slideTicks: 4}
	for i, expected := range []float64{-4, -3, -2, -1, 0, 0} {
		if got := v.slideOffset(i); got != expected {
			t.Errorf("tick %v: got slide offset %v, expected %v", i, got, expected)
		}
	}
}

func TestVoiceStealing(t *testing.T) {
	var c channelState
	for i := range c.voices {
		c.voices[i] = voice{active: true, age: int64(100 - i)}
	}
	if v := c.allocate(); v != &c.voices[MaxVoices-1] {
		t.Fatalf("should steal the oldest voice, got age %v", v.age)
	}
	c.voices[3].released = true
	c.voices[5].released = true
	if v := c.allocate(); v != &c.voices[5] {
		t.Fatalf("should steal the oldest released voice, got age %v", v.age)
	}
	c.voices[9].active = false
	if v := c.allocate(); v != &c.voices[9] {
		t.Fatalf("should use the free voice, got age %v", v.age)
	}
}

func TestReleaseFadesOut(t *testing.T) {
	song := readSong(t, "a4")
	e, err := NewForExport(song, DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewForExport failed: %v", err)
	}
	dst := make([]float32, 2*1000)
	e.RenderFrames(dst, 1000)
	e.channels[0].releaseAll(e.cfg.MinRelease, e.params.sampleRate)
	v := &e.channels[0].voices[0]
	if !v.released || v.releaseLen < 2200 || v.releaseLen > 2206 {
		t.Fatalf("wrong release: released %v, length %v", v.released, v.releaseLen)
	}
	e.RenderFrames(dst, 1000)
	e.RenderFrames(dst, 1000)
	e.RenderFrames(dst, 1000)
	if v.active {
		t.Fatalf("voice still active after its release")
	}
}

func TestMinRelease(t *testing.T) {
	instr := chipbox.DefaultInstrument(chipbox.ChipWave)
	instr.Release = 0
	v := voice{active: true, instr: &instr}
	v.release(0.01, 44100)
	if v.releaseLen < 440 || v.releaseLen > 442 {
		t.Fatalf("release without a release time should last the minimum: got %v", v.releaseLen)
	}
}

func TestVoiceModReachesTargetAtTickEnd(t *testing.T) {
	song := readSong(t, "a4")
	song.Channels = append(song.Channels, chipbox.Channel{
		Type:     chipbox.ModChannel,
		Order:    chipbox.Order{0},
		Mods:     []chipbox.ModSetting{{Channel: 0, Instrument: 0, Parameter: chipbox.ParamVolume}},
		Patterns: []chipbox.Pattern{{Notes: []chipbox.Note{{Start: 48, Duration: 48, Pitches: []int{0}, Pins: []chipbox.Pin{{Tick: 0, Value: 0}}}}}},
	})
	e, err := NewForExport(song, DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewForExport failed: %v", err)
	}
	dst := make([]float32, 2*44100)
	e.RenderFrames(dst, 44100) // up to the start of tick 48, 918 samples long
	var v *voice
	for i := range e.channels[0].voices {
		if e.channels[0].voices[i].active {
			v = &e.channels[0].voices[i]
		}
	}
	if v == nil {
		t.Fatalf("no voice playing")
	}
	before := v.gain.Value()
	if before <= 0 {
		t.Fatalf("voice gain %v before the mod note", before)
	}
	e.RenderFrames(dst, 459)
	if g := v.gain.Value(); math.Abs(g-before/2) > 1e-9 {
		t.Fatalf("half way through the tick: gain %v, expected %v", g, before/2)
	}
	e.RenderFrames(dst, 459)
	if g := v.gain.Value(); g != 0 {
		t.Fatalf("at the end of the tick: gain %v, expected 0", g)
	}
}
