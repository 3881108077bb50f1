package samples_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/vsariola/chipbox"
	"github.com/vsariola/chipbox/samples"
	"github.com/vsariola/chipbox/synth"
)

func writeWAV(t *testing.T, path string, channels int, data []int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("cannot create %v: %v", path, err)
	}
	defer f.Close()
	enc := wav.NewEncoder(f, 22050, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: 22050},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("cannot write %v: %v", path, err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("cannot close %v: %v", path, err)
	}
}

func sine(n int) []int {
	ret := make([]int, n)
	for i := range ret {
		ret[i] = int(16384 * math.Sin(2*math.Pi*float64(i)/50))
	}
	return ret
}

func TestLoadFileMixesToMono(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	writeWAV(t, path, 2, []int{16384, 0, -32768, -32768, 0, 8192})
	s, err := samples.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if s.SampleRate != 22050 {
		t.Fatalf("wrong sample rate: %v", s.SampleRate)
	}
	expected := []float32{0.25, -1, 0.125}
	if len(s.Data) != len(expected) {
		t.Fatalf("got %v samples, expected %v", len(s.Data), len(expected))
	}
	for i := range expected {
		if s.Data[i] != expected[i] {
			t.Fatalf("sample %v: got %v, expected %v", i, s.Data[i], expected[i])
		}
	}
}

func TestLoadFileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.wav")
	if err := os.WriteFile(path, []byte("definitely not a wav file, just text"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := samples.LoadFile(path); err == nil {
		t.Fatalf("garbage should not decode")
	}
	if _, err := samples.LoadFile(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Fatalf("a missing file should not load")
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, filepath.Join(dir, "kick.wav"), 1, sine(1000))
	writeWAV(t, filepath.Join(dir, "snare.WAV"), 1, sine(500))
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}
	b := samples.NewBank()
	if err := b.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}
	if names := b.Names(); len(names) != 2 || names[0] != "kick" || names[1] != "snare" {
		t.Fatalf("wrong samples loaded: %v", names)
	}
	if data, rate, ok := b.Sample("snare"); !ok || rate != 22050 || len(data) != 500 {
		t.Fatalf("wrong snare: %v %v %v", len(data), rate, ok)
	}
	if _, _, ok := b.Sample("hihat"); ok {
		t.Fatalf("hihat should not be found")
	}
	if err := b.LoadDir(filepath.Join(dir, "nope")); err == nil {
		t.Fatalf("a missing directory should fail")
	}
}

func TestBankPlaysInEngine(t *testing.T) {
	b := samples.NewBank()
	data := make([]float32, 22050)
	for i := range data {
		data[i] = float32(math.Sin(2 * math.Pi * float64(i) / 50))
	}
	b.Add("tone", samples.Sample{Data: data, SampleRate: 22050})
	instr := chipbox.DefaultInstrument(chipbox.PitchedSample)
	instr.Sample.Name = "tone"
	song := chipbox.Song{BPM: 120, BeatsPerBar: 4, TicksPerBeat: 24, Bars: 1, Channels: []chipbox.Channel{{
		Order:       chipbox.Order{0},
		Patterns:    []chipbox.Pattern{{Notes: []chipbox.Note{{Start: 0, Duration: 24, Pitches: []int{60}}}}},
		Instruments: []chipbox.Instrument{instr},
	}}}
	buf, err := synth.RenderWholeSong(song, 44100, synth.DefaultConfig(), b)
	if err != nil {
		t.Fatalf("RenderWholeSong failed: %v", err)
	}
	if peak := buf[:22050].Peak(); peak < 0.1 {
		t.Fatalf("the sample did not play: peak %v", peak)
	}
}
