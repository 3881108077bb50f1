package stream_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/gopxl/beep"
	"github.com/vsariola/chipbox"
	"github.com/vsariola/chipbox/stream"
	"github.com/vsariola/chipbox/synth"
	"gopkg.in/yaml.v3"
)

func loadSong(t *testing.T) chipbox.Song {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "a4.yml"))
	if err != nil {
		t.Fatalf("cannot read the song: %v", err)
	}
	var song chipbox.Song
	if err := yaml.Unmarshal(data, &song); err != nil {
		t.Fatalf("could not parse the .yml file: %v", err)
	}
	return song
}

func TestStreamerMatchesExport(t *testing.T) {
	song := loadSong(t)
	expected, err := synth.RenderWholeSong(song, 44100, synth.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("RenderWholeSong failed: %v", err)
	}
	e, err := synth.NewForExport(song, synth.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewForExport failed: %v", err)
	}
	s := stream.New(e)
	var got [][2]float64
	buf := make([][2]float64, 1000)
	for {
		n, ok := s.Stream(buf)
		got = append(got, buf[:n]...)
		if !ok || len(got) > 10*44100 {
			break
		}
	}
	if err := s.Err(); err != nil {
		t.Fatalf("streamer failed: %v", err)
	}
	if len(got) < 88200 || len(got) > 88200+44100 {
		t.Fatalf("streamer should drain shortly after the song ends, got %v frames", len(got))
	}
	for i := 0; i < 88200; i++ {
		if float32(got[i][0]) != expected[i][0] || float32(got[i][1]) != expected[i][1] {
			t.Fatalf("frame %v differs: got %v, expected %v", i, got[i], expected[i])
		}
	}
}

func TestEncodeWAV(t *testing.T) {
	buf := make(chipbox.AudioBuffer, 4410)
	for i := range buf {
		v := float32(0.5 * math.Sin(2*math.Pi*float64(i)/100))
		buf[i] = [2]float32{v, -v}
	}
	for _, c := range []struct {
		pcm16    bool
		bitDepth int
	}{{true, 16}, {false, 24}} {
		path := filepath.Join(t.TempDir(), "out.wav")
		f, err := os.Create(path)
		if err != nil {
			t.Fatal(err)
		}
		if err := stream.EncodeWAV(f, buf, 44100, c.pcm16); err != nil {
			t.Fatalf("EncodeWAV failed: %v", err)
		}
		f.Close()
		f, err = os.Open(path)
		if err != nil {
			t.Fatal(err)
		}
		d := wav.NewDecoder(f)
		if !d.IsValidFile() {
			t.Fatalf("%v-bit: not a valid wav file", c.bitDepth)
		}
		pcm, err := d.FullPCMBuffer()
		f.Close()
		if err != nil {
			t.Fatalf("cannot decode the wav: %v", err)
		}
		if d.SampleRate != 44100 || d.NumChans != 2 || int(d.BitDepth) != c.bitDepth {
			t.Fatalf("wrong format: %v Hz, %v channels, %v bits", d.SampleRate, d.NumChans, d.BitDepth)
		}
		if len(pcm.Data) != 2*len(buf) {
			t.Fatalf("got %v samples, expected %v", len(pcm.Data), 2*len(buf))
		}
		scale := 1 / float64(int64(1)<<(c.bitDepth-1))
		for i := range buf {
			l, r := float64(pcm.Data[2*i])*scale, float64(pcm.Data[2*i+1])*scale
			if math.Abs(l-float64(buf[i][0])) > 1e-3 || math.Abs(r-float64(buf[i][1])) > 1e-3 {
				t.Fatalf("%v-bit frame %v: got [%v %v], expected %v", c.bitDepth, i, l, r, buf[i])
			}
		}
	}
}

func TestFormat(t *testing.T) {
	format := stream.Format(48000, 3)
	if format.SampleRate != beep.SampleRate(48000) || format.NumChannels != 2 || format.Precision != 3 {
		t.Fatalf("wrong format: %+v", format)
	}
}
