package synth

import (
	"github.com/vsariola/chipbox"
	"github.com/vsariola/chipbox/dsp"
)

type (
	// SampleBank provides decoded sample data by name. The data is read on
	// the render goroutine and must not change after it has been returned.
	SampleBank interface {
		Sample(name string) (data []float32, sampleRate int, ok bool)
	}

	// instrumentTables are the wave tables and samples an instrument plays,
	// built when the song is prepared so that rendering never computes or
	// looks them up.
	instrumentTables struct {
		wave    *dsp.Wave
		sample  sampleData
		opWaves [4]int
		drums   []drumTables
	}

	drumTables struct {
		wave   *dsp.Wave
		sample sampleData
	}

	sampleData struct {
		name string
		data []float32
		rate float64
		ok   bool
	}
)

func newInstrumentTables(instr *chipbox.Instrument, bank SampleBank) *instrumentTables {
	t := &instrumentTables{}
	switch instr.Type {
	case chipbox.ChipWave:
		t.wave = dsp.ChipWave(chipbox.ChipWaveIndex(instr.ChipWave))
	case chipbox.CustomChipWave:
		t.wave = dsp.CustomWave(instr.CustomWave)
	case chipbox.Harmonics:
		t.wave = dsp.HarmonicsWave(instr.Harmonics)
	case chipbox.Spectrum:
		t.wave = dsp.SpectrumNoise(instr.Spectrum, 1)
	case chipbox.Noise:
		t.wave = dsp.NoiseWave(chipbox.NoiseWaveIndex(instr.NoiseWave))
	case chipbox.FMSynth:
		for i, op := range instr.FM.Operators {
			t.opWaves[i] = chipbox.OperatorWaveformIndex(op.Waveform)
		}
	case chipbox.PitchedSample:
		t.sample = loadSample(bank, instr.Sample.Name)
	case chipbox.Drumset:
		t.drums = make([]drumTables, len(instr.Drums))
		for i, d := range instr.Drums {
			if d.Sample != "" {
				t.drums[i].sample = loadSample(bank, d.Sample)
				continue
			}
			t.drums[i].wave = dsp.SpectrumNoise(d.Spectrum, uint32(i+1))
		}
	}
	return t
}

func loadSample(bank SampleBank, name string) sampleData {
	s := sampleData{name: name}
	if bank == nil || name == "" {
		return s
	}
	data, rate, ok := bank.Sample(name)
	if !ok || len(data) < 2 || rate <= 0 {
		return s
	}
	return sampleData{name: name, data: data, rate: float64(rate), ok: true}
}

// missingSample reports whether a note of the instrument at the given
// pitch would play a sample that is not in the bank.
func (t *instrumentTables) missingSample(instr *chipbox.Instrument, pitch int) bool {
	switch instr.Type {
	case chipbox.PitchedSample:
		return !t.sample.ok
	case chipbox.Drumset:
		if len(t.drums) == 0 {
			return false
		}
		d := &t.drums[drumIndex(pitch, len(t.drums))]
		return d.wave == nil && !d.sample.ok
	}
	return false
}

func drumIndex(pitch, n int) int {
	return ((pitch % n) + n) % n
}

// prepareTables builds the tables of every instrument of the song, indexed
// by channel and instrument.
func prepareTables(song *chipbox.Song, bank SampleBank) [][]*instrumentTables {
	ret := make([][]*instrumentTables, len(song.Channels))
	for c := range song.Channels {
		ch := &song.Channels[c]
		ret[c] = make([]*instrumentTables, len(ch.Instruments))
		for i := range ch.Instruments {
			ret[c][i] = newInstrumentTables(&ch.Instruments[i], bank)
		}
	}
	return ret
}
