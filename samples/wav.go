package samples

import (
	"io"
	"os"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// LoadFile decodes a WAV file.
func LoadFile(path string) (Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return Sample{}, fault.Wrap(err, fmsg.With("cannot open sample"), ftag.With(ftag.NotFound))
	}
	defer f.Close()
	s, err := DecodeWAV(f)
	if err != nil {
		return Sample{}, fault.Wrap(err, fmsg.With(path))
	}
	return s, nil
}

// DecodeWAV decodes PCM WAV data, mixing all channels down to mono.
func DecodeWAV(r io.ReadSeeker) (Sample, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return Sample{}, fault.New("not a valid WAV file", fmsg.With("cannot decode sample"), ftag.With(ftag.InvalidArgument))
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return Sample{}, fault.Wrap(err, fmsg.With("cannot decode sample"))
	}
	return fromIntBuffer(buf, int(d.BitDepth))
}

func fromIntBuffer(buf *audio.IntBuffer, bitDepth int) (Sample, error) {
	if buf.Format == nil || buf.Format.NumChannels < 1 || buf.Format.SampleRate <= 0 {
		return Sample{}, fault.New("missing sample format", fmsg.With("cannot decode sample"), ftag.With(ftag.InvalidArgument))
	}
	if bitDepth <= 0 {
		bitDepth = buf.SourceBitDepth
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return Sample{}, fault.New("unsupported bit depth", fmsg.With("cannot decode sample"), ftag.With(ftag.InvalidArgument))
	}
	ch := buf.Format.NumChannels
	scale := 1 / (float64(int64(1)<<(bitDepth-1)) * float64(ch))
	data := make([]float32, len(buf.Data)/ch)
	for i := range data {
		var sum int
		for c := 0; c < ch; c++ {
			sum += buf.Data[i*ch+c]
		}
		data[i] = float32(float64(sum) * scale)
	}
	return Sample{Data: data, SampleRate: buf.Format.SampleRate}, nil
}
