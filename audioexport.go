package chipbox

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
)

// Raw converts the buffer to raw little-endian interleaved stereo, either as
// float32 or, if pcm16 is set, as int16 samples. Out of range samples are
// clamped when converting to int16.
func (buffer AudioBuffer) Raw(pcm16 bool) ([]byte, error) {
	buf := new(bytes.Buffer)
	var err error
	if pcm16 {
		int16data := make([][2]int16, len(buffer))
		for i, v := range buffer {
			int16data[i] = [2]int16{PCM16(v[0]), PCM16(v[1])}
		}
		err = binary.Write(buf, binary.LittleEndian, int16data)
	} else {
		err = binary.Write(buf, binary.LittleEndian, buffer)
	}
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("could not write raw audio"))
	}
	return buf.Bytes(), nil
}

// PCM16 converts a sample in [-1, 1] to int16, clamping.
func PCM16(v float32) int16 {
	return int16(clampInt(int(v*math.MaxInt16), math.MinInt16, math.MaxInt16))
}
