package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"

	"tunefind/tune"
)

// MP3Decoder decodes MPEG-1/2 layer III. go-mp3 always yields 16-bit
// little-endian stereo.
type MP3Decoder struct{}

func (MP3Decoder) Name() string { return "mp3" }

func (MP3Decoder) Decode(_ context.Context, data []byte) (tune.Buffer, error) {
	if !IsMP3(data) {
		return tune.Buffer{}, unsupported("no ID3 tag or MPEG frame sync")
	}

	d, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return tune.Buffer{}, corrupt("mp3 header: %v", err)
	}
	pcm, err := io.ReadAll(d)
	if err != nil && len(pcm) == 0 {
		return tune.Buffer{}, corrupt("mp3 frames: %v", err)
	}
	if len(pcm) < 4 {
		return tune.Buffer{}, fmt.Errorf("mp3: %w", tune.ErrEmptyAudio)
	}

	const channels = 2
	ints := make([]int, len(pcm)/2)
	for i := range ints {
		ints[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	return tune.Buffer{
		Samples:    downmix(ints, channels, pcm16FullScale),
		SampleRate: d.SampleRate(),
	}, nil
}
