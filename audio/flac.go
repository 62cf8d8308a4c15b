package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"

	"tunefind/tune"
)

// FLACDecoder decodes native FLAC streams of any bit depth.
type FLACDecoder struct{}

func (FLACDecoder) Name() string { return "flac" }

func (FLACDecoder) Decode(_ context.Context, data []byte) (tune.Buffer, error) {
	if !IsFLAC(data) {
		return tune.Buffer{}, unsupported("missing fLaC signature")
	}

	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return tune.Buffer{}, corrupt("flac stream info: %v", err)
	}
	defer stream.Close()

	info := stream.Info
	if info.SampleRate == 0 || info.NChannels == 0 || info.BitsPerSample == 0 {
		return tune.Buffer{}, corrupt("flac stream info declares %d channels at %d Hz", info.NChannels, info.SampleRate)
	}
	fullScale := float64(int64(1) << (info.BitsPerSample - 1))

	var samples []float64
	for {
		frame, err := stream.ParseNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if len(samples) > 0 {
				// keep what decoded cleanly before a truncated tail
				break
			}
			return tune.Buffer{}, corrupt("flac frame: %v", err)
		}
		channels := len(frame.Subframes)
		if channels == 0 {
			continue
		}
		n := len(frame.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			var sum int64
			for _, sub := range frame.Subframes {
				sum += int64(sub.Samples[i])
			}
			samples = append(samples, float64(sum)/float64(channels)/fullScale)
		}
	}
	if len(samples) == 0 {
		return tune.Buffer{}, fmt.Errorf("flac: %w", tune.ErrEmptyAudio)
	}

	return tune.Buffer{Samples: samples, SampleRate: int(info.SampleRate)}, nil
}
