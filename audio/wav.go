package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"tunefind/tune"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
	pcm16FullScale      = 32768.0
)

// WAVDecoder is the reference decoder: 16-bit PCM only.
type WAVDecoder struct{}

func (WAVDecoder) Name() string { return "wav" }

func (WAVDecoder) Decode(_ context.Context, data []byte) (tune.Buffer, error) {
	if !IsWAV(data) {
		return tune.Buffer{}, unsupported("not a RIFF/WAVE container")
	}

	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		if err := d.Err(); err != nil {
			return tune.Buffer{}, corrupt("invalid wav header: %v", err)
		}
		return tune.Buffer{}, corrupt("invalid wav header")
	}
	if d.WavAudioFormat != wavFormatPCM && d.WavAudioFormat != wavFormatExtensible {
		return tune.Buffer{}, unsupported("wav audio format %d is not PCM", d.WavAudioFormat)
	}
	if d.BitDepth != 16 {
		return tune.Buffer{}, unsupported("only 16-bit PCM WAV files are supported, got %d-bit", d.BitDepth)
	}
	if d.NumChans == 0 || d.SampleRate == 0 {
		return tune.Buffer{}, corrupt("wav header declares %d channels at %d Hz", d.NumChans, d.SampleRate)
	}

	pcm, err := d.FullPCMBuffer()
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return tune.Buffer{}, corrupt("reading wav samples: %v", err)
	}
	if pcm == nil || len(pcm.Data) == 0 {
		return tune.Buffer{}, fmt.Errorf("wav: %w", tune.ErrEmptyAudio)
	}

	channels := int(d.NumChans)
	return tune.Buffer{
		Samples:    downmix(pcm.Data, channels, pcm16FullScale),
		SampleRate: int(d.SampleRate),
	}, nil
}

// EncodeWAV renders mono samples in [-1, 1] as a 16-bit PCM WAV file.
func EncodeWAV(samples []float64, sampleRate int) ([]byte, error) {
	out := &memFile{}
	enc := wav.NewEncoder(out, sampleRate, 16, 1, wavFormatPCM)

	ints := make([]int, len(samples))
	for i, s := range samples {
		v := math.Round(s * 32767)
		ints[i] = int(math.Max(-32768, math.Min(32767, v)))
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           ints,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("error encoding wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("error finalising wav: %w", err)
	}
	return out.buf, nil
}

// memFile is an in-memory io.WriteSeeker for the wav encoder, which
// rewrites the header sizes on Close.
type memFile struct {
	buf []byte
	pos int
}

func (m *memFile) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	copy(m.buf[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(m.pos) + offset
	case io.SeekEnd:
		next = int64(len(m.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if next < 0 {
		return 0, fmt.Errorf("negative seek position %d", next)
	}
	m.pos = int(next)
	return next, nil
}
