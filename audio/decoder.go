package audio

// Audio Decoding
//
// Uploaded clips arrive as raw container bytes. Decoding is an ordered
// list of attempts; each decoder either recognises the container and
// returns mono samples at the native rate, or fails with an error wrapping
// tune.ErrUnsupportedFormat (not its format) or tune.ErrCorruptAudio (its
// format, but malformed). The chain keeps every failure so the final
// diagnostic names what each decoder saw.
//
// Default order:
//
// 1. WAV: 16-bit PCM via go-audio/wav, channels averaged, scaled by 1/32768
// 2. MP3: hajimehoshi/go-mp3 (16-bit stereo output, averaged)
// 3. FLAC: mewkiz/flac, scaled by the stream bit depth
// 4. ffmpeg: external tool for webm/ogg/m4a/aac and anything else

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tunefind/tune"
)

// Decoder is one attempt in the chain.
type Decoder interface {
	Name() string
	Decode(ctx context.Context, data []byte) (tune.Buffer, error)
}

// Attempt records why a decoder rejected the input.
type Attempt struct {
	Decoder string
	Err     error
}

// DecodeError aggregates every failed attempt.
type DecodeError struct {
	Attempts []Attempt
}

func (e *DecodeError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Decoder, a.Err))
	}
	return "failed to decode audio (" + strings.Join(parts, "; ") + ")"
}

// Unwrap exposes the kind of failure first, then each attempt's error.
func (e *DecodeError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts)+1)
	errs = append(errs, e.Kind())
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// Kind is tune.ErrCorruptAudio when any decoder recognised the container,
// otherwise tune.ErrUnsupportedFormat.
func (e *DecodeError) Kind() error {
	for _, a := range e.Attempts {
		if errors.Is(a.Err, tune.ErrCorruptAudio) {
			return tune.ErrCorruptAudio
		}
	}
	return tune.ErrUnsupportedFormat
}

// Chain tries decoders in order and returns the first success.
type Chain struct {
	decoders []Decoder
}

// NewChain builds a chain from explicit decoders.
func NewChain(decoders ...Decoder) *Chain {
	return &Chain{decoders: decoders}
}

// NewDefaultChain returns WAV, MP3 and FLAC decoders followed by ffmpeg
// when withFFmpeg is set.
func NewDefaultChain(withFFmpeg bool) *Chain {
	decoders := []Decoder{WAVDecoder{}, MP3Decoder{}, FLACDecoder{}}
	if withFFmpeg {
		decoders = append(decoders, NewFFmpegDecoder())
	}
	return NewChain(decoders...)
}

func (c *Chain) Decoders() []Decoder { return c.decoders }

// Decode implements tune.SampleSource.
func (c *Chain) Decode(ctx context.Context, data []byte) (tune.Buffer, error) {
	if len(data) == 0 {
		return tune.Buffer{}, tune.ErrEmptyAudio
	}

	var failed []Attempt
	for _, d := range c.decoders {
		if err := ctx.Err(); err != nil {
			return tune.Buffer{}, err
		}
		buf, err := d.Decode(ctx, data)
		if err == nil {
			if len(buf.Samples) == 0 {
				return tune.Buffer{}, fmt.Errorf("%s: %w", d.Name(), tune.ErrEmptyAudio)
			}
			return buf, nil
		}
		if errors.Is(err, tune.ErrEmptyAudio) {
			return tune.Buffer{}, fmt.Errorf("%s: %w", d.Name(), err)
		}
		failed = append(failed, Attempt{Decoder: d.Name(), Err: err})
	}
	if len(failed) == 0 {
		return tune.Buffer{}, fmt.Errorf("%w: no decoders configured", tune.ErrUnsupportedFormat)
	}
	return tune.Buffer{}, &DecodeError{Attempts: failed}
}

func unsupported(format string, args ...any) error {
	return fmt.Errorf("%w: %s", tune.ErrUnsupportedFormat, fmt.Sprintf(format, args...))
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", tune.ErrCorruptAudio, fmt.Sprintf(format, args...))
}

// downmix averages interleaved integer samples into mono floats scaled by
// 1/fullScale.
func downmix(interleaved []int, channels int, fullScale float64) []float64 {
	if channels <= 1 {
		out := make([]float64, len(interleaved))
		for i, s := range interleaved {
			out[i] = float64(s) / fullScale
		}
		return out
	}
	frames := len(interleaved) / channels
	out := make([]float64, frames)
	for f := 0; f < frames; f++ {
		sum := 0
		for ch := 0; ch < channels; ch++ {
			sum += interleaved[f*channels+ch]
		}
		out[f] = float64(sum) / float64(channels) / fullScale
	}
	return out
}
