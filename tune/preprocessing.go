package tune

// Sample Preparation
//
// Decoded audio reaches the fingerprint pipeline as a mono Buffer at its
// native rate. Preparation runs three steps, each a pure function:
//
// 1. Resample: linear interpolation to Config.TargetSampleRate. The
//    interpolation is not band-limited, so content above the target
//    Nyquist frequency aliases into the band. This is a known limitation
//    of the fingerprint format and stored vectors depend on it.
// 2. Normalize: divide by the absolute peak (all-zero input is left as is).
// 3. Frame: fixed windows of FrameSize samples every HopSize samples.

import (
	"fmt"
	"math"
)

// Buffer is a mono sample stream in [-1, 1] plus its sample rate in Hz.
type Buffer struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the buffer length in seconds.
func (b Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

// Resample converts samples from srcRate to dstRate by linear
// interpolation. Equal rates or empty input return the input unchanged.
func Resample(samples []float64, srcRate, dstRate int) []float64 {
	if srcRate == dstRate || len(samples) == 0 {
		return samples
	}

	n := len(samples)
	outLen := int(math.Floor(float64(n) * float64(dstRate) / float64(srcRate)))
	if outLen < 1 {
		outLen = 1
	}
	denom := outLen - 1
	if denom < 1 {
		denom = 1
	}

	out := make([]float64, outLen)
	for i := range out {
		x := float64(i) * float64(n-1) / float64(denom)
		left := int(math.Floor(x))
		right := left + 1
		if right > n-1 {
			right = n - 1
		}
		frac := x - float64(left)
		out[i] = samples[left]*(1-frac) + samples[right]*frac
	}
	return out
}

// Normalize divides every sample by the absolute peak. A silent buffer is
// returned as a copy without scaling.
func Normalize(samples []float64) ([]float64, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyAudio
	}

	peak := 0.0
	for _, s := range samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		peak = 1.0
	}

	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s / peak
	}
	return out, nil
}

// Frame slices samples into overlapping windows. Input shorter than one
// window is zero-padded into exactly one frame; otherwise a trailing
// partial window is dropped.
func Frame(samples []float64, cfg Config) [][]float64 {
	size, hop := cfg.FrameSize, cfg.HopSize
	if size <= 0 || hop <= 0 {
		return nil
	}

	if len(samples) < size {
		padded := make([]float64, size)
		copy(padded, samples)
		return [][]float64{padded}
	}

	frames := make([][]float64, 0, (len(samples)-size)/hop+1)
	for start := 0; start+size <= len(samples); start += hop {
		frames = append(frames, samples[start:start+size])
	}
	return frames
}

// Prepare resamples buf to the target rate and peak-normalises it.
func Prepare(buf Buffer, cfg Config) ([]float64, error) {
	if len(buf.Samples) == 0 {
		return nil, ErrEmptyAudio
	}
	if buf.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrCorruptAudio, buf.SampleRate)
	}
	resampled := Resample(buf.Samples, buf.SampleRate, cfg.TargetSampleRate)
	return Normalize(resampled)
}
