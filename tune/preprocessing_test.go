package tune

import (
	"errors"
	"math"
	"testing"
)

func TestResampleIdentity(t *testing.T) {
	t.Parallel()

	samples := []float64{0.1, -0.2, 0.3, 0.4}
	for _, rate := range []int{8000, 16000, 44100} {
		out := Resample(samples, rate, rate)
		if len(out) != len(samples) {
			t.Fatalf("rate %d: length changed %d -> %d", rate, len(samples), len(out))
		}
		for i := range out {
			if out[i] != samples[i] {
				t.Fatalf("rate %d: sample %d changed", rate, i)
			}
		}
	}

	if out := Resample(nil, 44100, 8000); len(out) != 0 {
		t.Fatalf("expected empty output for empty input, got %d samples", len(out))
	}
}

func TestResampleLengthAndEndpoints(t *testing.T) {
	t.Parallel()

	samples := make([]float64, 44100)
	for i := range samples {
		samples[i] = float64(i) / float64(len(samples)-1)
	}
	out := Resample(samples, 44100, 8000)
	if len(out) != 8000 {
		t.Fatalf("expected 8000 samples, got %d", len(out))
	}
	if out[0] != samples[0] {
		t.Fatalf("first sample should map to source start")
	}
	if math.Abs(out[len(out)-1]-samples[len(samples)-1]) > 1e-12 {
		t.Fatalf("last sample should map to source end, got %f", out[len(out)-1])
	}

	// a single sample downsampled still yields one output sample
	if got := Resample([]float64{0.5}, 44100, 8000); len(got) != 1 || got[0] != 0.5 {
		t.Fatalf("expected [0.5], got %v", got)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	if _, err := Normalize(nil); !errors.Is(err, ErrEmptyAudio) {
		t.Fatalf("expected ErrEmptyAudio, got %v", err)
	}

	out, err := Normalize([]float64{0.25, -0.5, 0.1})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if out[1] != -1 || out[0] != 0.5 {
		t.Fatalf("unexpected normalisation %v", out)
	}

	silent, err := Normalize([]float64{0, 0, 0})
	if err != nil {
		t.Fatalf("Normalize silent: %v", err)
	}
	for _, v := range silent {
		if v != 0 || math.IsNaN(v) {
			t.Fatalf("silent buffer must stay zero, got %v", silent)
		}
	}
}

func TestFramePadsShortInput(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	frames := Frame([]float64{1, 2, 3}, cfg)
	if len(frames) != 1 {
		t.Fatalf("expected one padded frame, got %d", len(frames))
	}
	if len(frames[0]) != cfg.FrameSize {
		t.Fatalf("expected padded length %d, got %d", cfg.FrameSize, len(frames[0]))
	}
	if frames[0][2] != 3 || frames[0][3] != 0 || frames[0][cfg.FrameSize-1] != 0 {
		t.Fatalf("padding is not trailing zeros")
	}
}

func TestFrameDropsTrailingPartialWindow(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cases := map[int]int{
		400:  1,
		559:  1,
		560:  2,
		8000: 48,
	}
	for n, want := range cases {
		frames := Frame(make([]float64, n), cfg)
		if len(frames) != want {
			t.Errorf("n=%d: expected %d frames, got %d", n, want, len(frames))
		}
	}
}
