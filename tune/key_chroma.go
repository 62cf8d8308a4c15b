package tune

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/stat"
)

// ChromaProfile folds Hann-windowed FFT magnitudes of a native-rate buffer
// into 12 pitch-class bins. Only the first ChromaMaxSecs seconds and bins
// between ChromaMinHz and ChromaMaxHz contribute.
func ChromaProfile(buf Buffer, cfg Config) [12]float64 {
	var chroma [12]float64
	size, hop := cfg.ChromaFFTSize, cfg.ChromaHopSize
	if size <= 0 || hop <= 0 || buf.SampleRate <= 0 || len(buf.Samples) == 0 {
		return chroma
	}

	samples := buf.Samples
	if limit := int(cfg.ChromaMaxSecs * float64(buf.SampleRate)); limit > 0 && len(samples) > limit {
		samples = samples[:limit]
	}

	// map each FFT bin to a pitch class once
	binClass := make([]int, size/2+1)
	for k := range binClass {
		freq := float64(k) * float64(buf.SampleRate) / float64(size)
		if freq < cfg.ChromaMinHz || freq > cfg.ChromaMaxHz || freq <= 0 {
			binClass[k] = -1
			continue
		}
		midi := 69 + 12*math.Log2(freq/440.0)
		binClass[k] = ((int(math.RoundToEven(midi)) % 12) + 12) % 12
	}

	frame := make([]float64, size)
	for start := 0; start < len(samples); start += hop {
		for i := range frame {
			frame[i] = 0
		}
		copy(frame, samples[start:])
		window.Apply(frame, window.Hann)

		spectrum := fft.FFTReal(frame)
		for k, pc := range binClass {
			if pc < 0 {
				continue
			}
			chroma[pc] += cmplx.Abs(spectrum[k])
		}
		if start+size >= len(samples) {
			break
		}
	}
	return chroma
}

// MatchChromaProfiles correlates rotated chroma against the fixed key
// profiles with Pearson's r. Rotation i compares profile[m] with
// chroma[(i+m)%12]. Tie handling matches MatchKeyProfiles.
func MatchChromaProfiles(chroma [12]float64, cfg Config) (string, bool) {
	major := cfg.majorProfile
	minor := cfg.minorProfile

	best := -1
	bestScore := -1.0
	isMajor := true
	test := make([]float64, 12)
	for i := 0; i < 12; i++ {
		for m := 0; m < 12; m++ {
			test[m] = chroma[(i+m)%12]
		}
		majScore := stat.Correlation(major[:], test, nil)
		minScore := stat.Correlation(minor[:], test, nil)
		if majScore > bestScore {
			bestScore = majScore
			best = i
			isMajor = true
		}
		if minScore > bestScore {
			bestScore = minScore
			best = i
			isMajor = false
		}
	}
	if best < 0 || math.IsNaN(bestScore) {
		return "", false
	}
	return KeyLabel(best, !isMajor), true
}

// EstimateKeyChroma runs the chroma path over a native-rate buffer.
func EstimateKeyChroma(buf Buffer, cfg Config) (string, bool) {
	chroma := ChromaProfile(buf, cfg)
	total := 0.0
	for _, v := range chroma {
		total += v
	}
	if total <= 0 {
		return "", false
	}
	return MatchChromaProfiles(chroma, cfg)
}
