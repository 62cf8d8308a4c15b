package tune

import (
	"math"
	"sort"
)

// EstimateTempo finds the dominant beat period of target-rate samples from
// the autocorrelation of a positive energy-difference onset envelope. ok is
// false when the clip is shorter than one second, has fewer than four
// onset values, or is effectively constant.
func EstimateTempo(samples []float64, cfg Config) (bpm int, ok bool) {
	sr := cfg.TargetSampleRate
	if len(samples) < sr {
		return 0, false
	}

	frames := Frame(samples, cfg)
	energies := make([]float64, len(frames))
	for i, f := range frames {
		for _, x := range f {
			energies[i] += x * x
		}
	}
	if len(energies) < 4 {
		return 0, false
	}

	onset := make([]float64, len(energies)-1)
	maxOnset := 0.0
	for i := 1; i < len(energies); i++ {
		v := math.Max(0, energies[i]-energies[i-1])
		onset[i-1] = v
		if v > maxOnset {
			maxOnset = v
		}
	}
	if len(onset) < 4 || maxOnset <= cfg.OnsetFloor {
		return 0, false
	}
	for i := range onset {
		onset[i] /= maxOnset
	}

	fps := float64(sr) / float64(cfg.HopSize)
	lagMin := int(fps * 60 / float64(cfg.TempoMaxBPM))
	lagMax := int(fps * 60 / float64(cfg.TempoMinBPM))
	if lagMax <= lagMin {
		return 0, false
	}

	bestLag := 0
	bestScore := -1.0
	for lag := lagMin; lag <= lagMax; lag++ {
		score := 0.0
		for i := lag; i < len(onset); i++ {
			score += onset[i] * onset[i-lag]
		}
		if score > bestScore {
			bestScore = score
			bestLag = lag
		}
	}
	if bestLag == 0 {
		return 0, false
	}

	bpm = int(math.RoundToEven(60 * fps / float64(bestLag)))
	return NormaliseTempo(bpm, cfg), true
}

// NormaliseTempo doubles or halves bpm until it falls in
// [TempoMinBPM, TempoMaxBPM].
func NormaliseTempo(bpm int, cfg Config) int {
	if bpm <= 0 {
		return bpm
	}
	for bpm < cfg.TempoMinBPM {
		bpm *= 2
	}
	for bpm > cfg.TempoMaxBPM {
		bpm /= 2
	}
	return bpm
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
