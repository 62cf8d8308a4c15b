package tune

// Key Estimation
//
// The fallback estimator needs nothing beyond the framed target-rate
// signal. For at most KeyMaxFrames evenly strided frames it picks the lag
// with the largest raw autocorrelation, maps the implied fundamental to a
// pitch class and adds the frame energy to a 12-bin histogram. The
// histogram is then scored against all 24 rotations of the
// Krumhansl-Schmuckler profiles. Major is tried before minor at every
// rotation and only a strictly greater score replaces the current best, so
// exact ties resolve to the earliest rotation and to major.

import (
	"math"
	"strings"
)

// PitchClassNames are the canonical sharp-based names starting at C.
var PitchClassNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var flatToSharp = map[string]string{
	"Db": "C#", "Eb": "D#", "Gb": "F#", "Ab": "G#", "Bb": "A#",
	"Cb": "B", "Fb": "E", "E#": "F", "B#": "C",
}

// KeyLabel formats a pitch class and mode as "C#" or "C#m".
func KeyLabel(pitchClass int, minor bool) string {
	name := PitchClassNames[((pitchClass%12)+12)%12]
	if minor {
		return name + "m"
	}
	return name
}

// IsCanonicalKey reports whether label is one of the 24 canonical labels.
func IsCanonicalKey(label string) bool {
	_, ok := canonicalKeys()[label]
	return ok
}

func canonicalKeys() map[string]struct{} {
	keys := make(map[string]struct{}, 24)
	for pc := 0; pc < 12; pc++ {
		keys[KeyLabel(pc, false)] = struct{}{}
		keys[KeyLabel(pc, true)] = struct{}{}
	}
	return keys
}

// CanonicalKey rewrites common key spellings ("Bbm", "A minor", "F# major")
// into a canonical label. ok is false for anything it cannot map.
func CanonicalKey(label string) (string, bool) {
	s := strings.TrimSpace(label)
	if s == "" {
		return "", false
	}
	minor := false
	lower := strings.ToLower(s)
	switch {
	case strings.HasSuffix(lower, " minor"):
		minor = true
		s = strings.TrimSpace(s[:len(s)-len(" minor")])
	case strings.HasSuffix(lower, " major"):
		s = strings.TrimSpace(s[:len(s)-len(" major")])
	case strings.HasSuffix(s, "m") && len(s) > 1:
		minor = true
		s = s[:len(s)-1]
	}
	if len(s) == 0 || len(s) > 2 {
		return "", false
	}
	s = strings.ToUpper(s[:1]) + s[1:]
	if sharp, found := flatToSharp[s]; found {
		s = sharp
	}
	for pc, name := range PitchClassNames {
		if name == s {
			return KeyLabel(pc, minor), true
		}
	}
	return "", false
}

// rotateProfile returns profile[-n:] + profile[:-n].
func rotateProfile(profile [12]float64, n int) [12]float64 {
	var out [12]float64
	n = ((n % 12) + 12) % 12
	for i := 0; i < 12; i++ {
		out[(i+n)%12] = profile[i]
	}
	return out
}

func dot12(a, b [12]float64) float64 {
	var s float64
	for i := 0; i < 12; i++ {
		s += a[i] * b[i]
	}
	return s
}

// PitchClassHistogram accumulates frame energy per detected pitch class.
func PitchClassHistogram(samples []float64, sampleRate int, cfg Config) [12]float64 {
	var hist [12]float64
	frames := Frame(samples, cfg)
	if len(frames) == 0 {
		return hist
	}

	minLag := sampleRate / 1000
	if minLag < 1 {
		minLag = 1
	}
	maxLag := sampleRate / 50
	if limit := len(frames[0]) - 1; limit < maxLag {
		maxLag = limit
	}

	step := 1
	if cfg.KeyMaxFrames > 0 {
		if s := len(frames) / cfg.KeyMaxFrames; s > 1 {
			step = s
		}
	}

	for fi := 0; fi < len(frames); fi += step {
		frame := frames[fi]
		energy := 0.0
		for _, x := range frame {
			energy += x * x
		}
		if energy <= cfg.KeyEnergyFloor {
			continue
		}

		bestLag := 0
		bestCorr := -1.0
		for lag := minLag; lag <= maxLag; lag++ {
			corr := 0.0
			for i := 0; i < len(frame)-lag; i++ {
				corr += frame[i] * frame[i+lag]
			}
			if corr > bestCorr {
				bestCorr = corr
				bestLag = lag
			}
		}
		if bestLag == 0 {
			continue
		}

		freq := float64(sampleRate) / float64(bestLag)
		if freq < cfg.KeyMinFreqHz || freq > cfg.KeyMaxFreqHz {
			continue
		}
		midi := 69 + 12*math.Log2(freq/440.0)
		pc := ((int(math.RoundToEven(midi)) % 12) + 12) % 12
		hist[pc] += energy
	}
	return hist
}

// MatchKeyProfiles scores hist against every rotation of the major and
// minor profiles by dot product.
func MatchKeyProfiles(hist [12]float64, cfg Config) (string, bool) {
	best := -1
	bestScore := -1.0
	isMajor := true
	for i := 0; i < 12; i++ {
		majScore := dot12(rotateProfile(cfg.majorProfile, i), hist)
		minScore := dot12(rotateProfile(cfg.minorProfile, i), hist)
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
	if best < 0 {
		return "", false
	}
	return KeyLabel(best, !isMajor), true
}

// EstimateKey is the dependency-free key estimator over target-rate,
// peak-normalised samples.
func EstimateKey(samples []float64, cfg Config) (string, bool) {
	hist := PitchClassHistogram(samples, cfg.TargetSampleRate, cfg)
	peak := 0.0
	for _, v := range hist {
		if v > peak {
			peak = v
		}
	}
	if peak <= 0 {
		return "", false
	}
	return MatchKeyProfiles(hist, cfg)
}
