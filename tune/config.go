package tune

import "fmt"

// Config holds every constant the fingerprint pipeline depends on. A Config
// is passed by value into each component and never mutated after
// construction; alternate configurations are built with the With* helpers.
//
// FrameSize and HopSize are expressed in samples at TargetSampleRate. The
// 400/160 pair gives a 40% stride and is part of the stored fingerprint
// format, so changing it invalidates every catalog vector.
type Config struct {
	TargetSampleRate int
	FrameSize        int
	HopSize          int
	autocorrLags     []int

	// Tempo
	TempoMinBPM    int
	TempoMaxBPM    int
	OnsetFloor     float64
	WaveletWindowS float64
	WaveletLevels  int
	WaveletMinBPM  float64
	WaveletMaxBPM  float64
	EnableWavelet  bool

	// Key
	KeyMaxFrames   int
	KeyEnergyFloor float64
	KeyMinFreqHz   float64
	KeyMaxFreqHz   float64
	majorProfile   [12]float64
	minorProfile   [12]float64
	ChromaFFTSize  int
	ChromaHopSize  int
	ChromaMaxSecs  float64
	ChromaMinHz    float64
	ChromaMaxHz    float64

	// Ranking
	MinTopK int
	MaxTopK int
}

// DefaultConfig returns the reference configuration (8 kHz, 400/160
// framing, lags 20/40/80/120, Krumhansl-Schmuckler profiles).
func DefaultConfig() Config {
	return Config{
		TargetSampleRate: 8000,
		FrameSize:        400,
		HopSize:          160,
		autocorrLags:     []int{20, 40, 80, 120},

		TempoMinBPM:    60,
		TempoMaxBPM:    200,
		OnsetFloor:     1e-8,
		WaveletWindowS: 3.0,
		WaveletLevels:  4,
		WaveletMinBPM:  40,
		WaveletMaxBPM:  220,
		EnableWavelet:  true,

		KeyMaxFrames:   300,
		KeyEnergyFloor: 1e-6,
		KeyMinFreqHz:   50,
		KeyMaxFreqHz:   1000,
		majorProfile:   [12]float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88},
		minorProfile:   [12]float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17},
		ChromaFFTSize:  4096,
		ChromaHopSize:  2048,
		ChromaMaxSecs:  60,
		ChromaMinHz:    50,
		ChromaMaxHz:    5000,

		MinTopK: 1,
		MaxTopK: 20,
	}
}

// AutocorrLags returns a copy of the per-frame autocorrelation lags.
func (c Config) AutocorrLags() []int {
	out := make([]int, len(c.autocorrLags))
	copy(out, c.autocorrLags)
	return out
}

// WithAutocorrLags returns a copy of c using the given lags.
func (c Config) WithAutocorrLags(lags ...int) Config {
	c.autocorrLags = append([]int(nil), lags...)
	return c
}

// WithFraming returns a copy of c with a different window and hop.
func (c Config) WithFraming(frameSize, hopSize int) Config {
	c.FrameSize = frameSize
	c.HopSize = hopSize
	return c
}

func (c Config) MajorProfile() [12]float64 { return c.majorProfile }
func (c Config) MinorProfile() [12]float64 { return c.minorProfile }

// FrameFeatureDims is the per-frame tuple size: energy, zcr and one tap per lag.
func (c Config) FrameFeatureDims() int {
	return 2 + len(c.autocorrLags)
}

// VectorDims is the fingerprint length (mean block followed by std block).
func (c Config) VectorDims() int {
	return 2 * c.FrameFeatureDims()
}

// ValidateTopK rejects k outside [MinTopK, MaxTopK].
func (c Config) ValidateTopK(k int) error {
	if k < c.MinTopK || k > c.MaxTopK {
		return fmt.Errorf("%w: top_k must be between %d and %d", ErrInvalidParameter, c.MinTopK, c.MaxTopK)
	}
	return nil
}
