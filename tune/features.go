package tune

// Fingerprint Extraction
//
// Every frame is reduced to a small tuple:
//
//   - Energy: mean of squared samples
//   - Zero Crossing Rate: adjacent sign changes (zero counts as
//     non-negative) over frame length minus one
//   - Autocorrelation taps: sum(x[i]*x[i+lag]) / (n-lag) for each
//     configured lag, a cheap periodicity proxy for hummed input
//
// The aggregator pools the tuples into per-dimension means followed by
// population standard deviations, then L2-normalises the result so that
// fingerprints can be compared with cosine similarity regardless of clip
// length.

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Fingerprint is the fixed-length descriptor of one clip.
type Fingerprint struct {
	Vector     []float64 `json:"vector"`
	DurationS  float64   `json:"duration_s"`
	SampleRate int       `json:"sample_rate"`
}

// FrameFeatures computes [energy, zcr, ac_lag1, ...] for one frame.
func FrameFeatures(frame []float64, cfg Config) []float64 {
	n := len(frame)
	out := make([]float64, 0, cfg.FrameFeatureDims())
	if n == 0 {
		return append(out, make([]float64, cfg.FrameFeatureDims())...)
	}

	energy := floats.Dot(frame, frame) / float64(n)

	crossings := 0
	for i := 0; i < n-1; i++ {
		a, b := frame[i], frame[i+1]
		if (a >= 0 && b < 0) || (a < 0 && b >= 0) {
			crossings++
		}
	}
	denom := n - 1
	if denom < 1 {
		denom = 1
	}
	zcr := float64(crossings) / float64(denom)

	out = append(out, energy, zcr)
	for _, lag := range cfg.autocorrLags {
		if lag >= n {
			out = append(out, 0.0)
			continue
		}
		corr := floats.Dot(frame[:n-lag], frame[lag:])
		out = append(out, corr/float64(n-lag))
	}
	return out
}

// Aggregate pools per-frame features into an L2-normalised vector of
// means followed by population standard deviations. A zero vector is
// returned unchanged.
func Aggregate(features [][]float64, cfg Config) ([]float64, error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("%w: no frames to aggregate", ErrEmptyAudio)
	}

	dims := cfg.FrameFeatureDims()
	column := make([]float64, len(features))
	vector := make([]float64, 2*dims)
	for d := 0; d < dims; d++ {
		for i, row := range features {
			if d < len(row) {
				column[i] = row[d]
			} else {
				column[i] = 0
			}
		}
		mean, std := stat.PopMeanStdDev(column, nil)
		vector[d] = mean
		vector[dims+d] = std
	}

	NormaliseVectorInPlace(vector)
	return vector, nil
}

// NormaliseVectorInPlace scales v to unit L2 norm unless it is all zero.
func NormaliseVectorInPlace(v []float64) {
	norm := floats.Norm(v, 2)
	if norm == 0 {
		return
	}
	floats.Scale(1/norm, v)
}

// ExtractFeatures runs the framing and aggregation stages over samples that
// are already at the target rate and peak-normalised.
func ExtractFeatures(samples []float64, cfg Config) (Fingerprint, error) {
	if len(samples) == 0 {
		return Fingerprint{}, ErrEmptyAudio
	}

	frames := Frame(samples, cfg)
	rows := make([][]float64, len(frames))
	for i, f := range frames {
		rows[i] = FrameFeatures(f, cfg)
	}

	vector, err := Aggregate(rows, cfg)
	if err != nil {
		return Fingerprint{}, err
	}

	return Fingerprint{
		Vector:     vector,
		DurationS:  float64(len(samples)) / float64(cfg.TargetSampleRate),
		SampleRate: cfg.TargetSampleRate,
	}, nil
}

// FingerprintBuffer prepares a decoded buffer and extracts its fingerprint.
func FingerprintBuffer(buf Buffer, cfg Config) (Fingerprint, error) {
	samples, err := Prepare(buf, cfg)
	if err != nil {
		return Fingerprint{}, err
	}
	return ExtractFeatures(samples, cfg)
}
