package tune

// Wavelet Tempo Estimation
//
// The wavelet estimator works on peak-normalised samples at their native
// rate, split into fixed windows (3 s by default). For each window:
//
// 1. A 4-level Daubechies-4 DWT splits the window into detail bands and
//    one approximation band.
// 2. Each detail band is decimated to the rate of the coarsest band,
//    rectified, mean-removed and summed into one envelope; the rectified,
//    mean-removed approximation band is added last.
// 3. The envelope is autocorrelated (via FFT) and the strongest lag in the
//    range matching 220 to 40 BPM gives the window tempo.
//
// The clip tempo is the median window tempo, octave-normalised into the
// same range as the simple estimator.

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// Daubechies-4 analysis filters (8 taps).
var (
	db4Lo = []float64{
		-0.010597401784997278, 0.032883011666982945, 0.030841381835986965, -0.18703481171888114,
		-0.02798376941698385, 0.6308807679295904, 0.7148465705525415, 0.23037781330885523,
	}
	db4Hi = []float64{
		-0.23037781330885523, 0.7148465705525415, -0.6308807679295904, -0.02798376941698385,
		0.18703481171888114, 0.030841381835986965, -0.032883011666982945, -0.010597401784997278,
	}
)

// dwt performs one analysis step with half-sample symmetric extension.
// Both outputs have length floor((n+7)/2).
func dwt(x []float64) (approx, detail []float64) {
	n := len(x)
	if n == 0 {
		return nil, nil
	}
	taps := len(db4Lo)
	outLen := (n + taps - 1) / 2
	approx = make([]float64, outLen)
	detail = make([]float64, outLen)

	at := func(i int) float64 {
		// symmetric extension, repeated for signals shorter than the filter
		for i < 0 || i >= n {
			if i < 0 {
				i = -i - 1
			}
			if i >= n {
				i = 2*n - i - 1
			}
		}
		return x[i]
	}

	for k := 0; k < outLen; k++ {
		var lo, hi float64
		for j := 0; j < taps; j++ {
			v := at(2*k + 1 - j)
			lo += db4Lo[j] * v
			hi += db4Hi[j] * v
		}
		approx[k] = lo
		detail[k] = hi
	}
	return approx, detail
}

func rectifyCentre(x []float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	mean := 0.0
	for i, v := range x {
		out[i] = math.Abs(v)
		mean += out[i]
	}
	mean /= float64(len(x))
	for i := range out {
		out[i] -= mean
	}
	return out
}

// autocorrelate returns r[k] = sum_i x[i]*x[i+k] for k in [0, len(x)).
func autocorrelate(x []float64) []float64 {
	n := len(x)
	if n == 0 {
		return nil
	}
	size := 1
	for size < 2*n {
		size <<= 1
	}
	padded := make([]float64, size)
	copy(padded, x)

	spectrum := fft.FFTReal(padded)
	for i, c := range spectrum {
		spectrum[i] = c * cmplx.Conj(c)
	}
	inverse := fft.IFFT(spectrum)

	out := make([]float64, n)
	for k := 0; k < n; k++ {
		out[k] = real(inverse[k])
	}
	return out
}

// peakIndex returns the first index holding the largest absolute value,
// preferring a positive peak over a negative one of equal magnitude.
func peakIndex(values []float64) (int, bool) {
	maxAbs := 0.0
	for _, v := range values {
		if a := math.Abs(v); a > maxAbs {
			maxAbs = a
		}
	}
	if maxAbs <= 0 {
		return 0, false
	}
	for i, v := range values {
		if v == maxAbs {
			return i, true
		}
	}
	for i, v := range values {
		if v == -maxAbs {
			return i, true
		}
	}
	return 0, false
}

func waveletWindowBPM(segment []float64, sampleRate int, cfg Config) (float64, bool) {
	levels := cfg.WaveletLevels
	if levels < 1 {
		return 0, false
	}
	maxDecimation := float64(int(1) << (levels - 1))
	bandRate := float64(sampleRate) / maxDecimation
	minIdx := int(math.Floor(60.0 / cfg.WaveletMaxBPM * bandRate))
	maxIdx := int(math.Floor(60.0 / cfg.WaveletMinBPM * bandRate))
	if maxIdx <= minIdx {
		return 0, false
	}

	var approx, detail, sum []float64
	approx = segment
	for loop := 0; loop < levels; loop++ {
		approx, detail = dwt(approx)
		if loop == 0 {
			sum = make([]float64, int(float64(len(detail))/maxDecimation+1))
		}

		step := 1 << (levels - loop - 1)
		decimated := make([]float64, 0, len(detail)/step+1)
		for i := 0; i < len(detail); i += step {
			decimated = append(decimated, detail[i])
		}
		band := rectifyCentre(decimated)
		for i := 0; i < len(sum) && i < len(band); i++ {
			sum[i] += band[i]
		}
	}

	nonZero := false
	for _, v := range approx {
		if v != 0 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		return 0, false
	}
	band := rectifyCentre(approx)
	for i := 0; i < len(sum) && i < len(band); i++ {
		sum[i] += band[i]
	}

	correl := autocorrelate(sum)
	if minIdx >= len(correl) {
		return 0, false
	}
	if maxIdx > len(correl) {
		maxIdx = len(correl)
	}
	peak, ok := peakIndex(correl[minIdx:maxIdx])
	if !ok {
		return 0, false
	}
	lag := peak + minIdx
	if lag == 0 {
		return 0, false
	}
	return 60.0 / float64(lag) * bandRate, true
}

// EstimateTempoWavelet reports the median window tempo of a native-rate,
// peak-normalised buffer. ok is false when the clip is shorter than one
// window or no window yields a periodicity.
func EstimateTempoWavelet(buf Buffer, cfg Config) (bpm int, ok bool) {
	if len(buf.Samples) == 0 || buf.SampleRate <= 0 {
		return 0, false
	}
	window := int(cfg.WaveletWindowS * float64(buf.SampleRate))
	if window <= 0 || len(buf.Samples) < window {
		return 0, false
	}

	var bpms []float64
	for w := 0; w < len(buf.Samples)/window; w++ {
		segment := buf.Samples[w*window : (w+1)*window]
		if v, found := waveletWindowBPM(segment, buf.SampleRate, cfg); found && v > 0 {
			bpms = append(bpms, v)
		}
	}
	if len(bpms) == 0 {
		return 0, false
	}

	bpm = int(math.RoundToEven(median(bpms)))
	if bpm <= 0 {
		return 0, false
	}
	return NormaliseTempo(bpm, cfg), true
}
