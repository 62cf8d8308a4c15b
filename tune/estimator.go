package tune

import (
	"context"
	"fmt"
)

// Clip is everything an estimator may look at for one recording.
type Clip struct {
	// Raw holds the original container bytes. It may be nil when the clip
	// was built from samples.
	Raw []byte
	// Native is the decoded buffer at its own rate, peak-normalised.
	Native Buffer
	// Samples is the target-rate, peak-normalised signal.
	Samples []float64
}

// TempoEstimator produces an optional BPM. Available is the capability
// probe; callers never invoke EstimateTempo on an unavailable estimator.
type TempoEstimator interface {
	Name() string
	Available() bool
	EstimateTempo(ctx context.Context, clip *Clip) (int, bool)
}

// KeyEstimator produces an optional canonical key label.
type KeyEstimator interface {
	Name() string
	Available() bool
	EstimateKey(ctx context.Context, clip *Clip) (string, bool)
}

type simpleTempo struct{ cfg Config }

// NewSimpleTempoEstimator returns the onset autocorrelation estimator. It
// is always available.
func NewSimpleTempoEstimator(cfg Config) TempoEstimator { return simpleTempo{cfg: cfg} }

func (simpleTempo) Name() string    { return "onset-autocorrelation" }
func (simpleTempo) Available() bool { return true }
func (e simpleTempo) EstimateTempo(_ context.Context, clip *Clip) (int, bool) {
	return EstimateTempo(clip.Samples, e.cfg)
}

type waveletTempo struct{ cfg Config }

// NewWaveletTempoEstimator returns the DWT estimator, or an unavailable
// placeholder when cfg.EnableWavelet is false.
func NewWaveletTempoEstimator(cfg Config) TempoEstimator {
	if !cfg.EnableWavelet {
		return Unavailable("wavelet", "disabled by configuration")
	}
	return waveletTempo{cfg: cfg}
}

func (waveletTempo) Name() string    { return "wavelet" }
func (waveletTempo) Available() bool { return true }
func (e waveletTempo) EstimateTempo(_ context.Context, clip *Clip) (int, bool) {
	return EstimateTempoWavelet(clip.Native, e.cfg)
}

type autocorrKey struct{ cfg Config }

// NewAutocorrKeyEstimator returns the pitch-histogram estimator. It is
// always available.
func NewAutocorrKeyEstimator(cfg Config) KeyEstimator { return autocorrKey{cfg: cfg} }

func (autocorrKey) Name() string    { return "autocorrelation" }
func (autocorrKey) Available() bool { return true }
func (e autocorrKey) EstimateKey(_ context.Context, clip *Clip) (string, bool) {
	return EstimateKey(clip.Samples, e.cfg)
}

type chromaKey struct{ cfg Config }

// NewChromaKeyEstimator returns the FFT chroma estimator.
func NewChromaKeyEstimator(cfg Config) KeyEstimator { return chromaKey{cfg: cfg} }

func (chromaKey) Name() string    { return "chroma" }
func (chromaKey) Available() bool { return true }
func (e chromaKey) EstimateKey(_ context.Context, clip *Clip) (string, bool) {
	return EstimateKeyChroma(clip.Native, e.cfg)
}

// UnavailableEstimator stands in for a capability that failed its probe.
type UnavailableEstimator struct {
	name   string
	Reason string
}

// Unavailable builds a placeholder that satisfies both estimator
// interfaces and never answers.
func Unavailable(name, reason string) *UnavailableEstimator {
	return &UnavailableEstimator{name: name, Reason: reason}
}

func (u *UnavailableEstimator) Name() string    { return u.name }
func (u *UnavailableEstimator) Available() bool { return false }
func (u *UnavailableEstimator) EstimateTempo(context.Context, *Clip) (int, bool) {
	return 0, false
}
func (u *UnavailableEstimator) EstimateKey(context.Context, *Clip) (string, bool) {
	return "", false
}
func (u *UnavailableEstimator) String() string {
	return fmt.Sprintf("%s unavailable: %s", u.name, u.Reason)
}

// TempoChain asks each available estimator in order and returns the first
// answer. The simple estimator is always appended last.
type TempoChain struct {
	estimators []TempoEstimator
}

func NewTempoChain(cfg Config, preferred ...TempoEstimator) *TempoChain {
	chain := append([]TempoEstimator(nil), preferred...)
	chain = append(chain, NewSimpleTempoEstimator(cfg))
	return &TempoChain{estimators: chain}
}

func (c *TempoChain) Estimators() []TempoEstimator { return c.estimators }

// Estimate returns the BPM and the name of the estimator that produced it.
func (c *TempoChain) Estimate(ctx context.Context, clip *Clip) (int, string, bool) {
	for _, e := range c.estimators {
		if !e.Available() {
			continue
		}
		if bpm, ok := e.EstimateTempo(ctx, clip); ok {
			return bpm, e.Name(), true
		}
	}
	return 0, "", false
}

// KeyChain mirrors TempoChain for key estimators. The autocorrelation
// estimator is always appended last.
type KeyChain struct {
	estimators []KeyEstimator
}

func NewKeyChain(cfg Config, preferred ...KeyEstimator) *KeyChain {
	chain := append([]KeyEstimator(nil), preferred...)
	chain = append(chain, NewAutocorrKeyEstimator(cfg))
	return &KeyChain{estimators: chain}
}

func (c *KeyChain) Estimators() []KeyEstimator { return c.estimators }

func (c *KeyChain) Estimate(ctx context.Context, clip *Clip) (string, string, bool) {
	for _, e := range c.estimators {
		if !e.Available() {
			continue
		}
		if key, ok := e.EstimateKey(ctx, clip); ok && IsCanonicalKey(key) {
			return key, e.Name(), true
		}
	}
	return "", "", false
}
