package tune

import (
	"context"
	"fmt"
)

// SampleSource turns container bytes into a mono buffer at native rate.
type SampleSource interface {
	Decode(ctx context.Context, data []byte) (Buffer, error)
}

// Analysis is the full result for one clip. BPM and Key are nil when no
// estimator produced an answer.
type Analysis struct {
	Fingerprint
	BPM         *int    `json:"bpm"`
	Key         *string `json:"key"`
	TempoSource string  `json:"tempo_source,omitempty"`
	KeySource   string  `json:"key_source,omitempty"`
}

// Analyzer wires a sample source to the fingerprint pipeline and the
// estimator chains. It holds no per-call state and is safe for concurrent
// use.
type Analyzer struct {
	cfg    Config
	source SampleSource
	tempo  *TempoChain
	key    *KeyChain
}

type AnalyzerOption func(*Analyzer)

// WithTempoEstimators sets the preferred tempo estimators, tried before
// the simple fallback.
func WithTempoEstimators(estimators ...TempoEstimator) AnalyzerOption {
	return func(a *Analyzer) { a.tempo = NewTempoChain(a.cfg, estimators...) }
}

// WithKeyEstimators sets the preferred key estimators, tried before the
// autocorrelation fallback.
func WithKeyEstimators(estimators ...KeyEstimator) AnalyzerOption {
	return func(a *Analyzer) { a.key = NewKeyChain(a.cfg, estimators...) }
}

// NewAnalyzer defaults to wavelet-then-simple tempo and the autocorrelation
// key estimator.
func NewAnalyzer(cfg Config, source SampleSource, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{cfg: cfg, source: source}
	a.tempo = NewTempoChain(cfg, NewWaveletTempoEstimator(cfg))
	a.key = NewKeyChain(cfg)
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Analyzer) Config() Config          { return a.cfg }
func (a *Analyzer) TempoChain() *TempoChain { return a.tempo }
func (a *Analyzer) KeyChain() *KeyChain     { return a.key }

func (a *Analyzer) decode(ctx context.Context, data []byte) (Buffer, error) {
	if len(data) == 0 {
		return Buffer{}, ErrEmptyAudio
	}
	if a.source == nil {
		return Buffer{}, fmt.Errorf("%w: no sample source configured", ErrUnsupportedFormat)
	}
	buf, err := a.source.Decode(ctx, data)
	if err != nil {
		return Buffer{}, err
	}
	if len(buf.Samples) == 0 {
		return Buffer{}, ErrEmptyAudio
	}
	return buf, nil
}

// Fingerprint decodes data and returns its feature vector only.
func (a *Analyzer) Fingerprint(ctx context.Context, data []byte) (Fingerprint, error) {
	buf, err := a.decode(ctx, data)
	if err != nil {
		return Fingerprint{}, err
	}
	return FingerprintBuffer(buf, a.cfg)
}

// Analyze decodes data and returns the fingerprint with optional tempo and
// key estimates.
func (a *Analyzer) Analyze(ctx context.Context, data []byte) (Analysis, error) {
	buf, err := a.decode(ctx, data)
	if err != nil {
		return Analysis{}, err
	}
	return a.AnalyzeBuffer(ctx, buf, data)
}

// AnalyzeBuffer runs the pipeline over an already decoded buffer. raw may
// be nil; only estimators that shell out to external tools need it.
func (a *Analyzer) AnalyzeBuffer(ctx context.Context, buf Buffer, raw []byte) (Analysis, error) {
	samples, err := Prepare(buf, a.cfg)
	if err != nil {
		return Analysis{}, err
	}
	fp, err := ExtractFeatures(samples, a.cfg)
	if err != nil {
		return Analysis{}, err
	}

	native, err := Normalize(buf.Samples)
	if err != nil {
		return Analysis{}, err
	}
	clip := &Clip{
		Raw:     raw,
		Native:  Buffer{Samples: native, SampleRate: buf.SampleRate},
		Samples: samples,
	}

	result := Analysis{Fingerprint: fp}
	if bpm, source, ok := a.tempo.Estimate(ctx, clip); ok {
		result.BPM = &bpm
		result.TempoSource = source
	}
	if key, source, ok := a.key.Estimate(ctx, clip); ok {
		result.Key = &key
		result.KeySource = source
	}
	return result, nil
}
