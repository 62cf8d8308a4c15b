package tune

import "math"

func sineTone(freq, seconds float64, sampleRate int, amplitude float64) []float64 {
	n := int(float64(sampleRate) * seconds)
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

// clickTrack places a short 1 kHz burst at the start of every beat.
func clickTrack(bpm, seconds float64, sampleRate int) []float64 {
	n := int(float64(sampleRate) * seconds)
	out := make([]float64, n)
	period := int(60.0 / bpm * float64(sampleRate))
	burst := sampleRate / 40
	for start := 0; start < n; start += period {
		for i := 0; i < burst && start+i < n; i++ {
			out[start+i] = 0.8 * math.Sin(2*math.Pi*1000*float64(i)/float64(sampleRate))
		}
	}
	return out
}

func mustFingerprint(t interface {
	Helper()
	Fatalf(string, ...any)
}, samples []float64, sampleRate int, cfg Config) Fingerprint {
	t.Helper()
	fp, err := FingerprintBuffer(Buffer{Samples: samples, SampleRate: sampleRate}, cfg)
	if err != nil {
		t.Fatalf("FingerprintBuffer: %v", err)
	}
	return fp
}
