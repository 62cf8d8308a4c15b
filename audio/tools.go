package audio

import (
	"os/exec"
	"runtime"
	"strings"

	"tunefind/tune"
)

// Diagnostics reports which external tools the decoding and key paths can
// use on this host.
type Diagnostics struct {
	Status            string  `json:"status"`
	GoVersion         string  `json:"go"`
	Platform          string  `json:"platform"`
	FFmpeg            *string `json:"ffmpeg"`
	FFprobe           *string `json:"ffprobe"`
	Keyfinder         *string `json:"keyfinder"`
	KeyfinderRequired bool    `json:"keyfinder_required"`
	DependenciesReady bool    `json:"dependencies_ready"`
	KeyMethod         string  `json:"key_method"`
}

func lookPath(name string) *string {
	path, err := exec.LookPath(name)
	if err != nil {
		return nil
	}
	return &path
}

// Diagnose probes ffmpeg, ffprobe and keyfinder-cli.
func Diagnose(root, keyMethod string) Diagnostics {
	diag := Diagnostics{
		Status:            "ok",
		GoVersion:         runtime.Version(),
		Platform:          runtime.GOOS + "/" + runtime.GOARCH,
		FFmpeg:            lookPath("ffmpeg"),
		FFprobe:           lookPath("ffprobe"),
		KeyfinderRequired: strings.EqualFold(keyMethod, "keyfinder"),
		KeyMethod:         keyMethod,
	}
	if path := FindKeyfinderCLI(root); path != "" {
		diag.Keyfinder = &path
	}
	diag.DependenciesReady = diag.FFmpeg != nil && (diag.Keyfinder != nil || !diag.KeyfinderRequired)
	return diag
}

// KeyEstimators returns the preferred key estimators for a method name:
// "keyfinder", "chroma", "autocorr" or "auto" (keyfinder when installed).
// The autocorrelation fallback is added by tune.NewKeyChain.
func KeyEstimators(method string, cfg tune.Config, root string) []tune.KeyEstimator {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case "autocorr", "autocorrelation":
		return nil
	case "chroma":
		return []tune.KeyEstimator{tune.NewChromaKeyEstimator(cfg)}
	case "keyfinder":
		return []tune.KeyEstimator{NewKeyfinderEstimator(root), tune.NewChromaKeyEstimator(cfg)}
	default:
		return []tune.KeyEstimator{NewKeyfinderEstimator(root)}
	}
}
