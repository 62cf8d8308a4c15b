package service

import (
	"os"

	"tunefind/audio"
	"tunefind/db"
	"tunefind/tune"
	"tunefind/utils"
)

// Options are the environment driven knobs of a TuneFind instance.
type Options struct {
	DataDir        string
	KeyMethod      string
	EnableWavelet  bool
	EnableFFmpeg   bool
	MaxUploadBytes int64
}

// OptionsFromEnv reads TUNEFIND_* variables. dataDir overrides
// TUNEFIND_DATA_DIR when non-empty.
func OptionsFromEnv(dataDir string) Options {
	if dataDir == "" {
		dataDir = utils.GetEnv("TUNEFIND_DATA_DIR", "data")
	}
	return Options{
		DataDir:        dataDir,
		KeyMethod:      utils.GetEnv("TUNEFIND_KEY_METHOD", "auto"),
		EnableWavelet:  utils.GetEnvBool("TUNEFIND_TEMPO_WAVELET", true),
		EnableFFmpeg:   utils.GetEnvBool("TUNEFIND_FFMPEG", true),
		MaxUploadBytes: int64(utils.GetEnvInt("TUNEFIND_MAX_UPLOAD_MB", 256)) << 20,
	}
}

// NewAnalyzer builds the decode chain and estimator chains for opts.
func NewAnalyzer(opts Options) *tune.Analyzer {
	cfg := tune.DefaultConfig()
	cfg.EnableWavelet = opts.EnableWavelet

	root, err := os.Getwd()
	if err != nil {
		root = "."
	}
	source := audio.NewDefaultChain(opts.EnableFFmpeg)
	return tune.NewAnalyzer(cfg, source,
		tune.WithKeyEstimators(audio.KeyEstimators(opts.KeyMethod, cfg, root)...),
	)
}

// Open connects the catalog selected by DB_TYPE and returns a ready service.
func Open(opts Options) (*TuneFind, error) {
	if err := utils.CreateFolder(opts.DataDir); err != nil {
		return nil, err
	}
	catalog, err := db.NewDBClient(opts.DataDir)
	if err != nil {
		return nil, err
	}
	return New(opts.DataDir, catalog, NewAnalyzer(opts)), nil
}
