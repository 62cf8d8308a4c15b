package audio

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mdobak/go-xerrors"

	"tunefind/tune"
	"tunefind/utils"
)

const keyfinderTimeout = 20 * time.Second

// FindKeyfinderCLI looks for keyfinder-cli in TUNEFIND_KEYFINDER_PATH, the
// project-local .tools directory under root, then PATH. It returns "" when
// none exists.
func FindKeyfinderCLI(root string) string {
	if env := utils.GetEnv("TUNEFIND_KEYFINDER_PATH"); env != "" {
		if _, err := os.Stat(env); err == nil {
			return env
		}
	}
	candidates := []string{
		filepath.Join(root, ".tools", "keyfinder-cli", "bin", "keyfinder-cli"),
		filepath.Join(root, ".tools", "keyfinder-cli", "bin", "keyfinder-cli.exe"),
		filepath.Join(root, ".tools", "keyfinder-cli", "keyfinder-cli"),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	if path, err := exec.LookPath("keyfinder-cli"); err == nil {
		return path
	}
	return ""
}

type keyfinderEstimator struct {
	path   string
	tmpDir string
}

// NewKeyfinderEstimator probes for keyfinder-cli and returns an estimator
// that runs it, or tune.Unavailable when the probe fails.
func NewKeyfinderEstimator(root string) tune.KeyEstimator {
	path := FindKeyfinderCLI(root)
	if path == "" {
		return tune.Unavailable("keyfinder-cli", "binary not found")
	}
	return &keyfinderEstimator{path: path, tmpDir: utils.GetEnv("TUNEFIND_TMP_DIR", "tmp")}
}

func (*keyfinderEstimator) Name() string    { return "keyfinder-cli" }
func (*keyfinderEstimator) Available() bool { return true }

// EstimateKey fails closed: any error, empty output or unrecognised label
// reports no answer so the chain falls through to the next estimator.
func (e *keyfinderEstimator) EstimateKey(ctx context.Context, clip *tune.Clip) (string, bool) {
	if clip == nil || len(clip.Raw) == 0 {
		return "", false
	}
	logger := utils.GetLogger()

	if err := utils.CreateFolder(e.tmpDir); err != nil {
		return "", false
	}
	tmp, err := os.CreateTemp(e.tmpDir, "key-*"+GuessExtension(clip.Raw))
	if err != nil {
		return "", false
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(clip.Raw); err != nil {
		tmp.Close()
		return "", false
	}
	tmp.Close()

	ctx, cancel := context.WithTimeout(ctx, keyfinderTimeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.path, "-n", "standard", tmp.Name())
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		err := xerrors.New(err)
		logger.WarnContext(ctx, "keyfinder-cli failed, falling back",
			slog.Any("error", err),
			slog.String("stderr", strings.TrimSpace(stderr.String())),
		)
		return "", false
	}

	key, ok := tune.CanonicalKey(stdout.String())
	if !ok {
		logger.WarnContext(ctx, "keyfinder-cli returned an unusable key",
			slog.String("output", strings.TrimSpace(stdout.String())),
		)
		return "", false
	}
	return key, true
}
