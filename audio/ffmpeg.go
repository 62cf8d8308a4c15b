package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"tunefind/tune"
	"tunefind/utils"
)

const (
	ffmpegTimeout      = 60 * time.Second
	ffmpegFallbackRate = 44100
)

// CheckFFmpegAvailable returns an error when ffmpeg is not on PATH.
func CheckFFmpegAvailable() error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	return nil
}

// FFmpegDecoder shells out to ffmpeg for containers the pure-Go decoders do
// not handle. The native rate is read with ffprobe when it is installed.
type FFmpegDecoder struct {
	ffmpeg  string
	ffprobe string
	tmpDir  string
}

func NewFFmpegDecoder() *FFmpegDecoder {
	d := &FFmpegDecoder{tmpDir: utils.GetEnv("TUNEFIND_TMP_DIR", "tmp")}
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		d.ffmpeg = path
	}
	if path, err := exec.LookPath("ffprobe"); err == nil {
		d.ffprobe = path
	}
	return d
}

func (*FFmpegDecoder) Name() string { return "ffmpeg" }

func (d *FFmpegDecoder) Available() bool { return d.ffmpeg != "" }

func (d *FFmpegDecoder) Decode(ctx context.Context, data []byte) (tune.Buffer, error) {
	if d.ffmpeg == "" {
		return tune.Buffer{}, unsupported("ffmpeg is not installed or not on PATH")
	}

	ctx, cancel := context.WithTimeout(ctx, ffmpegTimeout)
	defer cancel()

	if err := utils.CreateFolder(d.tmpDir); err != nil {
		return tune.Buffer{}, fmt.Errorf("unable to create tmp folder: %w", err)
	}
	tmp, err := os.CreateTemp(d.tmpDir, "decode-*"+GuessExtension(data))
	if err != nil {
		return tune.Buffer{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return tune.Buffer{}, fmt.Errorf("failed to write temp file: %w", err)
	}
	tmp.Close()

	rate := d.probeSampleRate(ctx, tmp.Name())

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.ffmpeg,
		"-hide_banner", "-loglevel", "error",
		"-i", tmp.Name(),
		"-vn", "-ac", "1", "-ar", strconv.Itoa(rate),
		"-f", "s16le", "-acodec", "pcm_s16le",
		"pipe:1",
	)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return tune.Buffer{}, unsupported("ffmpeg could not decode input: %s", msg)
	}

	pcm := stdout.Bytes()
	ints := make([]int, len(pcm)/2)
	for i := range ints {
		ints[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	if len(ints) == 0 {
		return tune.Buffer{}, fmt.Errorf("ffmpeg: %w", tune.ErrEmptyAudio)
	}
	return tune.Buffer{Samples: downmix(ints, 1, pcm16FullScale), SampleRate: rate}, nil
}

func (d *FFmpegDecoder) probeSampleRate(ctx context.Context, path string) int {
	if d.ffprobe == "" {
		return ffmpegFallbackRate
	}
	out, err := exec.CommandContext(ctx, d.ffprobe,
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=sample_rate",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return ffmpegFallbackRate
	}
	rate, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil || rate <= 0 {
		return ffmpegFallbackRate
	}
	return rate
}
