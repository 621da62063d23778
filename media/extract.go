package media

import (
	"context"
	"os/exec"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/captioner/middleware"
	"github.com/nijaru/captioner/utils"
)

const (
	SampleRate = 16000
	Channels   = 1
)

var execCommand = exec.CommandContext

// maxOutputInError caps how much ffmpeg output ends up in returned errors.
const maxOutputInError = 512

// Extractor converts the audio track of a video into the mono 16 kHz PCM WAV
// the ASR engines expect.
type Extractor struct {
	ffmpegPath string
}

func NewExtractor(ffmpegPath string) *Extractor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Extractor{ffmpegPath: ffmpegPath}
}

func (e *Extractor) Name() string {
	return "ffmpeg"
}

func (e *Extractor) ExtractAudio(ctx context.Context, videoPath, audioPath string) error {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", videoPath,
		"-vn",
		"-ac", strconv.Itoa(Channels),
		"-ar", strconv.Itoa(SampleRate),
		"-c:a", "pcm_s16le",
		audioPath,
	}

	logger := middleware.GetLogger(ctx).WithFields(logrus.Fields{
		"video": videoPath,
		"audio": audioPath,
	})
	logger.Debug("Extracting audio")

	cmd := execCommand(ctx, e.ffmpegPath, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return errors.Wrap(ctx.Err(), "ffmpeg extract")
		}
		logger.WithFields(logrus.Fields{
			"error":  err,
			"output": utils.Tail(output, maxOutputInError),
		}).Error("ffmpeg failed")
		return errors.Errorf("ffmpeg extract: %v: %s", err, utils.Tail(output, maxOutputInError))
	}
	return nil
}

// HealthCheck verifies the ffmpeg binary resolves and runs.
func (e *Extractor) HealthCheck(ctx context.Context) error {
	path, err := exec.LookPath(e.ffmpegPath)
	if err != nil {
		return errors.Wrapf(err, "ffmpeg not found at %q", e.ffmpegPath)
	}

	if output, err := execCommand(ctx, path, "-version").CombinedOutput(); err != nil {
		return errors.Errorf("ffmpeg -version: %v: %s", err, utils.Tail(output, maxOutputInError))
	}
	return nil
}
