package transcription

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/captioner/middleware"
	"github.com/nijaru/captioner/utils"
)

var execCommand = exec.CommandContext

const maxOutputInError = 512

type WhisperCPPConfig struct {
	BinaryPath string
	ModelPath  string
	Threads    int
}

// WhisperCPP shells out to the whisper.cpp CLI. Output files are written next
// to the input audio, so concurrent requests never share a result path.
type WhisperCPP struct {
	cfg WhisperCPPConfig
}

func NewWhisperCPP(cfg WhisperCPPConfig) *WhisperCPP {
	return &WhisperCPP{cfg: cfg}
}

func (w *WhisperCPP) Name() string {
	return "whispercpp"
}

// whisperCPPOutput is the subset of whisper.cpp's -oj output we read.
type whisperCPPOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func (w *WhisperCPP) Transcribe(ctx context.Context, audioPath string, opts Options) (*Transcript, error) {
	logger := middleware.GetLogger(ctx).WithFields(logrus.Fields{
		"engine": w.Name(),
		"model":  w.model(),
		"audio":  audioPath,
	})

	prefix := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))
	args := w.buildArgs(audioPath, prefix, opts)

	start := time.Now()
	cmd := execCommand(ctx, w.cfg.BinaryPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "whisper.cpp")
		}
		logger.WithFields(logrus.Fields{
			"error":  err,
			"output": utils.Tail(output, maxOutputInError),
		}).Error("whisper.cpp failed")
		return nil, errors.Errorf("whisper.cpp: %v: %s", err, utils.Tail(output, maxOutputInError))
	}
	logger.WithField("duration", time.Since(start)).Info("whisper.cpp finished")

	transcript := &Transcript{
		Language: opts.Language,
		Engine:   w.Name(),
		Model:    w.model(),
	}

	if opts.Timestamps {
		if err := w.readJSON(logger, prefix+".json", transcript); err != nil {
			return nil, err
		}
	} else {
		text, err := readOutputFile(logger, prefix+".txt")
		if err != nil {
			return nil, err
		}
		transcript.Text = strings.TrimSpace(text)
	}

	if transcript.PlainText() == "" {
		return nil, errors.New("whisper.cpp: transcription produced no text")
	}
	return transcript, nil
}

func (w *WhisperCPP) buildArgs(audioPath, prefix string, opts Options) []string {
	args := []string{
		"-m", w.cfg.ModelPath,
		"-f", audioPath,
		"-of", prefix,
	}

	if opts.Timestamps {
		args = append(args, "-oj")
	} else {
		args = append(args, "-otxt")
	}

	if w.cfg.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(w.cfg.Threads))
	}

	if opts.Language != "" {
		args = append(args, "-l", opts.Language)
	}

	return args
}

func (w *WhisperCPP) readJSON(logger *logrus.Entry, path string, transcript *Transcript) error {
	data, err := readOutputFile(logger, path)
	if err != nil {
		return err
	}

	var out whisperCPPOutput
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return errors.Wrap(err, "whisper.cpp: parse json output")
	}

	if out.Result.Language != "" {
		transcript.Language = out.Result.Language
	}

	texts := make([]string, 0, len(out.Transcription))
	for _, item := range out.Transcription {
		text := strings.TrimSpace(item.Text)
		if text == "" {
			continue
		}
		transcript.Segments = append(transcript.Segments, Segment{
			Start: time.Duration(item.Offsets.From) * time.Millisecond,
			End:   time.Duration(item.Offsets.To) * time.Millisecond,
			Text:  text,
		})
		texts = append(texts, text)
	}
	transcript.Text = strings.Join(texts, " ")
	return nil
}

// readOutputFile reads and removes a whisper.cpp result file.
func readOutputFile(logger *logrus.Entry, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.Errorf("whisper.cpp: output file %s was not written", filepath.Base(path))
		}
		return "", errors.Wrap(err, "whisper.cpp: read output")
	}

	if err := os.Remove(path); err != nil {
		logger.WithError(err).WithField("filename", path).Warn("Failed to remove whisper.cpp output")
	}
	return string(data), nil
}

// HealthCheck verifies the binary is executable and the model file exists.
func (w *WhisperCPP) HealthCheck(ctx context.Context) error {
	info, err := os.Stat(w.cfg.BinaryPath)
	if err != nil {
		return errors.Wrapf(err, "whisper binary not found at %q", w.cfg.BinaryPath)
	}
	if info.Mode()&0111 == 0 {
		return errors.Errorf("whisper binary at %q is not executable", w.cfg.BinaryPath)
	}

	if _, err := os.Stat(w.cfg.ModelPath); err != nil {
		return errors.Wrapf(err, "whisper model not found at %q", w.cfg.ModelPath)
	}
	return nil
}

// model derives a short name from the model file, e.g. ggml-tiny.bin -> tiny.
func (w *WhisperCPP) model() string {
	name := filepath.Base(w.cfg.ModelPath)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return strings.TrimPrefix(name, "ggml-")
}
