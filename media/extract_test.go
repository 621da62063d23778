package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/captioner/middleware"
)

// fakeCommand re-invokes the test binary as a stand-in for ffmpeg.
func fakeCommand(mode string, calls *[][]string) func(context.Context, string, ...string) *exec.Cmd {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		*calls = append(*calls, append([]string{name}, args...))
		cs := append([]string{"-test.run=TestHelperProcess", "--"}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "HELPER_MODE="+mode)
		return cmd
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) > 0 {
		args = args[1:]
	}

	switch os.Getenv("HELPER_MODE") {
	case "fail":
		fmt.Fprintln(os.Stderr, "input.mp4: Invalid data found when processing input")
		os.Exit(1)
	case "noisy":
		fmt.Fprintln(os.Stderr, strings.Repeat("frame=  1 fps=0.0 q=0.0 size=0kB\n", 200))
		fmt.Fprintln(os.Stderr, "Conversion failed!")
		os.Exit(1)
	case "version":
		fmt.Println("ffmpeg version 6.1")
	default:
		out := args[len(args)-1]
		if err := os.WriteFile(out, []byte("RIFF"), 0644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}
	os.Exit(0)
}

func withFakeCommand(t *testing.T, mode string) *[][]string {
	t.Helper()
	var calls [][]string
	orig := execCommand
	execCommand = fakeCommand(mode, &calls)
	t.Cleanup(func() { execCommand = orig })
	return &calls
}

func TestExtractAudio(t *testing.T) {
	calls := withFakeCommand(t, "ok")
	dir := t.TempDir()
	video := filepath.Join(dir, "input.mp4")
	audio := filepath.Join(dir, "audio.wav")

	extractor := NewExtractor("/usr/bin/ffmpeg")
	if err := extractor.ExtractAudio(context.Background(), video, audio); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, err := os.Stat(audio); err != nil {
		t.Errorf("expected audio file to be written: %v", err)
	}

	if len(*calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(*calls))
	}
	got := strings.Join((*calls)[0], " ")
	expected := "/usr/bin/ffmpeg -y -hide_banner -loglevel error -i " + video +
		" -vn -ac 1 -ar 16000 -c:a pcm_s16le " + audio
	if got != expected {
		t.Errorf("unexpected command:\n got %s\nwant %s", got, expected)
	}
}

func TestExtractAudioFailureIncludesOutput(t *testing.T) {
	withFakeCommand(t, "fail")
	dir := t.TempDir()

	err := NewExtractor("").ExtractAudio(context.Background(), filepath.Join(dir, "input.mp4"), filepath.Join(dir, "audio.wav"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Invalid data found when processing input") {
		t.Errorf("expected ffmpeg output in error, got %v", err)
	}
}

func TestExtractAudioCanceled(t *testing.T) {
	withFakeCommand(t, "ok")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dir := t.TempDir()
	err := NewExtractor("").ExtractAudio(ctx, filepath.Join(dir, "input.mp4"), filepath.Join(dir, "audio.wav"))
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
	if !strings.Contains(err.Error(), context.Canceled.Error()) {
		t.Errorf("expected context canceled error, got %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	withFakeCommand(t, "version")

	if err := NewExtractor(os.Args[0]).HealthCheck(context.Background()); err != nil {
		t.Errorf("expected healthy ffmpeg, got %v", err)
	}

	if err := NewExtractor("/nonexistent/ffmpeg").HealthCheck(context.Background()); err == nil {
		t.Error("expected error for missing binary")
	}
}

func TestExtractAudioFailureOutputIsBounded(t *testing.T) {
	withFakeCommand(t, "noisy")

	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	ctx := context.WithValue(context.Background(), middleware.LoggerKey,
		log.WithField("request_id", "req-42"))

	dir := t.TempDir()
	err := NewExtractor("").ExtractAudio(ctx, filepath.Join(dir, "input.mp4"), filepath.Join(dir, "audio.wav"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Conversion failed!") {
		t.Errorf("expected last ffmpeg line in error, got %v", err)
	}
	if len(err.Error()) > maxOutputInError+128 {
		t.Errorf("expected bounded error, got %d bytes", len(err.Error()))
	}
	if !strings.Contains(buf.String(), `"request_id":"req-42"`) {
		t.Errorf("expected failure to be logged with the request id, got %s", buf.String())
	}
}
