package transcription

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type pipelineRequest struct {
	model    string
	format   string
	language string
	auth     string
}

func newPipelineServer(t *testing.T, got *pipelineRequest, status int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/audio/transcriptions", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("failed to parse multipart form: %v", err)
		}
		got.model = r.FormValue("model")
		got.format = r.FormValue("response_format")
		got.language = r.FormValue("language")
		got.auth = r.Header.Get("Authorization")

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			w.Write([]byte(`{"error":{"message":"model overloaded","type":"server_error"}}`))
			return
		}

		resp := map[string]any{"text": " Hello there. General Kenobi. "}
		if got.format == "verbose_json" {
			resp["language"] = "english"
			resp["segments"] = []map[string]any{
				{"id": 0, "start": 0.0, "end": 1.5, "text": " Hello there."},
				{"id": 1, "start": 1.5, "end": 3.25, "text": " General Kenobi."},
			}
		}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[{"id":"whisper-1","object":"model"}]}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.wav")
	if err := os.WriteFile(path, []byte("RIFF"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPipelineTranscribe(t *testing.T) {
	var got pipelineRequest
	srv := newPipelineServer(t, &got, http.StatusOK)

	p := NewPipeline(PipelineConfig{BaseURL: srv.URL + "/v1/", APIKey: "secret"})
	transcript, err := p.Transcribe(context.Background(), writeAudio(t), Options{Language: "en"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if got.model != "whisper-1" {
		t.Errorf("expected default model whisper-1, got %q", got.model)
	}
	if got.format != "json" {
		t.Errorf("expected json format, got %q", got.format)
	}
	if got.language != "en" {
		t.Errorf("expected language en, got %q", got.language)
	}
	if got.auth != "Bearer secret" {
		t.Errorf("unexpected authorization header %q", got.auth)
	}

	if transcript.Text != "Hello there. General Kenobi." {
		t.Errorf("unexpected text %q", transcript.Text)
	}
	if transcript.HasSegments() {
		t.Error("expected no segments without timestamps")
	}
	if transcript.Engine != "pipeline" || transcript.Language != "en" {
		t.Errorf("unexpected engine/language %q/%q", transcript.Engine, transcript.Language)
	}
}

func TestPipelineTranscribeSegments(t *testing.T) {
	var got pipelineRequest
	srv := newPipelineServer(t, &got, http.StatusOK)

	p := NewPipeline(PipelineConfig{BaseURL: srv.URL + "/v1", Model: "large-v3"})
	transcript, err := p.Transcribe(context.Background(), writeAudio(t), Options{Timestamps: true})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if got.model != "large-v3" || got.format != "verbose_json" {
		t.Errorf("unexpected request model=%q format=%q", got.model, got.format)
	}
	if len(transcript.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(transcript.Segments))
	}
	seg := transcript.Segments[1]
	if seg.Start != 1500*time.Millisecond || seg.End != 3250*time.Millisecond || seg.Text != "General Kenobi." {
		t.Errorf("unexpected segment %+v", seg)
	}
	if transcript.Language != "english" {
		t.Errorf("expected detected language, got %q", transcript.Language)
	}
}

func TestPipelineTranscribeError(t *testing.T) {
	var got pipelineRequest
	srv := newPipelineServer(t, &got, http.StatusInternalServerError)

	p := NewPipeline(PipelineConfig{BaseURL: srv.URL + "/v1"})
	_, err := p.Transcribe(context.Background(), writeAudio(t), Options{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "pipeline") {
		t.Errorf("expected pipeline error, got %v", err)
	}
}

func TestPipelineHealthCheck(t *testing.T) {
	var got pipelineRequest
	srv := newPipelineServer(t, &got, http.StatusOK)

	if err := NewPipeline(PipelineConfig{BaseURL: srv.URL + "/v1"}).HealthCheck(context.Background()); err != nil {
		t.Errorf("expected healthy endpoint, got %v", err)
	}

	srv.Close()
	if err := NewPipeline(PipelineConfig{BaseURL: srv.URL + "/v1"}).HealthCheck(context.Background()); err == nil {
		t.Error("expected error for unreachable endpoint")
	}
}
