package handlers

import (
	"context"
	stderrors "errors"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/captioner/errors"
	"github.com/nijaru/captioner/middleware"
	"github.com/nijaru/captioner/transcription"
	"github.com/nijaru/captioner/utils"
	"github.com/nijaru/captioner/validation"
)

const (
	DefaultFont         = "Arial"
	DefaultTextColor    = "#ffffff"
	DefaultOutlineColor = "#000000"
	DefaultWordsPerLine = 4

	// multipart parts beyond this are spooled to disk by net/http
	maxMemory = 32 << 20

	// time left to write the response once the transcription budget is spent
	writeMargin = time.Minute
)

// Transcriber is the pipeline the handlers drive.
type Transcriber interface {
	ProcessVideo(ctx context.Context, video io.Reader, filename string) (*transcription.Transcript, error)
	HealthCheck(ctx context.Context) []transcription.HealthStatus
	EngineName() string
}

// Styling is echoed back to the caller for the caption renderer.
type Styling struct {
	Font         string
	TextColor    string
	OutlineColor string
	WordsPerLine int
}

type SubtitleSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type Response struct {
	Message      string            `json:"message"`
	Transcript   string            `json:"transcript,omitempty"`
	Subtitles    []SubtitleSegment `json:"subtitles,omitempty"`
	Font         string            `json:"font"`
	TextColor    string            `json:"textColor"`
	OutlineColor string            `json:"outlineColor"`
	WordsPerLine int               `json:"wordsPerLine"`
}

// HandlerConfig sizes /generate requests. Zero timeouts leave the server's
// connection deadlines in place.
type HandlerConfig struct {
	MaxUploadSize  int64
	UploadTimeout  time.Duration
	ProcessTimeout time.Duration
}

type Handler struct {
	service   Transcriber
	validator *validation.Validator
	config    HandlerConfig
}

func NewHandler(service Transcriber, cfg HandlerConfig) *Handler {
	return &Handler{
		service:   service,
		validator: validation.New(cfg.MaxUploadSize),
		config:    cfg,
	}
}

// Generate handles POST /generate.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	const op = "Handler.Generate"
	logger := middleware.GetLogger(r.Context())

	h.extendDeadlines(w, logger)

	if h.config.MaxUploadSize > 0 {
		// headroom for the other form fields and multipart framing
		r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadSize+1<<20)
	}

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		utils.RespondWithError(w, formError(op, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	var header *multipart.FileHeader
	if files := r.MultipartForm.File["video"]; len(files) > 0 {
		header = files[0]
	}
	if err := h.validator.ValidateUpload(header); err != nil {
		logger.WithError(err).Warn("Rejected upload")
		utils.RespondWithError(w, err)
		return
	}

	styling, err := parseStyling(r)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	file, err := header.Open()
	if err != nil {
		utils.RespondWithError(w, errors.Internal(op, err, "failed to read uploaded video"))
		return
	}
	defer file.Close()

	logger.WithFields(logrus.Fields{
		"filename": header.Filename,
		"size":     header.Size,
	}).Info("Processing video")

	transcript, err := h.service.ProcessVideo(r.Context(), file, header.Filename)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, NewResponse(transcript, styling))
}

// extendDeadlines replaces the server-wide ReadTimeout and WriteTimeout for
// this request: uploads get UploadTimeout, and the response may be written
// until the upload and transcription budgets have both run out.
func (h *Handler) extendDeadlines(w http.ResponseWriter, logger *logrus.Entry) {
	rc := http.NewResponseController(w)
	now := time.Now()

	if h.config.UploadTimeout > 0 {
		if err := rc.SetReadDeadline(now.Add(h.config.UploadTimeout)); err != nil && !stderrors.Is(err, http.ErrNotSupported) {
			logger.WithError(err).Warn("Failed to set upload read deadline")
		}
	}

	if h.config.UploadTimeout > 0 && h.config.ProcessTimeout > 0 {
		deadline := now.Add(h.config.UploadTimeout + h.config.ProcessTimeout + writeMargin)
		if err := rc.SetWriteDeadline(deadline); err != nil && !stderrors.Is(err, http.ErrNotSupported) {
			logger.WithError(err).Warn("Failed to set response write deadline")
		}
	}
}

func formError(op string, err error) error {
	var maxErr *http.MaxBytesError
	if stderrors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
		return errors.TooLarge(op, err, "request body too large")
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.RequestTimeout(op, err, "upload did not complete in time")
	}

	return errors.InvalidInput(op, err, "invalid multipart form")
}

func parseStyling(r *http.Request) (Styling, error) {
	wordsPerLine, err := validation.ParseWordsPerLine(r.FormValue("wordsPerLine"), DefaultWordsPerLine)
	if err != nil {
		return Styling{}, err
	}

	return Styling{
		Font:         formValue(r, "font", DefaultFont),
		TextColor:    formValue(r, "textColor", DefaultTextColor),
		OutlineColor: formValue(r, "outlineColor", DefaultOutlineColor),
		WordsPerLine: wordsPerLine,
	}, nil
}

func formValue(r *http.Request, key, def string) string {
	if v := r.FormValue(key); v != "" {
		return v
	}
	return def
}

// NewResponse builds the /generate body, choosing subtitles over plain text
// when the transcript is timed.
func NewResponse(transcript *transcription.Transcript, styling Styling) Response {
	resp := Response{
		Message:      "Success",
		Font:         styling.Font,
		TextColor:    styling.TextColor,
		OutlineColor: styling.OutlineColor,
		WordsPerLine: styling.WordsPerLine,
	}

	if !transcript.HasSegments() {
		resp.Transcript = transcript.PlainText()
		return resp
	}

	resp.Subtitles = make([]SubtitleSegment, 0, len(transcript.Segments))
	for _, seg := range transcript.Segments {
		resp.Subtitles = append(resp.Subtitles, SubtitleSegment{
			Start: seg.Start.Seconds(),
			End:   seg.End.Seconds(),
			Text:  seg.Text,
		})
	}
	return resp
}

type HealthResponse struct {
	Status  string                       `json:"status"`
	Engine  string                       `json:"engine"`
	Version string                       `json:"version"`
	Uptime  string                       `json:"uptime"`
	Checks  []transcription.HealthStatus `json:"checks"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request, version string, started time.Time) {
	checks := h.service.HealthCheck(r.Context())

	resp := HealthResponse{
		Status:  "ok",
		Engine:  h.service.EngineName(),
		Version: version,
		Uptime:  time.Since(started).Round(time.Second).String(),
		Checks:  checks,
	}

	status := http.StatusOK
	for _, c := range checks {
		if !c.OK {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}

	if status != http.StatusOK {
		middleware.GetLogger(r.Context()).WithField("checks", checks).Warn("Health check failed")
	}
	utils.RespondWithJSON(w, status, resp)
}
