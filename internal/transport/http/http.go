// Package http implements the HTTP transport for avatarvoice.
//
// This transport exposes the JSON API used by the avatar web client: speech
// synthesis with an optional lip-sync timeline, voice availability reports,
// the viseme vocabulary and the Swagger UI.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/nadzzz/avatarvoice/internal/errs"
	"github.com/nadzzz/avatarvoice/internal/message"
	"github.com/nadzzz/avatarvoice/internal/metrics"
	"github.com/nadzzz/avatarvoice/internal/transport"
)

// Transport implements transport.Transport over HTTP.
type Transport struct {
	port         int
	maxBodyBytes int64
	version      string
	server       *http.Server
}

// New creates a new HTTP transport on the given port.
func New(port int, maxBodyBytes int64, version string) *Transport {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 1 << 20
	}
	return &Transport{port: port, maxBodyBytes: maxBodyBytes, version: version}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Handler returns the routed API for svc.
func (t *Transport) Handler(svc transport.Service) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/tts", func(w http.ResponseWriter, r *http.Request) {
		t.handleTTS(w, r, svc)
	})
	mux.HandleFunc("GET /api/voices", func(w http.ResponseWriter, r *http.Request) {
		handleVoices(w, r, svc)
	})
	mux.HandleFunc("GET /api/voices/{speaker}", func(w http.ResponseWriter, r *http.Request) {
		handleVoice(w, r, svc)
	})
	mux.HandleFunc("GET /api/visemes", func(w http.ResponseWriter, r *http.Request) {
		handleVisemes(w, r, svc)
	})
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"service": "avatarvoice",
			"version": t.version,
			"voices":  len(svc.Voices()),
			"endpoints": []string{
				"POST /api/tts", "GET /api/voices", "GET /api/voices/{speaker}", "GET /api/visemes", "GET /swagger/",
			},
		})
	})

	// Swagger UI: serves the registered OpenAPI docs.
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return mux
}

// Listen starts the HTTP server and routes incoming requests to svc.
func (t *Transport) Listen(ctx context.Context, svc transport.Service) error {
	t.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", t.port),
		Handler:           t.Handler(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("http transport listening", "port", t.port)

	go func() {
		<-ctx.Done()
		slog.Info("http transport shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = t.server.Shutdown(shutdownCtx)
	}()

	if err := t.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// handleTTS processes a POST /api/tts request.
//
// @Summary     Synthesize speech
// @Description Synthesizes text with the requested speaker. The audio comes from the first available
// @Description source tier (trained model, reference recording, segments, fallback recording, stock voice,
// @Description generated tone). With include_phonemes the response carries a lip-sync timeline spanning
// @Description the audio duration.
// @Tags        tts
// @Accept      json
// @Produce     json
// @Param       request  body      message.SynthesisRequest   true  "Synthesis request"
// @Success     200      {object}  message.SynthesisResponse  "Audio and timeline"
// @Failure     400      {object}  message.ErrorResponse      "Body is not a JSON object"
// @Failure     413      {object}  message.ErrorResponse      "Text too long"
// @Failure     415      {object}  message.ErrorResponse      "Unsupported audio format"
// @Failure     422      {object}  message.ErrorResponse      "Missing text or unknown speaker"
// @Failure     500      {object}  message.ErrorResponse      "Internal processing error"
// @Router      /api/tts [post]
func (t *Transport) handleTTS(w http.ResponseWriter, r *http.Request, svc transport.Service) {
	start := time.Now()

	var (
		resp *message.SynthesisResponse
		err  error
	)
	defer func() {
		metrics.RecordSynthesis("http", transport.Status(err), time.Since(start))
	}()

	if mt, _, perr := mime.ParseMediaType(r.Header.Get("Content-Type")); perr != nil || mt != "application/json" {
		err = errs.Input(errs.CodeBadRequest, "http.tts", "content type must be application/json")
		writeError(w, err)
		return
	}

	var req message.SynthesisRequest
	body := http.MaxBytesReader(w, r.Body, t.maxBodyBytes)
	if derr := json.NewDecoder(body).Decode(&req); derr != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(derr, &tooLarge) {
			err = errs.Input(errs.CodeTooLarge, "http.tts", "request body too large")
		} else {
			err = errs.Input(errs.CodeBadRequest, "http.tts", "invalid JSON body")
		}
		writeError(w, err)
		return
	}

	resp, err = svc.Handle(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleVoices processes a GET /api/voices request.
//
// @Summary     List voices
// @Description Lists every speaker with the availability of each of its source tiers.
// @Tags        voices
// @Produce     json
// @Success     200  {array}  message.VoiceInfo
// @Router      /api/voices [get]
func handleVoices(w http.ResponseWriter, _ *http.Request, svc transport.Service) {
	writeJSON(w, http.StatusOK, svc.Voices())
}

// handleVoice processes a GET /api/voices/{speaker} request.
//
// @Summary     Describe a voice
// @Tags        voices
// @Produce     json
// @Param       speaker  path      string  true  "Speaker id"
// @Success     200      {object}  message.VoiceInfo
// @Failure     422      {object}  message.ErrorResponse  "Unknown speaker"
// @Router      /api/voices/{speaker} [get]
func handleVoice(w http.ResponseWriter, r *http.Request, svc transport.Service) {
	v, err := svc.Voice(r.PathValue("speaker"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleVisemes processes a GET /api/visemes request.
//
// @Summary     List visemes
// @Tags        visemes
// @Produce     json
// @Success     200  {object}  message.VisemeList
// @Router      /api/visemes [get]
func handleVisemes(w http.ResponseWriter, _ *http.Request, svc transport.Service) {
	writeJSON(w, http.StatusOK, svc.Visemes())
}

// Close gracefully shuts down the HTTP server.
func (t *Transport) Close() error {
	if t.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return t.server.Shutdown(ctx)
	}
	return nil
}

// StatusCode maps an error to its HTTP status.
func StatusCode(err error) int {
	switch errs.CodeOf(err) {
	case errs.CodeBadRequest:
		return http.StatusBadRequest
	case errs.CodeUnprocessable:
		return http.StatusUnprocessableEntity
	case errs.CodeTooLarge:
		return http.StatusRequestEntityTooLarge
	case errs.CodeUnsupportedMedia:
		return http.StatusUnsupportedMediaType
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := StatusCode(err)
	body := message.ErrorResponse{Error: err.Error(), Allowed: errs.AllowedOf(err)}

	var typed *errs.Error
	if errors.As(err, &typed) && typed.Kind == errs.KindInput {
		body.Error = typed.Message
	}
	if status >= http.StatusInternalServerError {
		slog.Error("tts request failed", "error", err)
		body.Error = "internal error"
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
