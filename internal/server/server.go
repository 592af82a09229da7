// Package server exposes the pipeline over HTTP. Audio can be generated
// synchronously with POST /v1/audio or through a WebSocket that streams
// progress; finished audio stays downloadable from the result cache.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/narrator/internal/cache"
	"github.com/lexiqai/narrator/internal/codec"
	"github.com/lexiqai/narrator/internal/pipeline"
)

const defaultName = "narration"

var errTooLarge = errors.New("input too large")

// Options are the limits the service applies before a run starts
type Options struct {
	PauseMinMS      int
	PauseMaxMS      int
	PauseDefaultMS  int
	MaxInputBytes   int64
	DefaultLanguage string
	DefaultFormat   codec.Format
}

// Server serves the narration API
type Server struct {
	engine   *pipeline.Engine
	results  *cache.Results
	opts     Options
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// New creates a server over engine, storing finished audio in results
func New(engine *pipeline.Engine, results *cache.Results, opts Options, logger zerolog.Logger) *Server {
	if opts.DefaultFormat == "" {
		opts.DefaultFormat = engine.OutputFormat()
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = pipeline.DefaultLanguage
	}
	return &Server{
		engine:  engine,
		results: results,
		opts:    opts,
		logger:  logger.With().Str("component", "server").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browsers on other origins are expected to call the API
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Register adds the API routes to mux
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/audio", s.handleCreateAudio)
	mux.HandleFunc("GET /v1/audio/{key}", s.handleDownload)
	mux.HandleFunc("GET /v1/runs/stream", s.handleStream)
}

// job is a validated request together with its cache identity
type job struct {
	req  pipeline.Request
	name string
	key  string
}

// newJob applies defaults and limits. pauseMS and pauseSeconds are optional;
// pauseMS wins when both are set.
func (s *Server) newJob(text, name string, pauseMS *int, pauseSeconds *float64, lang, format string) (job, error) {
	if int64(len(text)) > s.opts.MaxInputBytes {
		return job{}, fmt.Errorf("%w: text exceeds %d bytes", errTooLarge, s.opts.MaxInputBytes)
	}

	pause := s.opts.PauseDefaultMS
	switch {
	case pauseMS != nil:
		pause = *pauseMS
	case pauseSeconds != nil:
		if math.IsNaN(*pauseSeconds) || math.IsInf(*pauseSeconds, 0) {
			return job{}, errors.New("pause_seconds must be a number")
		}
		pause = int(math.Round(*pauseSeconds * 1000))
	}
	if pause < s.opts.PauseMinMS || pause > s.opts.PauseMaxMS {
		return job{}, fmt.Errorf("pause must be between %dms and %dms, got %dms", s.opts.PauseMinMS, s.opts.PauseMaxMS, pause)
	}

	language, err := pipeline.NormalizeLanguage(lang, s.opts.DefaultLanguage)
	if err != nil {
		return job{}, err
	}

	if format == "" {
		format = string(s.opts.DefaultFormat)
	}
	f, err := s.engine.CheckFormat(format)
	if err != nil {
		return job{}, err
	}

	req := pipeline.Request{Text: text, PauseMS: pause, Language: language, Format: f}
	return job{
		req:  req,
		name: baseName(name),
		key:  cache.Key(text, pause, language, f),
	}, nil
}

// fileName returns the download name, e.g. notes_audio.mp3
func (j job) fileName() string {
	return fmt.Sprintf("%s_audio.%s", j.name, j.req.Format.Extension())
}

// baseName strips directories and the extension from an uploaded file name
func baseName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == "/" {
		return defaultName
	}
	return name
}

type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
}

// statusFor maps a failure kind to an HTTP status
func statusFor(kind pipeline.Kind) int {
	switch kind {
	case pipeline.KindInvalidRequest:
		return http.StatusBadRequest
	case pipeline.KindEmptyInput:
		return http.StatusUnprocessableEntity
	case pipeline.KindSynthesisFailure:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeRunError(w http.ResponseWriter, runID string, err error) {
	kind := pipeline.KindOf(err)
	if kind == "" {
		kind = pipeline.KindAssemblyFailure
	}
	writeJSON(w, statusFor(kind), errorResponse{Kind: string(kind), Message: err.Error(), RunID: runID})
}

func (s *Server) writeInvalid(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, errTooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	writeJSON(w, status, errorResponse{Kind: string(pipeline.KindInvalidRequest), Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
