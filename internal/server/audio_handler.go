package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lexiqai/narrator/internal/cache"
	"github.com/lexiqai/narrator/internal/pipeline"
)

// handleCreateAudio runs the pipeline synchronously and returns the audio.
// The text is either a multipart "file" field holding a .txt upload or the
// raw request body. pause_ms or pause_seconds, language, format and name are
// read from form fields or the query string.
func (s *Server) handleCreateAudio(w http.ResponseWriter, r *http.Request) {
	text, name, err := s.readText(w, r)
	if err != nil {
		s.writeInvalid(w, err)
		return
	}

	pauseMS, pauseSeconds, err := parsePause(r.FormValue("pause_ms"), r.FormValue("pause_seconds"))
	if err != nil {
		s.writeInvalid(w, err)
		return
	}
	if n := r.FormValue("name"); n != "" {
		name = n
	}

	j, err := s.newJob(text, name, pauseMS, pauseSeconds, r.FormValue("language"), r.FormValue("format"))
	if err != nil {
		s.writeInvalid(w, err)
		return
	}

	s.results.Forget(j.key)

	// A run is never aborted once started, even if the client goes away
	res := s.engine.Execute(context.WithoutCancel(r.Context()), j.req, nil)
	if !res.OK() {
		s.writeRunError(w, res.RunID, res.Err)
		return
	}

	entry := s.store(j, res)
	s.logger.Info().
		Str("run_id", res.RunID).
		Str("key", j.key).
		Int("units", res.Units).
		Int("bytes", len(res.Audio)).
		Msg("Audio generated")

	writeAudio(w, entry)
}

// handleDownload serves audio of an earlier run from the result cache
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.results.Get(r.PathValue("key"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Kind: "NotFound", Message: "no audio for this key"})
		return
	}
	writeAudio(w, entry)
}

func (s *Server) store(j job, res pipeline.Result) cache.Entry {
	entry := cache.Entry{
		Key:       j.key,
		RunID:     res.RunID,
		FileName:  j.fileName(),
		Format:    res.Format,
		Audio:     res.Audio,
		Duration:  res.Duration,
		CreatedAt: time.Now(),
	}
	s.results.Put(entry)
	return entry
}

func writeAudio(w http.ResponseWriter, entry cache.Entry) {
	h := w.Header()
	h.Set("Content-Type", entry.Format.MIMEType())
	h.Set("Content-Length", strconv.Itoa(len(entry.Audio)))
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": entry.FileName}))
	h.Set("X-Run-ID", entry.RunID)
	h.Set("X-Audio-Key", entry.Key)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(entry.Audio)
}

// readText returns the input text and the name it was uploaded under
func (s *Server) readText(w http.ResponseWriter, r *http.Request) (string, string, error) {
	limit := s.opts.MaxInputBytes

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		// Leave room for the other form fields
		r.Body = http.MaxBytesReader(w, r.Body, limit+64<<10)
		if err := r.ParseMultipartForm(limit); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return "", "", fmt.Errorf("%w: upload exceeds %d bytes", errTooLarge, limit)
			}
			return "", "", fmt.Errorf("invalid multipart form: %w", err)
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			return "", "", fmt.Errorf("missing file field: %w", err)
		}
		defer file.Close()

		if !strings.EqualFold(filepath.Ext(header.Filename), ".txt") {
			return "", "", fmt.Errorf("only .txt files are accepted, got %q", header.Filename)
		}
		text, err := readLimited(file, limit)
		if err != nil {
			return "", "", err
		}
		return text, header.Filename, nil
	}

	text, err := readLimited(r.Body, limit)
	if err != nil {
		return "", "", err
	}
	return text, defaultName, nil
}

func readLimited(rd io.Reader, limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(rd, limit+1))
	if err != nil {
		return "", fmt.Errorf("failed to read text: %w", err)
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("%w: text exceeds %d bytes", errTooLarge, limit)
	}
	return string(data), nil
}

// parsePause reads the optional pause fields; empty strings mean unset
func parsePause(ms, seconds string) (*int, *float64, error) {
	if ms != "" {
		v, err := strconv.Atoi(ms)
		if err != nil {
			return nil, nil, fmt.Errorf("pause_ms must be an integer: %w", err)
		}
		return &v, nil, nil
	}
	if seconds != "" {
		v, err := strconv.ParseFloat(seconds, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("pause_seconds must be a number: %w", err)
		}
		return nil, &v, nil
	}
	return nil, nil, nil
}
