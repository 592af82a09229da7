package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lexiqai/narrator/internal/pipeline"
)

const (
	writeWait = 10 * time.Second
	maxEscape = 6
)

// streamRequest is the single message a client sends after connecting
type streamRequest struct {
	Text         string   `json:"text"`
	Name         string   `json:"name,omitempty"`
	PauseMS      *int     `json:"pause_ms,omitempty"`
	PauseSeconds *float64 `json:"pause_seconds,omitempty"`
	Language     string   `json:"language,omitempty"`
	Format       string   `json:"format,omitempty"`
}

// Event types sent to the client
const (
	EventProgress = "progress"
	EventResult   = "result"
	EventError    = "error"
)

// streamEvent is sent for every progress step and once at the end
type streamEvent struct {
	Type  string `json:"type"`
	RunID string `json:"run_id,omitempty"`

	// progress
	Completed int     `json:"completed,omitempty"`
	Total     int     `json:"total,omitempty"`
	Fraction  float64 `json:"fraction,omitempty"`

	// result
	DownloadURL string `json:"download_url,omitempty"`
	FileName    string `json:"file_name,omitempty"`
	Format      string `json:"format,omitempty"`
	DurationMS  int64  `json:"duration_ms,omitempty"`
	Units       int    `json:"units,omitempty"`
	Bytes       int    `json:"bytes,omitempty"`

	// error
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

// handleStream runs one pipeline per connection and streams its progress.
// The audio itself is fetched from the download URL in the result event.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	// JSON escapes a byte of text into at most six ("<" is sent as \u003c);
	// newJob checks the decoded text against MaxInputBytes
	conn.SetReadLimit(maxEscape*s.opts.MaxInputBytes + 4096)

	var req streamRequest
	if err := conn.ReadJSON(&req); err != nil {
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) {
			s.logger.Debug().Err(err).Msg("Client closed before sending a request")
			return
		}
		s.logger.Debug().Err(err).Msg("Failed to read stream request")
		s.send(conn, streamEvent{Type: EventError, Kind: string(pipeline.KindInvalidRequest), Message: "invalid request: " + err.Error()})
		s.closeNormal(conn)
		return
	}

	j, err := s.newJob(req.Text, req.Name, req.PauseMS, req.PauseSeconds, req.Language, req.Format)
	if err != nil {
		s.send(conn, streamEvent{Type: EventError, Kind: string(pipeline.KindInvalidRequest), Message: err.Error()})
		s.closeNormal(conn)
		return
	}

	s.results.Forget(j.key)

	run := s.engine.NewRun(j.req)
	logger := s.logger.With().Str("run_id", run.ID).Logger()
	progress, results := run.Stream(context.WithoutCancel(r.Context()))

	clientGone := false
	for p := range progress {
		if clientGone {
			continue // keep draining so the run can finish
		}
		err := s.send(conn, streamEvent{
			Type:      EventProgress,
			RunID:     run.ID,
			Completed: p.Completed,
			Total:     p.Total,
			Fraction:  p.Fraction(),
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Client stopped receiving progress")
			clientGone = true
		}
	}

	res := <-results
	if !res.OK() {
		kind := pipeline.KindOf(res.Err)
		s.send(conn, streamEvent{Type: EventError, RunID: res.RunID, Kind: string(kind), Message: res.Err.Error()})
		s.closeNormal(conn)
		return
	}

	entry := s.store(j, res)
	logger.Info().Str("key", j.key).Int("units", res.Units).Msg("Streamed run completed")

	s.send(conn, streamEvent{
		Type:        EventResult,
		RunID:       res.RunID,
		DownloadURL: "/v1/audio/" + entry.Key,
		FileName:    entry.FileName,
		Format:      string(entry.Format),
		DurationMS:  res.Duration.Milliseconds(),
		Units:       res.Units,
		Bytes:       len(res.Audio),
	})
	s.closeNormal(conn)
}

func (s *Server) send(conn *websocket.Conn, ev streamEvent) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}

func (s *Server) closeNormal(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
