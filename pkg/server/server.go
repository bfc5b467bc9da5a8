// Package server exposes the analysis pipeline over HTTP: book
// submission, result polling, facet refresh, reader pagination, review
// and podcast generation, artifact export, and a websocket bridge for
// live voice sessions.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/lorecast/lorecast/pkg/analysis"
	"github.com/lorecast/lorecast/pkg/audio/wav"
	"github.com/lorecast/lorecast/pkg/gen"
	"github.com/lorecast/lorecast/pkg/playback"
	"github.com/lorecast/lorecast/pkg/storage"
)

// Options wires the server's collaborators.
type Options struct {
	Pipeline *analysis.Pipeline
	Exporter *storage.Exporter

	// Speaker serves single-utterance speech requests; nil disables
	// the speak endpoint.
	Speaker *playback.Speaker

	// Dialer opens live voice sessions for the websocket bridge; nil
	// disables the bridge.
	Dialer          gen.LiveDialer
	LiveVoice       string
	LiveInstruction string

	Logger *slog.Logger
}

// Server handles the HTTP and websocket surface.
type Server struct {
	pipeline *analysis.Pipeline
	exporter *storage.Exporter
	speaker  *playback.Speaker

	dialer          gen.LiveDialer
	liveVoice       string
	liveInstruction string

	logger *slog.Logger
	mux    *http.ServeMux

	chatMu      sync.Mutex
	chat        gen.Chat
	chatSession string
}

// New builds the server and installs its routes.
func New(opts Options) *Server {
	s := &Server{
		pipeline:        opts.Pipeline,
		exporter:        opts.Exporter,
		speaker:         opts.Speaker,
		dialer:          opts.Dialer,
		liveVoice:       opts.LiveVoice,
		liveInstruction: opts.LiveInstruction,
		logger:          opts.Logger,
		mux:             http.NewServeMux(),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/book", s.handleSubmit)
	s.mux.HandleFunc("GET /api/result", s.handleResult)
	s.mux.HandleFunc("POST /api/reset", s.handleReset)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("POST /api/reader/more", s.handleReaderMore)
	s.mux.HandleFunc("POST /api/reader/chapter", s.handleReaderChapter)
	s.mux.HandleFunc("POST /api/review", s.handleReview)
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("POST /api/podcast", s.handlePodcast)
	s.mux.HandleFunc("GET /api/podcast/audio.wav", s.handlePodcastAudio)
	s.mux.HandleFunc("POST /api/export/report", s.handleExportReport)
	s.mux.HandleFunc("POST /api/export/podcast", s.handleExportPodcast)
	if s.speaker != nil {
		s.mux.HandleFunc("POST /api/speak", s.handleSpeak)
	}
	if s.dialer != nil {
		s.mux.HandleFunc("GET /api/live", s.handleLive)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, errors.New("text is required"))
		return
	}
	if err := s.pipeline.Start(r.Context(), req.Text); err != nil {
		s.writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId": s.pipeline.SessionID(),
		"state":     s.pipeline.State().String(),
	})
}

func (s *Server) handleResult(w http.ResponseWriter, _ *http.Request) {
	result := s.pipeline.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId": s.pipeline.SessionID(),
		"state":     s.pipeline.State().String(),
		"result":    result,
	})
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.pipeline.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Facet   string   `json:"facet"`
		Exclude []string `json:"exclude"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if err := s.pipeline.Refresh(r.Context(), analysis.Facet(req.Facet), req.Exclude); err != nil {
		s.writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": s.pipeline.Snapshot()})
}

func (s *Server) handleReaderMore(w http.ResponseWriter, r *http.Request) {
	segs, err := s.pipeline.LoadMoreReader(r.Context())
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"segments": segs,
		"cursor":   s.pipeline.ReaderCursor(),
	})
}

func (s *Server) handleReaderChapter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	segs, err := s.pipeline.JumpToChapter(r.Context(), req.Index)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"segments": segs,
		"cursor":   s.pipeline.ReaderCursor(),
	})
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	if err := s.pipeline.GenerateReview(r.Context()); err != nil {
		s.writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"review": s.pipeline.Snapshot().Review})
}

// handleChat relays one message on the session-scoped book chat. The
// chat is opened lazily and discarded when the analysis session
// changes.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, errors.New("message is required"))
		return
	}

	s.chatMu.Lock()
	defer s.chatMu.Unlock()
	if session := s.pipeline.SessionID(); s.chat == nil || session != s.chatSession {
		chat, err := s.pipeline.StartChat(r.Context())
		if err != nil {
			s.chat = nil
			s.writePipelineError(w, err)
			return
		}
		s.chat = chat
		s.chatSession = session
	}

	reply, err := s.chat.Send(r.Context(), req.Message)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

// handleSpeak synthesizes one utterance, cache-first, and returns it as
// a WAV payload for client-side playback.
func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, errors.New("text is required"))
		return
	}
	audio, err := s.speaker.Speak(r.Context(), req.Text)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	if _, err := w.Write(wav.Encode(audio, 24000)); err != nil {
		s.logger.Warn("speak download aborted", "err", err)
	}
}

func (s *Server) handlePodcast(w http.ResponseWriter, r *http.Request) {
	pod, err := s.pipeline.GeneratePodcast(r.Context())
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"title":    pod.Title,
		"script":   pod.Script,
		"hasAudio": len(pod.Audio) > 0,
	})
}

func (s *Server) handlePodcastAudio(w http.ResponseWriter, _ *http.Request) {
	pod := s.pipeline.Snapshot().Podcast
	if pod == nil || len(pod.Audio) == 0 {
		writeError(w, http.StatusNotFound, errors.New("no podcast audio available"))
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", `attachment; filename="podcast.wav"`)
	if _, err := w.Write(wav.Encode(pod.Audio, 24000)); err != nil {
		s.logger.Warn("podcast download aborted", "err", err)
	}
}

func (s *Server) handleExportReport(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeError(w, http.StatusNotFound, errors.New("exports not configured"))
		return
	}
	name := exportName(r, "report")
	result := s.pipeline.Snapshot()
	path, err := s.exporter.ExportReport(r.Context(), name, &result)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

func (s *Server) handleExportPodcast(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeError(w, http.StatusNotFound, errors.New("exports not configured"))
		return
	}
	name := exportName(r, "podcast")
	path, err := s.exporter.ExportPodcast(r.Context(), name, s.pipeline.Snapshot().Podcast)
	if err != nil {
		if errors.Is(err, storage.ErrNoAudio) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

func exportName(r *http.Request, fallback string) string {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.Name != "" {
		return req.Name
	}
	return fallback
}

func (s *Server) writePipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, analysis.ErrEndOfBook):
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, analysis.ErrBusy), errors.Is(err, analysis.ErrNotReady):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
