package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
)

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type searchRequest struct {
	Model string `json:"model"`
	Query string `json:"query"`
}

type searchResponse struct {
	Results []contractx.Record `json:"results"`
}

type voiceResponse struct {
	Transcript string `json:"transcript"`
	Response   string `json:"response"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, healthText)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	res, err := s.deps.Router.Route(ctx, req.Message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	log.Ctx(ctx).Info().Str("domain", string(res.Domain)).Msg("chat answered")
	writeJSON(w, http.StatusOK, chatResponse{Response: res.Reply})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Search == nil {
		writeDetail(w, http.StatusServiceUnavailable, "search is not configured")
		return
	}
	var req searchRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	records, err := s.deps.Search.Search(ctx, req.Model, req.Query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: records})
}

func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	if s.deps.Transcriber == nil {
		writeDetail(w, http.StatusServiceUnavailable, "transcription is not configured")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: multipart field file is required", contractx.ErrValidation))
		return
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	out, err := s.answerAudio(ctx, file, header.Filename)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// answerAudio transcribes speech and routes the transcript.
func (s *Server) answerAudio(ctx context.Context, audio io.Reader, filename string) (voiceResponse, error) {
	transcript, err := s.deps.Transcriber.Transcribe(ctx, audio, filename)
	if err != nil {
		return voiceResponse{}, err
	}
	if strings.TrimSpace(transcript) == "" {
		return voiceResponse{}, fmt.Errorf("%w: no speech recognised", contractx.ErrInvalidMessage)
	}
	res, err := s.deps.Router.Route(ctx, transcript)
	if err != nil {
		return voiceResponse{}, err
	}
	return voiceResponse{Transcript: transcript, Response: res.Reply}, nil
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed json body: %v", contractx.ErrValidation, err)
	}
	return nil
}
