package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	statusUnauthorized = websocket.StatusCode(4401)
	voiceEndMarker     = "END"
	voiceFilename      = "audio.webm"
)

type fragmentFrame struct {
	Fragment string `json:"fragment"`
}

type replyFrame struct {
	Response string `json:"response"`
	Domain   string `json:"domain"`
}

type errorFrame struct {
	Error string `json:"error"`
}

func (s *Server) accept(w http.ResponseWriter, r *http.Request) (*websocket.Conn, bool) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.AllowedOrigins,
	})
	if err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("websocket accept failed")
		return nil, false
	}
	if !s.authorized(r) {
		conn.Close(statusUnauthorized, "Unauthorized")
		return nil, false
	}
	return conn, true
}

// handleChatSocket answers each {"message"} with the agent's fragments
// followed by one {"response","domain"} frame.
func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	conn, ok := s.accept(w, r)
	if !ok {
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	for {
		var req chatRequest
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			s.closeAfterRead(ctx, conn, err)
			return
		}
		if err := s.streamReply(ctx, conn, req.Message); err != nil {
			if isConnError(err) {
				log.Ctx(ctx).Debug().Err(err).Msg("chat socket gone")
				return
			}
			if werr := s.writeErrorFrame(ctx, conn, err); werr != nil {
				return
			}
		}
	}
}

type connError struct{ err error }

func (e connError) Error() string { return e.err.Error() }
func (e connError) Unwrap() error { return e.err }

func isConnError(err error) bool {
	var ce connError
	return errors.As(err, &ce)
}

func (s *Server) streamReply(ctx context.Context, conn *websocket.Conn, message string) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	domain, sr, err := s.deps.Router.Stream(ctx, message)
	if err != nil {
		return err
	}
	defer sr.Close()

	var reply strings.Builder
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if chunk == "" {
			continue
		}
		reply.WriteString(chunk)
		if err := wsjson.Write(ctx, conn, fragmentFrame{Fragment: chunk}); err != nil {
			return connError{err}
		}
	}

	log.Ctx(ctx).Info().Str("domain", string(domain)).Msg("chat streamed")
	if err := wsjson.Write(ctx, conn, replyFrame{Response: reply.String(), Domain: string(domain)}); err != nil {
		return connError{err}
	}
	return nil
}

// handleVoiceSocket buffers binary audio chunks until the client sends the
// text frame END, then answers with {"transcript","response"}.
func (s *Server) handleVoiceSocket(w http.ResponseWriter, r *http.Request) {
	conn, ok := s.accept(w, r)
	if !ok {
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(s.cfg.MaxUploadBytes)

	ctx := r.Context()
	var audio bytes.Buffer
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			s.closeAfterRead(ctx, conn, err)
			return
		}

		if typ == websocket.MessageBinary {
			if int64(audio.Len()+len(data)) > s.cfg.MaxUploadBytes {
				conn.Close(websocket.StatusMessageTooBig, "audio too large")
				return
			}
			audio.Write(data)
			continue
		}
		if strings.TrimSpace(string(data)) != voiceEndMarker {
			if err := s.writeErrorFrame(ctx, conn, fmt.Errorf("%w: expected binary audio or %s", contractx.ErrValidation, voiceEndMarker)); err != nil {
				return
			}
			continue
		}

		err = s.answerVoiceFrame(ctx, conn, audio.Bytes())
		audio.Reset()
		if err != nil {
			if isConnError(err) {
				return
			}
			if werr := s.writeErrorFrame(ctx, conn, err); werr != nil {
				return
			}
		}
	}
}

func (s *Server) answerVoiceFrame(ctx context.Context, conn *websocket.Conn, audio []byte) error {
	if s.deps.Transcriber == nil {
		return errors.New("transcription is not configured")
	}
	if len(audio) == 0 {
		return fmt.Errorf("%w: no audio received", contractx.ErrInvalidMessage)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	out, err := s.answerAudio(ctx, bytes.NewReader(audio), voiceFilename)
	if err != nil {
		return err
	}
	if err := wsjson.Write(ctx, conn, out); err != nil {
		return connError{err}
	}
	return nil
}

func (s *Server) writeErrorFrame(ctx context.Context, conn *websocket.Conn, err error) error {
	status, detail := statusFor(err)
	ev := log.Ctx(ctx).Warn()
	if status >= http.StatusInternalServerError {
		ev = log.Ctx(ctx).Error()
	}
	ev.Err(err).Int("status", status).Msg("socket request failed")
	return wsjson.Write(ctx, conn, errorFrame{Error: detail})
}

func (s *Server) closeAfterRead(ctx context.Context, conn *websocket.Conn, err error) {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return
	}
	if errors.Is(err, context.Canceled) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	log.Ctx(ctx).Debug().Err(err).Msg("socket read failed")
	conn.Close(websocket.StatusUnsupportedData, "invalid frame")
}
