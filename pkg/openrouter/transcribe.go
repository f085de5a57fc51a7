package openrouter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openaisdk "github.com/openai/openai-go"
)

// Transcriber turns recorded speech into text with a Whisper model.
type Transcriber struct {
	client *openaisdk.Client
	model  string
}

func NewTranscriber(client *openaisdk.Client, model string) (*Transcriber, error) {
	if client == nil {
		return nil, errors.New("openai client is required")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = string(openaisdk.AudioModelWhisper1)
	}
	return &Transcriber{client: client, model: model}, nil
}

func (t *Transcriber) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	if strings.TrimSpace(filename) == "" {
		filename = "audio.webm"
	}
	resp, err := t.client.Audio.Transcriptions.New(ctx, openaisdk.AudioTranscriptionNewParams{
		File:  openaisdk.File(audio, filename, "application/octet-stream"),
		Model: openaisdk.AudioModel(t.model),
	})
	if err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
