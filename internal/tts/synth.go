// Package tts turns response prose into audible speech.
package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"

	openai "github.com/openai/openai-go/v3"
)

// Synthesizer renders text to encoded audio bytes (wav, mp3 or ogg; the
// speaker sniffs the container).
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// OpenAISynth uses the hosted speech endpoint.
type OpenAISynth struct {
	client openai.Client
	voice  string
	format string
}

func NewOpenAISynth(client openai.Client, voice, format string) *OpenAISynth {
	if voice == "" {
		voice = "alloy"
	}
	if format == "" {
		format = "mp3"
	}
	return &OpenAISynth{client: client, voice: voice, format: format}
}

func (s *OpenAISynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	format := openai.AudioSpeechNewParamsResponseFormatMP3
	if s.format == "opus" {
		format = openai.AudioSpeechNewParamsResponseFormatOpus
	}

	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModelTTS1,
		Input:          text,
		Voice:          openai.AudioSpeechNewParamsVoice(s.voice),
		ResponseFormat: format,
	})
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read speech response: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty speech response")
	}
	return data, nil
}

// ESpeakSynth shells out to the local espeak-ng synthesizer, the on-device
// fallback when no speech backend is reachable.
type ESpeakSynth struct {
	voice string
}

func NewESpeakSynth(voice string) *ESpeakSynth {
	if voice == "" {
		voice = "en"
	}
	return &ESpeakSynth{voice: voice}
}

func (s *ESpeakSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, "espeak-ng", "-v", s.voice, "--stdout", text).Output()
	if err != nil {
		return nil, fmt.Errorf("espeak-ng: %w", err)
	}
	return out, nil
}
