package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go/v3"

	"navi/internal/audio"
	"navi/pkg/audioconv"
)

// Batch uploads one finalized utterance as a WAV file and blocks for the
// transcript. One utterance maps to one final transcript; there are no
// interim results in this mode.
type Batch struct {
	client   openai.Client
	language string
}

func NewBatch(client openai.Client, language string) *Batch {
	return &Batch{client: client, language: language}
}

func (b *Batch) Transcribe(ctx context.Context, u *audio.Utterance) (string, error) {
	if u == nil || len(u.Samples) == 0 {
		return "", errors.New("empty utterance")
	}

	wavData, err := audioconv.EncodeWAV(u.Samples)
	if err != nil {
		return "", fmt.Errorf("package utterance: %w", err)
	}

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(wavData), "utterance.wav", "audio/wav"),
		Model: openai.AudioModelWhisper1,
	}
	if b.language != "" && b.language != "auto" {
		params.Language = openai.String(b.language)
	}

	resp, err := b.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	return resp.Text, nil
}
