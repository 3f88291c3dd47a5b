// Package stt delivers utterance audio to a speech-to-text backend.
//
// Two transport shapes exist: batch (upload one finalized utterance, block
// for one transcript) and streaming (push PCM frames over a persistent
// socket, receive interim transcripts as recognition progresses). A local
// whisper.cpp transcriber covers the offline case with batch semantics.
package stt

import (
	"context"
	"errors"

	"navi/internal/audio"
)

// Event is one piece of text from a transcription backend. Within one
// utterance, zero or more non-final events precede exactly one final event.
type Event struct {
	Text  string
	Final bool
}

// BatchTranscriber turns one finalized utterance into text in a single
// blocking round trip.
type BatchTranscriber interface {
	Transcribe(ctx context.Context, u *audio.Utterance) (string, error)
}

// ErrServerUnavailable is the terminal error after reconnection attempts to
// the streaming backend are exhausted. The client stops reconnecting until
// listening is re-initiated.
var ErrServerUnavailable = errors.New("transcription server unavailable")
