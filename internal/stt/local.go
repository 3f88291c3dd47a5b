package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"navi/internal/audio"
)

// Local transcribes utterances offline with whisper.cpp. Batch semantics:
// the whole utterance goes in, one transcript comes out.
type Local struct {
	model    whisper.Model
	language string
}

func NewLocal(modelPath, language string) (*Local, error) {
	if modelPath == "" {
		return nil, errors.New("empty whisper model path")
	}
	m, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load whisper model: %w", err)
	}
	if language == "" {
		language = "auto"
	}
	return &Local{model: m, language: language}, nil
}

func (l *Local) Close() error {
	if l.model == nil {
		return nil
	}
	return l.model.Close()
}

func (l *Local) Transcribe(ctx context.Context, u *audio.Utterance) (string, error) {
	if u == nil || len(u.Samples) == 0 {
		return "", errors.New("empty utterance")
	}

	wctx, err := l.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper context: %w", err)
	}
	if err := wctx.SetLanguage(l.language); err != nil {
		return "", fmt.Errorf("set language: %w", err)
	}
	wctx.SetThreads(uint(runtime.NumCPU()))

	if err := wctx.Process(u.Samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper process: %w", err)
	}

	var parts []string
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("next segment: %w", err)
		}
		parts = append(parts, strings.TrimSpace(seg.Text))
	}

	return strings.Join(parts, " "), nil
}
