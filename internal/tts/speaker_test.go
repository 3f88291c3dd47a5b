package tts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testSpeaker(synth Synthesizer) *Speaker {
	// bypasses NewSpeaker so tests need no audio device
	return &Speaker{synth: synth, log: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// stallingSynth blocks until its context is cancelled.
type stallingSynth struct{}

func (stallingSynth) Synthesize(ctx context.Context, _ string) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type failingSynth struct{}

func (failingSynth) Synthesize(context.Context, string) ([]byte, error) {
	return nil, errors.New("backend down")
}

func waitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("%s channel never closed", what)
	}
}

func TestSpeakReturnsBeforeSynthesisFinishes(t *testing.T) {
	sp := testSpeaker(stallingSynth{})

	start := time.Now()
	done := sp.Speak(context.Background(), "hello")
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Fatalf("Speak blocked for %v on a stalled backend", elapsed)
	}

	sp.Stop()
	waitClosed(t, done, "done")
}

func TestStopClosesDoneChannel(t *testing.T) {
	sp := testSpeaker(stallingSynth{})
	done := sp.Speak(context.Background(), "hello")

	sp.Stop()
	waitClosed(t, done, "done")
	if sp.Speaking() {
		t.Fatal("still speaking after Stop")
	}
}

func TestReplacementClosesPreviousDone(t *testing.T) {
	sp := testSpeaker(stallingSynth{})
	first := sp.Speak(context.Background(), "one")
	second := sp.Speak(context.Background(), "two")

	waitClosed(t, first, "replaced utterance's done")

	select {
	case <-second:
		t.Fatal("current utterance's channel closed prematurely")
	case <-time.After(50 * time.Millisecond):
	}
	sp.Stop()
	waitClosed(t, second, "done")
}

func TestSynthesisFailureClosesDone(t *testing.T) {
	sp := testSpeaker(failingSynth{})
	done := sp.Speak(context.Background(), "hello")
	waitClosed(t, done, "done")
}

func TestEmptyTextCompletesImmediately(t *testing.T) {
	sp := testSpeaker(stallingSynth{})
	done := sp.Speak(context.Background(), "")
	waitClosed(t, done, "done")
	if sp.Speaking() {
		t.Fatal("empty text should not register as speaking")
	}
}

func TestPCMStreamerDrains(t *testing.T) {
	pcm := make([]float32, 100)
	for i := range pcm {
		pcm[i] = 0.5
	}
	st := newPCMStreamer(pcm)

	buf := make([][2]float64, 64)
	n, ok := st.Stream(buf)
	if !ok || n != 64 {
		t.Fatalf("first chunk: n=%d ok=%v", n, ok)
	}
	if buf[0][0] != 0.5 || buf[0][1] != 0.5 {
		t.Fatalf("expected duplicated mono sample, got %v", buf[0])
	}

	n, ok = st.Stream(buf)
	if !ok || n != 36 {
		t.Fatalf("second chunk: n=%d ok=%v", n, ok)
	}

	n, ok = st.Stream(buf)
	if ok || n != 0 {
		t.Fatalf("expected drained streamer, got n=%d ok=%v", n, ok)
	}
}

func TestPCMStreamerEmpty(t *testing.T) {
	st := newPCMStreamer(nil)
	if _, ok := st.Stream(make([][2]float64, 8)); ok {
		t.Fatal("empty streamer should report done immediately")
	}
}
