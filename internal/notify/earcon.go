// Package notify plays short tones marking assistant state changes.
package notify

import (
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/generators"
	"github.com/faiface/beep/speaker"

	"navi/pkg/audioconv"
)

const sampleRate = beep.SampleRate(audioconv.SampleRate)

// Earcons plays audio cues through the shared speaker. The speaker must
// already be initialized (the tts package does this on startup).
type Earcons struct {
	enabled bool
}

func NewEarcons(enabled bool) *Earcons {
	return &Earcons{enabled: enabled}
}

// ListenStart is a short rising cue played when the assistant begins
// listening for commands.
func (e *Earcons) ListenStart() {
	e.play(880, 120*time.Millisecond)
}

// ListenStop is a lower cue for leaving the listening state.
func (e *Earcons) ListenStop() {
	e.play(440, 120*time.Millisecond)
}

// Error is a long low buzz for terminal failures such as an unreachable
// transcription server.
func (e *Earcons) Error() {
	e.play(220, 350*time.Millisecond)
}

func (e *Earcons) play(freq int, d time.Duration) {
	if e == nil || !e.enabled {
		return
	}
	tone, err := generators.SinTone(sampleRate, freq)
	if err != nil {
		return
	}
	speaker.Play(beep.Take(sampleRate.N(d), tone))
}
