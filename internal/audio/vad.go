package audio

import (
	"math"
	"time"
)

// Event is a speech-boundary decision for one audio frame.
type Event int

const (
	EventNone Event = iota
	EventSpeechStart
	EventSpeechEnd
)

// VAD classifies a stream of fixed-size frames as speech or silence by
// short-time RMS energy against an amplitude threshold. Speech end is
// debounced: energy must stay below the threshold for the whole silence
// window before end-capture fires; any loud frame inside the window cancels
// it and the utterance continues.
//
// VAD is not safe for concurrent use; a single session loop owns it.
type VAD struct {
	threshold float64
	silence   time.Duration
	frameDur  time.Duration

	capturing bool
	silentFor time.Duration
	muted     bool
}

func NewVAD(threshold float64, silence, frameDur time.Duration) *VAD {
	return &VAD{
		threshold: threshold,
		silence:   silence,
		frameDur:  frameDur,
	}
}

// Feed classifies one frame and returns the boundary event it produces,
// if any.
func (v *VAD) Feed(frame []float32) Event {
	return v.Observe(FrameRMS(frame))
}

// Observe is Feed for a precomputed energy value.
func (v *VAD) Observe(rms float64) Event {
	if v.muted {
		return EventNone
	}

	if rms > v.threshold {
		v.silentFor = 0
		if !v.capturing {
			v.capturing = true
			return EventSpeechStart
		}
		return EventNone
	}

	if !v.capturing {
		return EventNone
	}

	v.silentFor += v.frameDur
	if v.silentFor >= v.silence {
		v.capturing = false
		v.silentFor = 0
		return EventSpeechEnd
	}
	return EventNone
}

// Mute suppresses all events while the assistant is speaking, so the
// detector does not trigger on its own voice. Muting mid-utterance drops
// the utterance.
func (v *VAD) Mute(muted bool) {
	v.muted = muted
	if muted {
		v.capturing = false
		v.silentFor = 0
	}
}

// Capturing reports whether the detector is inside an utterance.
func (v *VAD) Capturing() bool { return v.capturing }

// Reset returns the detector to its initial silent state.
func (v *VAD) Reset() {
	v.capturing = false
	v.silentFor = 0
}

// FrameRMS is the root-mean-square energy of one frame.
func FrameRMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
