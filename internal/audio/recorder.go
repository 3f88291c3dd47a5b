package audio

import (
	"errors"
	"time"
)

// UtteranceState tracks one utterance through its lifecycle.
type UtteranceState int

const (
	Capturing UtteranceState = iota
	Finalized
	Discarded
)

// Utterance is one bounded span of captured speech.
type Utterance struct {
	Start   time.Time
	End     time.Time
	Samples []float32
	State   UtteranceState
}

// Duration is the captured span length implied by the sample count.
func (u *Utterance) Duration() time.Duration {
	return time.Duration(len(u.Samples)) * time.Second / SampleRate
}

// Recorder buffers frames of one utterance between speech-start and
// speech-end. At most one utterance is open at a time; the buffer is
// released on Finalize or Discard.
type Recorder struct {
	buf        []float32
	start      time.Time
	maxSamples int
	open       bool
}

func NewRecorder(maxDur time.Duration) *Recorder {
	return &Recorder{maxSamples: int(maxDur.Seconds() * SampleRate)}
}

// Begin opens a new utterance. Beginning while one is open discards the
// previous partial capture.
func (r *Recorder) Begin() {
	r.buf = make([]float32, 0, SampleRate*3)
	r.start = time.Now()
	r.open = true
}

// Append adds one frame to the open utterance. Returns false once the
// utterance hits the configured length cap, signalling the caller to force
// finalization.
func (r *Recorder) Append(frame []float32) bool {
	if !r.open {
		return true
	}
	r.buf = append(r.buf, frame...)
	return r.maxSamples <= 0 || len(r.buf) < r.maxSamples
}

// Recording reports whether an utterance is open.
func (r *Recorder) Recording() bool { return r.open }

// Finalize closes the open utterance and hands its buffer over. The
// recorder keeps no reference to the samples afterwards.
func (r *Recorder) Finalize() (*Utterance, error) {
	if !r.open {
		return nil, errors.New("no utterance in progress")
	}
	u := &Utterance{
		Start:   r.start,
		End:     time.Now(),
		Samples: r.buf,
		State:   Finalized,
	}
	r.buf = nil
	r.open = false
	return u, nil
}

// Discard drops the open utterance, if any.
func (r *Recorder) Discard() {
	r.buf = nil
	r.open = false
}
