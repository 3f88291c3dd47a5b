package tts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"

	"navi/pkg/audioconv"
)

// synthTimeout bounds one synthesis round trip; a hung backend must not
// hold an utterance open indefinitely.
const synthTimeout = 30 * time.Second

// utterance is one Speak call in flight: its completion channel, the
// cancel for its synthesis request and, once playing, its beep control.
type utterance struct {
	done   chan struct{}
	once   sync.Once
	cancel context.CancelFunc
	ctrl   *beep.Ctrl
}

func (u *utterance) finish() {
	u.once.Do(func() { close(u.done) })
}

func (u *utterance) abort() {
	if u.cancel != nil {
		u.cancel()
	}
	u.finish()
}

// Speaker plays synthesized speech through the default output device.
// A new Speak cancels whatever is currently playing; Pause and Resume
// act on the active utterance.
type Speaker struct {
	synth    Synthesizer
	fallback Synthesizer
	log      *slog.Logger

	mu  sync.Mutex
	cur *utterance
}

var initSpeaker sync.Once

func NewSpeaker(synth, fallback Synthesizer, log *slog.Logger) (*Speaker, error) {
	var initErr error
	initSpeaker.Do(func() {
		sr := beep.SampleRate(audioconv.SampleRate)
		initErr = speaker.Init(sr, sr.N(100*time.Millisecond))
	})
	if initErr != nil {
		return nil, initErr
	}
	return &Speaker{synth: synth, fallback: fallback, log: log}, nil
}

// Speak starts synthesizing text and returns immediately; synthesis and
// playback run in the background, replacing any utterance in flight. The
// returned channel closes when playback finishes, fails or is cancelled,
// so callers never stall on a broken backend.
func (s *Speaker) Speak(ctx context.Context, text string) <-chan struct{} {
	u := &utterance{done: make(chan struct{})}
	if text == "" {
		u.finish()
		return u.done
	}

	sctx, cancel := context.WithTimeout(ctx, synthTimeout)
	u.cancel = cancel

	s.mu.Lock()
	prev := s.cur
	s.cur = u
	s.mu.Unlock()
	if prev != nil {
		prev.abort()
	}
	speaker.Clear()

	go func() {
		pcm, err := s.render(sctx, text)
		if err != nil {
			s.log.Warn("speech synthesis failed", "err", err)
			u.abort()
			return
		}
		s.startPlayback(u, pcm)
	}()
	return u.done
}

func (s *Speaker) startPlayback(u *utterance, pcm []float32) {
	s.mu.Lock()
	if s.cur != u {
		// replaced or stopped while synthesizing
		s.mu.Unlock()
		u.abort()
		return
	}
	ctrl := &beep.Ctrl{Streamer: newPCMStreamer(pcm)}
	u.ctrl = ctrl
	s.mu.Unlock()

	speaker.Clear()
	speaker.Play(beep.Seq(ctrl, beep.Callback(func() {
		s.mu.Lock()
		if s.cur == u {
			s.cur = nil
		}
		s.mu.Unlock()
		u.abort()
	})))
}

func (s *Speaker) render(ctx context.Context, text string) ([]float32, error) {
	data, err := s.synth.Synthesize(ctx, text)
	if err != nil && s.fallback != nil && ctx.Err() == nil {
		s.log.Warn("primary speech backend failed, using fallback", "err", err)
		data, err = s.fallback.Synthesize(ctx, text)
	}
	if err != nil {
		return nil, err
	}
	return audioconv.DecodePCM16k(data)
}

// Stop cancels the current utterance, if any, closing its channel.
func (s *Speaker) Stop() {
	s.mu.Lock()
	u := s.cur
	s.cur = nil
	s.mu.Unlock()

	speaker.Clear()
	if u != nil {
		u.abort()
	}
}

func (s *Speaker) Pause()  { s.setPaused(true) }
func (s *Speaker) Resume() { s.setPaused(false) }

func (s *Speaker) setPaused(paused bool) {
	s.mu.Lock()
	var ctrl *beep.Ctrl
	if s.cur != nil {
		ctrl = s.cur.ctrl
	}
	s.mu.Unlock()
	if ctrl == nil {
		return
	}
	speaker.Lock()
	ctrl.Paused = paused
	speaker.Unlock()
}

// Speaking reports whether an utterance is being synthesized, playing or
// paused.
func (s *Speaker) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur != nil
}

// pcmStreamer feeds mono 16 kHz float samples to beep, duplicating the
// channel for stereo output.
type pcmStreamer struct {
	pcm []float32
	pos int
}

func newPCMStreamer(pcm []float32) *pcmStreamer {
	return &pcmStreamer{pcm: pcm}
}

func (p *pcmStreamer) Stream(samples [][2]float64) (int, bool) {
	if p.pos >= len(p.pcm) {
		return 0, false
	}
	n := 0
	for i := range samples {
		if p.pos >= len(p.pcm) {
			break
		}
		v := float64(p.pcm[p.pos])
		samples[i][0] = v
		samples[i][1] = v
		p.pos++
		n++
	}
	return n, true
}

func (p *pcmStreamer) Err() error { return nil }
