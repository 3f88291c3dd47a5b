package audio

import (
	"testing"
	"time"
)

const testFrame = 20 * time.Millisecond

func newTestVAD() *VAD {
	return NewVAD(0.05, 100*time.Millisecond, testFrame)
}

func TestVADSpeechStartOnce(t *testing.T) {
	v := newTestVAD()

	if ev := v.Observe(0.01); ev != EventNone {
		t.Fatalf("silence: got %v, want EventNone", ev)
	}
	if ev := v.Observe(0.2); ev != EventSpeechStart {
		t.Fatalf("first loud frame: got %v, want EventSpeechStart", ev)
	}
	// staying loud must not re-trigger
	for i := 0; i < 10; i++ {
		if ev := v.Observe(0.2); ev != EventNone {
			t.Fatalf("loud frame %d: got %v, want EventNone", i, ev)
		}
	}
}

func TestVADSustainedSilenceEndsCaptureExactlyOnce(t *testing.T) {
	v := newTestVAD()
	v.Observe(0.2)

	// silence window is 100ms = 5 frames; exactly one end event at frame 5
	var ends int
	for i := 0; i < 20; i++ {
		if v.Observe(0.01) == EventSpeechEnd {
			ends++
			if i != 4 {
				t.Errorf("end fired at frame %d, want 4", i)
			}
		}
	}
	if ends != 1 {
		t.Errorf("end events: got %d, want 1", ends)
	}
}

func TestVADLoudFrameCancelsDebounce(t *testing.T) {
	v := newTestVAD()
	v.Observe(0.2)

	// 4 silent frames (80ms), then speech again: same utterance, no end
	for i := 0; i < 4; i++ {
		if ev := v.Observe(0.01); ev != EventNone {
			t.Fatalf("silent frame %d: got %v, want EventNone", i, ev)
		}
	}
	if ev := v.Observe(0.2); ev != EventNone {
		t.Fatalf("resumed speech: got %v, want EventNone", ev)
	}

	// timer restarted: 4 more silent frames still no end, 5th ends
	for i := 0; i < 4; i++ {
		if ev := v.Observe(0.01); ev != EventNone {
			t.Fatalf("silent frame %d after resume: got %v", i, ev)
		}
	}
	if ev := v.Observe(0.01); ev != EventSpeechEnd {
		t.Fatalf("after full window: got %v, want EventSpeechEnd", ev)
	}
}

func TestVADMuteSuppressesSelfTrigger(t *testing.T) {
	v := newTestVAD()
	v.Mute(true)

	// assistant speech is loud but must not start a capture
	for i := 0; i < 10; i++ {
		if ev := v.Observe(0.5); ev != EventNone {
			t.Fatalf("muted loud frame: got %v, want EventNone", ev)
		}
	}
	if v.Capturing() {
		t.Error("muted VAD reports capturing")
	}

	v.Mute(false)
	if ev := v.Observe(0.5); ev != EventSpeechStart {
		t.Errorf("after unmute: got %v, want EventSpeechStart", ev)
	}
}

func TestVADMuteDropsOpenUtterance(t *testing.T) {
	v := newTestVAD()
	v.Observe(0.2)
	if !v.Capturing() {
		t.Fatal("expected capturing")
	}

	v.Mute(true)
	v.Mute(false)
	if v.Capturing() {
		t.Error("utterance survived mute")
	}
}

func TestFrameRMS(t *testing.T) {
	if rms := FrameRMS(nil); rms != 0 {
		t.Errorf("empty frame: got %v, want 0", rms)
	}
	if rms := FrameRMS([]float32{0.5, -0.5, 0.5, -0.5}); rms != 0.5 {
		t.Errorf("constant magnitude: got %v, want 0.5", rms)
	}
}

func TestRecorderLifecycle(t *testing.T) {
	r := NewRecorder(10 * time.Second)

	if _, err := r.Finalize(); err == nil {
		t.Error("finalize without begin should fail")
	}

	r.Begin()
	frame := make([]float32, 320)
	for i := 0; i < 5; i++ {
		if !r.Append(frame) {
			t.Fatal("hit length cap unexpectedly")
		}
	}

	u, err := r.Finalize()
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if u.State != Finalized {
		t.Errorf("state: got %v, want Finalized", u.State)
	}
	if len(u.Samples) != 5*320 {
		t.Errorf("samples: got %d, want %d", len(u.Samples), 5*320)
	}
	if r.Recording() {
		t.Error("recorder still open after finalize")
	}
}

func TestRecorderLengthCap(t *testing.T) {
	r := NewRecorder(time.Second) // 16000 samples
	r.Begin()
	frame := make([]float32, 8000)

	if !r.Append(frame) {
		t.Fatal("first frame should fit")
	}
	if r.Append(frame) {
		t.Error("second frame should hit the cap")
	}
}
