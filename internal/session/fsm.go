// Package session runs the voice-command pipeline as an explicit state
// machine driven by a single goroutine.
package session

// State is the session's lifecycle phase.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateListening
	StateCapturing
	StateFinalizing
	StateSpeaking
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateListening:
		return "listening"
	case StateCapturing:
		return "capturing"
	case StateFinalizing:
		return "finalizing"
	case StateSpeaking:
		return "speaking"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Trigger is an event that may move the machine to a new state.
type Trigger int

const (
	TriggerStart        Trigger = iota // listen requested
	TriggerConnected                   // transport ready
	TriggerEnergy                      // frame energy above threshold
	TriggerSilence                     // silence debounce fired (or length cap)
	TriggerResume                      // round dropped or finished without speech
	TriggerSpeak                       // completion produced prose
	TriggerSpeechDone                  // playback finished
	TriggerFail                        // terminal transport failure
	TriggerCaptureError                // microphone stream failed
	TriggerStop                        // stop requested
)

func (t Trigger) String() string {
	switch t {
	case TriggerStart:
		return "start"
	case TriggerConnected:
		return "connected"
	case TriggerEnergy:
		return "energy"
	case TriggerSilence:
		return "silence"
	case TriggerResume:
		return "resume"
	case TriggerSpeak:
		return "speak"
	case TriggerSpeechDone:
		return "speech-done"
	case TriggerFail:
		return "fail"
	case TriggerCaptureError:
		return "capture-error"
	case TriggerStop:
		return "stop"
	}
	return "unknown"
}

// transitions is the machine as data: current state, trigger, next state.
// A pair absent from the table is an invalid transition and is ignored.
var transitions = map[State]map[Trigger]State{
	StateIdle: {
		TriggerStart: StateConnecting,
	},
	StateConnecting: {
		TriggerConnected:    StateListening,
		TriggerFail:         StateError,
		TriggerCaptureError: StateError,
		TriggerStop:         StateIdle,
	},
	StateListening: {
		TriggerEnergy:       StateCapturing,
		TriggerSpeak:        StateSpeaking,
		TriggerFail:         StateError,
		TriggerCaptureError: StateError,
		TriggerStop:         StateIdle,
	},
	StateCapturing: {
		TriggerSilence:      StateFinalizing,
		TriggerFail:         StateError,
		TriggerCaptureError: StateError,
		TriggerStop:         StateIdle,
	},
	StateFinalizing: {
		TriggerResume:       StateListening,
		TriggerSpeak:        StateSpeaking,
		TriggerFail:         StateError,
		TriggerCaptureError: StateError,
		TriggerStop:         StateIdle,
	},
	StateSpeaking: {
		TriggerSpeechDone:   StateListening,
		TriggerFail:         StateError,
		TriggerCaptureError: StateError,
		TriggerStop:         StateIdle,
	},
	StateError: {
		TriggerStart: StateConnecting,
		TriggerStop:  StateIdle,
	},
}

// machine holds the current state. It is only touched from the session
// loop goroutine; Session.StateName goes through the control channel.
type machine struct {
	state State
}

// fire applies a trigger. It reports whether the transition was valid and,
// if so, the state it moved to.
func (m *machine) fire(t Trigger) (State, bool) {
	next, ok := transitions[m.state][t]
	if !ok {
		return m.state, false
	}
	m.state = next
	return next, true
}
