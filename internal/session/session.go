package session

import (
	"context"
	"errors"
	log "log/slog"
	"strings"
	"time"

	"navi/internal/audio"
	"navi/internal/command"
	"navi/internal/stt"
)

// Mic is an open capture stream. The session opens one per listening
// session and releases it on every exit path.
type Mic interface {
	Frames() <-chan []float32
	Errs() <-chan error
	Close()
}

// Streamer is the streaming transcription transport the loop drives.
type Streamer interface {
	Listen(on bool)
	Connect() error
	SendFrame(pcm []float32) error
	Finalize() error
	Events() <-chan stt.Event
	Errs() <-chan error
}

// Brain produces assistant replies from accumulated turns.
type Brain interface {
	AppendUserTurn(text, imageURL string)
	AppendErrorTurn(text string)
	RequestCompletion(ctx context.Context) (string, error)
}

// Voice plays synthesized speech. Speak must return promptly; synthesis
// and playback run in the background and the channel closes when the
// utterance finishes, fails or is cancelled.
type Voice interface {
	Speak(ctx context.Context, text string) <-chan struct{}
	Stop()
}

// Runner executes parsed commands in the background.
type Runner interface {
	Run(cmds []command.Command) *command.Job
}

// Capturer grabs the screen as an image data URL.
type Capturer interface {
	CaptureScreen() (string, error)
}

// Ducker fades other applications' audio while the assistant speaks.
type Ducker interface {
	Duck(ctx context.Context) error
	Restore(ctx context.Context) error
}

// Earcons plays state-change cues.
type Earcons interface {
	ListenStart()
	ListenStop()
	Error()
}

// Config tunes the capture pipeline.
type Config struct {
	Threshold    float64       // RMS, fraction of full scale
	Silence      time.Duration // debounce before end of capture
	FrameDur     time.Duration // duration of one mic frame
	MaxUtterance time.Duration
	Script       string   // transcript script filter, "" accepts all
	ScreenWords  []string // user phrases that attach a screenshot
}

// Deps are the collaborators the loop drives. OpenMic and one of Stream or
// Batch must be set; Voice, Earcons, Ducker and Screen are optional.
type Deps struct {
	OpenMic func() (Mic, error)
	Stream  Streamer
	Batch   stt.BatchTranscriber
	Brain   Brain
	Exec    Runner
	Voice   Voice
	Earcons Earcons
	Ducker  Ducker
	Screen  Capturer
}

type ctlOp int

const (
	opStart ctlOp = iota
	opStop
	opStatus
	opSay
)

type ctlReq struct {
	op    ctlOp
	text  string
	reply chan ctlResp
}

type ctlResp struct {
	state string
	err   error
}

type resultKind int

const (
	resultConnect resultKind = iota
	resultTranscript
	resultCompletion
)

// result carries the outcome of a background round trip back into the loop.
// gen guards against results from a session that was stopped meanwhile.
type result struct {
	kind resultKind
	gen  int
	text string
	err  error
}

// Session owns the mic stream and the history and sequences the whole
// pipeline. All collaborator calls happen from the Run goroutine; the
// exported methods are safe from any goroutine.
type Session struct {
	cfg  Config
	deps Deps

	fsm machine
	vad *audio.VAD
	rec *audio.Recorder

	ctx       context.Context
	ctl       chan ctlReq
	done      chan struct{}
	results   chan result
	speakDone <-chan struct{}
	gen       int
	ducked    bool

	mic     Mic
	frames  <-chan []float32
	micErrs <-chan error
}

func New(cfg Config, deps Deps) *Session {
	return &Session{
		cfg:     cfg,
		deps:    deps,
		vad:     audio.NewVAD(cfg.Threshold, cfg.Silence, cfg.FrameDur),
		rec:     audio.NewRecorder(cfg.MaxUtterance),
		ctl:     make(chan ctlReq),
		done:    make(chan struct{}),
		results: make(chan result, 4),
	}
}

// Start requests a listening session. It fails unless the session is idle
// or in the error state; teardown of the previous session always completes
// before a new one can begin.
func (s *Session) Start() error {
	return s.control(ctlReq{op: opStart}).err
}

// Stop ends the current session. In-flight executor jobs run to completion.
func (s *Session) Stop() {
	s.control(ctlReq{op: opStop})
}

// StateName reports the current state for status queries.
func (s *Session) StateName() string {
	return s.control(ctlReq{op: opStatus}).state
}

// Say speaks arbitrary text through the session's voice output.
func (s *Session) Say(text string) error {
	return s.control(ctlReq{op: opSay, text: text}).err
}

func (s *Session) control(req ctlReq) ctlResp {
	req.reply = make(chan ctlResp, 1)
	select {
	case s.ctl <- req:
		return <-req.reply
	case <-s.done:
		return ctlResp{state: "stopped", err: errors.New("session loop stopped")}
	}
}

// Run drives the pipeline until ctx is cancelled. It must be started
// before any of the control methods are used.
func (s *Session) Run(ctx context.Context) {
	s.ctx = ctx
	defer close(s.done)

	var events <-chan stt.Event
	var errs <-chan error
	if s.deps.Stream != nil {
		events = s.deps.Stream.Events()
		errs = s.deps.Stream.Errs()
	}

	for {
		select {
		case <-ctx.Done():
			s.teardown()
			return

		case req := <-s.ctl:
			req.reply <- s.handleControl(req)

		case frame, ok := <-s.frames:
			if !ok {
				// reader goroutine gone: the device failed mid-session
				s.handleCaptureError(errors.New("capture stream closed"))
				continue
			}
			s.handleFrame(frame)

		case err := <-s.micErrs:
			s.handleCaptureError(err)

		case ev := <-events:
			s.handleTranscript(ev)

		case err := <-errs:
			s.handleStreamErr(err)

		case res := <-s.results:
			if res.gen == s.gen {
				s.handleResult(res)
			}

		case <-s.speakDone:
			s.handleSpeechDone()
		}
	}
}

func (s *Session) handleControl(req ctlReq) ctlResp {
	switch req.op {
	case opStart:
		return ctlResp{err: s.startListening()}

	case opStop:
		s.stopListening()
		return ctlResp{state: s.fsm.state.String()}

	case opStatus:
		return ctlResp{state: s.fsm.state.String()}

	case opSay:
		return ctlResp{err: s.say(req.text)}
	}
	return ctlResp{err: errors.New("unknown control op")}
}

func (s *Session) startListening() error {
	if _, ok := s.fsm.fire(TriggerStart); !ok {
		return errors.New("session already active")
	}

	mic, err := s.deps.OpenMic()
	if err != nil {
		log.Error("Failed to open microphone", "err", err)
		s.notifyError()
		s.fsm.fire(TriggerFail)
		return err
	}
	s.mic = mic
	s.frames = mic.Frames()
	s.micErrs = mic.Errs()

	if s.deps.Stream == nil {
		// batch and local backends have no connection phase
		s.fsm.fire(TriggerConnected)
		s.notifyListenStart()
		log.Info("Listening")
		return nil
	}

	s.deps.Stream.Listen(true)
	gen := s.gen
	go func() {
		err := s.deps.Stream.Connect()
		s.results <- result{kind: resultConnect, gen: gen, err: err}
	}()
	return nil
}

func (s *Session) stopListening() {
	s.gen++
	s.closeMic()
	if s.deps.Stream != nil {
		s.deps.Stream.Listen(false)
	}
	if s.deps.Voice != nil {
		s.deps.Voice.Stop()
	}
	s.speakDone = nil
	s.restoreDucking()
	s.rec.Discard()
	s.vad.Reset()
	s.vad.Mute(false)
	if _, ok := s.fsm.fire(TriggerStop); ok {
		s.notifyListenStop()
		log.Info("Session stopped")
	}
}

func (s *Session) say(text string) error {
	if s.deps.Voice == nil {
		return errors.New("speech output disabled")
	}
	if _, ok := s.fsm.fire(TriggerSpeak); ok {
		s.beginSpeech(text)
		return nil
	}
	// idle or error: no mic pipeline to guard, play directly
	if s.fsm.state == StateIdle || s.fsm.state == StateError {
		s.deps.Voice.Speak(s.ctx, text)
		return nil
	}
	return errors.New("busy: " + s.fsm.state.String())
}

func (s *Session) handleFrame(frame []float32) {
	if s.fsm.state != StateListening && s.fsm.state != StateCapturing {
		// drained without VAD evaluation; no self-triggering while speaking
		return
	}

	switch s.vad.Feed(frame) {
	case audio.EventSpeechStart:
		s.fsm.fire(TriggerEnergy)
		s.rec.Begin()
		log.Debug("Speech started")
	case audio.EventSpeechEnd:
		s.endCapture("silence")
		return
	}

	if s.rec.Recording() {
		if !s.rec.Append(frame) {
			s.endCapture("length cap")
			return
		}
		if s.deps.Stream != nil {
			if err := s.deps.Stream.SendFrame(frame); err != nil {
				log.Warn("Failed to send audio frame", "err", err)
			}
		}
	}
}

func (s *Session) endCapture(reason string) {
	if _, ok := s.fsm.fire(TriggerSilence); !ok {
		return
	}
	s.vad.Reset()

	u, err := s.rec.Finalize()
	if err != nil {
		log.Warn("No utterance to finalize", "err", err)
		s.fsm.fire(TriggerResume)
		return
	}
	log.Info("Utterance captured", "reason", reason, "duration", u.Duration())

	if s.deps.Stream != nil {
		if err := s.deps.Stream.Finalize(); err != nil {
			log.Error("Failed to request final transcript", "err", err)
			s.fsm.fire(TriggerResume)
		}
		return
	}

	gen := s.gen
	parent := s.ctx
	go func() {
		ctx, cancel := context.WithTimeout(parent, 60*time.Second)
		defer cancel()
		text, err := s.deps.Batch.Transcribe(ctx, u)
		s.results <- result{kind: resultTranscript, gen: gen, text: text, err: err}
	}()
}

func (s *Session) handleTranscript(ev stt.Event) {
	if !ev.Final {
		log.Debug("Interim transcript", "text", ev.Text)
		return
	}

	// the backend may settle the utterance before our own silence debounce
	if s.fsm.state == StateCapturing {
		s.fsm.fire(TriggerSilence)
		s.vad.Reset()
		s.rec.Discard()
	}
	if s.fsm.state != StateFinalizing {
		log.Debug("Dropping transcript outside a capture", "state", s.fsm.state.String())
		return
	}
	s.processFinal(ev.Text)
}

func (s *Session) processFinal(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		s.fsm.fire(TriggerResume)
		return
	}
	if !stt.InScript(text, s.cfg.Script) {
		log.Info("Discarding transcript outside input script", "text", text)
		s.fsm.fire(TriggerResume)
		return
	}

	log.Info("Final transcript", "text", text)

	var imageURL string
	if s.deps.Screen != nil && s.wantsScreen(text) {
		url, err := s.deps.Screen.CaptureScreen()
		if err != nil {
			log.Warn("Screen capture failed", "err", err)
		} else {
			imageURL = url
		}
	}

	s.deps.Brain.AppendUserTurn(text, imageURL)

	gen := s.gen
	ctx := s.ctx
	go func() {
		reply, err := s.deps.Brain.RequestCompletion(ctx)
		s.results <- result{kind: resultCompletion, gen: gen, text: reply, err: err}
	}()
}

func (s *Session) wantsScreen(text string) bool {
	lower := strings.ToLower(text)
	for _, w := range s.cfg.ScreenWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func (s *Session) handleResult(res result) {
	switch res.kind {
	case resultConnect:
		if res.err != nil {
			log.Error("Failed to connect to transcription server", "err", res.err)
			s.notifyError()
			s.failSession()
			s.fsm.fire(TriggerFail)
			return
		}
		if _, ok := s.fsm.fire(TriggerConnected); ok {
			s.notifyListenStart()
			log.Info("Listening")
		}

	case resultTranscript:
		if res.err != nil {
			log.Error("Transcription failed", "err", res.err)
			s.fsm.fire(TriggerResume)
			return
		}
		s.processFinal(res.text)

	case resultCompletion:
		s.handleCompletion(res.text, res.err)
	}
}

func (s *Session) handleCompletion(reply string, err error) {
	if err != nil {
		log.Error("Completion failed", "err", err)
		s.deps.Brain.AppendErrorTurn(err.Error())
		s.fsm.fire(TriggerResume)
		return
	}

	display, cmds := command.Parse(reply)
	if len(cmds) > 0 && s.deps.Exec != nil {
		s.deps.Exec.Run(cmds)
	}

	if display != "" && s.deps.Voice != nil {
		if _, ok := s.fsm.fire(TriggerSpeak); ok {
			s.beginSpeech(display)
			return
		}
	}
	s.fsm.fire(TriggerResume)
}

func (s *Session) beginSpeech(text string) {
	s.vad.Mute(true)
	s.duck()
	s.speakDone = s.deps.Voice.Speak(s.ctx, text)
}

func (s *Session) handleSpeechDone() {
	s.speakDone = nil
	s.restoreDucking()
	s.vad.Mute(false)
	if _, ok := s.fsm.fire(TriggerSpeechDone); ok {
		log.Debug("Speech finished, listening again")
	}
}

func (s *Session) duck() {
	if s.deps.Ducker == nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, 2*time.Second)
	defer cancel()
	if err := s.deps.Ducker.Duck(ctx); err != nil {
		log.Warn("Failed to duck audio", "err", err)
		return
	}
	s.ducked = true
}

func (s *Session) restoreDucking() {
	if !s.ducked || s.deps.Ducker == nil {
		return
	}
	s.ducked = false
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.deps.Ducker.Restore(ctx); err != nil {
		log.Warn("Failed to restore audio", "err", err)
	}
}

func (s *Session) notifyListenStart() {
	if s.deps.Earcons != nil {
		s.deps.Earcons.ListenStart()
	}
}

func (s *Session) notifyListenStop() {
	if s.deps.Earcons != nil {
		s.deps.Earcons.ListenStop()
	}
}

func (s *Session) notifyError() {
	if s.deps.Earcons != nil {
		s.deps.Earcons.Error()
	}
}

func (s *Session) handleStreamErr(err error) {
	if errors.Is(err, stt.ErrServerUnavailable) {
		log.Error("Transcription server unavailable, giving up")
		s.notifyError()
		s.failSession()
		s.fsm.fire(TriggerFail)
		return
	}
	log.Warn("Transcription transport error", "err", err)
}

// handleCaptureError ends the session when the device is revoked or
// unplugged mid-session. The daemon stays up; a new session must be
// initiated explicitly.
func (s *Session) handleCaptureError(err error) {
	s.gen++
	log.Error("Microphone capture failed", "err", err)
	s.notifyError()
	s.failSession()
	s.fsm.fire(TriggerCaptureError)
}

// failSession releases the session's capture resources on the way to the
// error state. The caller fires the trigger that names the cause.
func (s *Session) failSession() {
	s.closeMic()
	if s.deps.Stream != nil {
		s.deps.Stream.Listen(false)
	}
	s.rec.Discard()
	s.vad.Reset()
}

func (s *Session) closeMic() {
	if s.mic == nil {
		return
	}
	s.mic.Close()
	s.mic = nil
	s.frames = nil
	s.micErrs = nil
}

func (s *Session) teardown() {
	s.closeMic()
	if s.deps.Stream != nil {
		s.deps.Stream.Listen(false)
	}
	if s.deps.Voice != nil {
		s.deps.Voice.Stop()
	}
	s.restoreDucking()
}
