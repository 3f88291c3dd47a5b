package command

import (
	"context"
	"fmt"
	log "log/slog"
	"sync"
	"time"
)

// Automator is the OS automation surface commands execute against.
type Automator interface {
	TypeText(ctx context.Context, text string) error
	OpenApp(ctx context.Context, name string) error
	SearchWeb(ctx context.Context, query string) error
	PressKeys(ctx context.Context, combo string) error
	Click(ctx context.Context, x, y int) error
}

// ExecConfig tunes command timing.
type ExecConfig struct {
	// SettleOpenType is the wait after OPEN when the next command is TYPE,
	// giving the launched application time to take foreground focus.
	SettleOpenType time.Duration
	// SettleOpen is the shorter wait after OPEN before any other command.
	SettleOpen time.Duration
	// FocusX, FocusY is where the focusing click after OPEN lands,
	// normally the screen center.
	FocusX, FocusY int
}

// Job is one spawned execution of a command queue. It completes on its own;
// stopping a listening session deliberately does not cancel it — commands
// already dispatched run to their end. Cancel exists for teardown paths
// that do want to abandon the remainder of the queue.
type Job struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu   sync.Mutex
	errs []error
}

// Done closes when every command has run.
func (j *Job) Done() <-chan struct{} { return j.done }

// Cancel abandons commands not yet dispatched.
func (j *Job) Cancel() { j.cancel() }

// Errs returns per-command failures collected so far.
func (j *Job) Errs() []error {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]error, len(j.errs))
	copy(out, j.errs)
	return out
}

func (j *Job) record(err error) {
	j.mu.Lock()
	j.errs = append(j.errs, err)
	j.mu.Unlock()
}

// Executor runs command queues sequentially in a background job while
// speech playback proceeds concurrently.
type Executor struct {
	auto Automator
	cfg  ExecConfig
}

func NewExecutor(auto Automator, cfg ExecConfig) *Executor {
	return &Executor{auto: auto, cfg: cfg}
}

// Run spawns the queue and returns immediately. Commands execute strictly
// in parse order; command i+1 starts only after command i's OS call
// returned. A command's failure is logged and recorded, never fatal to the
// remainder.
func (e *Executor) Run(cmds []Command) *Job {
	ctx, cancel := context.WithCancel(context.Background())
	job := &Job{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(job.done)
		defer cancel()

		for i, cmd := range cmds {
			if ctx.Err() != nil {
				return
			}

			log.Info("Executing command", "index", i, "kind", cmd.Kind, "payload", cmd.Payload)
			if err := e.dispatch(ctx, cmd); err != nil {
				log.Error("Command failed", "kind", cmd.Kind, "err", err)
				job.record(fmt.Errorf("%s: %w", cmd.Kind, err))
			}

			if cmd.Kind == KindOpen && i+1 < len(cmds) {
				e.settleAfterOpen(ctx, cmds[i+1].Kind, job)
			}
		}
	}()

	return job
}

func (e *Executor) dispatch(ctx context.Context, cmd Command) error {
	switch cmd.Kind {
	case KindType:
		return e.auto.TypeText(ctx, cmd.Payload)
	case KindOpen:
		return e.auto.OpenApp(ctx, cmd.Payload)
	case KindSearch:
		return e.auto.SearchWeb(ctx, cmd.Payload)
	case KindPress:
		return e.auto.PressKeys(ctx, cmd.Payload)
	case KindClick:
		x, y, err := cmd.ClickCoords()
		if err != nil {
			return err
		}
		return e.auto.Click(ctx, x, y)
	}
	return fmt.Errorf("unknown command kind %q", cmd.Kind)
}

// settleAfterOpen waits for the opened application to take foreground
// focus, then clicks the focus point so the next command lands in the new
// window. The click happens after OPEN regardless of what follows.
func (e *Executor) settleAfterOpen(ctx context.Context, next Kind, job *Job) {
	delay := e.cfg.SettleOpen
	if next == KindType {
		delay = e.cfg.SettleOpenType
	}

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return
	}

	if err := e.auto.Click(ctx, e.cfg.FocusX, e.cfg.FocusY); err != nil {
		log.Error("Focus click failed", "err", err)
		job.record(fmt.Errorf("focus click: %w", err))
	}
}
