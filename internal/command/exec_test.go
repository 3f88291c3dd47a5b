package command

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeAutomator records every OS call with its timestamp.
type fakeAutomator struct {
	mu    sync.Mutex
	calls []recordedCall
	fail  map[string]error
}

type recordedCall struct {
	name string
	at   time.Time
}

func (f *fakeAutomator) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{name: name, at: time.Now()})
	if err, ok := f.fail[name]; ok {
		return err
	}
	return nil
}

func (f *fakeAutomator) TypeText(_ context.Context, text string) error {
	return f.record("TYPE " + text)
}
func (f *fakeAutomator) OpenApp(_ context.Context, name string) error {
	return f.record("OPEN " + name)
}
func (f *fakeAutomator) SearchWeb(_ context.Context, q string) error {
	return f.record("SEARCH " + q)
}
func (f *fakeAutomator) PressKeys(_ context.Context, combo string) error {
	return f.record("PRESS " + combo)
}
func (f *fakeAutomator) Click(_ context.Context, x, y int) error {
	return f.record(fmt.Sprintf("CLICK %d,%d", x, y))
}

func (f *fakeAutomator) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.name
	}
	return out
}

func testConfig() ExecConfig {
	return ExecConfig{
		SettleOpenType: 60 * time.Millisecond,
		SettleOpen:     30 * time.Millisecond,
		FocusX:         960,
		FocusY:         540,
	}
}

func wait(t *testing.T, job *Job) {
	t.Helper()
	select {
	case <-job.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("job never completed")
	}
}

func TestExecutorRunsInParseOrder(t *testing.T) {
	auto := &fakeAutomator{}
	job := NewExecutor(auto, testConfig()).Run([]Command{
		{KindSearch, "weather"},
		{KindPress, "^c"},
		{KindClick, "10,20"},
	})
	wait(t, job)

	want := []string{"SEARCH weather", "PRESS ^c", "CLICK 10,20"}
	got := auto.names()
	if len(got) != len(want) {
		t.Fatalf("calls: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExecutorOpenTypeSettleAndFocusClick(t *testing.T) {
	auto := &fakeAutomator{}
	cfg := testConfig()
	job := NewExecutor(auto, cfg).Run([]Command{
		{KindOpen, "notepad"},
		{KindType, "hello world"},
	})
	wait(t, job)

	got := auto.names()
	want := []string{"OPEN notepad", "CLICK 960,540", "TYPE hello world"}
	if len(got) != len(want) {
		t.Fatalf("calls: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d: got %q, want %q", i, got[i], want[i])
		}
	}

	// the TYPE call waits out the longer settle delay after OPEN
	auto.mu.Lock()
	elapsed := auto.calls[2].at.Sub(auto.calls[0].at)
	auto.mu.Unlock()
	if elapsed < cfg.SettleOpenType {
		t.Errorf("TYPE ran %v after OPEN, want >= %v", elapsed, cfg.SettleOpenType)
	}
}

func TestExecutorOpenNonTypeUsesShortSettle(t *testing.T) {
	auto := &fakeAutomator{}
	cfg := testConfig()
	job := NewExecutor(auto, cfg).Run([]Command{
		{KindOpen, "chrome"},
		{KindPress, "{ENTER}"},
	})
	wait(t, job)

	got := auto.names()
	want := []string{"OPEN chrome", "CLICK 960,540", "PRESS {ENTER}"}
	if len(got) != len(want) {
		t.Fatalf("calls: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d: got %q, want %q", i, got[i], want[i])
		}
	}

	auto.mu.Lock()
	elapsed := auto.calls[2].at.Sub(auto.calls[0].at)
	auto.mu.Unlock()
	if elapsed < cfg.SettleOpen {
		t.Errorf("next command ran %v after OPEN, want >= %v", elapsed, cfg.SettleOpen)
	}
}

func TestExecutorTrailingOpenSkipsSettle(t *testing.T) {
	auto := &fakeAutomator{}
	job := NewExecutor(auto, testConfig()).Run([]Command{{KindOpen, "calc"}})
	wait(t, job)

	got := auto.names()
	if len(got) != 1 || got[0] != "OPEN calc" {
		t.Errorf("calls: got %v, want just the open", got)
	}
}

func TestExecutorFailureDoesNotAbortQueue(t *testing.T) {
	auto := &fakeAutomator{fail: map[string]error{
		"PRESS ^c": errors.New("injection refused"),
	}}
	job := NewExecutor(auto, testConfig()).Run([]Command{
		{KindPress, "^c"},
		{KindType, "still here"},
	})
	wait(t, job)

	got := auto.names()
	if len(got) != 2 || got[1] != "TYPE still here" {
		t.Errorf("calls: got %v, want the queue to continue", got)
	}
	if errs := job.Errs(); len(errs) != 1 {
		t.Errorf("recorded errors: got %v, want 1", errs)
	}
}

func TestExecutorDoesNotBlockCaller(t *testing.T) {
	auto := &fakeAutomator{}
	start := time.Now()
	job := NewExecutor(auto, testConfig()).Run([]Command{
		{KindOpen, "notepad"},
		{KindType, "x"},
	})
	if since := time.Since(start); since > 20*time.Millisecond {
		t.Errorf("Run blocked for %v", since)
	}
	wait(t, job)
}

func TestExecutorCancelAbandonsRemainder(t *testing.T) {
	auto := &fakeAutomator{}
	job := NewExecutor(auto, testConfig()).Run([]Command{
		{KindOpen, "notepad"},
		{KindType, "never typed"},
	})
	job.Cancel()
	wait(t, job)

	for _, name := range auto.names() {
		if name == "TYPE never typed" {
			t.Error("cancelled job still dispatched trailing command")
		}
	}
}
