package audio

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

var volumeRe = regexp.MustCompile(`(\d+)\s*%`)

// Ducker fades down every other application's audio stream while the
// assistant speaks, so playback does not bleed into the microphone, and
// restores the original volumes afterwards. Linux only (pactl); on systems
// without pactl every call is a logged no-op at the call site.
type Ducker struct {
	mu        sync.Mutex
	active    bool
	selfName  string
	original  map[int]int // sink input id -> volume percent before ducking
	minVolume int
	fade      time.Duration
}

func NewDucker(selfName string, minVolume int, fade time.Duration) *Ducker {
	if minVolume < 0 {
		minVolume = 0
	}
	return &Ducker{
		selfName:  selfName,
		original:  make(map[int]int),
		minVolume: minVolume,
		fade:      fade,
	}
}

// Duck fades all foreign streams down to minVolume. Idempotent while active.
func (d *Ducker) Duck(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return nil
	}

	streams, err := listSinkInputs(ctx)
	if err != nil {
		return err
	}

	d.original = make(map[int]int)
	for _, s := range streams {
		if s.app == d.selfName {
			continue
		}
		d.original[s.id] = s.volume
		if err := fadeSinkInput(ctx, s.id, s.volume, d.minVolume, d.fade); err != nil {
			return err
		}
	}

	d.active = true
	return nil
}

// Restore brings every ducked stream back to its pre-duck volume.
func (d *Ducker) Restore(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return nil
	}

	for id, vol := range d.original {
		if err := fadeSinkInput(ctx, id, d.minVolume, vol, d.fade); err != nil {
			return err
		}
	}

	d.original = make(map[int]int)
	d.active = false
	return nil
}

type sinkInput struct {
	id     int
	volume int
	app    string
}

func listSinkInputs(ctx context.Context) ([]sinkInput, error) {
	out, err := exec.CommandContext(ctx, "pactl", "list", "sink-inputs").Output()
	if err != nil {
		return nil, fmt.Errorf("pactl list sink-inputs: %w", err)
	}

	blocks := strings.Split(string(out), "Sink Input #")
	var res []sinkInput
	for _, block := range blocks[1:] {
		nl := strings.IndexByte(block, '\n')
		if nl <= 0 {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(block[:nl]))
		if err != nil {
			continue
		}

		s := sinkInput{id: id}
		for _, line := range strings.Split(block[nl+1:], "\n") {
			line = strings.TrimSpace(line)
			if strings.HasPrefix(line, "Volume:") && s.volume == 0 {
				if m := volumeRe.FindStringSubmatch(line); len(m) >= 2 {
					s.volume, _ = strconv.Atoi(m[1])
				}
			}
			if strings.HasPrefix(line, "application.name =") && s.app == "" {
				if i := strings.Index(line, `"`); i >= 0 {
					rest := line[i+1:]
					if j := strings.Index(rest, `"`); j >= 0 {
						s.app = rest[:j]
					}
				}
			}
		}
		if s.volume == 0 && s.app == "" {
			continue
		}
		res = append(res, s)
	}
	return res, nil
}

func fadeSinkInput(ctx context.Context, id, from, to int, duration time.Duration) error {
	const stepDur = 20 * time.Millisecond

	steps := int(duration / stepDur)
	if steps < 1 {
		steps = 1
	}

	for i := 1; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		frac := float64(i) / float64(steps)
		v := int(math.Round(float64(from) + float64(to-from)*frac))
		if err := setSinkInputVolume(ctx, id, v); err != nil {
			return err
		}
		if i < steps {
			time.Sleep(stepDur)
		}
	}
	return nil
}

func setSinkInputVolume(ctx context.Context, id, percent int) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 150 {
		percent = 150
	}
	return exec.CommandContext(ctx, "pactl",
		"set-sink-input-volume", strconv.Itoa(id), fmt.Sprintf("%d%%", percent)).Run()
}
