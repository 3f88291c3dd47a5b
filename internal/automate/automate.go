// Package automate is the OS automation surface: keystroke injection,
// application launch, web search, pointer control and screen capture.
package automate

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	log "log/slog"
	"net/url"
	"os/exec"
	"runtime"
	"strings"

	"github.com/go-vgo/robotgo"
	"github.com/kbinani/screenshot"
	"github.com/pkg/browser"
)

// Robot drives the desktop through robotgo and friends. One instance is
// shared by the executor and the session; calls are expected to arrive
// sequentially (the executor guarantees command ordering).
type Robot struct {
	searchURL string
}

// NewRobot builds the automation surface. searchURL is the search-engine
// prefix the query gets appended to.
func NewRobot(searchURL string) *Robot {
	return &Robot{searchURL: searchURL}
}

// ScreenCenter is the default focus-click coordinate.
func (r *Robot) ScreenCenter() (x, y int) {
	w, h := robotgo.GetScreenSize()
	return w / 2, h / 2
}

// TypeText sends literal text to whatever window holds OS input focus.
// On Windows the injection goes through SendKeys, so operator characters
// are escaped first; elsewhere robotgo types the string as-is.
func (r *Robot) TypeText(ctx context.Context, text string) error {
	if runtime.GOOS == "windows" {
		return sendKeysRaw(ctx, EscapeSendKeys(text))
	}
	robotgo.TypeStr(text)
	return nil
}

// PressKeys sends a SendKeys-syntax key combination to the focused window.
func (r *Robot) PressKeys(ctx context.Context, combo string) error {
	strokes, err := ParseSendKeys(combo)
	if err != nil {
		return err
	}
	for _, ks := range strokes {
		args := make([]interface{}, len(ks.Mods))
		for i, m := range ks.Mods {
			args[i] = m
		}
		if err := robotgo.KeyTap(ks.Key, args...); err != nil {
			return fmt.Errorf("tap %q: %w", ks.Key, err)
		}
	}
	return nil
}

// Click moves the pointer to absolute screen coordinates and issues one
// left click.
func (r *Robot) Click(_ context.Context, x, y int) error {
	robotgo.Move(x, y)
	robotgo.Click("left", false)
	return nil
}

// OpenApp resolves the alias table and launches the application. The call
// returns once the launcher has been started, not when the application
// exits.
func (r *Robot) OpenApp(ctx context.Context, name string) error {
	target := ResolveApp(name)

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.CommandContext(ctx, "cmd", "/c", "start", "", target)
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", "-a", target)
	default:
		cmd = exec.CommandContext(ctx, target)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch %q: %w", target, err)
	}
	go cmd.Wait() // reap; the app outlives us or not, we don't care

	log.Debug("Launched application", "name", name, "target", target)
	return nil
}

// SearchWeb opens the default browser on a search for the query.
func (r *Robot) SearchWeb(_ context.Context, query string) error {
	return browser.OpenURL(r.searchURL + url.QueryEscape(query))
}

// CaptureScreen grabs the primary display as a PNG data URL, the shape
// vision-capable completion backends accept inline.
func (r *Robot) CaptureScreen() (string, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return "", fmt.Errorf("no active displays")
	}
	img, err := screenshot.CaptureDisplay(0)
	if err != nil {
		return "", fmt.Errorf("capture display: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// sendKeysRaw pushes an already-escaped sequence through PowerShell's
// SendKeys. Windows only.
func sendKeysRaw(ctx context.Context, sequence string) error {
	psEscaped := strings.ReplaceAll(sequence, "'", "''")
	script := fmt.Sprintf(
		"Add-Type -AssemblyName System.Windows.Forms; [System.Windows.Forms.SendKeys]::SendWait('%s')",
		psEscaped)
	return exec.CommandContext(ctx, "powershell", "-WindowStyle", "Hidden", "-Command", script).Run()
}
