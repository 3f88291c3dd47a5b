package stt

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"navi/pkg/audioconv"
)

// ConnState is the streaming transport's connection state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateReconnectPending
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnectPending:
		return "reconnect-pending"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// StreamConfig tunes the streaming client's connection behaviour.
type StreamConfig struct {
	URL             string
	MaxReconnects   int
	ReconnectDelay  time.Duration
	ConnectTimeout  time.Duration
	MinConnInterval time.Duration
}

// wire frames, matching the backend's JSON protocol.
type outFrame struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"` // base64 PCM16 mono 16kHz
}

type inFrame struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	IsFinal bool   `json:"is_final,omitempty"`
	Message string `json:"message,omitempty"`
}

// StreamClient is the streaming transcription transport. While listening,
// an abnormal close triggers bounded reconnection with a fixed backoff;
// exhausting the attempts surfaces ErrServerUnavailable on Errs and the
// client stays failed until Listen(true) resets it.
type StreamClient struct {
	cfg StreamConfig

	mu        sync.Mutex
	conn      *ws.Conn
	state     ConnState
	attempts  int
	lastDial  time.Time
	listening bool
	closed    bool

	events chan Event
	errs   chan error
}

func NewStreamClient(cfg StreamConfig) *StreamClient {
	if cfg.MaxReconnects <= 0 {
		cfg.MaxReconnects = 5
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 2 * time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 3 * time.Second
	}
	return &StreamClient{
		cfg:    cfg,
		state:  StateDisconnected,
		events: make(chan Event, 16),
		errs:   make(chan error, 1),
	}
}

// Events yields interim and final transcripts.
func (c *StreamClient) Events() <-chan Event { return c.events }

// Errs reports transport failures, terminally ErrServerUnavailable.
func (c *StreamClient) Errs() <-chan error { return c.errs }

// State returns the current connection state.
func (c *StreamClient) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Listen marks whether a capture session is active. Reconnection only
// happens while listening; enabling it clears a previous terminal failure.
func (c *StreamClient) Listen(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listening = on
	if on && c.state == StateFailed {
		c.state = StateDisconnected
		c.attempts = 0
	}
}

// Connect dials the backend. Dial attempts are rate limited to one per
// MinConnInterval; a second call inside the window waits out the remainder.
func (c *StreamClient) Connect() error {
	c.mu.Lock()
	if c.state == StateConnected || c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	wait := c.cfg.MinConnInterval - time.Since(c.lastDial)
	c.mu.Unlock()

	if wait > 0 {
		time.Sleep(wait)
	}

	conn, err := c.dial()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastDial = time.Now()
	if err != nil {
		c.state = StateDisconnected
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}

	c.conn = conn
	c.state = StateConnected
	go c.readLoop(conn)

	log.Info("Connected to transcription server", "url", c.cfg.URL)
	return nil
}

func (c *StreamClient) dial() (*ws.Conn, error) {
	dialer := ws.Dialer{HandshakeTimeout: c.cfg.ConnectTimeout}
	conn, _, err := dialer.Dial(c.cfg.URL, nil)
	return conn, err
}

// SendFrame pushes one PCM frame as a base64 audio message.
func (c *StreamClient) SendFrame(pcm []float32) error {
	payload := outFrame{
		Type: "audio",
		Data: base64.StdEncoding.EncodeToString(audioconv.Float32ToInt16LE(pcm)),
	}
	return c.write(payload)
}

// Finalize asks the backend to settle the current utterance into one final
// transcript.
func (c *StreamClient) Finalize() error {
	return c.write(outFrame{Type: "finalize"})
}

func (c *StreamClient) write(frame outFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected || c.conn == nil {
		return fmt.Errorf("not connected (state %s)", c.state)
	}
	return c.conn.WriteMessage(ws.TextMessage, data)
}

func (c *StreamClient) readLoop(conn *ws.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			c.onReadError(conn, err)
			return
		}

		// the connection proved healthy, forget earlier failed attempts
		c.mu.Lock()
		c.attempts = 0
		c.mu.Unlock()

		var in inFrame
		if err := json.Unmarshal(msg, &in); err != nil {
			log.Warn("Malformed transcription frame", "err", err)
			continue
		}

		switch in.Type {
		case "transcript":
			if in.Text == "" {
				continue
			}
			c.events <- Event{Text: in.Text, Final: in.IsFinal}
		case "error":
			log.Error("Transcription server error", "message", in.Message)
		case "initialized":
			log.Debug("Transcription server ready")
		default:
			log.Warn("Unknown transcription frame", "type", in.Type)
		}
	}
}

func (c *StreamClient) onReadError(conn *ws.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		// a reconnect already replaced this connection
		c.mu.Unlock()
		return
	}
	c.conn = nil

	clean := c.closed || ws.IsCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway)
	if clean || !c.listening {
		c.state = StateDisconnected
		c.mu.Unlock()
		return
	}

	c.state = StateReconnectPending
	c.mu.Unlock()

	log.Warn("Transcription socket lost", "err", err)
	c.reconnect()
}

func (c *StreamClient) reconnect() {
	for {
		c.mu.Lock()
		if c.closed || !c.listening {
			c.state = StateDisconnected
			c.mu.Unlock()
			return
		}
		if c.attempts >= c.cfg.MaxReconnects {
			c.state = StateFailed
			c.mu.Unlock()
			select {
			case c.errs <- ErrServerUnavailable:
			default:
			}
			return
		}
		c.attempts++
		attempt := c.attempts
		c.mu.Unlock()

		time.Sleep(c.cfg.ReconnectDelay)

		log.Info("Reconnecting to transcription server",
			"attempt", attempt, "max", c.cfg.MaxReconnects)

		conn, err := c.dial()
		c.mu.Lock()
		c.lastDial = time.Now()
		if err == nil {
			if c.closed {
				c.mu.Unlock()
				conn.Close()
				return
			}
			c.conn = conn
			c.state = StateConnected
			c.mu.Unlock()
			go c.readLoop(conn)
			log.Info("Reconnected to transcription server")
			return
		}
		c.mu.Unlock()
	}
}

// Close tears the connection down for good.
func (c *StreamClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.listening = false
	if c.conn != nil {
		c.conn.WriteMessage(ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
		c.conn.Close()
		c.conn = nil
	}
	c.state = StateDisconnected
}
