package stt

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
)

var upgrader = ws.Upgrader{}

func wsServer(t *testing.T, handler func(conn *ws.Conn)) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStreamClientTranscriptOrdering(t *testing.T) {
	_, url := wsServer(t, func(conn *ws.Conn) {
		defer conn.Close()
		for {
			var in outFrame
			if err := conn.ReadJSON(&in); err != nil {
				return
			}
			switch in.Type {
			case "audio":
				conn.WriteJSON(inFrame{Type: "transcript", Text: "hel", IsFinal: false})
			case "finalize":
				conn.WriteJSON(inFrame{Type: "transcript", Text: "hello world", IsFinal: true})
			}
		}
	})

	c := NewStreamClient(StreamConfig{URL: url, ConnectTimeout: time.Second})
	defer c.Close()
	c.Listen(true)

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if got := c.State(); got != StateConnected {
		t.Fatalf("state: got %v, want connected", got)
	}

	if err := c.SendFrame(make([]float32, 320)); err != nil {
		t.Fatalf("SendFrame failed: %v", err)
	}
	if err := c.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	var events []Event
	timeout := time.After(2 * time.Second)
	for len(events) < 2 {
		select {
		case ev := <-c.Events():
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("timed out, got %d events", len(events))
		}
	}

	if events[0].Final {
		t.Error("interim event flagged final")
	}
	if !events[1].Final || events[1].Text != "hello world" {
		t.Errorf("final event: got %+v", events[1])
	}
}

func TestStreamClientAudioFrameShape(t *testing.T) {
	frames := make(chan outFrame, 1)
	_, url := wsServer(t, func(conn *ws.Conn) {
		defer conn.Close()
		var in outFrame
		if err := conn.ReadJSON(&in); err == nil {
			frames <- in
		}
	})

	c := NewStreamClient(StreamConfig{URL: url, ConnectTimeout: time.Second})
	defer c.Close()
	c.Listen(true)
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := c.SendFrame([]float32{0, 0.5, -0.5}); err != nil {
		t.Fatalf("SendFrame failed: %v", err)
	}

	select {
	case f := <-frames:
		if f.Type != "audio" {
			t.Errorf("type: got %q, want audio", f.Type)
		}
		if f.Data == "" {
			t.Error("empty base64 payload")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received a frame")
	}
}

func TestStreamClientReconnectsThenFails(t *testing.T) {
	var conns atomic.Int32
	_, url := wsServer(t, func(conn *ws.Conn) {
		conns.Add(1)
		// kill the link without a close handshake: abnormal close
		conn.UnderlyingConn().Close()
	})

	const maxReconnects = 3
	c := NewStreamClient(StreamConfig{
		URL:            url,
		MaxReconnects:  maxReconnects,
		ReconnectDelay: 20 * time.Millisecond,
		ConnectTimeout: time.Second,
	})
	defer c.Close()
	c.Listen(true)

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	select {
	case err := <-c.Errs():
		if !errors.Is(err, ErrServerUnavailable) {
			t.Fatalf("terminal error: got %v, want ErrServerUnavailable", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no terminal error after reconnects exhausted")
	}

	if got := c.State(); got != StateFailed {
		t.Errorf("state: got %v, want failed", got)
	}
	if got := conns.Load(); got != 1+maxReconnects {
		t.Errorf("connection attempts: got %d, want %d", got, 1+maxReconnects)
	}

	// failed state must not auto-reconnect further
	time.Sleep(100 * time.Millisecond)
	if got := conns.Load(); got != 1+maxReconnects {
		t.Errorf("client kept reconnecting after terminal failure: %d conns", got)
	}
}

func TestStreamClientNoReconnectWhenNotListening(t *testing.T) {
	var conns atomic.Int32
	_, url := wsServer(t, func(conn *ws.Conn) {
		conns.Add(1)
		conn.UnderlyingConn().Close()
	})

	c := NewStreamClient(StreamConfig{
		URL:            url,
		MaxReconnects:  3,
		ReconnectDelay: 10 * time.Millisecond,
		ConnectTimeout: time.Second,
	})
	defer c.Close()

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	time.Sleep(150 * time.Millisecond)
	if got := conns.Load(); got != 1 {
		t.Errorf("reconnected while not listening: %d conns", got)
	}
	if got := c.State(); got != StateDisconnected {
		t.Errorf("state: got %v, want disconnected", got)
	}
}

func TestStreamClientSendWhileDisconnected(t *testing.T) {
	c := NewStreamClient(StreamConfig{URL: "ws://localhost:1"})
	if err := c.SendFrame(make([]float32, 16)); err == nil {
		t.Error("expected error sending while disconnected")
	}
}

func TestInScript(t *testing.T) {
	cases := []struct {
		text   string
		script string
		want   bool
	}{
		{"hello world", "latin", true},
		{"привет", "latin", false},
		{"привет", "cyrillic", true},
		{"123 !?", "latin", false},
		{"mixed привет", "latin", true},
		{"anything", "", true},
		{"anything", "klingon", true},
	}
	for _, tc := range cases {
		if got := InScript(tc.text, tc.script); got != tc.want {
			t.Errorf("InScript(%q, %q): got %v, want %v", tc.text, tc.script, got, tc.want)
		}
	}
}

func TestWireFrameJSON(t *testing.T) {
	data, err := json.Marshal(outFrame{Type: "audio", Data: "QUJD"})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"type":"audio","data":"QUJD"}`
	if string(data) != want {
		t.Errorf("frame: got %s, want %s", data, want)
	}
}
