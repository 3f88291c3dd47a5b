// Package ipc is the unix-socket control protocol between the daemon and
// the ctl binary. One request, one reply, both single JSON objects.
package ipc

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"
)

const SocketPath = "/tmp/navi.sock"

// ControlMessage is a request from ctl to the daemon.
type ControlMessage struct {
	Cmd  string `json:"cmd"`            // "listen" | "stop" | "status" | "say"
	Text string `json:"text,omitempty"` // say payload
}

// Reply is the daemon's answer.
type Reply struct {
	OK    bool   `json:"ok"`
	State string `json:"state,omitempty"`
	Error string `json:"error,omitempty"`
}

// Handler processes one control message and produces the reply.
type Handler func(msg ControlMessage) Reply

// Server accepts control connections on the unix socket.
type Server struct {
	ln net.Listener
}

// StartServer removes any stale socket, binds and serves in the
// background.
func StartServer(path string, handler Handler) (*Server, error) {
	if path == "" {
		path = SocketPath
	}
	os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", path, err)
	}

	s := &Server{ln: ln}
	go s.acceptLoop(handler)
	return s, nil
}

func (s *Server) acceptLoop(handler Handler) {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go handleConn(conn, handler)
	}
}

func (s *Server) Close() error { return s.ln.Close() }

func handleConn(conn net.Conn, handler Handler) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(30 * time.Second))

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		json.NewEncoder(conn).Encode(Reply{Error: "malformed request"})
		return
	}
	json.NewEncoder(conn).Encode(handler(msg))
}

// Send delivers one control message to a running daemon and returns its
// reply.
func Send(path string, msg ControlMessage) (Reply, error) {
	if path == "" {
		path = SocketPath
	}

	conn, err := net.DialTimeout("unix", path, 3*time.Second)
	if err != nil {
		return Reply{}, fmt.Errorf("dial %s: %w", path, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(30 * time.Second))

	if err := json.NewEncoder(conn).Encode(msg); err != nil {
		return Reply{}, fmt.Errorf("send: %w", err)
	}

	var reply Reply
	if err := json.NewDecoder(conn).Decode(&reply); err != nil {
		return Reply{}, fmt.Errorf("read reply: %w", err)
	}
	return reply, nil
}
