package ipc

import (
	"net"
	"path/filepath"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "navi.sock")

	srv, err := StartServer(sock, func(msg ControlMessage) Reply {
		switch msg.Cmd {
		case "status":
			return Reply{OK: true, State: "listening"}
		case "say":
			if msg.Text == "" {
				return Reply{Error: "say needs text"}
			}
			return Reply{OK: true}
		}
		return Reply{Error: "unknown command"}
	})
	if err != nil {
		t.Fatalf("start server: %v", err)
	}
	defer srv.Close()

	reply, err := Send(sock, ControlMessage{Cmd: "status"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !reply.OK || reply.State != "listening" {
		t.Fatalf("status reply = %+v", reply)
	}

	reply, err = Send(sock, ControlMessage{Cmd: "say", Text: "hello"})
	if err != nil {
		t.Fatalf("send say: %v", err)
	}
	if !reply.OK {
		t.Fatalf("say reply = %+v", reply)
	}

	reply, err = Send(sock, ControlMessage{Cmd: "dance"})
	if err != nil {
		t.Fatalf("send unknown: %v", err)
	}
	if reply.OK || reply.Error == "" {
		t.Fatalf("unknown command reply = %+v", reply)
	}
}

func TestMalformedRequest(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "navi.sock")

	srv, err := StartServer(sock, func(ControlMessage) Reply { return Reply{OK: true} })
	if err != nil {
		t.Fatalf("start server: %v", err)
	}
	defer srv.Close()

	conn, err := net.Dial("unix", sock)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("not json\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := string(buf[:n]); got == "" {
		t.Fatal("expected an error reply")
	}
}

func TestSendWithoutDaemon(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "gone.sock")
	if _, err := Send(sock, ControlMessage{Cmd: "status"}); err == nil {
		t.Fatal("expected dial error with no daemon running")
	}
}
