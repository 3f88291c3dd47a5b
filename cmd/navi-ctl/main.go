package main

import (
	"fmt"
	"os"
	"strings"

	cli "github.com/spf13/pflag"

	"navi/internal/ipc"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: navi-ctl [--socket path] listen|stop|status|say <text>")
	os.Exit(2)
}

func main() {
	socket := cli.StringP("socket", "s", ipc.SocketPath, "Control socket path")
	cli.Parse()

	args := cli.Args()
	if len(args) == 0 {
		usage()
	}

	msg := ipc.ControlMessage{Cmd: args[0]}
	switch args[0] {
	case "listen", "stop", "status":
	case "say":
		if len(args) < 2 {
			usage()
		}
		msg.Text = strings.Join(args[1:], " ")
	default:
		usage()
	}

	reply, err := ipc.Send(*socket, msg)
	if err != nil {
		fmt.Println("navi-daemon not running:", err)
		os.Exit(1)
	}

	if reply.Error != "" {
		fmt.Println("error:", reply.Error)
		if reply.State != "" {
			fmt.Println("state:", reply.State)
		}
		os.Exit(1)
	}
	if reply.State != "" {
		fmt.Println("state:", reply.State)
	} else {
		fmt.Println("ok")
	}
}
