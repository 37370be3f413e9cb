// Command client is a minimal line-oriented terminal client for the
// GoRelay wire contract: it joins, prints incoming envelopes, and turns
// stdin lines into broadcast or private messages.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/NicolasHaas/gorelay/pkg/logging"
	"github.com/NicolasHaas/gorelay/pkg/protocol"
)

// relayConn wraps the TCP connection with a write mutex so the stdin
// loop and typing signals never interleave lines.
type relayConn struct {
	conn net.Conn
	mu   sync.Mutex
}

func (c *relayConn) send(env *protocol.Envelope) error {
	line, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.conn.Write(line)
	return err
}

func main() {
	addr := flag.String("addr", "localhost:5000", "relay server address")
	name := flag.String("name", "", "username to join as (required)")
	flag.Parse()

	// Default to "info"; override with GORELAY_LOG_LEVEL env var.
	level := "info"
	if v := os.Getenv("GORELAY_LOG_LEVEL"); v != "" {
		level = v
	}
	_ = logging.Setup(logging.Options{Level: level, Output: os.Stderr})

	if *name == "" {
		fmt.Fprintln(os.Stderr, "usage: client -name <username> [-addr host:port]")
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		slog.Error("connect failed", "addr", *addr, "err", err)
		os.Exit(1)
	}
	c := &relayConn{conn: conn}

	if err := c.send(&protocol.Envelope{
		Type: protocol.KindJoin,
		From: *name,
		Ts:   time.Now().Unix(),
	}); err != nil {
		slog.Error("join failed", "err", err)
		os.Exit(1)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		receive(conn)
	}()

	go readInput(c)

	<-done
	fmt.Println("disconnected")
}

// receive prints incoming envelopes until the server closes the stream.
func receive(conn net.Conn) {
	scan := bufio.NewScanner(conn)
	scan.Buffer(make([]byte, 0, 4096), protocol.MaxLineBytes)
	for scan.Scan() {
		env, err := protocol.Decode(scan.Bytes())
		if err != nil {
			slog.Debug("undecodable line from server", "err", err)
			continue
		}
		render(env)
	}
}

func render(env *protocol.Envelope) {
	stamp := time.Unix(env.Ts, 0).Format("15:04:05")
	switch env.Type {
	case protocol.KindJoin:
		fmt.Printf("%s * %s is online\n", stamp, env.From)
	case protocol.KindLeave:
		fmt.Printf("%s * %s left\n", stamp, env.From)
	case protocol.KindMsg:
		fmt.Printf("%s <%s> %s\n", stamp, env.From, env.Text)
	case protocol.KindPM:
		fmt.Printf("%s [pm] <%s> %s\n", stamp, env.From, env.Text)
	case protocol.KindSys:
		fmt.Printf("%s ! %s\n", stamp, env.Text)
	default:
		// typing signals and unknown kinds are not rendered
	}
}

// readInput turns stdin lines into envelopes:
//
//	/pm <user> <text>  private message
//	/quit              clean leave
//	anything else      broadcast message
func readInput(c *relayConn) {
	scan := bufio.NewScanner(os.Stdin)
	for scan.Scan() {
		text := strings.TrimSpace(scan.Text())
		if text == "" {
			continue
		}

		switch {
		case text == "/quit":
			_ = c.send(&protocol.Envelope{Type: protocol.KindLeave, Ts: time.Now().Unix()})
			return
		case strings.HasPrefix(text, "/pm "):
			rest := strings.TrimPrefix(text, "/pm ")
			parts := strings.SplitN(rest, " ", 2)
			if len(parts) < 2 {
				fmt.Println("usage: /pm <user> <text>")
				continue
			}
			if err := c.send(&protocol.Envelope{
				Type: protocol.KindPM,
				To:   parts[0],
				Text: parts[1],
				Ts:   time.Now().Unix(),
			}); err != nil {
				slog.Error("send failed", "err", err)
				return
			}
		default:
			if err := c.send(&protocol.Envelope{
				Type: protocol.KindMsg,
				Text: text,
				Ts:   time.Now().Unix(),
			}); err != nil {
				slog.Error("send failed", "err", err)
				return
			}
		}
	}
}
