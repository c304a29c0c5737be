package notify

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// fakeSMTP accepts a single session and records the DATA payload.
type fakeSMTP struct {
	ln   net.Listener
	mu   sync.Mutex
	rcpt string
	data string
	done chan struct{}
}

func startFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &fakeSMTP{ln: ln, done: make(chan struct{})}
	go f.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return f
}

func (f *fakeSMTP) serve() {
	defer close(f.done)
	conn, err := f.ln.Accept()
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	r := bufio.NewReader(conn)
	reply := func(s string) { _, _ = conn.Write([]byte(s + "\r\n")) }

	reply("220 fake ESMTP")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			reply("250 fake")
		case strings.HasPrefix(cmd, "MAIL FROM"):
			reply("250 ok")
		case strings.HasPrefix(cmd, "RCPT TO"):
			f.mu.Lock()
			f.rcpt = strings.TrimSpace(line)
			f.mu.Unlock()
			reply("250 ok")
		case cmd == "DATA":
			reply("354 go ahead")
			var b strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				b.WriteString(l)
			}
			f.mu.Lock()
			f.data = b.String()
			f.mu.Unlock()
			reply("250 queued")
		case cmd == "QUIT":
			reply("221 bye")
			return
		default:
			reply("502 not implemented")
		}
	}
}

func TestEmailSenderSend(t *testing.T) {
	srv := startFakeSMTP(t)
	host, portStr, _ := net.SplitHostPort(srv.ln.Addr().String())
	port, _ := strconv.Atoi(portStr)

	s, err := NewEmailSender(SMTPConfig{Host: host, Port: port, From: "tracker@example.com", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}

	if err := s.Send(context.Background(), "alice@example.com", "Video - New Updates (Views: +5)", "Views: 10 (+5)\n"); err != nil {
		t.Fatalf("send: %v", err)
	}
	<-srv.done

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if diff := cmp.Diff("RCPT TO:<alice@example.com>", srv.rcpt); diff != "" {
		t.Errorf("recipient mismatch (-want +got):\n%s", diff)
	}
	for _, want := range []string{"Subject: Video - New Updates (Views: +5)\r\n", "Views: 10 (+5)\r\n"} {
		if !strings.Contains(srv.data, want) {
			t.Errorf("message missing %q:\n%s", want, srv.data)
		}
	}
}

func TestEmailSenderConnectError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	host, portStr, _ := net.SplitHostPort(addr)
	port, _ := strconv.Atoi(portStr)

	s, err := NewEmailSender(SMTPConfig{Host: host, Port: port, From: "tracker@example.com", Timeout: time.Second})
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	if err := s.Send(context.Background(), "alice@example.com", "s", "b"); err == nil {
		t.Fatal("expected connect error, got nil")
	}
}

func TestNewEmailSenderRequiresHost(t *testing.T) {
	if _, err := NewEmailSender(SMTPConfig{From: "a@example.com"}); err == nil {
		t.Fatal("expected error for missing host")
	}
}

func TestBuildMessageStripsHeaderNewlines(t *testing.T) {
	msg := buildMessage("a@example.com", "b@example.com", "line1\r\nBcc: evil@example.com", "body")
	if strings.Contains(msg, "\r\nBcc:") {
		t.Errorf("header injection survived:\n%s", msg)
	}
}
