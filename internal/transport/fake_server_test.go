package transport

import (
	"context"
	"encoding/base64"
	"net"
	"net/textproto"
	"strings"
	"sync"
)

func withPlaintext() Option {
	return func(o *options) { o.plaintext = true }
}

type receivedMessage struct {
	from string
	to   string
	data string
}

// fakeServer speaks just enough SMTP for net/smtp over a net.Pipe.
type fakeServer struct {
	user, pass string
	mechs      string
	rejectRcpt map[string]bool

	mu       sync.Mutex
	messages []receivedMessage
	quits    int
}

func newFakeServer(user, pass string) *fakeServer {
	return &fakeServer{user: user, pass: pass, mechs: "PLAIN LOGIN", rejectRcpt: map[string]bool{}}
}

func (s *fakeServer) received() []receivedMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]receivedMessage(nil), s.messages...)
}

func (s *fakeServer) quitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quits
}

func angle(arg string) string {
	start := strings.Index(arg, "<")
	end := strings.Index(arg, ">")
	if start < 0 || end < start {
		return ""
	}
	return arg[start+1 : end]
}

func (s *fakeServer) serve(conn net.Conn) {
	defer conn.Close()
	tp := textproto.NewConn(conn)
	tp.PrintfLine("220 localhost ESMTP fake")

	var from, to string
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			tp.PrintfLine("500 empty command")
			continue
		}
		switch strings.ToUpper(fields[0]) {
		case "EHLO", "HELO":
			tp.PrintfLine("250-localhost")
			tp.PrintfLine("250-AUTH %s", s.mechs)
			tp.PrintfLine("250 SIZE 1000000")
		case "AUTH":
			if s.authenticate(tp, fields[1:]) {
				tp.PrintfLine("235 2.7.0 Authentication successful")
			} else {
				tp.PrintfLine("535 5.7.8 Authentication credentials invalid")
			}
		case "*":
			tp.PrintfLine("501 5.0.0 Cancelled")
		case "MAIL":
			from = angle(line)
			tp.PrintfLine("250 2.1.0 OK")
		case "RCPT":
			to = angle(line)
			if s.rejectRcpt[to] {
				tp.PrintfLine("550 5.1.1 No such user")
				continue
			}
			tp.PrintfLine("250 2.1.5 OK")
		case "DATA":
			tp.PrintfLine("354 Go ahead")
			lines, err := tp.ReadDotLines()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.messages = append(s.messages, receivedMessage{from: from, to: to, data: strings.Join(lines, "\n")})
			s.mu.Unlock()
			tp.PrintfLine("250 2.0.0 Queued")
		case "RSET":
			from, to = "", ""
			tp.PrintfLine("250 2.0.0 OK")
		case "NOOP":
			tp.PrintfLine("250 2.0.0 OK")
		case "QUIT":
			s.mu.Lock()
			s.quits++
			s.mu.Unlock()
			tp.PrintfLine("221 2.0.0 Bye")
			return
		default:
			tp.PrintfLine("502 5.5.2 Unrecognized command")
		}
	}
}

func (s *fakeServer) authenticate(tp *textproto.Conn, args []string) bool {
	if len(args) == 0 {
		return false
	}
	switch strings.ToUpper(args[0]) {
	case "PLAIN":
		if len(args) < 2 {
			return false
		}
		raw, err := base64.StdEncoding.DecodeString(args[1])
		if err != nil {
			return false
		}
		return string(raw) == "\x00"+s.user+"\x00"+s.pass
	case "LOGIN":
		user, ok := s.challenge(tp, "Username:")
		if !ok {
			return false
		}
		pass, ok := s.challenge(tp, "Password:")
		if !ok {
			return false
		}
		return user == s.user && pass == s.pass
	}
	return false
}

func (s *fakeServer) challenge(tp *textproto.Conn, prompt string) (string, bool) {
	tp.PrintfLine("334 %s", base64.StdEncoding.EncodeToString([]byte(prompt)))
	line, err := tp.ReadLine()
	if err != nil {
		return "", false
	}
	raw, err := base64.StdEncoding.DecodeString(line)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

// pipeDialer hands every dial to the fake server and records the target.
type pipeDialer struct {
	srv *fakeServer
	err error

	mu    sync.Mutex
	addrs []string
}

func (d *pipeDialer) DialContext(_ context.Context, _, addr string) (net.Conn, error) {
	d.mu.Lock()
	d.addrs = append(d.addrs, addr)
	d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	client, server := net.Pipe()
	go d.srv.serve(server)
	return client, nil
}

func (d *pipeDialer) dials() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.addrs...)
}
