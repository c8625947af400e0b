package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/mailmerge/internal/domain"
)

// smtpSession is a Session over net/smtp.
type smtpSession struct {
	provider    domain.Provider
	conn        net.Conn
	client      *smtp.Client
	sendTimeout time.Duration
	now         func() time.Time
	broken      bool
}

// dial connects, negotiates TLS and authenticates. Any failure closes the
// connection before returning.
func dial(ctx context.Context, o *options, ep endpoint) (Session, error) {
	addr := net.JoinHostPort(ep.host, strconv.Itoa(ep.port))
	connErr := func(err error) error {
		return &domain.ConnectError{Provider: ep.provider, Addr: addr, Err: err}
	}

	dialCtx, cancel := context.WithTimeout(ctx, o.dialTimeout)
	defer cancel()

	conn, err := o.dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, connErr(err)
	}
	_ = conn.SetDeadline(time.Now().Add(o.dialTimeout))

	tlsCfg := tlsConfigFor(o, ep.host)
	if ep.security == implicitTLS && !o.plaintext {
		tlsConn := tls.Client(conn, tlsCfg)
		if err := tlsConn.HandshakeContext(dialCtx); err != nil {
			conn.Close()
			return nil, connErr(fmt.Errorf("tls handshake: %w", err))
		}
		conn = tlsConn
	}

	client, err := smtp.NewClient(conn, ep.host)
	if err != nil {
		conn.Close()
		return nil, connErr(fmt.Errorf("greeting: %w", err))
	}
	fail := func(err error) (Session, error) {
		client.Close()
		return nil, err
	}

	if err := client.Hello(o.helloName); err != nil {
		return fail(connErr(fmt.Errorf("hello: %w", err)))
	}

	if ep.security == startTLS && !o.plaintext {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			return fail(connErr(errors.New("server does not offer STARTTLS")))
		}
		if err := client.StartTLS(tlsCfg); err != nil {
			return fail(connErr(fmt.Errorf("starttls: %w", err)))
		}
	}

	auth, err := chooseAuth(client, ep)
	if err != nil {
		return fail(connErr(err))
	}
	if err := client.Auth(auth); err != nil {
		return fail(classifyAuth(ep, addr, err))
	}

	_ = conn.SetDeadline(time.Time{})
	return &smtpSession{
		provider:    ep.provider,
		conn:        conn,
		client:      client,
		sendTimeout: o.sendTimeout,
		now:         time.Now,
	}, nil
}

func tlsConfigFor(o *options, host string) *tls.Config {
	var cfg *tls.Config
	if o.tlsConfig != nil {
		cfg = o.tlsConfig.Clone()
	} else {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	cfg.ServerName = host
	return cfg
}

// chooseAuth prefers PLAIN and falls back to LOGIN, which Office 365 offers
// on its submission port.
func chooseAuth(client *smtp.Client, ep endpoint) (smtp.Auth, error) {
	ok, params := client.Extension("AUTH")
	if !ok {
		return nil, errors.New("server does not offer AUTH")
	}
	mechs := strings.Fields(strings.ToUpper(params))
	for _, m := range mechs {
		if m == "PLAIN" {
			return smtp.PlainAuth("", ep.principal, ep.secret, ep.host), nil
		}
	}
	for _, m := range mechs {
		if m == "LOGIN" {
			return &loginAuth{username: ep.principal, password: ep.secret, host: ep.host}, nil
		}
	}
	return nil, fmt.Errorf("no supported AUTH mechanism in %q", params)
}

// classifyAuth separates a server rejecting the login from a connection
// that broke during the exchange.
func classifyAuth(ep endpoint, addr string, err error) error {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return &domain.AuthError{Provider: ep.provider, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, net.ErrClosed) {
		return &domain.ConnectError{Provider: ep.provider, Addr: addr, Err: err}
	}
	return &domain.AuthError{Provider: ep.provider, Err: err}
}

// Send runs one MAIL/RCPT/DATA transaction.
func (s *smtpSession) Send(ctx context.Context, msg *domain.EmailMessage) error {
	if s.broken {
		return &domain.SendError{Recipient: msg.To, Err: errors.New("session is closed")}
	}
	if err := ctx.Err(); err != nil {
		return &domain.SendError{Recipient: msg.To, Err: err}
	}

	deadline := s.now().Add(s.sendTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = s.conn.SetDeadline(deadline)
	defer s.conn.SetDeadline(time.Time{})

	data, err := Compose(msg, s.now())
	if err != nil {
		return &domain.SendError{Recipient: msg.To, Err: err}
	}

	if err := s.transaction(msg.From, msg.To, data); err != nil {
		s.abort(err)
		return &domain.SendError{Recipient: msg.To, Err: err}
	}
	return nil
}

func (s *smtpSession) transaction(from, to string, data []byte) error {
	if err := s.client.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	if err := s.client.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO: %w", err)
	}
	w, err := s.client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("DATA close: %w", err)
	}
	return nil
}

// abort resets the transaction after a server rejection. A failed reset or
// a transport error leaves the session unusable.
func (s *smtpSession) abort(cause error) {
	var tpErr *textproto.Error
	if errors.As(cause, &tpErr) && s.client.Reset() == nil {
		return
	}
	s.broken = true
}

func (s *smtpSession) Usable() bool { return !s.broken }

func (s *smtpSession) Close() error {
	if s.broken {
		return s.client.Close()
	}
	s.broken = true
	_ = s.conn.SetDeadline(s.now().Add(s.sendTimeout))
	if err := s.client.Quit(); err != nil {
		s.client.Close()
		return err
	}
	return nil
}
