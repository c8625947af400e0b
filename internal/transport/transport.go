// Package transport connects to outbound mail providers.
//
// Each provider (gmail, outlook, generic SMTP relay) is a Connector. The
// Selector resolves a Connector by provider id, validates the credential bag
// and returns an authenticated Session. A Session is owned by exactly one
// goroutine and may be reused for many sends.
package transport

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/ignite/mailmerge/internal/domain"
)

// Default timeouts applied when the caller does not override them.
const (
	DefaultDialTimeout = 30 * time.Second
	DefaultSendTimeout = 60 * time.Second
)

// Session is an authenticated connection to a mail server.
type Session interface {
	// Send hands one composed message to the server. The session stays usable
	// after a successful send.
	Send(ctx context.Context, msg *domain.EmailMessage) error
	// Usable reports whether the session can carry another message after a
	// failed Send.
	Usable() bool
	// Close ends the session with QUIT and releases the connection.
	Close() error
}

// Connector opens sessions for one provider.
type Connector interface {
	Provider() domain.Provider
	// Validate checks the credential bag without touching the network.
	Validate(creds map[string]string) error
	Connect(ctx context.Context, creds map[string]string) (Session, error)
}

// Dialer abstracts net.Dialer so tests can observe or fake connections.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

type options struct {
	dialer      Dialer
	dialTimeout time.Duration
	sendTimeout time.Duration
	helloName   string
	tlsConfig   *tls.Config
	plaintext   bool
}

// Option configures a Selector.
type Option func(*options)

// WithDialer swaps the network dialer.
func WithDialer(d Dialer) Option {
	return func(o *options) {
		if d != nil {
			o.dialer = d
		}
	}
}

// WithDialTimeout bounds connection establishment.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.dialTimeout = d
		}
	}
}

// WithSendTimeout bounds each SMTP exchange on an open session.
func WithSendTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.sendTimeout = d
		}
	}
}

// WithHelloName sets the EHLO identity.
func WithHelloName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.helloName = name
		}
	}
}

// WithTLSConfig overrides the TLS settings. ServerName is always set to the
// provider host.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *options) {
		if cfg != nil {
			o.tlsConfig = cfg
		}
	}
}

// Selector maps provider ids to connectors.
type Selector struct {
	connectors map[domain.Provider]Connector
}

// NewSelector returns a Selector with the gmail, outlook and smtp connectors
// registered.
func NewSelector(opts ...Option) *Selector {
	o := &options{
		dialTimeout: DefaultDialTimeout,
		sendTimeout: DefaultSendTimeout,
		helloName:   "localhost",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.dialer == nil {
		o.dialer = &net.Dialer{Timeout: o.dialTimeout}
	}

	s := &Selector{connectors: make(map[domain.Provider]Connector)}
	s.Register(&gmailConnector{opts: o})
	s.Register(&outlookConnector{opts: o})
	s.Register(&relayConnector{opts: o})
	return s
}

// Register adds or replaces the connector for its provider.
func (s *Selector) Register(c Connector) {
	s.connectors[c.Provider()] = c
}

func (s *Selector) lookup(p domain.Provider) (Connector, error) {
	c, ok := s.connectors[p]
	if !ok {
		return nil, &domain.ConfigError{Msg: "unsupported provider", Err: domain.ErrUnsupportedProvider}
	}
	return c, nil
}

// Validate runs the provider's credential check without dialing.
func (s *Selector) Validate(p domain.Provider, creds map[string]string) error {
	c, err := s.lookup(p)
	if err != nil {
		return err
	}
	return c.Validate(creds)
}

// Connect validates the credentials and opens an authenticated session.
func (s *Selector) Connect(ctx context.Context, p domain.Provider, creds map[string]string) (Session, error) {
	c, err := s.lookup(p)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(creds); err != nil {
		return nil, err
	}
	return c.Connect(ctx, creds)
}
