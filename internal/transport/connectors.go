package transport

import (
	"context"
	"strconv"
	"strings"

	"github.com/ignite/mailmerge/internal/domain"
)

const (
	gmailHost   = "smtp.gmail.com"
	gmailPort   = 465
	outlookHost = "smtp.office365.com"
	outlookPort = 587

	// DefaultRelayPort is used when smtp_port is not set.
	DefaultRelayPort = 587
)

// security selects how TLS is negotiated.
type security int

const (
	implicitTLS security = iota
	startTLS
)

// endpoint describes one dial target and the login to present there.
type endpoint struct {
	provider  domain.Provider
	host      string
	port      int
	security  security
	principal string
	secret    string
}

func requireKeys(p domain.Provider, creds map[string]string) error {
	var missing []string
	for _, k := range p.RequiredKeys() {
		if strings.TrimSpace(creds[k]) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return domain.NewConfigError("%s: missing credentials: %s", p, strings.Join(missing, ", "))
	}
	return nil
}

// gmailConnector logs in to Gmail over implicit TLS with an app password.
type gmailConnector struct{ opts *options }

func (c *gmailConnector) Provider() domain.Provider { return domain.ProviderGmail }

func (c *gmailConnector) Validate(creds map[string]string) error {
	return requireKeys(domain.ProviderGmail, creds)
}

func (c *gmailConnector) Connect(ctx context.Context, creds map[string]string) (Session, error) {
	return dial(ctx, c.opts, endpoint{
		provider:  domain.ProviderGmail,
		host:      gmailHost,
		port:      gmailPort,
		security:  implicitTLS,
		principal: strings.TrimSpace(creds[domain.KeyGmailEmail]),
		secret:    strings.TrimSpace(creds[domain.KeyAPIKey]),
	})
}

// outlookConnector logs in to Office 365 over STARTTLS using the client id
// as the principal.
type outlookConnector struct{ opts *options }

func (c *outlookConnector) Provider() domain.Provider { return domain.ProviderOutlook }

func (c *outlookConnector) Validate(creds map[string]string) error {
	return requireKeys(domain.ProviderOutlook, creds)
}

func (c *outlookConnector) Connect(ctx context.Context, creds map[string]string) (Session, error) {
	return dial(ctx, c.opts, endpoint{
		provider:  domain.ProviderOutlook,
		host:      outlookHost,
		port:      outlookPort,
		security:  startTLS,
		principal: strings.TrimSpace(creds[domain.KeyClientID]),
		secret:    strings.TrimSpace(creds[domain.KeyClientSecret]),
	})
}

// relayConnector logs in to an arbitrary authenticated SMTP relay.
type relayConnector struct{ opts *options }

func (c *relayConnector) Provider() domain.Provider { return domain.ProviderSMTP }

func (c *relayConnector) Validate(creds map[string]string) error {
	if err := requireKeys(domain.ProviderSMTP, creds); err != nil {
		return err
	}
	_, err := relayPort(creds)
	return err
}

func (c *relayConnector) Connect(ctx context.Context, creds map[string]string) (Session, error) {
	port, err := relayPort(creds)
	if err != nil {
		return nil, err
	}
	sec := startTLS
	if port == 465 {
		sec = implicitTLS
	}
	return dial(ctx, c.opts, endpoint{
		provider:  domain.ProviderSMTP,
		host:      strings.TrimSpace(creds[domain.KeySMTPHost]),
		port:      port,
		security:  sec,
		principal: strings.TrimSpace(creds[domain.KeySMTPUsername]),
		secret:    creds[domain.KeySMTPPassword],
	})
}

func relayPort(creds map[string]string) (int, error) {
	raw := strings.TrimSpace(creds[domain.KeySMTPPort])
	if raw == "" {
		return DefaultRelayPort, nil
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port <= 0 || port > 65535 {
		return 0, domain.NewConfigError("smtp: invalid smtp_port %q", raw)
	}
	return port, nil
}
