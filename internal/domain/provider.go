package domain

import (
	"fmt"
	"strings"
)

// Provider identifies the outbound mail transport and its auth scheme.
type Provider string

const (
	ProviderGmail   Provider = "gmail"
	ProviderOutlook Provider = "outlook"
	ProviderSMTP    Provider = "smtp"
)

// Credential keys stored in ProviderConfig.Credentials.
const (
	KeyGmailEmail   = "gmail_email"
	KeyAPIKey       = "api_key"
	KeyClientID     = "client_id"
	KeyClientSecret = "client_secret"
	KeySMTPHost     = "smtp_host"
	KeySMTPPort     = "smtp_port"
	KeySMTPUsername = "smtp_username"
	KeySMTPPassword = "smtp_password"
)

// Providers lists the supported providers in display order.
func Providers() []Provider {
	return []Provider{ProviderGmail, ProviderOutlook, ProviderSMTP}
}

// ParseProvider normalises a provider name. Unknown names return
// ErrUnsupportedProvider wrapped in a ConfigError.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	names := make([]string, 0, 3)
	for _, known := range Providers() {
		if p == known {
			return p, nil
		}
		names = append(names, string(known))
	}
	return "", &ConfigError{
		Msg: fmt.Sprintf("unsupported provider %q (expected one of %s)", s, strings.Join(names, ", ")),
		Err: ErrUnsupportedProvider,
	}
}

// SenderKey returns the credential key holding the From address.
func (p Provider) SenderKey() string {
	switch p {
	case ProviderGmail:
		return KeyGmailEmail
	case ProviderOutlook:
		return KeyClientID
	case ProviderSMTP:
		return KeySMTPUsername
	}
	return ""
}

// RequiredKeys returns the credential keys a provider cannot connect without.
func (p Provider) RequiredKeys() []string {
	switch p {
	case ProviderGmail:
		return []string{KeyGmailEmail, KeyAPIKey}
	case ProviderOutlook:
		return []string{KeyClientID, KeyClientSecret}
	case ProviderSMTP:
		return []string{KeySMTPHost, KeySMTPUsername, KeySMTPPassword}
	}
	return nil
}

// ProviderConfig is the stored settings document. It is overwritten
// wholesale by a settings save and read-only during dispatch.
type ProviderConfig struct {
	Provider     Provider          `json:"provider"`
	DefaultEmail string            `json:"default_email,omitempty"`
	Credentials  map[string]string `json:"credentials"`
}

// Credential returns the trimmed credential value for key.
func (c *ProviderConfig) Credential(key string) string {
	if c == nil || c.Credentials == nil {
		return ""
	}
	return strings.TrimSpace(c.Credentials[key])
}

// MissingCredentials lists required keys absent from the credential bag.
func (c *ProviderConfig) MissingCredentials() []string {
	var missing []string
	for _, k := range c.Provider.RequiredKeys() {
		if c.Credential(k) == "" {
			missing = append(missing, k)
		}
	}
	return missing
}

// SenderEmail derives the From address for the configured provider.
func (c *ProviderConfig) SenderEmail() (string, error) {
	if c == nil || c.Provider == "" {
		return "", NewConfigError("no provider configured")
	}
	p, err := ParseProvider(string(c.Provider))
	if err != nil {
		return "", err
	}
	key := p.SenderKey()
	sender := c.Credential(key)
	if sender == "" {
		return "", NewConfigError("missing sender credential %q for provider %s", key, p)
	}
	return sender, nil
}

// Validate checks the document at save time.
func (c *ProviderConfig) Validate() error {
	if c == nil || strings.TrimSpace(string(c.Provider)) == "" {
		return &ValidationError{Field: "provider", Msg: "Provider is required"}
	}
	p, err := ParseProvider(string(c.Provider))
	if err != nil {
		return &ValidationError{Field: "provider", Msg: "unsupported provider"}
	}
	c.Provider = p
	return nil
}
