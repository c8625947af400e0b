package dispatch

import (
	"fmt"

	"github.com/osteele/liquid"

	"github.com/ignite/mailmerge/internal/domain"
)

// Default test-message templates. Bindings: provider, sender, recipient.
const (
	DefaultTestSubject = "Test email from {{ provider }}"
	DefaultTestBody    = `<p>This is a test email sent through <strong>{{ provider }}</strong> by {{ sender }}.</p>` +
		`<p>If {{ recipient }} received it, the provider settings work.</p>`
)

type testTemplates struct {
	subject *liquid.Template
	body    *liquid.Template
}

func parseTestTemplates(subject, body string) (*testTemplates, error) {
	if subject == "" {
		subject = DefaultTestSubject
	}
	if body == "" {
		body = DefaultTestBody
	}
	engine := liquid.NewEngine()
	s, err := engine.ParseString(subject)
	if err != nil {
		return nil, fmt.Errorf("parse test subject: %w", err)
	}
	b, err := engine.ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("parse test body: %w", err)
	}
	return &testTemplates{subject: s, body: b}, nil
}

func (t *testTemplates) render(p domain.Provider, sender, to string) (*domain.EmailMessage, error) {
	bindings := liquid.Bindings{
		"provider":  string(p),
		"sender":    sender,
		"recipient": to,
	}
	subject, err := t.subject.RenderString(bindings)
	if err != nil {
		return nil, fmt.Errorf("render test subject: %w", err)
	}
	body, err := t.body.RenderString(bindings)
	if err != nil {
		return nil, fmt.Errorf("render test body: %w", err)
	}
	return &domain.EmailMessage{From: sender, To: to, Subject: subject, HTMLBody: body}, nil
}
