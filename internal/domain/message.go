package domain

import "fmt"

// EmailMessage is a fully composed message ready for a transport session.
// By the time a message reaches this struct all placeholder substitution is
// complete.
type EmailMessage struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
}

// TestMessage addresses a test-mode dispatch. An empty To falls back to the
// configured default_email.
type TestMessage struct {
	To string `json:"test_email"`
}

// Failure records one recipient whose send did not complete.
type Failure struct {
	Recipient string `json:"recipient"`
	Reason    string `json:"reason"`
}

// DispatchResult is the tally of one dispatch call. It is never persisted.
type DispatchResult struct {
	Attempted int       `json:"attempted"`
	Sent      int       `json:"sent"`
	Skipped   int       `json:"skipped"`
	Failures  []Failure `json:"failures"`
}

// Failed returns the number of attempted sends that did not go out.
func (r *DispatchResult) Failed() int {
	return len(r.Failures)
}

// Summary renders the legacy one-line response message.
func (r *DispatchResult) Summary() string {
	if len(r.Failures) == 0 {
		return fmt.Sprintf("Emails sent to %d recipients", r.Sent)
	}
	return fmt.Sprintf("Emails sent to %d of %d recipients (%d failed)", r.Sent, r.Attempted, len(r.Failures))
}
