package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Recipient is one row of the recipient list: column name to value.
type Recipient map[string]string

// Email returns the value of the first key (in sorted key order) that
// case-insensitively equals "email" and holds a non-blank value.
func (r Recipient) Email() (string, bool) {
	keys := make([]string, 0, len(r))
	for k := range r {
		if strings.EqualFold(strings.TrimSpace(k), "email") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := strings.TrimSpace(r[k]); v != "" {
			return v, true
		}
	}
	return "", false
}

// Campaign is the saved subject, body template and recipient list. One
// campaign exists per store; saving replaces it.
type Campaign struct {
	Subject    string      `json:"subject"`
	Body       string      `json:"body"`
	Recipients []Recipient `json:"recipients"`
}

// Validate rejects campaigns that cannot be dispatched.
func (c *Campaign) Validate() error {
	if c == nil {
		return &ValidationError{Msg: "campaign is required"}
	}
	if strings.TrimSpace(c.Subject) == "" {
		return &ValidationError{Field: "subject", Msg: "subject is required"}
	}
	if strings.TrimSpace(c.Body) == "" {
		return &ValidationError{Field: "body", Msg: "body is required"}
	}
	if len(c.Recipients) == 0 {
		return &ValidationError{Field: "recipients", Msg: "at least one recipient is required"}
	}
	for i, r := range c.Recipients {
		if _, ok := r.Email(); !ok {
			return &ValidationError{
				Field: "recipients",
				Msg:   fmt.Sprintf("recipient %d has no email field", i+1),
			}
		}
	}
	return nil
}
