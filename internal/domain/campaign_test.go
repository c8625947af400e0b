package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecipientEmail(t *testing.T) {
	email, ok := Recipient{"Name": "Ann", "EMAIL": " ann@x.com "}.Email()
	require.True(t, ok)
	assert.Equal(t, "ann@x.com", email)

	_, ok = Recipient{"name": "Bob"}.Email()
	assert.False(t, ok)

	_, ok = Recipient{"email": "   "}.Email()
	assert.False(t, ok)

	// "Email" sorts before "email"
	email, ok = Recipient{"email": "b@x.com", "Email": "a@x.com"}.Email()
	require.True(t, ok)
	assert.Equal(t, "a@x.com", email)
}

func TestCampaignValidate(t *testing.T) {
	valid := Campaign{
		Subject:    "Hello",
		Body:       "<p>Hi {name}</p>",
		Recipients: []Recipient{{"email": "a@x.com"}},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name  string
		mut   func(c *Campaign)
		field string
	}{
		{"empty subject", func(c *Campaign) { c.Subject = " " }, "subject"},
		{"empty body", func(c *Campaign) { c.Body = "" }, "body"},
		{"no recipients", func(c *Campaign) { c.Recipients = nil }, "recipients"},
		{"recipient without email", func(c *Campaign) {
			c.Recipients = []Recipient{{"email": "a@x.com"}, {"name": "b"}}
		}, "recipients"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			c.Recipients = append([]Recipient(nil), valid.Recipients...)
			tt.mut(&c)
			err := c.Validate()
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestDispatchResultSummary(t *testing.T) {
	r := &DispatchResult{Attempted: 3, Sent: 3}
	assert.Equal(t, "Emails sent to 3 recipients", r.Summary())

	r = &DispatchResult{Attempted: 3, Sent: 2, Failures: []Failure{{Recipient: "b@x.com", Reason: "boom"}}}
	assert.Equal(t, "Emails sent to 2 of 3 recipients (1 failed)", r.Summary())
	assert.Equal(t, 1, r.Failed())
}
