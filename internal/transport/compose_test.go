package transport

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/mailmerge/internal/domain"
)

func TestCompose(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	data, err := Compose(&domain.EmailMessage{
		From:     "news@example.com",
		To:       "ann@x.com",
		Subject:  "Spring sale",
		HTMLBody: "<p>Hi Ann</p>",
	}, now)
	require.NoError(t, err)

	msg := string(data)
	assert.Contains(t, msg, "From: news@example.com\r\n")
	assert.Contains(t, msg, "To: ann@x.com\r\n")
	assert.Contains(t, msg, "Subject: Spring sale\r\n")
	assert.Contains(t, msg, "Date: Sun, 01 Mar 2026 12:00:00 +0000\r\n")
	assert.Contains(t, msg, "@example.com>\r\n")
	assert.Contains(t, msg, "Content-Type: text/html; charset=UTF-8\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\n<p>Hi Ann</p>\r\n"))
}

func TestCompose_EncodesNonASCIISubject(t *testing.T) {
	data, err := Compose(&domain.EmailMessage{From: "a@x.com", To: "b@x.com", Subject: "Grüße", HTMLBody: "x"}, time.Now())
	require.NoError(t, err)
	assert.Contains(t, string(data), "Subject: =?UTF-8?q?Gr=C3=BC=C3=9Fe?=\r\n")
}

func TestCompose_StripsHeaderInjection(t *testing.T) {
	data, err := Compose(&domain.EmailMessage{
		From:     "a@x.com",
		To:       "b@x.com\r\nBcc: evil@x.com",
		Subject:  "hi\r\nX-Evil: 1",
		HTMLBody: "x",
	}, time.Now())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "\r\nBcc:")
	assert.NotContains(t, string(data), "\r\nX-Evil:")
}

func TestCompose_RequiresAddresses(t *testing.T) {
	_, err := Compose(&domain.EmailMessage{From: "a@x.com"}, time.Now())
	assert.Error(t, err)
	_, err = Compose(nil, time.Now())
	assert.Error(t, err)
}
