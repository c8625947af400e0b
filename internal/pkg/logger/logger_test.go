package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(DEBUG)
	SetRedactPII(true)
	t.Cleanup(func() {
		SetOutput(nil)
		SetLevel(INFO)
	})
	return &buf
}

func TestLog_RedactsEmailsAndSecrets(t *testing.T) {
	buf := captureLogs(t)

	Info("send failed", "email", "john.doe@example.com", "smtp_password", "hunter2", "detail", "rcpt ann@x.com rejected")

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "send failed", entry["msg"])
	assert.Equal(t, "jo***@example.com", entry["email"])
	assert.Equal(t, "[REDACTED]", entry["smtp_password"])
	assert.Equal(t, "rcpt an***@x.com rejected", entry["detail"])
}

func TestLog_LevelFilter(t *testing.T) {
	buf := captureLogs(t)
	SetLevel(WARN)

	Info("hidden")
	Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, ERROR, ParseLevel("ERROR"))
	assert.Equal(t, INFO, ParseLevel("verbose"))
}

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "jo***@example.com", RedactEmail("john.doe@example.com"))
	assert.Equal(t, "***@example.com", RedactEmail("ab@example.com"))
	assert.Equal(t, "***@***", RedactEmail("not-an-email"))
}

func TestRedactCredentials(t *testing.T) {
	in := map[string]string{
		"smtp_host":     "mail.example.com",
		"smtp_password": "hunter2",
		"api_key":       "abc",
		"client_secret": "",
	}
	out := RedactCredentials(in)
	assert.Equal(t, "mail.example.com", out["smtp_host"])
	assert.Equal(t, "********", out["smtp_password"])
	assert.Equal(t, "********", out["api_key"])
	assert.Equal(t, "", out["client_secret"])
	assert.Equal(t, "hunter2", in["smtp_password"], "input is not modified")
	assert.Nil(t, RedactCredentials(nil))
}
