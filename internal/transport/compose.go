package transport

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/mailmerge/internal/domain"
)

var headerSanitizer = strings.NewReplacer("\r", "", "\n", "")

// Compose renders msg as an RFC 5322 message with a single text/html part.
// The whole message is built before anything is written to the server.
func Compose(msg *domain.EmailMessage, now time.Time) ([]byte, error) {
	if msg == nil {
		return nil, errors.New("message is nil")
	}
	from := headerSanitizer.Replace(strings.TrimSpace(msg.From))
	to := headerSanitizer.Replace(strings.TrimSpace(msg.To))
	if from == "" || to == "" {
		return nil, errors.New("message needs both From and To")
	}

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("From: %s\r\n", from))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", to))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", headerSanitizer.Replace(msg.Subject))))
	buf.WriteString(fmt.Sprintf("Date: %s\r\n", now.Format(time.RFC1123Z)))
	buf.WriteString(fmt.Sprintf("Message-ID: <%s@%s>\r\n", uuid.New().String(), messageIDDomain(from)))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
	buf.WriteString("\r\n")

	qp := quotedprintable.NewWriter(&buf)
	if _, err := qp.Write([]byte(msg.HTMLBody)); err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	if err := qp.Close(); err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	buf.WriteString("\r\n")
	return buf.Bytes(), nil
}

func messageIDDomain(from string) string {
	if i := strings.LastIndex(from, "@"); i >= 0 && i < len(from)-1 {
		return strings.Trim(from[i+1:], "<> ")
	}
	return "localhost"
}
