// Package notify mails the rendered status page.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"jobwatch/internal/report"
)

// DefaultSubject prefixes the subject of status mails.
const DefaultSubject = "jobwatch status"

// Mailer sends HTML mail through an SMTP relay.
type Mailer struct {
	Host string
	Port int
	From string
	To   []string

	send func(ctx context.Context, addr, from string, to []string, msg []byte) error
}

// NewMailer creates a mailer for the relay at host:port.
func NewMailer(host string, port int, from string, to []string) *Mailer {
	return &Mailer{Host: host, Port: port, From: from, To: to, send: sendSMTP}
}

// Subject returns "<prefix>: <YYYYDDD> (<Mon Jan 02>)", followed by the
// failing tasks when the report is not all OK.
func Subject(prefix string, rep report.Report) string {
	if prefix == "" {
		prefix = DefaultSubject
	}
	subject := fmt.Sprintf("%s: %s", prefix, report.RunDate(rep.GeneratedAt))
	if !rep.AllOK {
		subject += " NOT OK: " + strings.Join(rep.Entry().Failing(), ", ")
	}
	return subject
}

// Send mails an HTML body to every recipient.
func (m *Mailer) Send(ctx context.Context, subject, html string, date time.Time) error {
	if len(m.To) == 0 {
		return errors.New("no mail recipients configured")
	}
	if m.From == "" {
		return errors.New("no mail sender configured")
	}
	send := m.send
	if send == nil {
		send = sendSMTP
	}
	msg := BuildMessage(m.From, m.To, subject, html, date)
	addr := net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	if err := send(ctx, addr, m.From, m.To, msg); err != nil {
		return fmt.Errorf("send mail via %s: %w", addr, err)
	}
	return nil
}

// BuildMessage assembles an RFC 5322 message with an HTML body.
func BuildMessage(from string, to []string, subject, html string, date time.Time) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", date.Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(strings.ReplaceAll(strings.ReplaceAll(html, "\r\n", "\n"), "\n", "\r\n"))
	return buf.Bytes()
}

func sendSMTP(ctx context.Context, addr, from string, to []string, msg []byte) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	host, _, _ := net.SplitHostPort(addr)
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
