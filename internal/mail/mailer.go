// Package mail delivers the password-recovery email. Delivery is
// fire-and-forget from the caller's point of view: a send failure must not
// change the outcome of the recovery request.
package mail

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type SMTPSender struct {
	addr     string
	username string
	password string
	from     string
}

func NewSMTPSender(addr, username, password, from string) *SMTPSender {
	return &SMTPSender{addr: addr, username: username, password: password, from: from}
}

func (s *SMTPSender) Send(_ context.Context, to, subject, htmlBody string) error {
	host, _, err := net.SplitHostPort(s.addr)
	if err != nil {
		return fmt.Errorf("smtp addr: %w", err)
	}

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, host)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	return smtp.SendMail(s.addr, auth, s.from, []string{to}, []byte(msg.String()))
}

// RecoveryMessage renders the recovery email. The stated lifetime comes from
// the enforced expiry window, so the copy cannot drift from what the server
// actually enforces.
func RecoveryMessage(name, link string, window time.Duration) (subject, body string) {
	subject = "Recuperação de Senha"
	body = fmt.Sprintf(`
		<p>Olá %s,</p>
		<p>Recebemos uma solicitação para redefinir sua senha.</p>
		<p><a href="%s" target="_blank">Clique aqui</a> para criar uma nova senha (link válido por %s).</p>
		<p>Se não foi você, ignore este e-mail.</p>
	`, name, link, formatWindow(window))
	return subject, body
}

func formatWindow(window time.Duration) string {
	if window >= time.Hour && window%time.Hour == 0 {
		hours := int(window / time.Hour)
		if hours == 1 {
			return "1 hora"
		}
		return fmt.Sprintf("%d horas", hours)
	}
	minutes := int(window / time.Minute)
	if minutes == 1 {
		return "1 minuto"
	}
	return fmt.Sprintf("%d minutos", minutes)
}
