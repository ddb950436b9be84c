package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
)

type SmtpConfig struct {
	Server       string
	Port         int
	EmailAddress string
	Password     string
}

// EmailNotifier sends the message as a plain text email.
type EmailNotifier struct {
	smtp    SmtpConfig
	to      []string
	subject string
	send    func(mail *email.Email, addr string, auth smtp.Auth) error
}

func NewEmailNotifier(cfg SmtpConfig, to []string, subject string) EmailNotifier {
	if subject == "" {
		subject = "Library reminder"
	}
	return EmailNotifier{
		smtp:    cfg,
		to:      to,
		subject: subject,
		send: func(mail *email.Email, addr string, auth smtp.Auth) error {
			return mail.Send(addr, auth)
		},
	}
}

func (n EmailNotifier) Notify(_ context.Context, message string) error {
	if len(n.to) == 0 {
		return fmt.Errorf("send email: no recipients")
	}

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("libreminder <%s>", n.smtp.EmailAddress)
	mail.To = n.to
	mail.Subject = n.subject
	mail.Text = []byte(message)

	addr := fmt.Sprintf("%s:%d", n.smtp.Server, n.smtp.Port)
	err := n.send(mail, addr, smtp.PlainAuth("", n.smtp.EmailAddress, n.smtp.Password, n.smtp.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = n.send(mail, addr, nil)
	}
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
