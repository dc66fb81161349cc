package mail

import (
	"context"
	"fmt"
	"html"

	"assist/internal/config"
	"assist/internal/core/contracts"

	"gopkg.in/gomail.v2"
)

// Sender delivers a composed message. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPNotifier emails visitors directly.
type SMTPNotifier struct {
	from   string
	sender Sender
}

func NewSMTPNotifier(cfg config.NotifierConfig) *SMTPNotifier {
	return &SMTPNotifier{
		from:   cfg.From,
		sender: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass),
	}
}

func NewSMTPNotifierWithSender(from string, s Sender) *SMTPNotifier {
	return &SMTPNotifier{from: from, sender: s}
}

func (n *SMTPNotifier) NotifyVisitor(ctx context.Context, v contracts.VisitorNotification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return n.sender.DialAndSend(Compose(n.from, v))
}

// Compose renders the "you have a reply" email.
func Compose(from string, v contracts.VisitorNotification) *gomail.Message {
	tenant := v.TenantName
	if tenant == "" {
		tenant = "Support"
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", v.To)
	msg.SetHeader("Subject", fmt.Sprintf("%s replied to your message", tenant))
	body := fmt.Sprintf(
		`<p>Hi %s,</p><p>You have a new reply from %s.</p><p><a href="%s" style="display:inline-block;padding:10px 20px;text-decoration:none;border-radius:5px;background-color:#2563eb;color:#fff;">Continue the conversation</a></p>`,
		html.EscapeString(v.VisitorName), html.EscapeString(tenant), html.EscapeString(v.ResumeURL),
	)
	msg.SetBody("text/html", body)
	return msg
}
