package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
)

type MailerSendClient struct {
	client   *mailersend.Mailersend
	from     mailersend.From
	variant  string
	validity time.Duration
	enabled  bool
}

func NewMailerSend(apiKey, fromName, fromEmail, variant string, validity time.Duration) *MailerSendClient {
	m := &MailerSendClient{
		enabled:  apiKey != "" && fromEmail != "",
		variant:  variant,
		validity: validity,
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}

	if m.enabled {
		m.client = mailersend.NewMailersend(apiKey)
	}

	return m
}

func (m *MailerSendClient) SendLoginEmail(toEmail, code, magicLink string) error {
	if !m.enabled {
		return fmt.Errorf("MailerSend not configured")
	}

	text, html := buildLoginBody(m.variant, code, magicLink, m.validity)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Email: toEmail}})
	msg.SetSubject(loginSubject)

	if strings.TrimSpace(text) != "" {
		msg.SetText(text)
	}
	if strings.TrimSpace(html) != "" {
		msg.SetHTML(html)
	}

	_, err := m.client.Email.Send(ctx, msg)
	return err
}
