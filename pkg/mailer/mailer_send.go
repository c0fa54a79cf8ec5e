package mailer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"

	"github.com/diagnosis/van-reservations/pkg/logger"
)

type MailerSendClient struct {
	client   *mailersend.Mailersend
	from     mailersend.From
	renderer *Renderer
}

func NewMailerSend(apiKey, fromName, fromEmail string, r *Renderer) *MailerSendClient {
	return &MailerSendClient{
		client:   mailersend.NewMailersend(apiKey),
		from:     mailersend.From{Name: fromName, Email: fromEmail},
		renderer: r,
	}
}

func (m *MailerSendClient) SendBookingConfirmation(ctx context.Context, c Confirmation) error {
	msg, err := m.renderer.Confirmation(c)
	if err != nil {
		return err
	}
	id, err := m.send(ctx, msg)
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "Confirmation email sent", "provider", "mailersend", "message_id", id, "reservation_id", c.ReservationID)
	return nil
}

func (m *MailerSendClient) send(ctx context.Context, msg Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	email := m.client.Email.NewMessage()
	email.SetFrom(m.from)
	email.SetRecipients([]mailersend.Recipient{{Name: msg.ToName, Email: msg.To}})
	email.SetSubject(msg.Subject)
	if strings.TrimSpace(msg.Text) != "" {
		email.SetText(msg.Text)
	}
	if strings.TrimSpace(msg.HTML) != "" {
		email.SetHTML(msg.HTML)
	}

	res, err := m.client.Email.Send(ctx, email)
	if err != nil {
		return "", fmt.Errorf("mailersend: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", fmt.Errorf("mailersend error: status=%d body=%s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return res.Header.Get("X-Message-Id"), nil
}
