package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/diagnosis/van-reservations/pkg/config"
)

// Confirmation is what the booking confirmation email needs to know.
type Confirmation struct {
	ReservationID string
	To            string
	Name          string
	Start         time.Time
	End           time.Time
	Department    string
	Reason        string
}

type Service interface {
	SendBookingConfirmation(ctx context.Context, c Confirmation) error
}

// Message is a rendered email.
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// New returns the sender selected by cfg.Provider.
func New(cfg config.EmailConfig) (Service, error) {
	loc, err := time.LoadLocation(cfg.DisplayTimezone)
	if err != nil {
		return nil, fmt.Errorf("display timezone: %w", err)
	}
	r := &Renderer{Location: loc}

	switch cfg.Provider {
	case "mailersend":
		if cfg.MailerSendKey == "" {
			return nil, fmt.Errorf("MAILERSEND_API_KEY is required for the mailersend provider")
		}
		return NewMailerSend(cfg.MailerSendKey, cfg.FromName, cfg.FromEmail, r), nil
	case "smtp":
		return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.FromEmail, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPUseTLS, r), nil
	default:
		return NewDevMailer(r), nil
	}
}
