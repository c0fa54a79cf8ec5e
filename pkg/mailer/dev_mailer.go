package mailer

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/diagnosis/van-reservations/pkg/logger"
)

// DevMailer prints emails instead of sending them.
type DevMailer struct {
	out      io.Writer
	renderer *Renderer
}

func NewDevMailer(r *Renderer) *DevMailer {
	return &DevMailer{out: os.Stdout, renderer: r}
}

func (d *DevMailer) SendBookingConfirmation(ctx context.Context, c Confirmation) error {
	msg, err := d.renderer.Confirmation(c)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "[DEV MAIL] Booking confirmation",
		"to", msg.To,
		"subject", msg.Subject,
		"reservation_id", c.ReservationID,
	)

	fmt.Fprintf(d.out, "\n"+
		"------------------------------------------------------------\n"+
		"BOOKING CONFIRMATION (DEV MODE)\n"+
		"------------------------------------------------------------\n"+
		"To: %s (%s)\n"+
		"Subject: %s\n\n"+
		"%s"+
		"------------------------------------------------------------\n\n",
		msg.To, msg.ToName, msg.Subject, msg.Text)
	return nil
}
