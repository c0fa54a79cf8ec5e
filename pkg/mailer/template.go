package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
)

const confirmationSubject = "Bevestiging: Reservering bestelwagen"

var dutchWeekdays = [...]string{"zondag", "maandag", "dinsdag", "woensdag", "donderdag", "vrijdag", "zaterdag"}

var dutchMonths = [...]string{"januari", "februari", "maart", "april", "mei", "juni",
	"juli", "augustus", "september", "oktober", "november", "december"}

// FormatDutch renders t like "dinsdag 10 juni 2025 om 09:00" in loc.
func FormatDutch(t time.Time, loc *time.Location) string {
	t = t.In(loc)
	return fmt.Sprintf("%s %d %s %d om %02d:%02d",
		dutchWeekdays[t.Weekday()], t.Day(), dutchMonths[t.Month()-1], t.Year(), t.Hour(), t.Minute())
}

type Renderer struct {
	Location *time.Location
}

var confirmationHTML = template.Must(template.New("confirmation").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #2563eb;">Bevestiging van uw reservering</h2>
  <p>Beste {{.Name}},</p>
  <p>Uw reservering van de bestelwagen is bevestigd!</p>
  <div style="background-color: #f3f4f6; padding: 20px; border-radius: 8px; margin: 20px 0;">
    <h3 style="margin-top: 0; color: #1f2937;">Reserveringsdetails</h3>
    <p><strong>Ophalen:</strong> {{.Pickup}}</p>
    <p><strong>Terugbrengen:</strong> {{.Return}}</p>
    <p><strong>Afdeling:</strong> {{.Department}}</p>
    <p><strong>Reden:</strong> {{.Reason}}</p>
  </div>
  <h3 style="color: #1f2937;">Belangrijke informatie</h3>
  <h4>Sleutels ophalen</h4>
  <p>De sleutels van de bestelwagen kunnen opgehaald worden bij de receptie tijdens kantooruren (8:00 - 17:00).</p>
  <h4>Tankkaart</h4>
  <p>De tankkaart bevindt zich in het handschoenvakje. Vraag de pincode aan de receptie.</p>
  <h4>Voor- en nafoto's</h4>
  <p>Vergeet niet om voor vertrek en na terugkomst foto's te maken van de wagen. Dit is verplicht voor alle reserveringen.</p>
  <h4>Belangrijke regels</h4>
  <ul>
    <li>Breng de bestelwagen op tijd terug</li>
    <li>Zorg ervoor dat de wagen schoon is bij terugkomst</li>
    <li>Tank de wagen vol voordat u hem terugbrengt</li>
    <li>Meld eventuele schade direct aan de receptie</li>
    <li>De bestelwagen is alleen voor zakelijk gebruik</li>
  </ul>
  <p>Met vriendelijke groet,<br>Het Facilities Team</p>
</div>`))

type confirmationView struct {
	Name       string
	Pickup     string
	Return     string
	Department string
	Reason     string
}

// Confirmation renders the booking confirmation in Dutch.
func (r *Renderer) Confirmation(c Confirmation) (Message, error) {
	view := confirmationView{
		Name:       c.Name,
		Pickup:     FormatDutch(c.Start, r.Location),
		Return:     FormatDutch(c.End, r.Location),
		Department: c.Department,
		Reason:     c.Reason,
	}

	var html bytes.Buffer
	if err := confirmationHTML.Execute(&html, view); err != nil {
		return Message{}, fmt.Errorf("render confirmation: %w", err)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Beste %s,\n\n", view.Name)
	text.WriteString("Uw reservering van de bestelwagen is bevestigd!\n\n")
	fmt.Fprintf(&text, "Ophalen: %s\n", view.Pickup)
	fmt.Fprintf(&text, "Terugbrengen: %s\n", view.Return)
	fmt.Fprintf(&text, "Afdeling: %s\n", view.Department)
	fmt.Fprintf(&text, "Reden: %s\n\n", view.Reason)
	text.WriteString("De sleutels kunnen opgehaald worden bij de receptie tijdens kantooruren (8:00 - 17:00).\n\n")
	text.WriteString("Met vriendelijke groet,\nHet Facilities Team\n")

	return Message{
		To:      c.To,
		ToName:  c.Name,
		Subject: confirmationSubject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
