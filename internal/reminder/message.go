package reminder

import (
	_ "embed"
	"fmt"
	"html/template"
	"strings"

	"vitaremind/internal/domain"
	"vitaremind/internal/notify"
)

//go:embed email.tmpl
var emailTemplateSrc string

var emailTemplate = template.Must(template.New("email").Parse(emailTemplateSrc))

const emailSubject = "VitaReminder"

// composePayload builds the notification payload for one supplement on one
// channel. Destination and text are resolved now and baked into the job;
// a later edit that skips unload+reload would keep sending the old text.
func composePayload(supp domain.Supplement, ch domain.Channel, destination string) (notify.Payload, error) {
	switch ch {
	case domain.ChannelEmail:
		body, err := renderEmailBody(fmt.Sprintf("This is a reminder to take: %s, %s %s",
			supp.Name, supp.FormattedAmount(), supp.Units))
		if err != nil {
			return notify.Payload{}, err
		}
		return notify.Payload{
			Channel:     ch,
			Destination: destination,
			Subject:     emailSubject,
			Message:     body,
		}, nil

	case domain.ChannelText:
		return notify.Payload{
			Channel:     ch,
			Destination: destination,
			Message: fmt.Sprintf("This is a reminder to take %s, %s %s",
				supp.Name, supp.FormattedAmount(), supp.Units),
		}, nil

	case domain.ChannelVoice:
		return notify.Payload{
			Channel:     ch,
			Destination: destination,
			Message: fmt.Sprintf("Hello, this is a reminder to take %s, %s %s",
				supp.Name, supp.FormattedAmount(), supp.Units),
		}, nil
	}
	return notify.Payload{}, fmt.Errorf("unknown channel %q", ch)
}

func renderEmailBody(message string) (string, error) {
	var b strings.Builder
	if err := emailTemplate.Execute(&b, struct{ Message string }{Message: message}); err != nil {
		return "", fmt.Errorf("render email body: %w", err)
	}
	return b.String(), nil
}
