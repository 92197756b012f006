package services

import (
	"fmt"
	"strings"

	"github.com/alertme/alertme/internal/models"
)

// Message is the rendered notification content for one recipient, covering
// both channels. Which channels actually go out depends on the recipient's
// contact info, not on the composer.
type Message struct {
	EmailSubject string
	EmailBody    string
	SMSBody      string
}

// Compose renders tier-specific email and SMS content for a deadline and
// recipient. It performs no I/O and is deterministic: identical inputs
// always produce identical output.
func Compose(d models.Deadline, r models.Recipient, c Classification) Message {
	subject := fmt.Sprintf("%s %s: %s", c.Tier.Emoji(), c.Tier.Label(), d.Title)

	emailBody := fmt.Sprintf(
		"Hello %s,\n\n"+
			"This is a reminder about your %s deadline:\n\n"+
			"Title: %s\n"+
			"Due Date: %s\n"+
			"Days Remaining: %d\n"+
			"Priority: %s\n"+
			"Description: %s\n"+
			"Status: %s\n\n"+
			"Urgency Level: %s\n\n"+
			"Please ensure to complete this task on time.\n\n"+
			"Best regards,\nAlertMe System",
		r.Name,
		strings.ToLower(d.KindLabel()),
		d.Title,
		d.DueDate,
		c.DaysUntil,
		d.NormalizedPriority(),
		d.DescriptionOrNA(),
		d.StatusOrDefault(),
		c.Tier.Label(),
	)

	smsBody := fmt.Sprintf("%s %s: %s due in %d days. Priority: %s",
		c.Tier.Emoji(), c.Tier.Label(), d.Title, c.DaysUntil, d.NormalizedPriority())

	return Message{
		EmailSubject: subject,
		EmailBody:    emailBody,
		SMSBody:      smsBody,
	}
}
