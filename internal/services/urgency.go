package services

import (
	"time"

	"github.com/alertme/alertme/internal/models"
)

// Tier is the urgency classification of a reminder, driven solely by
// days-until-due.
type Tier int

const (
	TierCritical Tier = iota
	TierVeryUrgent
	TierUrgent
	TierModerate
	TierReminder
)

// Label returns the urgency level text used in notifications.
func (t Tier) Label() string {
	switch t {
	case TierCritical:
		return "DUE TODAY"
	case TierVeryUrgent:
		return "VERY URGENT"
	case TierUrgent:
		return "URGENT"
	case TierModerate:
		return "MODERATE"
	default:
		return "REMINDER"
	}
}

// Emoji returns the urgency marker prepended to subjects and SMS bodies.
func (t Tier) Emoji() string {
	switch t {
	case TierCritical:
		return "🔴"
	case TierVeryUrgent:
		return "🟠"
	case TierUrgent:
		return "🟡"
	case TierModerate:
		return "🟢"
	default:
		return "🔵"
	}
}

func (t Tier) String() string {
	return t.Label()
}

// Reminders fire only on these exact lead-time milestones, not on ranges.
// Anything in between stays silent so an approaching deadline does not spam
// its recipients every day.
var milestones = map[int]Tier{
	30: TierReminder,
	15: TierModerate,
	7:  TierUrgent,
	3:  TierVeryUrgent,
	1:  TierVeryUrgent,
	0:  TierCritical,
}

// Classify decides whether a reminder fires for the given days-until-due
// and at which tier. The second return is false when no milestone matches.
func Classify(daysUntil int) (Tier, bool) {
	tier, ok := milestones[daysUntil]
	return tier, ok
}

// DaysUntil computes whole calendar days from today until due. Time-of-day
// on either argument is ignored; the result is negative for overdue dates.
func DaysUntil(due, today time.Time) int {
	d := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	return int(d.Sub(t).Hours() / 24)
}

// Classification is the outcome of classifying a deadline on a given day.
type Classification struct {
	Tier      Tier
	DaysUntil int
}

// ClassifyDeadline parses the deadline's due date and classifies it against
// today. The bool return is false when no reminder fires this scan; err is
// non-nil only for an unparseable due date, which the caller logs as a data
// error without aborting the scan.
func ClassifyDeadline(d models.Deadline, today time.Time) (Classification, bool, error) {
	due, err := d.ParseDueDate()
	if err != nil {
		return Classification{}, false, err
	}

	days := DaysUntil(due, today)
	tier, ok := Classify(days)
	if !ok {
		return Classification{DaysUntil: days}, false, nil
	}
	return Classification{Tier: tier, DaysUntil: days}, true, nil
}
