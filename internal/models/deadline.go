package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DueDateLayout is the calendar-date format deadlines are stored with.
// Due dates carry no time component.
const DueDateLayout = "2006-01-02"

// Deadline kinds.
const (
	KindPersonal   = "personal"
	KindGovernment = "government"
)

// Deadline represents a tracked obligation with a due date. A personal
// deadline belongs to a single owner; a government deadline is broadcast to
// a set of subscribers.
type Deadline struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	DueDate     string             `bson:"due_date" json:"due_date"` // YYYY-MM-DD
	Priority    string             `bson:"priority,omitempty" json:"priority,omitempty"`
	Status      string             `bson:"status,omitempty" json:"status,omitempty"`
	Kind        string             `bson:"kind" json:"kind"`

	// Personal deadlines only.
	OwnerID primitive.ObjectID `bson:"user_id,omitempty" json:"user_id,omitempty"`

	// Government deadlines only. Each subscriber is either an email address
	// (contains "@") or an internal user id.
	Department  string   `bson:"department,omitempty" json:"department,omitempty"`
	Subscribers []string `bson:"subscribers,omitempty" json:"subscribers,omitempty"`
}

// ParseDueDate parses the stored due date string.
func (d *Deadline) ParseDueDate() (time.Time, error) {
	return time.Parse(DueDateLayout, d.DueDate)
}

// KindLabel returns the human-readable kind used in notifications.
func (d *Deadline) KindLabel() string {
	if d.Kind == KindGovernment {
		return "Government"
	}
	return "Personal"
}

// NormalizedPriority lowercases the free-text priority, returning "N/A"
// when none was set.
func (d *Deadline) NormalizedPriority() string {
	p := strings.ToLower(strings.TrimSpace(d.Priority))
	if p == "" {
		return "N/A"
	}
	return p
}

// DescriptionOrNA returns the description, or "N/A" when absent.
func (d *Deadline) DescriptionOrNA() string {
	if strings.TrimSpace(d.Description) == "" {
		return "N/A"
	}
	return d.Description
}

// StatusOrDefault returns the lifecycle status, defaulting to "pending".
// Status never gates notifications; it is reported in the message body only.
func (d *Deadline) StatusOrDefault() string {
	if strings.TrimSpace(d.Status) == "" {
		return "pending"
	}
	return d.Status
}
