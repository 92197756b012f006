package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Delivery channels.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// DeliveryRecord is one entry in the idempotency ledger: a successfully
// dispatched reminder for a (deadline, channel+address, tier, date) key.
// The scanner consults the ledger before dispatching so that re-running a
// scan within the same day does not re-send identical notifications.
type DeliveryRecord struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DeadlineID string             `bson:"deadline_id" json:"deadline_id"`
	Channel    string             `bson:"channel" json:"channel"` // e.g. "email:a@x.com", "sms:+77001234567"
	Tier       string             `bson:"tier" json:"tier"`
	ScanDate   string             `bson:"scan_date" json:"scan_date"` // YYYY-MM-DD
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	ExpiresAt  time.Time          `bson:"expires_at" json:"expires_at"` // For purge after 31 days
}
