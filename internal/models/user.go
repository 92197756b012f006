package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents an account in the AlertMe user directory. Email and phone
// are optional; a user with neither cannot receive reminders.
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Email     string             `bson:"email,omitempty" json:"email,omitempty"`
	Phone     string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Role      string             `bson:"role,omitempty" json:"role,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// Recipient is a resolved contact eligible to receive a notification. It is
// derived from a User at scan time and never persisted. Missing channels
// stay empty, never placeholder strings.
type Recipient struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Recipient projects the user's contact fields.
func (u *User) Recipient() Recipient {
	return Recipient{
		Name:  u.Name,
		Email: u.Email,
		Phone: u.Phone,
	}
}
