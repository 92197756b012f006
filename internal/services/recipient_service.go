package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/alertme/alertme/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserDirectory resolves identities to contact records. Implemented by
// repository.UserRepository against the users collection.
type UserDirectory interface {
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// RecipientService maps deadline owners and subscriber identifiers to
// concrete recipients, tolerating missing or partial contact info.
type RecipientService struct {
	directory UserDirectory
}

// NewRecipientService creates a new instance of RecipientService.
func NewRecipientService(directory UserDirectory) *RecipientService {
	return &RecipientService{
		directory: directory,
	}
}

// ResolveOwner looks up a personal deadline's owner in the directory.
func (s *RecipientService) ResolveOwner(ctx context.Context, ownerID primitive.ObjectID) (*models.Recipient, error) {
	user, err := s.directory.GetUserByID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve owner %s: %v", ownerID.Hex(), err)
	}
	recipient := user.Recipient()
	return &recipient, nil
}

// ResolveSubscribers resolves each subscriber identifier of a government
// deadline. An identifier containing "@" is looked up by email, anything
// else by internal user id. Identifiers that resolve to no user are logged
// and skipped; they never abort resolution of the rest. The input is
// treated as a set: duplicate identifiers resolve at most once.
func (s *RecipientService) ResolveSubscribers(ctx context.Context, subscribers []string) []models.Recipient {
	seen := make(map[string]struct{}, len(subscribers))
	recipients := make([]models.Recipient, 0, len(subscribers))

	for _, subscriber := range subscribers {
		id := strings.TrimSpace(subscriber)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		user, err := s.lookup(ctx, id)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"subscriber": id,
				"error":      err,
			}).Warn("Could not resolve subscriber")
			continue
		}
		recipients = append(recipients, user.Recipient())
	}

	return recipients
}

func (s *RecipientService) lookup(ctx context.Context, id string) (*models.User, error) {
	if strings.Contains(id, "@") {
		return s.directory.GetUserByEmail(ctx, id)
	}

	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %v", id, err)
	}
	return s.directory.GetUserByID(ctx, objID)
}
