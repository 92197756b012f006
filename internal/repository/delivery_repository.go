package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alertme/alertme/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// deliveryTTL is how long ledger entries are kept before the purge removes
// them. It must exceed the longest reminder milestone (30 days).
const deliveryTTL = 31 * 24 * time.Hour

// DeliveryRepository is the idempotency ledger for dispatched reminders.
type DeliveryRepository struct {
	collection *mongo.Collection
}

// NewDeliveryRepository creates a new instance of DeliveryRepository.
func NewDeliveryRepository(db *mongo.Database) *DeliveryRepository {
	return &DeliveryRepository{
		collection: db.Collection("deliveries"),
	}
}

// AlreadyDelivered reports whether a reminder matching the record's
// (deadline, channel, tier, date) key was already sent.
func (r *DeliveryRepository) AlreadyDelivered(ctx context.Context, record models.DeliveryRecord) (bool, error) {
	filter := bson.M{
		"deadline_id": record.DeadlineID,
		"channel":     record.Channel,
		"tier":        record.Tier,
		"scan_date":   record.ScanDate,
	}

	err := r.collection.FindOne(ctx, filter).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check delivery ledger: %v", err)
	}
	return true, nil
}

// RecordDelivery inserts a ledger entry after a successful dispatch.
func (r *DeliveryRepository) RecordDelivery(ctx context.Context, record *models.DeliveryRecord) error {
	record.CreatedAt = time.Now()
	record.ExpiresAt = record.CreatedAt.Add(deliveryTTL)

	_, err := r.collection.InsertOne(ctx, record)
	if err != nil {
		logrus.WithError(err).Error("Failed to insert delivery record")
		return fmt.Errorf("failed to record delivery: %v", err)
	}
	return nil
}

// DeleteExpired removes ledger entries past their expiry.
func (r *DeliveryRepository) DeleteExpired(ctx context.Context) error {
	filter := bson.M{"expires_at": bson.M{"$lte": time.Now()}}
	result, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete expired delivery records: %v", err)
	}
	logrus.Infof("Deleted %d expired delivery records", result.DeletedCount)
	return nil
}
