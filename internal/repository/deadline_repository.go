package repository

import (
	"context"
	"fmt"

	"github.com/alertme/alertme/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// DeadlineRepository reads deadline snapshots for the scanner. The CRUD
// layer owns all writes; the scanner never mutates these collections.
type DeadlineRepository struct {
	personal   *mongo.Collection
	government *mongo.Collection
}

// NewDeadlineRepository creates a new instance of DeadlineRepository.
func NewDeadlineRepository(db *mongo.Database) *DeadlineRepository {
	return &DeadlineRepository{
		personal:   db.Collection("deadlines"),
		government: db.Collection("government_deadlines"),
	}
}

// FetchPersonal returns the current snapshot of all personal deadlines.
func (r *DeadlineRepository) FetchPersonal(ctx context.Context) ([]models.Deadline, error) {
	deadlines, err := r.fetchAll(ctx, r.personal, models.KindPersonal)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch personal deadlines: %v", err)
	}
	return deadlines, nil
}

// FetchGovernment returns the current snapshot of all government deadlines.
func (r *DeadlineRepository) FetchGovernment(ctx context.Context) ([]models.Deadline, error) {
	deadlines, err := r.fetchAll(ctx, r.government, models.KindGovernment)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch government deadlines: %v", err)
	}
	return deadlines, nil
}

func (r *DeadlineRepository) fetchAll(ctx context.Context, coll *mongo.Collection, kind string) ([]models.Deadline, error) {
	cursor, err := coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var deadlines []models.Deadline
	if err := cursor.All(ctx, &deadlines); err != nil {
		return nil, err
	}

	// The collections predate the kind field; stamp it from the collection
	// the record came from so downstream code can switch on it.
	for i := range deadlines {
		deadlines[i].Kind = kind
	}
	return deadlines, nil
}
