package subscription

import (
	"context"
	"errors"
	"time"

	"quizhub-subscription-svc/src/clients"
	"quizhub-subscription-svc/src/internal/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Insert(ctx context.Context, code *AccessCode) error
	FindByCode(ctx context.Context, code string) (*AccessCode, error)
	FindLatestByUser(ctx context.Context, userID string) (*AccessCode, error)
	MarkUsed(ctx context.Context, code string) error
}

type codeRepository struct {
	collection *mongo.Collection
}

func NewAccessCodeRepository(db *clients.MongoDB, collectionName string) Repository {
	collection := db.Database.Collection(collectionName)
	return &codeRepository{collection: collection}
}

func (r *codeRepository) Insert(ctx context.Context, code *AccessCode) error {
	_, err := r.collection.InsertOne(ctx, code)
	if err != nil {
		logrus.WithError(err).WithField("user_id", code.UserID).Error("Failed to insert access code")
		return models.ErrDatabaseInsert
	}
	return nil
}

func (r *codeRepository) FindByCode(ctx context.Context, code string) (*AccessCode, error) {
	var ac AccessCode
	err := r.collection.FindOne(ctx, bson.M{"code": code}).Decode(&ac)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrCodeNotFound
		}
		logrus.WithError(err).Error("Failed to find access code")
		return nil, models.ErrDatabaseQuery
	}
	return &ac, nil
}

func (r *codeRepository) FindLatestByUser(ctx context.Context, userID string) (*AccessCode, error) {
	opts := options.FindOne().SetSort(bson.M{"created_at": -1})

	var ac AccessCode
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}, opts).Decode(&ac)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrCodeNotFound
		}
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to find access code")
		return nil, models.ErrDatabaseQuery
	}
	return &ac, nil
}

// MarkUsed flips the one-time guard. The filter requires used=false, so a
// second caller matches nothing and gets ErrCodeAlreadyUsed; the store's
// atomic update is what makes redemption single-shot.
func (r *codeRepository) MarkUsed(ctx context.Context, code string) error {
	now := time.Now()
	filter := bson.M{"code": code, "used": false}
	update := bson.M{"$set": bson.M{"used": true, "used_at": now}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		logrus.WithError(err).Error("Failed to mark access code used")
		return models.ErrDatabaseUpdate
	}
	if result.MatchedCount == 0 {
		return models.ErrCodeAlreadyUsed
	}
	return nil
}
