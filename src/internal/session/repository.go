package session

import (
	"context"
	"errors"
	"time"

	"quizhub-subscription-svc/src/clients"
	"quizhub-subscription-svc/src/internal/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type repository struct {
	collection *mongo.Collection
}

type Repository interface {
	Create(ctx context.Context, session *Session) error
	GetByID(ctx context.Context, sessionID string) (*Session, error)
	UpdateActivity(ctx context.Context, sessionID string) error
	Deactivate(ctx context.Context, sessionID string) error
	DeactivateAll(ctx context.Context, userID string) error
}

func NewSessionRepository(db *clients.MongoDB, collectionName string) Repository {
	collection := db.Database.Collection(collectionName)
	return &repository{collection: collection}
}

func (r *repository) Create(ctx context.Context, session *Session) error {
	_, err := r.collection.InsertOne(ctx, session)
	if err != nil {
		logrus.WithError(err).WithField("user_id", session.UserID).Error("Failed to create session")
		return models.ErrSessionCreating
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, sessionID string) (*Session, error) {
	var session Session
	filter := bson.M{"session_id": sessionID}

	err := r.collection.FindOne(ctx, filter).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrSessionNotFound
		}
		logrus.WithError(err).WithField("session_id", sessionID).Error("Failed to get session")
		return nil, models.ErrDatabaseQuery
	}

	return &session, nil
}

func (r *repository) UpdateActivity(ctx context.Context, sessionID string) error {
	filter := bson.M{
		"session_id": sessionID,
		"is_active":  true,
	}

	update := bson.M{
		"$set": bson.M{
			"last_active_at": time.Now(),
		},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		logrus.WithError(err).WithField("session_id", sessionID).Error("Failed to update session activity")
		return models.ErrSessionUpdating
	}

	return nil
}

func (r *repository) Deactivate(ctx context.Context, sessionID string) error {
	now := time.Now()
	filter := bson.M{"session_id": sessionID}
	update := bson.M{
		"$set": bson.M{
			"is_active": false,
			"logout_at": now,
		},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		logrus.WithError(err).WithField("session_id", sessionID).Error("Failed to deactivate session")
		return models.ErrSessionUpdating
	}

	return nil
}

func (r *repository) DeactivateAll(ctx context.Context, userID string) error {
	now := time.Now()
	filter := bson.M{
		"user_id":   userID,
		"is_active": true,
	}
	update := bson.M{
		"$set": bson.M{
			"is_active": false,
			"logout_at": now,
		},
	}

	_, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to deactivate sessions")
		return models.ErrSessionUpdating
	}

	return nil
}
