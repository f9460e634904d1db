package payment

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

type Repository interface {
	Insert(ctx context.Context, txn *Transaction) error
	FindByTransactionID(ctx context.Context, transactionID string) (*Transaction, error)
	SetGatewayRef(ctx context.Context, transactionID, gatewayRef string) error
	CompleteIfPending(ctx context.Context, transactionID string) (bool, error)
	MarkStatusIfPending(ctx context.Context, transactionID, status string) error
	FindPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*Transaction, error)
	DeleteStaleNonCompleted(ctx context.Context, cutoff time.Time) (int64, error)
}

type transactionRepository struct {
	collection *mongo.Collection
}

func NewTransactionRepository(db *clients.MongoDB, collectionName string) Repository {
	collection := db.Database.Collection(collectionName)
	return &transactionRepository{collection: collection}
}

func (r *transactionRepository) Insert(ctx context.Context, txn *Transaction) error {
	now := time.Now()
	txn.CreatedAt = now
	txn.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, txn)
	if err != nil {
		logrus.WithError(err).WithField("transaction_id", txn.TransactionID).Error("Failed to insert transaction")
		return models.ErrDatabaseInsert
	}
	return nil
}

func (r *transactionRepository) FindByTransactionID(ctx context.Context, transactionID string) (*Transaction, error) {
	var txn Transaction
	err := r.collection.FindOne(ctx, bson.M{"transaction_id": transactionID}).Decode(&txn)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrTransactionNotFound
		}
		logrus.WithError(err).WithField("transaction_id", transactionID).Error("Failed to find transaction")
		return nil, models.ErrDatabaseQuery
	}
	return &txn, nil
}

func (r *transactionRepository) SetGatewayRef(ctx context.Context, transactionID, gatewayRef string) error {
	filter := bson.M{"transaction_id": transactionID}
	update := bson.M{"$set": bson.M{
		"gateway_ref": gatewayRef,
		"updated_at":  time.Now(),
	}}

	_, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		logrus.WithError(err).WithField("transaction_id", transactionID).Error("Failed to set gateway ref")
		return models.ErrDatabaseUpdate
	}
	return nil
}

// CompleteIfPending flips pending -> completed as one conditional update.
// The boolean result reports whether this caller won the flip; a re-delivered
// webhook or a concurrent poll matches nothing and gets false. This is the
// at-most-once activation guard.
func (r *transactionRepository) CompleteIfPending(ctx context.Context, transactionID string) (bool, error) {
	now := time.Now()
	filter := bson.M{
		"transaction_id": transactionID,
		"status":         StatusPending,
	}
	update := bson.M{"$set": bson.M{
		"status":       StatusCompleted,
		"completed_at": now,
		"updated_at":   now,
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		logrus.WithError(err).WithField("transaction_id", transactionID).Error("Failed to complete transaction")
		return false, models.ErrDatabaseUpdate
	}
	return result.ModifiedCount == 1, nil
}

// MarkStatusIfPending moves a pending transaction to failed or cancelled.
// Terminal rows are left untouched.
func (r *transactionRepository) MarkStatusIfPending(ctx context.Context, transactionID, status string) error {
	filter := bson.M{
		"transaction_id": transactionID,
		"status":         StatusPending,
	}
	update := bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now(),
	}}

	_, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"transaction_id": transactionID,
			"status":         status,
		}).Error("Failed to update transaction status")
		return models.ErrDatabaseUpdate
	}
	return nil
}

func (r *transactionRepository) FindPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*Transaction, error) {
	filter := bson.M{
		"status":     StatusPending,
		"created_at": bson.M{"$lt": cutoff},
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		logrus.WithError(err).Error("Failed to find pending transactions")
		return nil, models.ErrDatabaseQuery
	}
	defer cursor.Close(ctx)

	var txns []*Transaction
	for cursor.Next(ctx) {
		var txn Transaction
		if err := cursor.Decode(&txn); err != nil {
			logrus.WithError(err).Error("Failed to decode transaction")
			continue
		}
		txns = append(txns, &txn)
	}

	if err := cursor.Err(); err != nil {
		logrus.WithError(err).Error("Cursor error")
		return nil, models.ErrDatabaseQuery
	}
	return txns, nil
}

// DeleteStaleNonCompleted prunes abandoned pending/failed/cancelled rows.
// Completed transactions are kept: the idempotence check and the audit trail
// depend on them.
func (r *transactionRepository) DeleteStaleNonCompleted(ctx context.Context, cutoff time.Time) (int64, error) {
	filter := bson.M{
		"status":     bson.M{"$ne": StatusCompleted},
		"created_at": bson.M{"$lt": cutoff},
	}

	result, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		logrus.WithError(err).Error("Failed to prune stale transactions")
		return 0, models.ErrDatabaseDelete
	}
	return result.DeletedCount, nil
}
