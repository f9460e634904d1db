package user

import (
	"context"
	"errors"
	"time"

	"quizhub-subscription-svc/src/clients"
	"quizhub-subscription-svc/src/internal/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	regexKey   = "$regex"
	optionsKey = "$options"
)

type Repository interface {
	EnsureIndexes(ctx context.Context) error
	Create(ctx context.Context, u *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, userID string) (*User, error)
	RecordLogin(ctx context.Context, userID, sessionID string) error
	ClearActiveSession(ctx context.Context, userID string) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	SetPremium(ctx context.Context, userID string, expiresAt time.Time) error
	RevokePremium(ctx context.Context, userID string) error
	MarkWarned(ctx context.Context, userID string, at time.Time) error
	FindExpiredPremium(ctx context.Context, now time.Time) ([]*User, error)
	FindExpiringBetween(ctx context.Context, from, until time.Time) ([]*User, error)
	GetAllUsers(ctx context.Context, req *GetAllUsersRequest) ([]*User, int64, error)
	GetUserStats(ctx context.Context, warningWindow time.Duration) (*models.Stats, error)
}

type userRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(mongoClient *clients.MongoDB, collectionName string) Repository {
	collection := mongoClient.Database.Collection(collectionName)
	return &userRepository{
		collection: collection,
	}
}

func (r *userRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		logrus.WithError(err).Error("Failed to create email index")
		return models.ErrDatabaseQuery
	}
	return nil
}

func (r *userRepository) Create(ctx context.Context, u *User) error {
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, u)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.ErrEmailTaken
		}
		logrus.WithError(err).WithField("email", u.Email).Error("Failed to insert user")
		return models.ErrDatabaseInsert
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		u.ID = oid
	}
	return nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrUserNotFound
		}
		logrus.WithError(err).WithField("email", email).Error("Failed to find user by email")
		return nil, models.ErrDatabaseQuery
	}
	return &u, nil
}

func (r *userRepository) FindByID(ctx context.Context, userID string) (*User, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, models.ErrUserNotFound
	}

	var u User
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrUserNotFound
		}
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to find user by id")
		return nil, models.ErrDatabaseQuery
	}
	return &u, nil
}

// RecordLogin points the user at their new session and stamps the login time.
// The previous active session is shadowed from this moment on.
func (r *userRepository) RecordLogin(ctx context.Context, userID, sessionID string) error {
	now := time.Now()
	update := bson.M{"$set": bson.M{
		"active_session_id": sessionID,
		"last_login_at":     now,
		"updated_at":        now,
	}}
	return r.updateByID(ctx, userID, update)
}

func (r *userRepository) ClearActiveSession(ctx context.Context, userID string) error {
	update := bson.M{"$set": bson.M{
		"active_session_id": "",
		"updated_at":        time.Now(),
	}}
	return r.updateByID(ctx, userID, update)
}

// UpdatePassword replaces the hash and bumps the token version in the same
// update, so every token issued before the change is invalidated at once.
func (r *userRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	update := bson.M{
		"$set": bson.M{
			"password_hash": passwordHash,
			"updated_at":    time.Now(),
		},
		"$inc": bson.M{"token_version": 1},
	}
	return r.updateByID(ctx, userID, update)
}

func (r *userRepository) SetPremium(ctx context.Context, userID string, expiresAt time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"is_premium":         true,
			"premium_expires_at": expiresAt,
			"updated_at":         time.Now(),
		},
		"$unset": bson.M{"premium_warned_at": ""},
	}
	return r.updateByID(ctx, userID, update)
}

func (r *userRepository) RevokePremium(ctx context.Context, userID string) error {
	update := bson.M{
		"$set":   bson.M{"is_premium": false, "updated_at": time.Now()},
		"$unset": bson.M{"premium_expires_at": "", "premium_warned_at": ""},
	}
	return r.updateByID(ctx, userID, update)
}

func (r *userRepository) MarkWarned(ctx context.Context, userID string, at time.Time) error {
	update := bson.M{"$set": bson.M{"premium_warned_at": at}}
	return r.updateByID(ctx, userID, update)
}

func (r *userRepository) FindExpiredPremium(ctx context.Context, now time.Time) ([]*User, error) {
	filter := bson.M{
		"is_premium":         true,
		"premium_expires_at": bson.M{"$lt": now},
	}
	return r.findUsers(ctx, filter)
}

// FindExpiringBetween returns premium users whose subscription ends inside
// the window and who have not been warned yet.
func (r *userRepository) FindExpiringBetween(ctx context.Context, from, until time.Time) ([]*User, error) {
	filter := bson.M{
		"is_premium":         true,
		"premium_expires_at": bson.M{"$gte": from, "$lte": until},
		"premium_warned_at":  bson.M{"$exists": false},
	}
	return r.findUsers(ctx, filter)
}

func (r *userRepository) GetAllUsers(ctx context.Context, req *GetAllUsersRequest) ([]*User, int64, error) {
	filter := bson.M{}

	switch req.Premium {
	case "true":
		filter["is_premium"] = true
	case "false":
		filter["is_premium"] = false
	}

	if req.Search != "" {
		filter["$or"] = []bson.M{
			{"name": bson.M{regexKey: req.Search, optionsKey: "i"}},
			{"email": bson.M{regexKey: req.Search, optionsKey: "i"}},
		}
	}

	totalCount, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		logrus.WithError(err).Error("Failed to count users")
		return nil, 0, models.ErrDatabaseQuery
	}

	skip := (req.Page - 1) * req.Limit

	opts := options.Find().
		SetLimit(int64(req.Limit)).
		SetSkip(int64(skip)).
		SetSort(bson.M{"created_at": -1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		logrus.WithError(err).Error("Failed to find users")
		return nil, 0, models.ErrDatabaseQuery
	}
	defer cursor.Close(ctx)

	var users []*User
	for cursor.Next(ctx) {
		var u User
		if err := cursor.Decode(&u); err != nil {
			logrus.WithError(err).Error("Failed to decode user")
			continue
		}
		users = append(users, &u)
	}

	if err := cursor.Err(); err != nil {
		logrus.WithError(err).Error("Cursor error")
		return nil, 0, models.ErrDatabaseQuery
	}

	logrus.WithFields(logrus.Fields{
		"count": len(users),
		"total": totalCount,
		"page":  req.Page,
		"limit": req.Limit,
	}).Debug("Retrieved users successfully")

	return users, totalCount, nil
}

func (r *userRepository) GetUserStats(ctx context.Context, warningWindow time.Duration) (*models.Stats, error) {
	now := time.Now()

	total, err := r.countUsers(ctx, bson.M{})
	if err != nil {
		return nil, err
	}

	premium, err := r.countUsers(ctx, bson.M{
		"is_premium": true,
		"$or": []bson.M{
			{"premium_expires_at": bson.M{"$gt": now}},
			{"premium_expires_at": bson.M{"$exists": false}},
		},
	})
	if err != nil {
		return nil, err
	}

	expiringSoon, err := r.countUsers(ctx, bson.M{
		"is_premium":         true,
		"premium_expires_at": bson.M{"$gte": now, "$lte": now.Add(warningWindow)},
	})
	if err != nil {
		return nil, err
	}

	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	newThisMonth, err := r.countUsers(ctx, bson.M{"created_at": bson.M{"$gte": startOfMonth}})
	if err != nil {
		return nil, err
	}

	return &models.Stats{
		Total:        total,
		Premium:      premium,
		Free:         total - premium,
		ExpiringSoon: expiringSoon,
		NewThisMonth: newThisMonth,
	}, nil
}

func (r *userRepository) countUsers(ctx context.Context, filter bson.M) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		logrus.WithError(err).Error("Failed to count users")
		return 0, models.ErrDatabaseQuery
	}
	return count, nil
}

func (r *userRepository) findUsers(ctx context.Context, filter bson.M) ([]*User, error) {
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		logrus.WithError(err).Error("Failed to find users")
		return nil, models.ErrDatabaseQuery
	}
	defer cursor.Close(ctx)

	var users []*User
	for cursor.Next(ctx) {
		var u User
		if err := cursor.Decode(&u); err != nil {
			logrus.WithError(err).Error("Failed to decode user")
			continue
		}
		users = append(users, &u)
	}

	if err := cursor.Err(); err != nil {
		logrus.WithError(err).Error("Cursor error")
		return nil, models.ErrDatabaseQuery
	}
	return users, nil
}

func (r *userRepository) updateByID(ctx context.Context, userID string, update bson.M) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return models.ErrUserNotFound
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to update user")
		return models.ErrDatabaseUpdate
	}
	if result.MatchedCount == 0 {
		return models.ErrUserNotFound
	}
	return nil
}
