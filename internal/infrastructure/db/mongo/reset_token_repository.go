package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/geodonis/geodonis-web/internal/core/domain"
)

const collectionResetTokens = "password_reset_tokens"

// ResetTokenRepository implements ports.ResetTokenRepository using MongoDB.
type ResetTokenRepository struct {
	db    *mongo.Database
	col   *mongo.Collection
	users *mongo.Collection
	now   func() time.Time
}

func NewResetTokenRepository(db *mongo.Database) *ResetTokenRepository {
	return &ResetTokenRepository{
		db:    db,
		col:   db.Collection(collectionResetTokens),
		users: db.Collection(collectionUsers),
		now:   time.Now,
	}
}

type resetTokenDoc struct {
	ID        int64     `bson:"_id"`
	UserID    int64     `bson:"user_id"`
	Token     string    `bson:"token"`
	ExpiresAt time.Time `bson:"expires_at"`
	Used      bool      `bson:"used"`
	CreatedAt time.Time `bson:"created_at"`
}

func (d resetTokenDoc) toDomain() *domain.PasswordResetToken {
	return &domain.PasswordResetToken{
		ID:        d.ID,
		UserID:    d.UserID,
		Token:     d.Token,
		ExpiresAt: d.ExpiresAt.UTC(),
		Used:      d.Used,
		CreatedAt: d.CreatedAt.UTC(),
	}
}

// FindByToken returns the unused token matching token.
func (r *ResetTokenRepository) FindByToken(ctx context.Context, token string) (*domain.PasswordResetToken, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc resetTokenDoc
	err := r.col.FindOne(ctx, bson.M{"token": token, "used": false}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrResetTokenInvalid
		}
		return nil, fmt.Errorf("find reset token: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *ResetTokenRepository) Create(ctx context.Context, token *domain.PasswordResetToken) (*domain.PasswordResetToken, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id, err := nextSequence(ctx, r.db, collectionResetTokens)
	if err != nil {
		return nil, err
	}
	doc := resetTokenDoc{
		ID:        id,
		UserID:    token.UserID,
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt.UTC(),
		Used:      token.Used,
		CreatedAt: token.CreatedAt.UTC(),
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert reset token: %w", err)
	}
	return doc.toDomain(), nil
}

// Consume marks the token used and stores the new password hash inside one
// transaction. The consumable guard makes a concurrent second consume, or one
// racing past the expiry, match nothing, which aborts the transaction.
func (r *ResetTokenRepository) Consume(ctx context.Context, tokenID, userID int64, passwordHash string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	sess, err := r.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		res, err := r.col.UpdateOne(sc,
			consumable(tokenID, r.now()),
			bson.M{"$set": bson.M{"used": true}},
		)
		if err != nil {
			return nil, fmt.Errorf("mark token used: %w", err)
		}
		if res.MatchedCount == 0 {
			return nil, domain.ErrResetTokenInvalid
		}

		res, err = r.users.UpdateOne(sc,
			bson.M{"_id": userID},
			bson.M{"$set": bson.M{"password_hash": passwordHash, "updated_at": r.now().UTC()}},
		)
		if err != nil {
			return nil, fmt.Errorf("set password: %w", err)
		}
		if res.MatchedCount == 0 {
			return nil, domain.ErrUserNotFound
		}
		return nil, nil
	})
	return err
}

// consumable matches tokenID only while it is unused and unexpired at now.
func consumable(tokenID int64, now time.Time) bson.M {
	return bson.M{
		"_id":        tokenID,
		"used":       false,
		"expires_at": bson.M{"$gt": now.UTC()},
	}
}

func (r *ResetTokenRepository) DeleteExpiredOrUsed(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteMany(ctx, bson.M{"$or": bson.A{
		bson.M{"used": true},
		bson.M{"expires_at": bson.M{"$lt": now.UTC()}},
	}})
	if err != nil {
		return 0, fmt.Errorf("delete reset tokens: %w", err)
	}
	return res.DeletedCount, nil
}

// EnsureIndexes creates the token lookup and pruning indexes.
func (r *ResetTokenRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
		{Keys: bson.D{{Key: "expires_at", Value: 1}}},
	}
	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
