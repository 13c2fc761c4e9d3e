package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/codestation/lms-web/internal/core/domain"
)

const defaultCollection = "credentials"

// TokenStore persists one credential document per key.
type TokenStore struct {
	col *mongo.Collection
	ttl time.Duration
	now func() time.Time
}

// NewTokenStore uses collection in db, or "credentials" when empty. A ttl
// of zero keeps documents until cleared.
func NewTokenStore(db *mongo.Database, collection string, ttl time.Duration) *TokenStore {
	if collection == "" {
		collection = defaultCollection
	}
	return &TokenStore{col: db.Collection(collection), ttl: ttl, now: time.Now}
}

type credentialDoc struct {
	Key       string     `bson:"_id"`
	Access    string     `bson:"access"`
	Refresh   string     `bson:"refresh,omitempty"`
	UpdatedAt time.Time  `bson:"updated_at"`
	ExpiresAt *time.Time `bson:"expires_at,omitempty"`
}

func (s *TokenStore) Load(ctx context.Context, key string) (domain.Credential, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc credentialDoc
	if err := s.col.FindOne(ctx, bson.M{"_id": key}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Credential{}, domain.ErrNoCredential
		}
		return domain.Credential{}, fmt.Errorf("find credential: %w", err)
	}
	// The TTL monitor runs about once a minute; expired documents may linger.
	if doc.ExpiresAt != nil && !s.now().Before(*doc.ExpiresAt) {
		return domain.Credential{}, domain.ErrNoCredential
	}
	return domain.Credential{Access: doc.Access, Refresh: doc.Refresh}, nil
}

func (s *TokenStore) Save(ctx context.Context, key string, cred domain.Credential) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := s.document(key, cred)
	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

func (s *TokenStore) Clear(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := s.col.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

// EnsureIndexes creates the TTL index that purges expired credentials.
func (s *TokenStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	return err
}

func (s *TokenStore) document(key string, cred domain.Credential) credentialDoc {
	now := s.now().UTC()
	doc := credentialDoc{Key: key, Access: cred.Access, Refresh: cred.Refresh, UpdatedAt: now}
	if s.ttl > 0 {
		exp := now.Add(s.ttl)
		doc.ExpiresAt = &exp
	}
	return doc
}
