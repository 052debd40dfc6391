package kvstore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoConfig holds connection settings for the MongoDB port.
type MongoConfig struct {
	ConnectionURL  string        `env:"SESSION_MONGODB_URL,required"`
	Database       string        `env:"SESSION_MONGODB_DATABASE" envDefault:"sessions"`
	ConnectTimeout time.Duration `env:"SESSION_MONGODB_CONNECT_TIMEOUT" envDefault:"10s"`
	MaxPoolSize    uint64        `env:"SESSION_MONGODB_MAX_POOL_SIZE" envDefault:"100"`
	MinPoolSize    uint64        `env:"SESSION_MONGODB_MIN_POOL_SIZE" envDefault:"1"`
	RetryAttempts  int           `env:"SESSION_MONGODB_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"SESSION_MONGODB_RETRY_INTERVAL" envDefault:"5s"`
}

const (
	attrCollection  = "session_attributes"
	loginCollection = "session_login"
)

type mongoRecord struct {
	Key       string    `bson:"_id"`
	Value     []byte    `bson:"value"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// MongoStore is a Store port for backends without logical database
// isolation: each namespace maps to its own collection. Expiry relies on a
// TTL index over expires_at; because Mongo's reaper runs periodically, reads
// additionally filter on expires_at so an expired record is never returned.
type MongoStore struct {
	attr  *mongo.Collection
	login *mongo.Collection
}

// NewMongoStore wraps an already-connected database handle.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		attr:  db.Collection(attrCollection),
		login: db.Collection(loginCollection),
	}
}

// ConnectMongo dials the server described by cfg and returns a store with
// TTL indexes in place.
func ConnectMongo(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	attempts := max(cfg.RetryAttempts, 1)

	var client *mongo.Client
	for range attempts {
		c, err := mongo.Connect(
			options.Client().
				ApplyURI(cfg.ConnectionURL).
				SetConnectTimeout(cfg.ConnectTimeout).
				SetMaxPoolSize(cfg.MaxPoolSize).
				SetMinPoolSize(cfg.MinPoolSize),
		)
		if err == nil {
			if err := c.Ping(ctx, nil); err == nil {
				client = c
				break
			}
			_ = c.Disconnect(ctx)
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrNotReady, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}
	if client == nil {
		return nil, ErrNotReady
	}

	store := NewMongoStore(client.Database(cfg.Database))
	if err := store.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// EnsureIndexes creates the TTL indexes both collections rely on. Safe to
// call repeatedly.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	model := mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	}
	if _, err := s.attr.Indexes().CreateOne(ctx, model); err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	if _, err := s.login.Indexes().CreateOne(ctx, model); err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	return nil
}

func (s *MongoStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return mongoPut(ctx, s.attr, key, value, ttl)
}

func (s *MongoStore) Get(ctx context.Context, key string) ([]byte, error) {
	return mongoGet(ctx, s.attr, key)
}

func (s *MongoStore) Delete(ctx context.Context, key string) error {
	return mongoDelete(ctx, s.attr, key)
}

func (s *MongoStore) Contains(ctx context.Context, key string) (bool, error) {
	return mongoContains(ctx, s.attr, key)
}

func (s *MongoStore) Size(ctx context.Context) (int64, error) {
	return mongoSize(ctx, s.attr)
}

func (s *MongoStore) LoginPut(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return mongoPut(ctx, s.login, key, value, ttl)
}

func (s *MongoStore) LoginGet(ctx context.Context, key string) ([]byte, error) {
	return mongoGet(ctx, s.login, key)
}

func (s *MongoStore) LoginDelete(ctx context.Context, key string) error {
	return mongoDelete(ctx, s.login, key)
}

func (s *MongoStore) LoginContains(ctx context.Context, key string) (bool, error) {
	return mongoContains(ctx, s.login, key)
}

func (s *MongoStore) LoginSize(ctx context.Context) (int64, error) {
	return mongoSize(ctx, s.login)
}

func mongoPut(ctx context.Context, coll *mongo.Collection, key string, value []byte, ttl time.Duration) error {
	record := mongoRecord{
		Key:       key,
		Value:     value,
		ExpiresAt: time.Now().Add(ttl),
	}
	_, err := coll.ReplaceOne(ctx, bson.M{"_id": key}, record, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	return nil
}

func mongoGet(ctx context.Context, coll *mongo.Collection, key string) ([]byte, error) {
	var record mongoRecord
	err := coll.FindOne(ctx, liveFilter(key)).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, errors.Join(ErrUnavailable, err)
	}
	return record.Value, nil
}

func mongoDelete(ctx context.Context, coll *mongo.Collection, key string) error {
	if _, err := coll.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	return nil
}

func mongoContains(ctx context.Context, coll *mongo.Collection, key string) (bool, error) {
	n, err := coll.CountDocuments(ctx, liveFilter(key))
	if err != nil {
		return false, errors.Join(ErrUnavailable, err)
	}
	return n > 0, nil
}

func mongoSize(ctx context.Context, coll *mongo.Collection) (int64, error) {
	n, err := coll.CountDocuments(ctx, bson.M{"expires_at": bson.M{"$gt": time.Now()}})
	if err != nil {
		return 0, errors.Join(ErrUnavailable, err)
	}
	return n, nil
}

func liveFilter(key string) bson.M {
	return bson.M{
		"_id":        key,
		"expires_at": bson.M{"$gt": time.Now()},
	}
}
