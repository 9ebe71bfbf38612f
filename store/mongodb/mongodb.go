// Package mongodb provides a document-store-backed cacheproxy.Store using
// the official go.mongodb.org/mongo-driver.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Config holds the configuration for creating a MongoDB-backed Store.
type Config struct {
	// URI is the MongoDB connection URI. Required.
	URI string
	// Database is the database to use for caching. Required.
	Database string
	// Collection is the collection to use. Optional, defaults to "httpproxy".
	Collection string
	// KeyPrefix is prefixed onto every stored key. Optional, defaults to "cache:".
	KeyPrefix string
	// Timeout bounds every individual operation. Optional, defaults to 5s.
	Timeout time.Duration
	// TTL, if set, creates a TTL index so entries expire server-side.
	TTL time.Duration
}

type document struct {
	Key       string    `bson:"_id"`
	Data      []byte    `bson:"data"`
	CreatedAt time.Time `bson:"createdAt"`
}

// Store is a cacheproxy.Store backed by a MongoDB collection.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	keyPrefix  string
	timeout    time.Duration
	ownsClient bool
}

func withDefaults(cfg Config) Config {
	if cfg.Collection == "" {
		cfg.Collection = "httpproxy"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "cache:"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	return cfg
}

// New connects to MongoDB and returns a ready Store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongodb: URI is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("mongodb: Database is required")
	}
	cfg = withDefaults(cfg)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongodb: connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb: ping: %w", err)
	}

	s := &Store{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		keyPrefix:  cfg.KeyPrefix,
		timeout:    cfg.Timeout,
		ownsClient: true,
	}
	if cfg.TTL > 0 {
		if err := s.createTTLIndex(ctx, cfg.TTL); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("mongodb: create TTL index: %w", err)
		}
	}
	return s, nil
}

func (s *Store) storeKey(key string) string {
	return s.keyPrefix + key
}

// Get implements cacheproxy.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var doc document
	err := s.collection.FindOne(opCtx, bson.M{"_id": s.storeKey(key)}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("mongodb: get %q: %w", key, err)
	}
	return doc.Data, true, nil
}

// Set implements cacheproxy.Store.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc := document{Key: s.storeKey(key), Data: value, CreatedAt: time.Now()}
	opts := options.Replace().SetUpsert(true)
	_, err := s.collection.ReplaceOne(opCtx, bson.M{"_id": doc.Key}, doc, opts)
	if err != nil {
		return fmt.Errorf("mongodb: set %q: %w", key, err)
	}
	return nil
}

// Delete implements cacheproxy.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.collection.DeleteOne(opCtx, bson.M{"_id": s.storeKey(key)})
	if err != nil {
		return fmt.Errorf("mongodb: delete %q: %w", key, err)
	}
	return nil
}

// Close disconnects the client, if this Store owns it.
func (s *Store) Close(ctx context.Context) error {
	if !s.ownsClient {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (s *Store) createTTLIndex(ctx context.Context, ttl time.Duration) error {
	indexCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err := s.collection.Indexes().CreateOne(indexCtx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: 1}},
		Options: options.Index().
			SetExpireAfterSeconds(int32(ttl.Seconds())).
			SetName("httpproxy_ttl"),
	})
	return err
}
