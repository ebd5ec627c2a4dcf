package server

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/miltonlaufer/diffgraph/pkg/errors"
	"github.com/miltonlaufer/diffgraph/pkg/structure"
)

// Store persists uploaded bundles between requests.
type Store interface {
	// Put saves a bundle under id, overwriting any previous snapshot.
	Put(ctx context.Context, id string, bundle *structure.Bundle) error

	// Get returns the bundle stored under id, or a SNAPSHOT_NOT_FOUND error.
	Get(ctx context.Context, id string) (*structure.Bundle, error)

	// Delete removes the bundle stored under id. Missing ids are not an error.
	Delete(ctx context.Context, id string) error

	// Close releases any underlying connections.
	Close(ctx context.Context) error
}

// =============================================================================
// In-Memory Store
// =============================================================================

// MemoryStore keeps bundles in process memory. It is the default when no
// MongoDB URI is configured; snapshots do not survive a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	bundles map[string]*structure.Bundle
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bundles: make(map[string]*structure.Bundle)}
}

func (s *MemoryStore) Put(ctx context.Context, id string, bundle *structure.Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundles[id] = bundle
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*structure.Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bundles[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeSnapshotNotFound, "no snapshot with id %s", id)
	}
	return b, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bundles, id)
	return nil
}

func (s *MemoryStore) Close(ctx context.Context) error { return nil }

// =============================================================================
// MongoDB Store
// =============================================================================

// snapshotDoc is the persisted shape of a bundle snapshot.
type snapshotDoc struct {
	ID        string            `bson:"_id"`
	Bundle    *structure.Bundle `bson:"bundle"`
	CreatedAt time.Time         `bson:"created_at"`
}

// MongoStore persists bundle snapshots in a MongoDB collection so they
// survive restarts and can be shared across instances.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to MongoDB and returns a store backed by the
// "snapshots" collection of the given database.
func NewMongoStore(ctx context.Context, uri, db string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "connect to mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "ping mongodb")
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(db).Collection("snapshots"),
	}, nil
}

func (s *MongoStore) Put(ctx context.Context, id string, bundle *structure.Bundle) error {
	doc := snapshotDoc{ID: id, Bundle: bundle, CreatedAt: time.Now().UTC()}
	opts := options.Replace().SetUpsert(true)
	if _, err := s.coll.ReplaceOne(ctx, bson.M{"_id": id}, doc, opts); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "store snapshot")
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*structure.Bundle, error) {
	var doc snapshotDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, errors.New(errors.ErrCodeSnapshotNotFound, "no snapshot with id %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "load snapshot")
	}
	return doc.Bundle, nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "delete snapshot")
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
