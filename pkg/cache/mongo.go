package cache

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	bulkerr "github.com/matzehuels/bulkstat/pkg/errors"
)

// Mongo defaults.
const (
	DefaultMongoDatabase   = "bulkstat"
	DefaultMongoCollection = "cache_entries"
)

// MongoConfig configures a [MongoStore].
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// MongoStore keeps entries as documents in a MongoDB collection. The write
// timestamp is a native field, so no envelope codec is involved.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type mongoEntry struct {
	Key      string    `bson:"_id"`
	Payload  []byte    `bson:"payload"`
	StoredAt time.Time `bson:"stored_at"`
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.URI == "" {
		return nil, bulkerr.New(bulkerr.ErrCodeConfig, "mongo: URI required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	db, coll := cfg.Database, cfg.Collection
	if db == "" {
		db = DefaultMongoDatabase
	}
	if coll == "" {
		coll = DefaultMongoCollection
	}
	return &MongoStore{client: client, coll: client.Database(db).Collection(coll)}, nil
}

// Name implements [Namer].
func (s *MongoStore) Name() string { return "mongo" }

// Get loads the document for key.
func (s *MongoStore) Get(ctx context.Context, key Key) (*Entry, error) {
	var doc mongoEntry
	err := s.coll.FindOne(ctx, bson.M{"_id": string(key)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, bulkerr.Wrap(bulkerr.ErrCodeStorage, err, "mongo: get %s", key)
	}
	return &Entry{Key: key, Payload: doc.Payload, StoredAt: doc.StoredAt}, nil
}

// Put upserts the document for key. A single-document replace is atomic.
func (s *MongoStore) Put(ctx context.Context, key Key, payload []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	doc := mongoEntry{Key: string(key), Payload: payload, StoredAt: time.Now().UTC()}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": doc.Key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return bulkerr.Wrap(bulkerr.ErrCodeStorage, err, "mongo: put %s", key)
	}
	return nil
}

// IsFresh projects only the timestamp.
func (s *MongoStore) IsFresh(ctx context.Context, key Key, p Policy) (bool, error) {
	if p.ForceRefresh {
		return false, nil
	}
	var doc struct {
		StoredAt time.Time `bson:"stored_at"`
	}
	opts := options.FindOne().SetProjection(bson.M{"stored_at": 1})
	err := s.coll.FindOne(ctx, bson.M{"_id": string(key)}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, bulkerr.Wrap(bulkerr.ErrCodeStorage, err, "mongo: stat %s", key)
	}
	return p.Fresh(doc.StoredAt, time.Now()), nil
}

// Delete removes the document for key.
func (s *MongoStore) Delete(ctx context.Context, key Key) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": string(key)}); err != nil {
		return bulkerr.Wrap(bulkerr.ErrCodeStorage, err, "mongo: delete %s", key)
	}
	return nil
}

// Clear deletes every document in the collection.
func (s *MongoStore) Clear(ctx context.Context) (int, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, bulkerr.Wrap(bulkerr.ErrCodeStorage, err, "mongo: clear")
	}
	return int(res.DeletedCount), nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

var (
	_ Store   = (*MongoStore)(nil)
	_ Clearer = (*MongoStore)(nil)
)
