// Package mongo is the document core.Store.
//
// Postings and organizations are kept in two collections with unique
// indexes on their natural keys. Postings reference organizations by
// ObjectID; the organization report joins with $lookup.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"

	"github.com/JonMunkholm/Jobalyzer/internal/core"
)

const (
	organizationsCollection = "organizations"
	postingsCollection      = "postings"
)

// Config holds connection settings.
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
}

// Store implements core.Store on MongoDB.
type Store struct {
	client        *mongo.Client
	organizations *mongo.Collection
	postings      *mongo.Collection
	closed        atomic.Bool
}

var _ core.Store = (*Store)(nil)

// Open connects to cfg.URI and pings the primary.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(cfg.ConnectTimeout)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, core.Unavailable("ping mongo", err)
	}

	return New(client, cfg.Database), nil
}

// New uses an existing client. Close disconnects it.
func New(client *mongo.Client, database string) *Store {
	db := client.Database(database)
	return &Store{
		client:        client,
		organizations: db.Collection(organizationsCollection),
		postings:      db.Collection(postingsCollection),
	}
}

// UpsertOrganization sets name and industry on the organization with
// org.Key, creating it with a fresh ObjectID if absent.
func (s *Store) UpsertOrganization(ctx context.Context, org core.Organization) (core.OrganizationRef, bool, error) {
	if s.closed.Load() {
		return "", false, errClosed
	}

	ref, created, err := s.upsertOrganization(ctx, org)
	if mongo.IsDuplicateKeyError(err) {
		// Two upserts raced on the same new key; the loser retries as an update.
		ref, created, err = s.upsertOrganization(ctx, org)
	}
	if err != nil {
		return "", false, classify(fmt.Sprintf("upsert organization %q", org.Key), err)
	}
	return ref, created, nil
}

func (s *Store) upsertOrganization(ctx context.Context, org core.Organization) (core.OrganizationRef, bool, error) {
	newID := primitive.NewObjectID()
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "name", Value: org.Name},
			{Key: "industry", Value: org.Industry},
		}},
		{Key: "$setOnInsert", Value: bson.D{{Key: "_id", Value: newID}}},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.Before).
		SetProjection(bson.D{{Key: "_id", Value: 1}})

	var before organizationDoc
	err := s.organizations.FindOneAndUpdate(ctx, bson.D{{Key: "organizationKey", Value: org.Key}}, update, opts).Decode(&before)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.OrganizationRef(newID.Hex()), true, nil
	}
	if err != nil {
		return "", false, err
	}
	return core.OrganizationRef(before.ID.Hex()), false, nil
}

// UpsertPosting replaces the posting document in full.
func (s *Store) UpsertPosting(ctx context.Context, p core.Posting) error {
	if s.closed.Load() {
		return errClosed
	}

	_, err := s.postings.ReplaceOne(ctx,
		bson.D{{Key: "postingKey", Value: p.Key}},
		toPostingDoc(p),
		options.Replace().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		_, err = s.postings.ReplaceOne(ctx,
			bson.D{{Key: "postingKey", Value: p.Key}},
			toPostingDoc(p),
			options.Replace().SetUpsert(true),
		)
	}
	if err != nil {
		return classify(fmt.Sprintf("upsert posting %q", p.Key), err)
	}
	return nil
}

func (s *Store) FindPostings(ctx context.Context, pred core.Predicate, page core.Page) ([]core.Posting, error) {
	if s.closed.Load() {
		return nil, errClosed
	}

	filter, err := buildFilter(pred)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "postingKey", Value: 1}})
	if !page.IsZero() {
		opts.SetSkip(int64(page.Offset())).SetLimit(int64(page.Limit))
	}

	cursor, err := s.postings.Find(ctx, filter, opts)
	if err != nil {
		return nil, classify("find postings", err)
	}
	defer cursor.Close(ctx)

	var out []core.Posting
	for cursor.Next(ctx) {
		var doc postingDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode posting: %w", err)
		}
		out = append(out, doc.toPosting())
	}
	if err := cursor.Err(); err != nil {
		return nil, classify("find postings", err)
	}
	return out, nil
}

type groupRow struct {
	Key   *string `bson:"_id"`
	Count int64   `bson:"count"`
}

func (s *Store) Aggregate(ctx context.Context, spec core.ReportSpec) ([]core.ReportRow, error) {
	if s.closed.Load() {
		return nil, errClosed
	}

	pipeline, err := aggregatePipeline(spec)
	if err != nil {
		return nil, err
	}

	cursor, err := s.postings.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, classify("aggregate "+spec.Name, err)
	}
	defer cursor.Close(ctx)

	var rows []groupRow
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, classify("aggregate "+spec.Name, err)
	}

	out := make([]core.ReportRow, len(rows))
	for i, r := range rows {
		out[i] = core.ReportRow{Key: r.Key, Count: r.Count}
	}
	return out, nil
}

// EnsureSchema creates the natural-key and lookup indexes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s.closed.Load() {
		return errClosed
	}

	_, err := s.organizations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "organizationKey", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return classify("create organization indexes", err)
	}

	_, err = s.postings.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "postingKey", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "organizationRef", Value: 1}}},
		{Keys: bson.D{{Key: "state", Value: 1}}},
		{Keys: bson.D{{Key: "openingDate", Value: 1}}},
		{Keys: bson.D{{Key: "skills", Value: 1}}},
	})
	if err != nil {
		return classify("create posting indexes", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return errClosed
	}
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return core.Unavailable("ping mongo", err)
	}
	return nil
}

func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

var errClosed = core.Unavailable("mongo store is closed", nil)

// classify wraps network and server selection failures as
// core.ErrStoreUnavailable.
func classify(op string, err error) error {
	if isUnavailable(err) {
		return core.Unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUnavailable(err error) bool {
	if errors.Is(err, mongo.ErrClientDisconnected) {
		return true
	}
	var selErr topology.ServerSelectionError
	if errors.As(err, &selErr) {
		return true
	}
	if mongo.IsNetworkError(err) {
		return true
	}
	var sse mongo.ServerError
	if errors.As(err, &sse) {
		// NotWritablePrimary, ShutdownInProgress, InterruptedAtShutdown
		return sse.HasErrorCode(10107) || sse.HasErrorCode(91) || sse.HasErrorCode(11600)
	}
	return mongo.IsTimeout(err) && !errors.Is(err, context.DeadlineExceeded)
}
