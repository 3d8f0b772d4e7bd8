// Package mongodb implements the benchmark target for a MongoDB deployment.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/TFMV/mongoload/integrations"
	"github.com/TFMV/mongoload/pkg/core"
)

// DefaultURI is used when no URI is configured.
const DefaultURI = "mongodb://localhost:27017"

// Options define how the client connects.
type Options struct {
	// URI is the MongoDB connection string.
	URI string

	// ConnectTimeout bounds connection establishment and the initial ping.
	ConnectTimeout time.Duration

	// MaxPoolSize bounds the driver connection pool. Zero keeps the driver default.
	MaxPoolSize uint64

	// Logger receives connection lifecycle messages.
	Logger *zap.Logger
}

// Option is a functional config approach
type Option func(*Options)

// WithURI sets the connection string.
func WithURI(uri string) Option {
	return func(o *Options) {
		o.URI = uri
	}
}

// WithConnectTimeout sets the connect and ping timeout.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.ConnectTimeout = d
	}
}

// WithMaxPoolSize sets the maximum connection pool size.
func WithMaxPoolSize(n uint64) Option {
	return func(o *Options) {
		o.MaxPoolSize = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// MongoDB is a connected client. Use NewMongoDB(...) to construct.
type MongoDB struct {
	client *mongo.Client
	opts   Options

	closeOnce sync.Once
	closeErr  error
}

var _ integrations.Database = (*MongoDB)(nil)

// NewMongoDB connects to the deployment and verifies it answers a ping.
func NewMongoDB(ctx context.Context, opts ...Option) (*MongoDB, error) {
	o := Options{
		URI:            DefaultURI,
		ConnectTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.URI == "" {
		o.URI = DefaultURI
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}

	clientOptions := options.Client().
		ApplyURI(o.URI).
		SetConnectTimeout(o.ConnectTimeout).
		SetServerSelectionTimeout(o.ConnectTimeout)
	if o.MaxPoolSize > 0 {
		clientOptions.SetMaxPoolSize(o.MaxPoolSize)
	}

	connectCtx, cancel := context.WithTimeout(ctx, o.ConnectTimeout)
	defer cancel()

	o.Logger.Info("Connecting to MongoDB", zap.String("uri", RedactURI(o.URI)))

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect: %w", core.ErrConnection, err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: ping failed: %w", core.ErrConnection, err)
	}

	o.Logger.Info("Connected to MongoDB", zap.String("uri", RedactURI(o.URI)))

	return &MongoDB{client: client, opts: o}, nil
}

// Address returns the connection string with credentials removed.
func (m *MongoDB) Address() string {
	return RedactURI(m.opts.URI)
}

// PrepareCollection creates the collection if it is missing and clears it on request.
// A capped collection cannot be emptied with a delete, so clearing one drops
// and recreates it.
func (m *MongoDB) PrepareCollection(ctx context.Context, spec integrations.CollectionSpec) (core.Collection, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrCollectionSetup, err)
	}

	db := m.client.Database(spec.Database)

	names, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: spec.Name}})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list collections: %w", core.ErrCollectionSetup, err)
	}
	exists := len(names) > 0

	if exists && spec.Clear {
		if spec.Capped {
			m.opts.Logger.Info("Dropping capped collection", zap.String("namespace", spec.Namespace()))
			if err := db.Collection(spec.Name).Drop(ctx); err != nil {
				return nil, fmt.Errorf("%w: failed to drop %s: %w", core.ErrCollectionSetup, spec.Namespace(), err)
			}
			exists = false
		} else {
			res, err := db.Collection(spec.Name).DeleteMany(ctx, bson.D{})
			if err != nil {
				return nil, fmt.Errorf("%w: failed to clear %s: %w", core.ErrCollectionSetup, spec.Namespace(), err)
			}
			m.opts.Logger.Info("Cleared collection",
				zap.String("namespace", spec.Namespace()),
				zap.Int64("deleted", res.DeletedCount))
		}
	}

	if !exists {
		if err := createCollection(ctx, db, spec); err != nil {
			return nil, fmt.Errorf("%w: failed to create %s: %w", core.ErrCollectionSetup, spec.Namespace(), err)
		}
		m.opts.Logger.Info("Created collection",
			zap.String("namespace", spec.Namespace()),
			zap.Bool("capped", spec.Capped),
			zap.Bool("auto_index_id", spec.AutoIndexID))
	}

	return &Collection{coll: db.Collection(spec.Name), idMode: spec.IDMode}, nil
}

// createCollection issues the create. Servers that still accept autoIndexId
// only take it through the raw command, so that path bypasses the options builder.
func createCollection(ctx context.Context, db *mongo.Database, spec integrations.CollectionSpec) error {
	if !spec.AutoIndexID {
		return db.RunCommand(ctx, createCommand(spec)).Err()
	}

	opts := options.CreateCollection()
	if spec.Capped {
		opts.SetCapped(true).SetSizeInBytes(spec.SizeBytes)
		if spec.MaxDocuments > 0 {
			opts.SetMaxDocuments(spec.MaxDocuments)
		}
	}
	return db.CreateCollection(ctx, spec.Name, opts)
}

func createCommand(spec integrations.CollectionSpec) bson.D {
	cmd := bson.D{{Key: "create", Value: spec.Name}}
	if spec.Capped {
		cmd = append(cmd,
			bson.E{Key: "capped", Value: true},
			bson.E{Key: "size", Value: spec.SizeBytes})
		if spec.MaxDocuments > 0 {
			cmd = append(cmd, bson.E{Key: "max", Value: spec.MaxDocuments})
		}
	}
	if !spec.AutoIndexID {
		cmd = append(cmd, bson.E{Key: "autoIndexId", Value: false})
	}
	return cmd
}

// Close disconnects the client. Subsequent calls return the first result.
func (m *MongoDB) Close(ctx context.Context) error {
	m.closeOnce.Do(func() {
		m.closeErr = m.client.Disconnect(ctx)
		m.opts.Logger.Info("Disconnected from MongoDB", zap.String("uri", m.Address()))
	})
	return m.closeErr
}

// Collection inserts records as flat documents of string fields.
type Collection struct {
	coll   *mongo.Collection
	idMode core.IDMode
}

var _ core.Collection = (*Collection)(nil)

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.coll.Name()
}

// InsertMany performs an ordered bulk insert and reports how many documents
// were written before the first failure.
func (c *Collection) InsertMany(ctx context.Context, records []core.Record) (int, error) {
	docs := make([]interface{}, len(records))
	for i, r := range records {
		docs[i] = toDocument(r, c.idMode)
	}

	res, err := c.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err != nil {
		return insertedBefore(err), classify(err)
	}
	return len(res.InsertedIDs), nil
}

// InsertOne inserts a single record.
func (c *Collection) InsertOne(ctx context.Context, r core.Record) error {
	if _, err := c.coll.InsertOne(ctx, toDocument(r, c.idMode)); err != nil {
		return classify(err)
	}
	return nil
}

// Count returns the number of documents in the collection.
func (c *Collection) Count(ctx context.Context) (int64, error) {
	return c.coll.CountDocuments(ctx, bson.D{})
}

// toDocument maps record fields to document fields. In record mode the
// record ID becomes _id; otherwise the server assigns one.
func toDocument(r core.Record, mode core.IDMode) bson.M {
	doc := make(bson.M, len(r.Fields)+1)
	for k, v := range r.Fields {
		doc[k] = v
	}
	if mode == core.IDRecord {
		doc["_id"] = r.ID
	}
	return doc
}

// insertedBefore returns the index of the first failed write of an ordered
// bulk insert, which equals the number of documents written.
func insertedBefore(err error) int {
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) && len(bwe.WriteErrors) > 0 {
		return bwe.WriteErrors[0].Index
	}
	return 0
}

func classify(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %w", core.ErrDuplicateID, err)
	}
	return err
}

// RedactURI removes the user info section from a connection string.
func RedactURI(uri string) string {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return uri
	}
	hostEnd := strings.IndexAny(rest, "/?")
	if hostEnd < 0 {
		hostEnd = len(rest)
	}
	if at := strings.LastIndex(rest[:hostEnd], "@"); at >= 0 {
		rest = rest[at+1:]
	}
	return scheme + "://" + rest
}
