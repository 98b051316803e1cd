// Package mongo is the MongoDB statement backend. Statements are wrapped
// in documents keyed by insertion ObjectId, which doubles as the
// pagination cursor; a unique index on the statement id rejects replays
package mongo

import (
	"context"
	"errors"
	"sync"
	"time"

	"lrsgate/internal/lrs"
	perr "lrsgate/internal/platform/errors"
	"lrsgate/internal/platform/logger"
	"lrsgate/internal/xapi"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	target            = "mongo"
	defaultCollection = "statements"
)

// Config configures MongoDB connectivity
type Config struct {
	URI        string
	Database   string
	Collection string
}

// document is the stored shape: the raw statement plus typed metadata
type document struct {
	ID        primitive.ObjectID `bson:"_id"`
	Timestamp time.Time          `bson:"timestamp"`
	Statement xapi.Statement     `bson:"statement"`
}

// Backend talks to MongoDB through the official driver. The client is
// created lazily exactly once on first use
type Backend struct {
	cfg Config
	log logger.Logger

	once    sync.Once
	client  *mongo.Client
	coll    *mongo.Collection
	openErr error
}

// Open validates the config; the first operation dials
func Open(cfg Config) (*Backend, error) {
	if cfg.URI == "" {
		return nil, perr.BackendParamf("mongo backend requires a connection URI")
	}
	if cfg.Database == "" {
		return nil, perr.BackendParamf("mongo backend requires a database name")
	}
	if cfg.Collection == "" {
		cfg.Collection = defaultCollection
	}
	return &Backend{cfg: cfg, log: *logger.Named("lrs.mongo")}, nil
}

// connect dials on first use and ensures the unique statement id index
func (b *Backend) connect(ctx context.Context) (*mongo.Collection, error) {
	b.once.Do(func() {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(b.cfg.URI))
		if err != nil {
			b.openErr = perr.BackendErr(err, target, "open")
			return
		}
		coll := client.Database(b.cfg.Database).Collection(b.cfg.Collection)
		_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: stmtField("id"), Value: 1}},
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			_ = client.Disconnect(ctx)
			b.openErr = perr.BackendErr(err, target, "open")
			return
		}
		b.client = client
		b.coll = coll
	})
	return b.coll, b.openErr
}

// Query translates, executes the find, and assembles one page
func (b *Backend) Query(ctx context.Context, p lrs.QueryParams) (*lrs.QueryResult, error) {
	q, err := translate(p)
	if err != nil {
		return nil, err
	}
	coll, err := b.connect(ctx)
	if err != nil {
		return nil, err
	}

	cur, err := coll.Find(ctx, q.Filter(),
		options.Find().SetSort(q.Sort()).SetLimit(int64(q.limit)))
	if err != nil {
		return nil, perr.BackendErr(err, target, "query")
	}

	stmts, last, err := drain(ctx, cur)
	if err != nil {
		return nil, err
	}
	return lrs.NewResult(stmts, encodeCursor(last), ""), nil
}

// QueryByIDs fetches ids in chunks with $in; chunk order defines output order
func (b *Backend) QueryByIDs(ctx context.Context, ids []string, opts ...lrs.ByIDsOption) ([]xapi.Statement, error) {
	if len(ids) == 0 {
		return []xapi.Statement{}, nil
	}
	o := lrs.ApplyByIDs(opts...)
	coll, err := b.connect(ctx)
	if err != nil {
		return nil, err
	}

	out := []xapi.Statement{}
	for _, chunk := range lrs.Chunks(ids, o.ChunkSize) {
		if err := ctx.Err(); err != nil {
			return nil, perr.BackendErr(err, target, "query_by_ids")
		}
		cur, err := coll.Find(ctx,
			bson.D{{Key: stmtField("id"), Value: bson.M{"$in": chunk}}},
			options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
		if err != nil {
			if o.IgnoreErrors {
				b.log.Warn().Err(err).Int("ids", len(chunk)).Msg("by-ids chunk failed; skipping")
				continue
			}
			return nil, perr.BackendErr(err, target, "query_by_ids")
		}
		stmts, _, err := drain(ctx, cur)
		if err != nil {
			if o.IgnoreErrors {
				b.log.Warn().Err(err).Int("ids", len(chunk)).Msg("by-ids chunk failed; skipping")
				continue
			}
			return nil, err
		}
		out = append(out, stmts...)
	}
	return out, nil
}

// Write inserts a batch unordered so one duplicate does not sink the rest;
// duplicate statement ids are reported in the returned error
func (b *Backend) Write(ctx context.Context, statements []xapi.Statement) (int, error) {
	if len(statements) == 0 {
		return 0, nil
	}
	coll, err := b.connect(ctx)
	if err != nil {
		return 0, err
	}

	docs := make([]any, 0, len(statements))
	for _, s := range statements {
		xapi.Prepare(s)
		ts, ok := s.Timestamp()
		if !ok {
			ts, _ = s.Stored()
		}
		docs = append(docs, document{
			ID:        primitive.NewObjectID(),
			Timestamp: ts.UTC(),
			Statement: s,
		})
	}

	res, err := coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil {
		var bulk mongo.BulkWriteException
		if errors.As(err, &bulk) {
			inserted := 0
			if res != nil {
				inserted = len(res.InsertedIDs)
			}
			return inserted, perr.Backendf("insert rejected %d of %d statements (duplicate ids)",
				len(statements)-inserted, len(statements))
		}
		return 0, perr.BackendErr(err, target, "write")
	}
	return len(res.InsertedIDs), nil
}

// Ping round-trips the primary
func (b *Backend) Ping(ctx context.Context) error {
	if _, err := b.connect(ctx); err != nil {
		return err
	}
	if err := b.client.Ping(ctx, readpref.Primary()); err != nil {
		return perr.BackendErr(err, target, "ping")
	}
	return nil
}

// Close disconnects the driver
func (b *Backend) Close(ctx context.Context) error {
	if b.client == nil {
		return nil
	}
	if err := b.client.Disconnect(ctx); err != nil {
		return perr.BackendErr(err, target, "close")
	}
	return nil
}

// drain decodes all documents and remembers the last ObjectId for the cursor
func drain(ctx context.Context, cur *mongo.Cursor) ([]xapi.Statement, primitive.ObjectID, error) {
	defer func() { _ = cur.Close(ctx) }()

	var (
		stmts []xapi.Statement
		last  primitive.ObjectID
	)
	for cur.Next(ctx) {
		var doc document
		if err := cur.Decode(&doc); err != nil {
			return nil, last, perr.BackendErr(err, target, "scan")
		}
		stmts = append(stmts, doc.Statement)
		last = doc.ID
	}
	if err := cur.Err(); err != nil {
		return nil, last, perr.BackendErr(err, target, "scan")
	}
	return stmts, last, nil
}
