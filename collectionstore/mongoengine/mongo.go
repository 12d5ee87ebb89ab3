// Package mongoengine implements collectionstore.Engine on MongoDB. Every registered collection
// maps to a MongoDB collection of the same name; record ids are stored as string _id values.
package mongoengine

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AntonStoeckl/dynamic-collections-go/collectionstore"
)

const (
	logMsgOperation    = "mongoengine operation: "
	logMsgFailed       = "mongoengine operation failed: "
	logAttrCollection  = "collection"
	logAttrRecordCount = "record_count"
	logAttrDurationMS  = "duration_ms"
	logAttrError       = "error"
	indexNameSuffix    = "_uniq"
)

var ErrNilDatabase = errors.New("mongo database must not be nil")

// Engine talks to one MongoDB database.
type Engine struct {
	db     *mongo.Database
	logger collectionstore.Logger
	closer func(ctx context.Context) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a logger for per-operation debug lines and failures.
func WithLogger(logger collectionstore.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New wraps an already connected database. Close does not disconnect its client.
func New(db *mongo.Database, opts ...Option) (Engine, error) {
	if db == nil {
		return Engine{}, ErrNilDatabase
	}

	e := Engine{db: db, closer: func(context.Context) error { return nil }}
	for _, o := range opts {
		o(&e)
	}

	return e, nil
}

// Connect dials uri and returns an Engine on database that owns the client.
func Connect(ctx context.Context, uri, database string, opts ...Option) (Engine, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return Engine{}, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return Engine{}, err
	}

	e, err := New(client.Database(database), opts...)
	if err != nil {
		return Engine{}, err
	}
	e.closer = client.Disconnect

	return e, nil
}

// Prepare creates a unique index for every unique field. Documents without the field are exempt.
func (e Engine) Prepare(ctx context.Context, specs []collectionstore.CollectionSpec) error {
	for _, spec := range specs {
		for _, field := range spec.UniqueFields() {
			model := mongo.IndexModel{
				Keys: bson.D{{Key: field, Value: 1}},
				Options: options.Index().
					SetName(field + indexNameSuffix).
					SetUnique(true).
					SetPartialFilterExpression(bson.D{{Key: field, Value: bson.D{{Key: "$exists", Value: true}}}}),
			}

			if _, err := e.db.Collection(spec.Name).Indexes().CreateOne(ctx, model); err != nil {
				e.logFailure("prepare", spec.Name, err)
				return err
			}
		}
	}

	return nil
}

func (e Engine) Find(ctx context.Context, query collectionstore.StoreQuery) ([]collectionstore.Record, error) {
	start := time.Now()

	filter, err := Translate(query.Where)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(sortDocument(query.Sort))
	if query.Skip > 0 {
		opts.SetSkip(int64(query.Skip))
	}
	if query.Limit > 0 {
		opts.SetLimit(int64(query.Limit))
	}
	if len(query.Fields) > 0 {
		projection := make(bson.D, 0, len(query.Fields))
		for _, f := range query.Fields {
			projection = append(projection, bson.E{Key: f, Value: 1})
		}
		opts.SetProjection(projection)
	}

	cursor, err := e.db.Collection(query.Collection).Find(ctx, filter, opts)
	if err != nil {
		e.logFailure("find", query.Collection, err)
		return nil, err
	}

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		e.logFailure("find", query.Collection, err)
		return nil, err
	}

	out := make([]collectionstore.Record, 0, len(docs))
	for _, doc := range docs {
		out = append(out, fromDocument(doc))
	}

	e.log("find", query.Collection, len(out), time.Since(start))

	return out, nil
}

func (e Engine) Count(ctx context.Context, collection string, where collectionstore.Predicate) (int, error) {
	filter, err := Translate(where)
	if err != nil {
		return 0, err
	}

	n, err := e.db.Collection(collection).CountDocuments(ctx, filter)
	if err != nil {
		e.logFailure("count", collection, err)
		return 0, err
	}

	return int(n), nil
}

func (e Engine) Get(ctx context.Context, collection, id string) (collectionstore.Record, error) {
	var doc bson.M

	err := e.db.Collection(collection).FindOne(ctx, byID(id)).Decode(&doc)
	if err != nil {
		return nil, e.mapError("get", collection, err)
	}

	return fromDocument(doc), nil
}

func (e Engine) Insert(ctx context.Context, collection string, record collectionstore.Record) error {
	start := time.Now()

	if _, err := e.db.Collection(collection).InsertOne(ctx, toDocument(record)); err != nil {
		return e.mapError("insert", collection, err)
	}

	e.log("insert", collection, 1, time.Since(start))

	return nil
}

// Update applies patch with $set, so fields not named in patch keep their stored values.
func (e Engine) Update(
	ctx context.Context,
	collection, id string,
	patch collectionstore.Record,
) (collectionstore.Record, error) {

	start := time.Now()

	changes := toDocument(patch.Without(collectionstore.FieldID))
	if len(changes) == 0 {
		return e.Get(ctx, collection, id)
	}

	var doc bson.M
	err := e.db.Collection(collection).FindOneAndUpdate(
		ctx,
		byID(id),
		bson.D{{Key: "$set", Value: changes}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return nil, e.mapError("update", collection, err)
	}

	e.log("update", collection, 1, time.Since(start))

	return fromDocument(doc), nil
}

func (e Engine) Delete(ctx context.Context, collection, id string) (collectionstore.Record, error) {
	start := time.Now()

	var doc bson.M
	if err := e.db.Collection(collection).FindOneAndDelete(ctx, byID(id)).Decode(&doc); err != nil {
		return nil, e.mapError("delete", collection, err)
	}

	e.log("delete", collection, 1, time.Since(start))

	return fromDocument(doc), nil
}

// Close disconnects the client when the Engine was created with Connect.
func (e Engine) Close() error {
	if e.closer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return e.closer(ctx)
}

func byID(id string) bson.D {
	return bson.D{{Key: collectionstore.FieldID, Value: id}}
}

func (e Engine) mapError(action, collection string, err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return collectionstore.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return errors.Join(collectionstore.ErrDuplicateKey, err)
	default:
		e.logFailure(action, collection, err)
		return err
	}
}

func (e Engine) log(action, collection string, count int, d time.Duration) {
	if e.logger == nil {
		return
	}

	e.logger.Debug(logMsgOperation+action,
		logAttrCollection, collection,
		logAttrRecordCount, count,
		logAttrDurationMS, float64(d.Microseconds())/1000,
	)
}

func (e Engine) logFailure(action, collection string, err error) {
	if e.logger != nil {
		e.logger.Error(logMsgFailed+action, logAttrCollection, collection, logAttrError, err.Error())
	}
}

var _ collectionstore.Engine = Engine{}
