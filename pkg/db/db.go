package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned by single-document reads that match nothing.
var ErrNotFound = errors.New("not found")

// collection is the subset of *mongo.Collection the gateway uses.
type collection interface {
	BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*mongo.Cursor, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
}

var _ collection = (*mongo.Collection)(nil)

// Client wraps the MongoDB client and the article and bulletin collections.
type Client struct {
	mongoClient *mongo.Client
	database    *mongo.Database
	articles    collection
	bulletins   collection

	logger *slog.Logger
	now    func() time.Time
	pick   func(n int) int
}

// NewClient creates a new database client. Connection errors surface from Connect.
func NewClient(connectionString, databaseName, newsCollection, bulletinCollection string) *Client {
	clientOptions := options.Client().ApplyURI(connectionString)
	mongoClient, err := mongo.Connect(context.Background(), clientOptions)
	if err != nil {
		return newClient(nil, nil)
	}

	database := mongoClient.Database(databaseName)
	c := newClient(database.Collection(newsCollection), database.Collection(bulletinCollection))
	c.mongoClient = mongoClient
	c.database = database
	return c
}

func newClient(articles, bulletins collection) *Client {
	return &Client{
		articles:  articles,
		bulletins: bulletins,
		logger:    slog.Default(),
		now:       time.Now,
		pick:      rand.IntN,
	}
}

// WithLogger sets the logger used for write diagnostics.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// Connect verifies the connection to MongoDB
func (c *Client) Connect(ctx context.Context) error {
	if c.mongoClient == nil {
		return fmt.Errorf("mongo client not initialized")
	}
	return c.mongoClient.Ping(ctx, nil)
}

// Close closes the MongoDB connection
func (c *Client) Close(ctx context.Context) error {
	if c.mongoClient == nil {
		return nil
	}
	return c.mongoClient.Disconnect(ctx)
}

func (c *Client) ready(coll collection) error {
	if coll == nil {
		return fmt.Errorf("collection not initialized")
	}
	return nil
}
