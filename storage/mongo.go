package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"catalog-crawler/internal/config"
	"catalog-crawler/internal/types"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore writes each category to its own collection
type MongoStore struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
	logger  types.Logger
}

// NewMongoStore connects to MongoDB and verifies the connection
func NewMongoStore(ctx context.Context, cfg config.Storage, logger types.Logger) (*MongoStore, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI).SetConnectTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Infof("Connected to MongoDB database %s", cfg.Database)
	return &MongoStore{
		client:  client,
		db:      client.Database(cfg.Database),
		timeout: timeout,
		logger:  logger,
	}, nil
}

// InsertBatch performs an unordered InsertMany so that one bad document
// does not stop the rest of the batch
func (m *MongoStore) InsertBatch(ctx context.Context, collection string, records []types.ProductRecord) (BatchResult, error) {
	if len(records) == 0 {
		return BatchResult{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	docs := make([]interface{}, len(records))
	for i := range records {
		docs[i] = records[i]
	}

	res, err := m.db.Collection(collection).InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err == nil {
		return BatchResult{InsertedCount: len(res.InsertedIDs)}, nil
	}

	var bulkErr mongo.BulkWriteException
	if !errors.As(err, &bulkErr) {
		return BatchResult{}, fmt.Errorf("failed to insert records: %w", err)
	}

	result := BatchResult{}
	for _, we := range bulkErr.WriteErrors {
		result.Rejected = append(result.Rejected, Rejection{Index: we.Index, Reason: we.Message})
	}
	result.InsertedCount = len(records) - len(result.Rejected)

	if bulkErr.WriteConcernError != nil {
		return result, fmt.Errorf("write concern error: %s", bulkErr.WriteConcernError.Message)
	}
	return result, nil
}

// Close disconnects the client
func (m *MongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
