// Package db opens the service's database connections: PostgreSQL for
// chat state and MongoDB for file objects.
package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// FilesBucketName is the GridFS bucket holding chat attachments.
const FilesBucketName = "attachments"

// MongoClient wraps mongo.Client and the database attachments live in.
type MongoClient struct {
	// client is safe for concurrent use and shared by every bucket handle
	client *mongo.Client
	db     *mongo.Database
}

// NewMongo connects to MongoDB and verifies the connection with a ping.
func NewMongo(ctx context.Context, mongoURI, database string) (*MongoClient, error) {
	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// fail fast if the server is unreachable
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &MongoClient{
		client: client,
		db:     client.Database(database),
	}, nil
}

// FilesBucket returns the GridFS bucket for chat attachments.
func (c *MongoClient) FilesBucket() *mongo.GridFSBucket {
	return c.db.GridFSBucket(options.GridFSBucket().SetName(FilesBucketName))
}

// Database exposes the underlying database (tests drop it between runs).
func (c *MongoClient) Database() *mongo.Database {
	return c.db
}

// Ping checks the connection for health reporting.
func (c *MongoClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// Close disconnects from MongoDB.
func (c *MongoClient) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}
