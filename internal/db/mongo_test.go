package db

import (
	"context"
	"os"
	"testing"
)

// These tests are integration tests and require a running MongoDB instance.
// Set MONGODB_URI in the environment before running them.

func TestNewMongoAndPing(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx := context.Background()
	c, err := NewMongo(ctx, uri, "pairchat_db_test")
	if err != nil {
		t.Fatalf("failed to connect to DB: %v", err)
	}
	defer func() {
		_ = c.Database().Drop(context.Background())
		_ = c.Close(context.Background())
	}()

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if c.FilesBucket() == nil {
		t.Fatal("expected a files bucket")
	}
}

func TestNewMongoRejectsUnreachableServer(t *testing.T) {
	if os.Getenv("MONGODB_URI") == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx := context.Background()
	if _, err := NewMongo(ctx, "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=200", "x"); err == nil {
		t.Fatal("expected an error for an unreachable server")
	}
}
