package data

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/PaulBabatuyi/pairchat/internal/pgtest"
)

var testDB *bun.DB

func TestMain(m *testing.M) {
	ctx := context.Background()

	db, stop, err := pgtest.Start(ctx)
	if err != nil {
		log.Printf("postgres unavailable, integration tests will skip: %v", err)
		os.Exit(m.Run())
	}

	if err := CreateSchema(ctx, db); err != nil {
		stop()
		log.Fatalf("failed to create schema: %v", err)
	}
	testDB = db

	code := m.Run()
	stop()
	os.Exit(code)
}

// setupDB returns the shared database, truncated after the test.
func setupDB(t *testing.T) *bun.DB {
	t.Helper()
	if testDB == nil {
		t.Skip("postgres container not available; skipping integration test")
	}
	t.Cleanup(func() {
		require.NoError(t, Truncate(context.Background(), testDB))
	})
	return testDB
}

func createUser(t *testing.T, db *bun.DB, email string) *User {
	t.Helper()
	u, err := NewUsersStore(db).CreateUser(context.Background(), email, "Name "+email, "hashed")
	require.NoError(t, err)
	return u
}
