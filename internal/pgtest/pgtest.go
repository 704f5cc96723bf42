// Package pgtest starts a disposable PostgreSQL container for
// integration tests.
package pgtest

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Start runs postgres:16-alpine and returns a bun handle plus a function
// that closes the handle and removes the container. It fails when no
// container runtime is reachable; callers skip in that case.
func Start(ctx context.Context) (db *bun.DB, stop func(), err error) {
	var container *postgres.PostgresContainer
	err = guard(func() error {
		var runErr error
		container, runErr = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("pairchat"),
			postgres.WithUsername("pairchat"),
			postgres.WithPassword("password"),
			postgres.BasicWaitStrategies(),
		)
		return runErr
	})
	if err != nil {
		if container != nil {
			_ = container.Terminate(context.Background())
		}
		return nil, nil, fmt.Errorf("start container: %w", err)
	}

	terminate := func() { _ = container.Terminate(context.Background()) }

	connStr, err := container.ConnectionString(ctx, "sslmode=disable", "application_name=test")
	if err != nil {
		terminate()
		return nil, nil, fmt.Errorf("connection string: %w", err)
	}

	sqlDB := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connStr)))
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		terminate()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}

	db = bun.NewDB(sqlDB, pgdialect.New())
	return db, func() {
		_ = db.Close()
		terminate()
	}, nil
}

// guard runs fn and reports a panic as an error. The docker provider
// panics instead of failing when no daemon socket can be found.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("container runtime unavailable: %v", r)
		}
	}()
	return fn()
}
