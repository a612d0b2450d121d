// Package repository picks a storage backend from a database URL.
package repository

import (
	"context"
	"strings"

	"github.com/wadjakorntonsri/go-shortlinks/pkg/adapters/repository/memory"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/adapters/repository/postgres"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/ports"
)

// Open returns the store for dbURL:
//
//	memory://                 in-process maps
//	postgres://, postgresql:// PostgreSQL via pgx
//	anything else             local SQLite file or Turso (libsql://, wss://)
func Open(ctx context.Context, dbURL string) (ports.Store, error) {
	switch {
	case strings.HasPrefix(dbURL, "memory://"):
		return memory.NewRepository(), nil
	case strings.HasPrefix(dbURL, "postgres://"), strings.HasPrefix(dbURL, "postgresql://"):
		return postgres.NewPostgresRepository(ctx, dbURL)
	default:
		return sqlite.NewSQLiteRepository(dbURL)
	}
}

// Backend names the driver family Open would pick, for logs.
func Backend(dbURL string) string {
	switch {
	case strings.HasPrefix(dbURL, "memory://"):
		return "memory"
	case strings.HasPrefix(dbURL, "postgres://"), strings.HasPrefix(dbURL, "postgresql://"):
		return "postgres"
	case strings.Contains(dbURL, "libsql://"), strings.Contains(dbURL, "wss://"):
		return "libsql"
	default:
		return "sqlite"
	}
}
