// Package backend picks a storage.Backend implementation from an output
// target such as "out.csv", "out.jsonl", "sqlite://runs.db" or a Postgres URL.
package backend

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/FranksOps/dugout/internal/storage"
	"github.com/FranksOps/dugout/internal/storage/csvbackend"
	"github.com/FranksOps/dugout/internal/storage/jsonbackend"
	"github.com/FranksOps/dugout/internal/storage/postgres"
	"github.com/FranksOps/dugout/internal/storage/sqlite"
)

// Kind names a storage implementation.
type Kind string

const (
	KindCSV      Kind = "csv"
	KindJSON     Kind = "jsonl"
	KindSQLite   Kind = "sqlite"
	KindPostgres Kind = "postgres"
)

// Detect returns the backend kind for target and the location to hand to it.
func Detect(target string) (Kind, string) {
	lower := strings.ToLower(target)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return KindPostgres, target
	case strings.HasPrefix(lower, "sqlite://"):
		return KindSQLite, target[len("sqlite://"):]
	}

	switch filepath.Ext(lower) {
	case ".db", ".sqlite", ".sqlite3":
		return KindSQLite, target
	case ".jsonl", ".ndjson", ".json":
		return KindJSON, target
	}
	return KindCSV, target
}

// IsFile reports whether target lives on the local filesystem.
func IsFile(target string) bool {
	kind, _ := Detect(target)
	return kind != KindPostgres
}

// Open returns the storage.Backend for target.
func Open(ctx context.Context, target string, opts storage.Options) (storage.Backend, error) {
	if target == "" {
		return nil, fmt.Errorf("empty storage target")
	}

	kind, location := Detect(target)
	switch kind {
	case KindPostgres:
		return postgres.New(ctx, location, opts)
	case KindSQLite:
		return sqlite.New(location, opts)
	case KindJSON:
		return jsonbackend.New(location)
	default:
		return csvbackend.New(location)
	}
}
