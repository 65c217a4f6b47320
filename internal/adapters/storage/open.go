package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/alejandrodnm/straddlebot/internal/ports"
)

// Open elige el backend por el esquema del DSN:
//
//	postgres://… | postgresql://…  → PostgreSQL
//	clickhouse://…                 → ClickHouse
//	sqlite://ruta | ruta | :memory: → SQLite
func Open(ctx context.Context, dsn string) (ports.RunStorage, error) {
	switch {
	case dsn == "":
		return nil, fmt.Errorf("storage.Open: empty dsn")
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgresStorage(ctx, dsn)
	case strings.HasPrefix(dsn, "clickhouse://"):
		return NewClickHouseStorage(ctx, dsn)
	case strings.HasPrefix(dsn, "sqlite://"):
		return NewSQLiteStorage(strings.TrimPrefix(dsn, "sqlite://"))
	case strings.Contains(dsn, "://"):
		return nil, fmt.Errorf("storage.Open: unsupported scheme in %q", dsn)
	default:
		return NewSQLiteStorage(dsn)
	}
}
