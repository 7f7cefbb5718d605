//go:build cgo

package cachestore

import (
	"context"
	"database/sql"
	"fmt"

	embedded "github.com/dolthub/driver"
)

func init() {
	RegisterBackend("dolt", func(ctx context.Context, dsn string) (Backend, error) {
		openCfg, err := embedded.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("cachestore: parsing dolt DSN: %w", err)
		}
		connector, err := embedded.NewConnector(openCfg)
		if err != nil {
			return nil, fmt.Errorf("cachestore: creating dolt connector: %w", err)
		}
		db := sql.OpenDB(connector)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("cachestore: connecting via dolt: %w", err)
		}
		if _, err := db.ExecContext(ctx, createTableDDL); err != nil {
			db.Close()
			return nil, fmt.Errorf("cachestore: creating schema: %w", err)
		}
		return &sqlBackend{db: db}, nil
	})
}
