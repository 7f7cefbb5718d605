package cachestore

import (
	"context"

	_ "github.com/go-sql-driver/mysql"
)

func init() {
	RegisterBackend("mysql", func(ctx context.Context, dsn string) (Backend, error) {
		return openSQLBackend(ctx, "mysql", dsn)
	})
}
