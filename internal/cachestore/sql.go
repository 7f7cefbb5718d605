package cachestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/buildcore/engine/internal/cacheagg"
)

const createTableDDL = `CREATE TABLE IF NOT EXISTS buildcore_cache_pairs (
	id VARCHAR(255) PRIMARY KEY,
	configs_json LONGTEXT NOT NULL,
	results_json LONGTEXT NOT NULL
)`

// sqlBackend persists cache pairs as one JSON-blob row per id. Shared by the
// mysql (pure Go) and dolt (cgo) driver registrations, grounded on the
// teacher's internal/storage/factory registering one Backend per driver
// against a common schema.
type sqlBackend struct {
	db *sql.DB
}

func openSQLBackend(ctx context.Context, driverName, dsn string) (Backend, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("cachestore: opening %s: %w", driverName, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("cachestore: connecting via %s: %w", driverName, err)
	}
	if _, err := db.ExecContext(ctx, createTableDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("cachestore: creating schema: %w", err)
	}
	return &sqlBackend{db: db}, nil
}

func (s *sqlBackend) SavePair(ctx context.Context, id string, configs cacheagg.ConfigCache, results cacheagg.ResultsCache) error {
	configsJSON, err := json.Marshal(configs)
	if err != nil {
		return fmt.Errorf("cachestore: marshaling configs: %w", err)
	}

	wireResults := make(map[int]wireResult, len(results))
	for k, v := range results {
		wireResults[k] = toWireResult(v)
	}
	resultsJSON, err := json.Marshal(wireResults)
	if err != nil {
		return fmt.Errorf("cachestore: marshaling results: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`REPLACE INTO buildcore_cache_pairs (id, configs_json, results_json) VALUES (?, ?, ?)`,
		id, string(configsJSON), string(resultsJSON))
	if err != nil {
		return fmt.Errorf("cachestore: saving pair %q: %w", id, err)
	}
	return nil
}

func (s *sqlBackend) LoadPair(ctx context.Context, id string) (cacheagg.ConfigCache, cacheagg.ResultsCache, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT configs_json, results_json FROM buildcore_cache_pairs WHERE id = ?`, id)

	var configsJSON, resultsJSON string
	if err := row.Scan(&configsJSON, &resultsJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, fmt.Errorf("cachestore: no pair saved for id %q", id)
		}
		return nil, nil, fmt.Errorf("cachestore: loading pair %q: %w", id, err)
	}

	var configs cacheagg.ConfigCache
	if err := json.Unmarshal([]byte(configsJSON), &configs); err != nil {
		return nil, nil, fmt.Errorf("cachestore: unmarshaling configs for %q: %w", id, err)
	}
	var wireResults map[int]wireResult
	if err := json.Unmarshal([]byte(resultsJSON), &wireResults); err != nil {
		return nil, nil, fmt.Errorf("cachestore: unmarshaling results for %q: %w", id, err)
	}
	results := make(cacheagg.ResultsCache, len(wireResults))
	for k, v := range wireResults {
		results[k] = fromWireResult(v)
	}
	return configs, results, nil
}

func (s *sqlBackend) ListPairIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM buildcore_cache_pairs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("cachestore: listing pairs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("cachestore: scanning pair id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *sqlBackend) Close() error { return s.db.Close() }
