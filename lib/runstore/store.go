// Package runstore keeps a local history of crawl runs in SQLite so
// past quota usage and discovery counts can be compared across runs.
package runstore

import (
	"context"
	"database/sql"
	"os"
	"time"

	_ "embed"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

type Run struct {
	ID               string
	Provider         string
	TargetSite       string
	QueriesUsed      int
	QueriesLimit     int
	TotalResults     int
	CollectionsFound int
	ProductsFound    int
	CategoriesFound  int
	PagesFound       int
	QuotaLimited     bool
	StartedAt        time.Time
	FinishedAt       time.Time
}

type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) (Store, error) {
	_, err := database.Exec(Schema)
	if err != nil {
		return Store{}, err
	}
	return Store{db: database}, nil
}

// Open opens (creating if needed) the run history database at path.
func Open(path string) (Store, error) {
	_, statErr := os.Stat(path)
	if os.IsNotExist(statErr) {
		f, err := os.Create(path)
		if err != nil {
			return Store{}, err
		}
		f.Close()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return Store{}, err
	}
	// see this stackoverflow post for information on why the following
	// lines exist: https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		db.Close()
		return Store{}, err
	}

	return NewStore(db)
}

func (s Store) Close() error {
	return s.db.Close()
}

func (s Store) RecordRun(ctx context.Context, run Run) error {
	quotaLimited := 0
	if run.QuotaLimited {
		quotaLimited = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (
			id, provider, target_site,
			queries_used, queries_limit, total_results,
			collections_found, products_found, categories_found, pages_found,
			quota_limited, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Provider, run.TargetSite,
		run.QueriesUsed, run.QueriesLimit, run.TotalResults,
		run.CollectionsFound, run.ProductsFound, run.CategoriesFound, run.PagesFound,
		quotaLimited, run.StartedAt.Unix(), run.FinishedAt.Unix(),
	)
	return err
}

// ListRuns returns the run history, most recent first.
func (s Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			id, provider, target_site,
			queries_used, queries_limit, total_results,
			collections_found, products_found, categories_found, pages_found,
			quota_limited, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var run Run
		var quotaLimited int
		var startedAt, finishedAt int64
		err := rows.Scan(
			&run.ID, &run.Provider, &run.TargetSite,
			&run.QueriesUsed, &run.QueriesLimit, &run.TotalResults,
			&run.CollectionsFound, &run.ProductsFound, &run.CategoriesFound, &run.PagesFound,
			&quotaLimited, &startedAt, &finishedAt,
		)
		if err != nil {
			return nil, err
		}
		run.QuotaLimited = quotaLimited != 0
		run.StartedAt = time.Unix(startedAt, 0)
		run.FinishedAt = time.Unix(finishedAt, 0)
		out = append(out, run)
	}
	return out, rows.Err()
}
