package source

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

// DBPool keeps one *sql.DB per driver and DSN so every DB watch against the
// same database shares a connection pool.
type DBPool struct {
	mu   sync.Mutex
	dbs  map[string]*sql.DB
	open func(driver, dsn string) (*sql.DB, error)
}

// NewDBPool returns an empty pool that opens handles with sql.Open.
func NewDBPool() *DBPool {
	return &DBPool{
		dbs:  make(map[string]*sql.DB),
		open: sql.Open,
	}
}

func poolKey(driver, dsn string) string {
	return driver + "\x00" + dsn
}

// Get returns the shared handle for driver and dsn, opening it on first use.
func (p *DBPool) Get(driver, dsn string) (*sql.DB, error) {
	if driver == "" {
		return nil, fmt.Errorf("database driver is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	key := poolKey(driver, dsn)
	if db, ok := p.dbs[key]; ok {
		return db, nil
	}
	db, err := p.open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)
	p.dbs[key] = db
	return db, nil
}

// Put registers an already opened handle, replacing nothing that exists.
func (p *DBPool) Put(driver, dsn string, db *sql.DB) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := poolKey(driver, dsn)
	if _, ok := p.dbs[key]; !ok {
		p.dbs[key] = db
	}
}

// Close closes every handle in the pool.
func (p *DBPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var first error
	for key, db := range p.dbs {
		if err := db.Close(); err != nil && first == nil {
			first = err
		}
		delete(p.dbs, key)
	}
	return first
}

// DBSource ages a table by running one aggregate query, normally
// SELECT MAX(timekey). The target fields carry driver, dsn, query and
// optionally time_format/time_layout for decoding the result.
type DBSource struct {
	Pool *DBPool
}

// Age implements AgeSource. The table is assumed to exist; a failed query
// or a NULL result is returned as an error.
func (s DBSource) Age(ctx context.Context, t Target) (Stamp, error) {
	if s.Pool == nil {
		return Stamp{}, fmt.Errorf("no database pool")
	}
	query := t.Field("query")
	if query == "" {
		return Stamp{}, fmt.Errorf("no query for %s", t.Locator)
	}
	db, err := s.Pool.Get(t.Field("driver"), t.Field("dsn"))
	if err != nil {
		return Stamp{}, err
	}

	var value any
	if err := db.QueryRowContext(ctx, query).Scan(&value); err != nil {
		return Stamp{}, fmt.Errorf("query %q: %w", query, err)
	}
	asOf, err := ParseTimeValue(value, t.Field("time_format"), t.Field("time_layout"))
	if err != nil {
		return Stamp{}, fmt.Errorf("query %q: %w", query, err)
	}
	return Stamp{Exists: true, AsOf: asOf}, nil
}
