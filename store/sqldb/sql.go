// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/xmidt-org/vitrine/store"
	"github.com/xmidt-org/vitrine/store/db/metric"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Supported drivers.
const (
	SQLite = "sqlite"
	MySQL  = "mysql"
)

// MySQL error numbers that mean the blob cannot fit.
const (
	mysqlRecordFileFull  = 1114
	mysqlPacketTooLarge  = 1153
	mysqlDataTooLong     = 1406
	defaultMaxOpenConns  = 4
	defaultSQLiteDSNOpts = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
)

var errUnknownDriver = errors.New("unknown sql driver")

// Config selects the driver and data source.
type Config struct {
	// Driver is either "sqlite" or "mysql". Defaults to "sqlite".
	Driver string

	// DSN is handed to the driver. For sqlite this is a file path.
	DSN string `json:"-"`

	// MaxBytes bounds a single blob before it reaches the database. Zero means unbounded.
	MaxBytes int
}

type dialect struct {
	createTable string
	upsert      string
}

var dialects = map[string]dialect{
	SQLite: {
		createTable: `CREATE TABLE IF NOT EXISTS blobs (
			namespace TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		upsert: `INSERT INTO blobs (namespace, data, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(namespace) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
	},
	MySQL: {
		createTable: `CREATE TABLE IF NOT EXISTS blobs (
			namespace VARCHAR(64) PRIMARY KEY,
			data LONGBLOB NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		upsert: `INSERT INTO blobs (namespace, data, updated_at) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE data = VALUES(data), updated_at = VALUES(updated_at)`,
	},
}

// Store keeps each namespace in one row of the blobs table.
type Store struct {
	db       *sql.DB
	dialect  dialect
	quota    store.Quota
	measures metric.Measures
}

// New opens the database and creates the blobs table when missing.
func New(config Config, measures metric.Measures) (*Store, error) {
	if config.Driver == "" {
		config.Driver = SQLite
	}
	d, ok := dialects[config.Driver]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownDriver, config.Driver)
	}

	dsn := config.DSN
	if config.Driver == SQLite {
		dsn += defaultSQLiteDSNOpts
	}
	db, err := sql.Open(config.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", config.Driver, err)
	}
	if config.Driver == SQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(defaultMaxOpenConns)
	}
	if _, err := db.Exec(d.createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating blobs table: %w", err)
	}

	return &Store{
		db:       db,
		dialect:  d,
		quota:    store.Quota{MaxBytes: config.MaxBytes},
		measures: measures,
	}, nil
}

func (s *Store) Load(ctx context.Context, namespace string) (data []byte, err error) {
	start := time.Now()
	defer func() { s.measures.Update(store.LoadType, start, len(data), err) }()
	err = s.db.QueryRowContext(ctx, "SELECT data FROM blobs WHERE namespace = ?", namespace).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.OperationError{Operation: store.LoadType, Namespace: namespace, Err: store.ErrNotFound}
	}
	if err != nil {
		return nil, store.OperationError{Operation: store.LoadType, Namespace: namespace, Err: err}
	}
	return data, nil
}

func (s *Store) Save(ctx context.Context, namespace string, data []byte) (err error) {
	start := time.Now()
	defer func() { s.measures.Update(store.SaveType, start, len(data), err) }()
	if err = s.quota.Check(namespace, data); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.dialect.upsert, namespace, data, time.Now().UTC())
	if isFull(err) {
		return store.QuotaExceededError{Namespace: namespace, Size: len(data), Err: err}
	}
	if err != nil {
		return store.OperationError{Operation: store.SaveType, Namespace: namespace, Err: err}
	}
	return nil
}

func (s *Store) Clear(ctx context.Context, namespace string) (err error) {
	start := time.Now()
	defer func() { s.measures.Update(store.ClearType, start, 0, err) }()
	if _, err = s.db.ExecContext(ctx, "DELETE FROM blobs WHERE namespace = ?", namespace); err != nil {
		return store.OperationError{Operation: store.ClearType, Namespace: namespace, Err: err}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func isFull(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_FULL || sqliteErr.Code() == sqlite3.SQLITE_TOOBIG
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case mysqlRecordFileFull, mysqlPacketTooLarge, mysqlDataTooLong:
			return true
		}
	}
	return false
}
