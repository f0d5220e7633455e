package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/roman-kulish/sniper-scope/internal/scope"
)

// ErrScopeExists is returned when a scope with the same identifier is already stored
var ErrScopeExists = errors.New("scope already exists")

// SqliteStore handles database operations
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error

	now func() time.Time
}

// NewSqliteStore creates a new store backed by the Sqlite database at dbPath.
// Connections are opened lazily.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{
		dbPath: dbPath,
		now:    time.Now,
	}
}

func runSQLCommand(ctx context.Context, db *sql.DB, sql string) error {
	_, err := db.ExecContext(ctx, sql)
	return err
}

// Init opens the write connection and creates the schema. Read connections are
// opened read-only and require the database file to exist.
func (s *SqliteStore) Init(ctx context.Context) error {
	_, err := s.getWriteDB(ctx)
	return err
}

func (s *SqliteStore) getWriteDB(ctx context.Context) (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		// sqlite serialises writers anyway
		db.SetMaxOpenConns(1)

		if err = runSQLCommand(ctx, db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro&_busy_timeout=5000"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateScope(ctx context.Context, sc *scope.Scope) (created *scope.Scope, err error) {
	data := *sc
	if data.ID == "" {
		data.ID = uuid.NewString()
	}
	data.CreatedAt = s.now().UTC()

	db, err := s.getWriteDB(ctx)
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertScopeSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	if _, err = stmt.ExecContext(ctx, data.ID, data.Name, data.Frequency, data.Amplitude, data.Phase, data.CreatedAt); err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			err = fmt.Errorf("inserting scope %s: %w", data.ID, ErrScopeExists)
			return
		}
		err = fmt.Errorf("inserting scope: %w", err)
		return
	}

	return &data, nil
}

func (s *SqliteStore) Scope(ctx context.Context, id string) (sc *scope.Scope, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectScopeSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	sc, err = scanScope(stmt.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("scope %s: %w", id, scope.ErrNotFound)
		return
	}
	if err != nil {
		err = fmt.Errorf("scanning scope: %w", err)
	}
	return
}

func (s *SqliteStore) Scopes(ctx context.Context) (scopes []*scope.Scope, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectScopesSQL)
	if err != nil {
		err = fmt.Errorf("querying scopes: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var sc *scope.Scope
		if sc, err = scanScope(rows); err != nil {
			err = fmt.Errorf("scanning scope: %w", err)
			return
		}
		scopes = append(scopes, sc)
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("iterating scopes: %w", err)
	}
	return
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}
