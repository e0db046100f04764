package journal

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	migrate "github.com/rubenv/sql-migrate"
)

//go:embed migrations/*.sql
var migrations embed.FS

const invocationsTable = "invocations"

// Status values recorded for an invocation.
const (
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

// Record is one harness invocation as persisted in the journal.
type Record struct {
	ID          int64
	Program     string
	ProgramID   string
	Instruction string
	Signature   string
	Slot        uint64
	Status      string
	ErrorText   string
	CreatedAt   time.Time
}

// Journal is a local sqlite log of invocation outcomes. It is an optional
// collaborator of the harness; a nil *Journal is a no-op.
type Journal struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal database and brings its
// schema up to date.
func Open(dbFilePath string) (*Journal, error) {
	// WAL keeps concurrent test runs from tripping over each other.
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL", dbFilePath))
	if err != nil {
		return nil, errors.Wrap(err, "open failed")
	}
	if err := runMigrations(db, "sqlite3"); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "could not run migrations")
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}

// Append writes one invocation record. CreatedAt defaults to now.
func (j *Journal) Append(ctx context.Context, rec Record) error {
	if j == nil {
		return nil
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := sq.Insert(invocationsTable).
		Columns("program", "program_id", "instruction", "signature", "slot", "status", "error_text", "created_at").
		Values(rec.Program, rec.ProgramID, rec.Instruction, rec.Signature, rec.Slot, rec.Status, rec.ErrorText, createdAt.Format(time.RFC3339Nano)).
		RunWith(j.db).ExecContext(ctx)
	return err
}

// Latest returns up to limit records, newest first.
func (j *Journal) Latest(ctx context.Context, limit uint64) ([]Record, error) {
	if j == nil {
		return nil, nil
	}
	rows, err := sq.Select("id", "program", "program_id", "instruction", "signature", "slot", "status", "error_text", "created_at").
		From(invocationsTable).
		OrderBy("id DESC").
		Limit(limit).
		RunWith(j.db).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.Program, &rec.ProgramID, &rec.Instruction,
			&rec.Signature, &rec.Slot, &rec.Status, &rec.ErrorText, &createdAt); err != nil {
			return nil, err
		}
		if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, errors.Wrapf(err, "invalid created_at for record %d", rec.ID)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountByProgram returns how many invocations the journal holds per
// program name.
func (j *Journal) CountByProgram(ctx context.Context) (map[string]int64, error) {
	if j == nil {
		return nil, nil
	}
	rows, err := sq.Select("program", "COUNT(*)").
		From(invocationsTable).
		GroupBy("program").
		RunWith(j.db).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var program string
		var count int64
		if err := rows.Scan(&program, &count); err != nil {
			return nil, err
		}
		counts[program] = count
	}
	return counts, rows.Err()
}

func runMigrations(db *sql.DB, dialect string) error {
	m := &migrate.AssetMigrationSource{
		Asset: migrations.ReadFile,
		AssetDir: func() func(string) ([]string, error) {
			return func(path string) ([]string, error) {
				dirEntry, err := migrations.ReadDir(path)
				if err != nil {
					return nil, err
				}
				entries := make([]string, 0)
				for _, e := range dirEntry {
					entries = append(entries, e.Name())
				}
				return entries, nil
			}
		}(),
		Dir: "migrations",
	}
	_, err := migrate.ExecMax(db, dialect, m, migrate.Up, 0)
	return err
}
