/*
Package sqlite provides a SQLite-backed engine.Journal.

PURPOSE:
  Durable audit trail for the server deployment. Every record the
  processor sees - accepted or rejected - lands in the journal table,
  queryable by client, tx id, or outcome.

  The journal is observation only. Account state is always rebuilt by
  replaying the input stream; the engine never reads the journal back.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on the journal table
  - No DELETE statements on the journal table

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so journal reads from
  API queries don't block the processor's writes.

USAGE:
  journal, err := sqlite.New("./data/payments.db")
  if err != nil {
      log.Fatal(err)
  }
  defer journal.Close()

  proc := engine.NewProcessor(engine.NewLedger(), journal)

SEE ALSO:
  - engine/journal.go: Interface and in-memory implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/payments-engine/engine"
)

// Journal implements engine.Journal on SQLite.
type Journal struct {
	db *sql.DB
}

// New opens (or creates) the journal database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return j, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// migrate creates the schema.
func (j *Journal) migrate() error {
	schema := `
	-- Journal (append-only outcome trail)
	CREATE TABLE IF NOT EXISTS journal (
		id TEXT PRIMARY KEY,
		at TEXT NOT NULL,
		kind TEXT NOT NULL,
		client INTEGER NOT NULL,
		tx INTEGER NOT NULL,
		amount TEXT NOT NULL,
		accepted BOOLEAN NOT NULL,
		reason TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_journal_client ON journal(client);
	CREATE INDEX IF NOT EXISTS idx_journal_tx ON journal(tx);
	CREATE INDEX IF NOT EXISTS idx_journal_accepted ON journal(accepted);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Append inserts one entry. Entry IDs and timestamps are assigned here if
// the caller left them unset.
func (j *Journal) Append(ctx context.Context, entry engine.Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO journal (id, at, kind, client, tx, amount, accepted, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.At.Format(time.RFC3339Nano),
		string(entry.Kind),
		int64(entry.Client),
		int64(entry.Tx),
		entry.Amount.String(),
		entry.Accepted,
		entry.Reason,
	)
	if err != nil {
		return fmt.Errorf("failed to append journal entry: %w", err)
	}
	return nil
}

// Query returns entries matching filter, in insertion order.
func (j *Journal) Query(ctx context.Context, filter engine.Filter) ([]engine.Entry, error) {
	query := `SELECT id, at, kind, client, tx, amount, accepted, reason FROM journal WHERE 1=1`
	var args []any

	if filter.Client != nil {
		query += ` AND client = ?`
		args = append(args, int64(*filter.Client))
	}
	if filter.Tx != nil {
		query += ` AND tx = ?`
		args = append(args, int64(*filter.Tx))
	}
	if filter.Accepted != nil {
		query += ` AND accepted = ?`
		args = append(args, *filter.Accepted)
	}
	query += ` ORDER BY rowid`

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []engine.Entry
	for rows.Next() {
		var (
			e      engine.Entry
			at     string
			kind   string
			client int64
			tx     int64
			amount string
		)
		if err := rows.Scan(&e.ID, &at, &kind, &client, &tx, &amount, &e.Accepted, &e.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		e.At, err = time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("failed to parse journal timestamp: %w", err)
		}
		e.Kind = engine.Kind(kind)
		e.Client = engine.ClientID(client)
		e.Tx = engine.TxID(tx)
		e.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("failed to parse journal amount: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
