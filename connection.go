package sqlt

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
)

// ConnectionPair owns the live target connection and an ephemeral
// in-memory pristine connection built from the user's schema
// fragments. Both are held as DB values (db.go's sqlx wrapper), so the
// same Exec/Get/Select surface backs every query this package issues
// outside of the exclusive migration transaction. On construction, the
// target's foreign-key enforcement is read, remembered, and
// force-disabled; RestoreForeignKeys puts it back, and must be called
// on every exit path of a migration operation (success, error, or
// cancellation).
type ConnectionPair struct {
	Target                DB
	Pristine              DB
	OriginalForeignKeysOn bool
	Ignore                *regexp.Regexp
}

// NewConnectionPair opens a fresh in-memory pristine connection and
// applies every schema fragment to it as a batch, in order. It then
// reads the target's PRAGMA foreign_keys, stores the result, and
// disables it, per spec: "on entry to a migration, the target's
// foreign-key enforcement is disabled."
func NewConnectionPair(ctx context.Context, target DB, schemaFragments []string, ignore *regexp.Regexp) (*ConnectionPair, error) {
	pristine, err := Open(target.DriverName(), ":memory:")
	if err != nil {
		return nil, newConnectionFailure(":memory:", err)
	}
	for _, fragment := range schemaFragments {
		if _, err := pristine.ExecContext(ctx, fragment); err != nil {
			pristine.Close()
			return nil, newInitQueryFailure("applying schema fragment to pristine", err)
		}
	}

	var fkOn bool
	if err := target.GetContext(ctx, &fkOn, "PRAGMA foreign_keys"); err != nil {
		pristine.Close()
		return nil, newInitQueryFailure("reading PRAGMA foreign_keys", err)
	}
	if _, err := target.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		pristine.Close()
		return nil, newInitQueryFailure("disabling PRAGMA foreign_keys", err)
	}

	return &ConnectionPair{
		Target:                target,
		Pristine:              pristine,
		OriginalForeignKeysOn: fkOn,
		Ignore:                ignore,
	}, nil
}

// PristineMetadata snapshots the pristine (desired) schema.
func (c *ConnectionPair) PristineMetadata(ctx context.Context) (Metadata, error) {
	return ReadMetadata(ctx, c.Pristine, c.Ignore)
}

// TargetMetadata snapshots the live (current) schema.
func (c *ConnectionPair) TargetMetadata(ctx context.Context) (Metadata, error) {
	return ReadMetadata(ctx, c.Target, c.Ignore)
}

// PristineColumns returns table's column names as declared in the
// pristine (desired) schema.
func (c *ConnectionPair) PristineColumns(ctx context.Context, table string) ([]string, error) {
	return Columns(ctx, c.Pristine, table)
}

// RestoreForeignKeys re-enables foreign-key enforcement on the target
// if it was originally on. Safe to call multiple times.
func (c *ConnectionPair) RestoreForeignKeys(ctx context.Context) error {
	if !c.OriginalForeignKeysOn {
		return nil
	}
	if _, err := c.Target.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("schemalite: restoring PRAGMA foreign_keys: %w", err)
	}
	return nil
}

// Vacuum issues VACUUM on the target. Must be called outside any
// transaction.
func (c *ConnectionPair) Vacuum(ctx context.Context) error {
	_, err := c.Target.ExecContext(ctx, "VACUUM")
	return err
}

// Close releases the pristine connection. The target is owned by the
// caller and is never closed here.
func (c *ConnectionPair) Close() error {
	return c.Pristine.Close()
}

// PendingTx is a scoped, exclusive transaction on the target
// connection, with guaranteed commit-or-rollback on every exit path
// including panics. Modified accumulates whether any structural
// change has been issued so far.
type PendingTx struct {
	ctx      context.Context
	conn     *sqlx.Conn
	Modified bool
	done     bool
}

// BeginExclusive acquires a dedicated connection from the target pool
// and starts an exclusive transaction on it.
func (c *ConnectionPair) BeginExclusive(ctx context.Context) (*PendingTx, error) {
	conn, err := c.Target.SQLX().Connx(ctx)
	if err != nil {
		return nil, newTxError(TransactionInitialization, err)
	}
	if _, err := conn.ExecContext(ctx, "BEGIN EXCLUSIVE"); err != nil {
		conn.Close()
		return nil, newTxError(TransactionInitialization, err)
	}
	return &PendingTx{ctx: ctx, conn: conn}, nil
}

// SelectContext runs a read query through this transaction's
// connection, for callers that need more than Metadata/Columns offer.
func (tx *PendingTx) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return tx.conn.SelectContext(ctx, dest, query, args...)
}

// GetContext runs a single-row read query through this transaction's
// connection.
func (tx *PendingTx) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	return tx.conn.GetContext(ctx, dest, query, args...)
}

// Metadata snapshots the catalog as seen through this transaction's
// connection, filtered by ignore.
func (tx *PendingTx) Metadata(ignore *regexp.Regexp) (Metadata, error) {
	return ReadMetadata(tx.ctx, tx.conn, ignore)
}

// Columns returns table's live column names, as seen through this
// transaction's connection.
func (tx *PendingTx) Columns(table string) ([]string, error) {
	return Columns(tx.ctx, tx.conn, table)
}

// Exec runs a DDL statement on the pending transaction, marking
// Modified when the statement's upper-cased, trimmed prefix is one of
// DROP, ALTER, INSERT, or CREATE, the set that drives the post-commit
// vacuum decision.
func (tx *PendingTx) Exec(statement string) error {
	if _, err := tx.conn.ExecContext(tx.ctx, statement); err != nil {
		return newQueryFailureError(statement, err)
	}
	if statementIsStructural(statement) {
		tx.Modified = true
	}
	return nil
}

// Commit commits the transaction and releases the underlying
// connection. Must be the last call made on tx.
func (tx *PendingTx) Commit() error {
	tx.done = true
	defer tx.conn.Close()
	if _, err := tx.conn.ExecContext(tx.ctx, "COMMIT"); err != nil {
		tx.conn.ExecContext(tx.ctx, "ROLLBACK")
		return newTxError(TransactionCommit, err)
	}
	return nil
}

// Rollback aborts the transaction and releases the underlying
// connection. Safe to call after Commit (a no-op in that case) so
// callers can unconditionally defer it.
func (tx *PendingTx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.done = true
	defer tx.conn.Close()
	if _, err := tx.conn.ExecContext(tx.ctx, "ROLLBACK"); err != nil {
		return newTxError(TransactionRollback, err)
	}
	return nil
}

func statementIsStructural(statement string) bool {
	upper := strings.ToUpper(strings.TrimSpace(statement))
	for _, prefix := range [...]string{"DROP", "ALTER", "INSERT", "CREATE"} {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}
