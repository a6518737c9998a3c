package sqlt_test

import (
	"errors"
	"testing"

	"github.com/jdarko/schemalite"
	"github.com/stretchr/testify/require"
)

func TestInitializationError_ErrorIncludesPathWhenSet(t *testing.T) {
	t.Parallel()
	cause := errors.New("no such file")
	e := &sqlt.InitializationError{Op: "connect", Path: "/tmp/db.sqlite", Cause: cause}
	require.Contains(t, e.Error(), "connect")
	require.Contains(t, e.Error(), "/tmp/db.sqlite")
	require.Contains(t, e.Error(), "no such file")
}

func TestInitializationError_ErrorOmitsPathWhenEmpty(t *testing.T) {
	t.Parallel()
	cause := errors.New("boom")
	e := &sqlt.InitializationError{Op: "query", Cause: cause}
	require.NotContains(t, e.Error(), `""`)
	require.Contains(t, e.Error(), "query")
}

func TestInitializationError_UnwrapReturnsCause(t *testing.T) {
	t.Parallel()
	cause := errors.New("boom")
	e := &sqlt.InitializationError{Op: "connect", Cause: cause}
	require.ErrorIs(t, e, cause)
}

func TestMigrationErrorKind_StringNamesEveryVariant(t *testing.T) {
	t.Parallel()
	require.Equal(t, "transaction initialization failed", sqlt.TransactionInitialization.String())
	require.Equal(t, "commit failed", sqlt.TransactionCommit.String())
	require.Equal(t, "rollback failed", sqlt.TransactionRollback.String())
	require.Equal(t, "data loss", sqlt.DataLoss.String())
	require.Equal(t, "foreign key violation", sqlt.ForeignKeyViolation.String())
	require.Equal(t, "query failed", sqlt.QueryFailure.String())
}

func TestMigrationError_ErrorIncludesDescriptorsAndContext(t *testing.T) {
	t.Parallel()
	e := &sqlt.MigrationError{
		Kind:        sqlt.DataLoss,
		Descriptors: []string{"users", "orders"},
		Context:     "DROP TABLE orders",
	}
	msg := e.Error()
	require.Contains(t, msg, "data loss")
	require.Contains(t, msg, "users, orders")
	require.Contains(t, msg, "DROP TABLE orders")
}

func TestMigrationError_ErrorOmitsCauseWhenNil(t *testing.T) {
	t.Parallel()
	e := &sqlt.MigrationError{Kind: sqlt.ForeignKeyViolation, Descriptors: []string{"job.node_oid"}}
	require.NotContains(t, e.Error(), "<nil>")
}

func TestMigrationError_UnwrapReturnsCause(t *testing.T) {
	t.Parallel()
	cause := errors.New("disk I/O error")
	e := &sqlt.MigrationError{Kind: sqlt.QueryFailure, Cause: cause}
	require.ErrorIs(t, e, cause)
}

func TestMigrationError_ErrorsAsMatchesPointerType(t *testing.T) {
	t.Parallel()
	var err error = &sqlt.MigrationError{Kind: sqlt.DataLoss, Descriptors: []string{"legacy"}}
	var target *sqlt.MigrationError
	require.ErrorAs(t, err, &target)
	require.Equal(t, sqlt.DataLoss, target.Kind)
}
