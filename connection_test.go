package sqlt_test

import (
	"context"
	"testing"

	"github.com/jdarko/schemalite"
	"github.com/stretchr/testify/require"
)

func TestNewConnectionPair_AppliesSchemaFragmentsToPristine(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	target := getTestDB(t)

	pair, err := sqlt.NewConnectionPair(ctx, target, []string{
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { pair.Close() })

	meta, err := pair.PristineMetadata(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"users"}, meta.Names(sqlt.KindTable))
}

func TestNewConnectionPair_DisablesForeignKeysAndRemembersOriginal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	target := getTestDB(t)

	pair, err := sqlt.NewConnectionPair(ctx, target, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { pair.Close() })

	require.True(t, pair.OriginalForeignKeysOn)

	var fkOn bool
	require.NoError(t, target.GetContext(ctx, &fkOn, "PRAGMA foreign_keys"))
	require.False(t, fkOn)
}

func TestConnectionPair_RestoreForeignKeysIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	target := getTestDB(t)

	pair, err := sqlt.NewConnectionPair(ctx, target, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { pair.Close() })

	require.NoError(t, pair.RestoreForeignKeys(ctx))
	require.NoError(t, pair.RestoreForeignKeys(ctx))

	var fkOn bool
	require.NoError(t, target.GetContext(ctx, &fkOn, "PRAGMA foreign_keys"))
	require.True(t, fkOn)
}

func TestBeginExclusive_CommitPersistsChanges(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	target := getTestDB(t)

	pair, err := sqlt.NewConnectionPair(ctx, target, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { pair.Close() })

	tx, err := pair.BeginExclusive(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Exec("CREATE TABLE widgets (id INTEGER PRIMARY KEY)"))
	require.True(t, tx.Modified)
	require.NoError(t, tx.Commit())

	meta, err := pair.TargetMetadata(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"widgets"}, meta.Names(sqlt.KindTable))
}

func TestBeginExclusive_RollbackDiscardsChanges(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	target := getTestDB(t)

	pair, err := sqlt.NewConnectionPair(ctx, target, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { pair.Close() })

	tx, err := pair.BeginExclusive(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Exec("CREATE TABLE widgets (id INTEGER PRIMARY KEY)"))
	require.NoError(t, tx.Rollback())
	require.NoError(t, tx.Rollback()) // idempotent

	meta, err := pair.TargetMetadata(ctx)
	require.NoError(t, err)
	require.Empty(t, meta.Names(sqlt.KindTable))
}

func TestPendingTx_ExecDoesNotMarkModifiedForSelect(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	target := getTestDB(t)

	pair, err := sqlt.NewConnectionPair(ctx, target, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { pair.Close() })

	tx, err := pair.BeginExclusive(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, tx.Exec("SELECT 1"))
	require.False(t, tx.Modified)
}
