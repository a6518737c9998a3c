package sqlt

import (
	"context"
	"regexp"
	"sort"
)

// Orchestrator is the public façade: it owns one ConnectionPair for
// the lifetime of the operations performed on it, and exposes the
// entry points a presentation layer (CLI, TUI, file watcher) would
// call.
type Orchestrator struct {
	pair    *ConnectionPair
	opts    Options
	printer *SqlPrettyPrinter
	logSink LogSink
}

// New builds the pristine database from schemaFragments, opens the
// connection pair against target, and returns a ready-to-use
// Orchestrator. No migration is attempted yet.
func New(ctx context.Context, schemaFragments []string, target DB, opts Options) (*Orchestrator, error) {
	return NewWithOptions(ctx, schemaFragments, target, opts, nil, nil)
}

// NewWithOptions is New with an explicit ignore-name filter and log
// sink, for callers that need either.
func NewWithOptions(ctx context.Context, schemaFragments []string, target DB, opts Options, ignore *regexp.Regexp, logSink LogSink) (*Orchestrator, error) {
	pair, err := NewConnectionPair(ctx, target, schemaFragments, ignore)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		pair:    pair,
		opts:    opts,
		printer: NewSqlPrettyPrinter(false),
		logSink: logSink,
	}, nil
}

// ParseMetadata snapshots both the live (source) and pristine (target)
// schemas.
func (o *Orchestrator) ParseMetadata(ctx context.Context) (MigrationMetadata, error) {
	source, err := o.pair.TargetMetadata(ctx)
	if err != nil {
		return MigrationMetadata{}, newInitQueryFailure("parsing target metadata", err)
	}
	target, err := o.pair.PristineMetadata(ctx)
	if err != nil {
		return MigrationMetadata{}, newInitQueryFailure("parsing pristine metadata", err)
	}
	return MigrationMetadata{Source: source, Target: target}, nil
}

// Diff returns the fully pretty-printed unified diff between the live
// schema and the pristine one, across every object kind.
func (o *Orchestrator) Diff(ctx context.Context) (string, error) {
	mm, err := o.ParseMetadata(ctx)
	if err != nil {
		return "", err
	}
	schemaDiff := DiffMetadata(mm, o.printer)
	var out string
	for _, kind := range allKinds {
		names := make([]string, 0)
		for name := range schemaDiff.Kind(kind) {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			d := schemaDiff.Kind(kind)[name]
			if d.Unified == "" {
				continue
			}
			out += d.Unified
		}
	}
	return out, nil
}

// Migrate reconciles the target against the pristine schema using the
// Orchestrator's Options. PRAGMA foreign_keys is restored to its
// original value on every exit path, including a failed reconciliation.
func (o *Orchestrator) Migrate(ctx context.Context) (err error) {
	defer func() {
		if restoreErr := o.pair.RestoreForeignKeys(ctx); err == nil {
			err = restoreErr
		}
	}()
	_, err = Reconcile(ctx, o.pair, o.opts, o.logSink, nil)
	return err
}

// MigrateDryRun is equivalent to Migrate with Options.DryRun forced to
// true: the would-be script runs to completion and is always rolled
// back. PRAGMA foreign_keys is restored regardless of outcome.
func (o *Orchestrator) MigrateDryRun(ctx context.Context) (err error) {
	defer func() {
		if restoreErr := o.pair.RestoreForeignKeys(ctx); err == nil {
			err = restoreErr
		}
	}()
	opts := o.opts
	opts.DryRun = true
	_, err = Reconcile(ctx, o.pair, opts, o.logSink, nil)
	return err
}

// MigrateWithScriptCallback runs Migrate, additionally emitting every
// DDL statement to sink before it executes. PRAGMA foreign_keys is
// restored regardless of outcome.
func (o *Orchestrator) MigrateWithScriptCallback(ctx context.Context, sink ScriptSink) (err error) {
	defer func() {
		if restoreErr := o.pair.RestoreForeignKeys(ctx); err == nil {
			err = restoreErr
		}
	}()
	_, err = Reconcile(ctx, o.pair, o.opts, o.logSink, sink)
	return err
}

// Close releases the pristine connection. The target connection passed
// to New remains owned by the caller.
func (o *Orchestrator) Close() error {
	return o.pair.Close()
}
