package sqlt

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Options controls data-loss enforcement and whether DDL is actually
// applied or merely logged/emitted.
type Options struct {
	AllowDeletions bool
	DryRun         bool
}

const migrationSuffix = "_migration_new"

// Reconcile drives the DDL synthesis and execution described by
// phases P0-P11: it brings pair.Target's schema into agreement with
// pair.Pristine's inside one exclusive transaction, reporting whether
// any structural change was made. It does not restore the target's
// foreign-key enforcement; the Orchestrator's Migrate methods call
// pair.RestoreForeignKeys once it returns. logSink receives
// human-readable progress; scriptSink, when non-nil, receives every
// DDL statement before it executes (dry-run still populates it,
// without side effects).
func Reconcile(ctx context.Context, pair *ConnectionPair, opts Options, logSink LogSink, scriptSink ScriptSink) (modified bool, err error) {
	tx, err := pair.BeginExclusive(ctx)
	if err != nil {
		return false, err
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
		}
	}()

	// P0. Defer foreign keys so inter-table references are only
	// checked at commit time.
	if err = tx.Exec("PRAGMA defer_foreign_keys = TRUE"); err != nil {
		return false, err
	}

	// P1. Snapshot catalogs.
	pristineMeta, pErr := pair.PristineMetadata(ctx)
	if pErr != nil {
		err = newQueryFailureError("snapshotting pristine metadata", pErr)
		return false, err
	}
	currentMeta, cErr := tx.Metadata(pair.Ignore)
	if cErr != nil {
		err = newQueryFailureError("snapshotting current metadata", cErr)
		return false, err
	}

	r := &reconciler{
		ctx:        ctx,
		pair:       pair,
		tx:         tx,
		opts:       opts,
		logSink:    logSink,
		scriptSink: scriptSink,
	}

	if err = r.reconcileTables(pristineMeta, currentMeta); err != nil {
		return false, err
	}

	// P6. Re-snapshot the live catalog: dropping or rewriting a table
	// also drops its indexes and triggers.
	currentMeta, cErr = tx.Metadata(pair.Ignore)
	if cErr != nil {
		err = newQueryFailureError("snapshotting current metadata", cErr)
		return false, err
	}
	if err = r.reconcileSimple(KindIndex, pristineMeta, currentMeta); err != nil {
		return false, err
	}
	// P7: views before triggers, since triggers may depend on views.
	if err = r.reconcileSimple(KindView, pristineMeta, currentMeta); err != nil {
		return false, err
	}
	if err = r.reconcileSimple(KindTrigger, pristineMeta, currentMeta); err != nil {
		return false, err
	}

	// P8. Foreign-key integrity.
	if err = r.checkForeignKeys(); err != nil {
		return false, err
	}

	// P9. Pragma carry-over.
	if err = r.carryOverPragma("user_version"); err != nil {
		return false, err
	}

	// P10. Commit (or roll back in dry-run).
	if opts.DryRun {
		modified = tx.Modified
		if rbErr := tx.Rollback(); rbErr != nil {
			return modified, rbErr
		}
		return modified, nil
	}
	if cmErr := tx.Commit(); cmErr != nil {
		return false, cmErr
	}
	modified = tx.Modified

	// P11. Vacuum outside any transaction.
	if modified {
		logSink.emit(LogInfo, "vacuuming target after structural changes")
		if vErr := pair.Vacuum(ctx); vErr != nil {
			return modified, newQueryFailureError("VACUUM", vErr)
		}
	}
	return modified, nil
}

type reconciler struct {
	ctx        context.Context
	pair       *ConnectionPair
	tx         *PendingTx
	opts       Options
	logSink    LogSink
	scriptSink ScriptSink
}

func (r *reconciler) exec(statement string) error {
	r.scriptSink.emit(statement)
	if r.opts.DryRun {
		if statementIsStructural(statement) {
			r.tx.Modified = true
		}
		return nil
	}
	return r.tx.Exec(statement)
}

// reconcileTables implements P2-P5: classify tables into new/removed/
// modified, enforce the data-loss guard, then create, drop, and
// rewrite as required.
func (r *reconciler) reconcileTables(pristineMeta, currentMeta Metadata) error {
	pristineTables := pristineMeta.Objects(KindTable)
	currentTables := currentMeta.Objects(KindTable)

	var newTables, removedTables, modifiedTables []string
	for name := range pristineTables {
		if _, ok := currentTables[name]; !ok {
			newTables = append(newTables, name)
		}
	}
	for name := range currentTables {
		if _, ok := pristineTables[name]; !ok {
			removedTables = append(removedTables, name)
		}
	}
	for name, pristineSQL := range pristineTables {
		currentSQL, ok := currentTables[name]
		if !ok {
			continue
		}
		if Normalize(currentSQL) != Normalize(pristineSQL) {
			modifiedTables = append(modifiedTables, name)
		}
	}
	sort.Strings(newTables)
	sort.Strings(removedTables)
	sort.Strings(modifiedTables)

	if len(removedTables) > 0 && !r.opts.AllowDeletions {
		return newDataLossError(removedTables)
	}

	// P3. Create new tables verbatim.
	for _, name := range newTables {
		r.logSink.emit(LogInfo, "creating table %q", name)
		if err := r.exec(pristineTables[name]); err != nil {
			return err
		}
	}

	// P4. Drop removed tables.
	for _, name := range removedTables {
		r.logSink.emit(LogWarn, "dropping table %q", name)
		if err := r.exec(fmt.Sprintf("DROP TABLE %s", name)); err != nil {
			return err
		}
	}

	// P5. Rewrite modified tables via staging table.
	for _, name := range modifiedTables {
		if err := r.rewriteTable(name, pristineTables[name]); err != nil {
			return err
		}
	}
	return nil
}

func wordBoundaryRegex(name string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)
}

// rewriteTable implements P5's nine steps for a single modified table.
func (r *reconciler) rewriteTable(name, pristineDDL string) error {
	stagingName := name + migrationSuffix
	stagingDDL := wordBoundaryRegex(name).ReplaceAllString(pristineDDL, stagingName)

	r.logSink.emit(LogInfo, "rewriting table %q via staging table %q", name, stagingName)
	if err := r.exec(stagingDDL); err != nil {
		return err
	}

	liveCols, err := r.tx.Columns(name)
	if err != nil {
		return newQueryFailureError(fmt.Sprintf("reading columns of %q", name), err)
	}
	pristineCols, err := r.pair.PristineColumns(r.ctx, name)
	if err != nil {
		return newQueryFailureError(fmt.Sprintf("reading pristine columns of %q", name), err)
	}
	pristineSet := make(map[string]struct{}, len(pristineCols))
	for _, c := range pristineCols {
		pristineSet[c] = struct{}{}
	}

	var removedCols []string
	var commonCols []string
	for _, c := range liveCols {
		if _, ok := pristineSet[c]; ok {
			commonCols = append(commonCols, c)
		} else {
			removedCols = append(removedCols, c)
		}
	}
	if len(removedCols) > 0 && !r.opts.AllowDeletions {
		return newDataLossError(removedCols)
	}

	colList := strings.Join(commonCols, ", ")
	insertStmt := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", stagingName, colList, colList, name)
	if err := r.exec(insertStmt); err != nil {
		return err
	}
	if err := r.exec(fmt.Sprintf("DROP TABLE %s", name)); err != nil {
		return err
	}
	// The rename happens after the drop because the engine disallows
	// two objects sharing a name; deferred foreign keys let referring
	// tables point at the momentarily-absent name in between.
	return r.exec(fmt.Sprintf("ALTER TABLE %s RENAME TO %s", stagingName, name))
}

// reconcileSimple implements P6/P7's shared drop-absent/create-new/
// drop-and-create-on-change pattern for indexes, views, and triggers.
func (r *reconciler) reconcileSimple(kind ObjectKind, pristineMeta, currentMeta Metadata) error {
	pristineObjs := pristineMeta.Objects(kind)
	currentObjs := currentMeta.Objects(kind)

	var dropped, created, changed []string
	for name := range currentObjs {
		if _, ok := pristineObjs[name]; !ok {
			dropped = append(dropped, name)
		}
	}
	for name, pristineSQL := range pristineObjs {
		currentSQL, ok := currentObjs[name]
		if !ok {
			created = append(created, name)
		} else if Normalize(currentSQL) != Normalize(pristineSQL) {
			changed = append(changed, name)
		}
	}
	sort.Strings(dropped)
	sort.Strings(created)
	sort.Strings(changed)

	dropStmt := func(name string) string {
		return fmt.Sprintf("DROP %s %s", strings.ToUpper(kind.String()), name)
	}

	for _, name := range dropped {
		r.logSink.emit(LogInfo, "dropping %s %q", kind, name)
		if err := r.exec(dropStmt(name)); err != nil {
			return err
		}
	}
	for _, name := range created {
		r.logSink.emit(LogInfo, "creating %s %q", kind, name)
		if err := r.exec(pristineObjs[name]); err != nil {
			return err
		}
	}
	for _, name := range changed {
		r.logSink.emit(LogInfo, "recreating %s %q", kind, name)
		if err := r.exec(dropStmt(name)); err != nil {
			return err
		}
		if err := r.exec(pristineObjs[name]); err != nil {
			return err
		}
	}
	return nil
}

type foreignKeyViolationRow struct {
	Table  string `db:"table"`
	RowID  *int64 `db:"rowid"`
	Parent string `db:"parent"`
	FKID   int    `db:"fkid"`
}

// checkForeignKeys implements P8: if the pristine schema declares
// foreign keys enabled, run the commit-time check and fail with every
// reported violation.
func (r *reconciler) checkForeignKeys() error {
	var fkOn bool
	if err := r.pair.Pristine.GetContext(r.ctx, &fkOn, "PRAGMA foreign_keys"); err != nil {
		return newQueryFailureError("reading pristine PRAGMA foreign_keys", err)
	}
	if !fkOn {
		return nil
	}
	var rows []foreignKeyViolationRow
	if err := r.tx.SelectContext(r.ctx, &rows, "PRAGMA foreign_key_check"); err != nil {
		return newQueryFailureError("PRAGMA foreign_key_check", err)
	}
	if len(rows) == 0 {
		return nil
	}
	violations := make([]string, len(rows))
	for i, row := range rows {
		violations[i] = fmt.Sprintf("%s references %s (fk #%d)", row.Table, row.Parent, row.FKID)
	}
	return newForeignKeyViolationError(violations)
}

// carryOverPragma implements P9: if pristine's scalar pragma value
// differs from the target's, carry pristine's value over.
func (r *reconciler) carryOverPragma(pragma string) error {
	var pristineVal, currentVal string
	if err := r.pair.Pristine.GetContext(r.ctx, &pristineVal, "PRAGMA "+pragma); err != nil {
		return newQueryFailureError("reading pristine PRAGMA "+pragma, err)
	}
	if err := r.tx.GetContext(r.ctx, &currentVal, "PRAGMA "+pragma); err != nil {
		return newQueryFailureError("reading current PRAGMA "+pragma, err)
	}
	if currentVal == pristineVal {
		return nil
	}
	r.logSink.emit(LogInfo, "carrying over PRAGMA %s: %s -> %s", pragma, currentVal, pristineVal)
	return r.exec(fmt.Sprintf("PRAGMA %s = %s", pragma, pristineVal))
}
