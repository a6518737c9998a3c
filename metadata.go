package sqlt

import (
	"context"
	"fmt"
	"regexp"
	"sort"
)

// ObjectKind tags the four catalog object types the reconciler cares
// about. The zero value is KindTable, and kinds are ordered
// Table < Index < View < Trigger so that ranging over allKinds
// produces a stable, deterministic iteration order.
type ObjectKind int

const (
	KindTable ObjectKind = iota
	KindIndex
	KindView
	KindTrigger
)

func (k ObjectKind) String() string {
	switch k {
	case KindTable:
		return "table"
	case KindIndex:
		return "index"
	case KindView:
		return "view"
	case KindTrigger:
		return "trigger"
	default:
		return "unknown"
	}
}

// allKinds lists every ObjectKind in deterministic order.
var allKinds = []ObjectKind{KindTable, KindIndex, KindView, KindTrigger}

// Metadata maps each ObjectKind to a name -> DDL mapping. Every kind is
// always present, possibly with an empty map. Names are unique within a
// kind. DDL text is exactly what the catalog returned, never
// normalized. A Metadata value is immutable once returned from
// ReadMetadata.
type Metadata struct {
	objects map[ObjectKind]map[string]string
}

func newMetadata() Metadata {
	m := Metadata{objects: make(map[ObjectKind]map[string]string, len(allKinds))}
	for _, k := range allKinds {
		m.objects[k] = make(map[string]string)
	}
	return m
}

// Objects returns the name->DDL mapping for kind. Callers must not
// mutate the returned map.
func (m Metadata) Objects(kind ObjectKind) map[string]string {
	return m.objects[kind]
}

// Names returns the sorted names present for kind.
func (m Metadata) Names(kind ObjectKind) []string {
	objs := m.objects[kind]
	names := make([]string, 0, len(objs))
	for name := range objs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MigrationMetadata pairs the live database's metadata (Source) with
// the pristine, user-declared schema's metadata (Target). Source is
// what is migrated from; Target is what is migrated to.
type MigrationMetadata struct {
	Source Metadata
	Target Metadata
}

// Queryer is the minimal surface ReadMetadata and Columns need from
// either connection; DB and *sqlx.Conn both satisfy it, letting them
// read through a plain wrapped connection or through an in-flight
// exclusive transaction identically.
type Queryer interface {
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

type catalogRow struct {
	Name string `db:"name"`
	SQL  string `db:"sql"`
}

// catalogQuery mirrors the original's per-ObjectKind sqlite_master
// scan: every kind gets its own ORDER BY name query. ReadMetadata
// stores the rows in a map, so that order is not kept; Metadata.Names
// and the reconciler sort names before use.
const catalogQuery = `SELECT name, sql FROM sqlite_master
WHERE type = ? AND name != 'sqlite_sequence' AND sql IS NOT NULL
ORDER BY name`

// ReadMetadata snapshots every object kind from db's sqlite_master
// catalog. ignore, when non-nil, drops any object whose name matches
// it, used to shield a handful of engine-internal names the caller
// does not want surfaced.
func ReadMetadata(ctx context.Context, db Queryer, ignore *regexp.Regexp) (Metadata, error) {
	m := newMetadata()
	for _, kind := range allKinds {
		var rows []catalogRow
		if err := db.SelectContext(ctx, &rows, catalogQuery, kind.String()); err != nil {
			return Metadata{}, fmt.Errorf("schemalite: reading %s catalog: %w", kind, err)
		}
		dest := m.objects[kind]
		for _, row := range rows {
			if ignore != nil && ignore.MatchString(row.Name) {
				continue
			}
			dest[row.Name] = row.SQL
		}
	}
	return m, nil
}

type columnRow struct {
	Name string `db:"name"`
}

// Columns returns the ordered column names of table, sourced from the
// engine's per-table info pragma.
func Columns(ctx context.Context, db Queryer, table string) ([]string, error) {
	var rows []columnRow
	if err := db.SelectContext(ctx, &rows, "SELECT name FROM pragma_table_info(?)", table); err != nil {
		return nil, fmt.Errorf("schemalite: reading columns for %q: %w", table, err)
	}
	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.Name
	}
	return names, nil
}
