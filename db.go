package sqlt

import (
	"context"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/jmoiron/sqlx"
)

func Wrap(db *sqlx.DB) DB {
	return &sqlxDB{db: db}
}

func Open(driverName, dataSourceName string) (DB, error) {
	db, err := sqlx.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	mapper := defaultMapper.Load()
	if mapper != nil {
		db.MapperFunc(*mapper)
	}
	return &sqlxDB{db: db}, nil
}

func SetDefaultMapper(mapper func(string) string) {
	defaultMapper.Store(&mapper)
}

func init() {
	defaultMapper.Store(&camalCaseMapper)
}

var defaultMapper atomic.Pointer[func(string) string]

var camalCaseMapper = func(s string) string {
	var buf strings.Builder
	buf.Grow(len(s) + 3)
	for i, r := range s {
		if unicode.IsUpper(r) {
			// Handles acronyms like HTTP, API, etc.
			if i > 0 && (unicode.IsLower(rune(s[i-1])) || (i+1 < len(s) && unicode.IsLower(rune(s[i+1])))) {
				buf.WriteByte('_')
			}
			buf.WriteRune(unicode.ToLower(r))
		} else {
			buf.WriteRune(r)
		}
	}
	return buf.String()
}

// DB is the surface the reconciler drives a connection through: enough
// of sqlx's DB to run exec/get/select statements against the target or
// pristine database, plus the Tx family for one-off transactions
// outside the exclusive migration transaction PendingTx manages.
type DB interface {
	SQLX() *sqlx.DB
	Exec(query string, args ...any) (Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (Result, error)
	DriverName() string
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	Close() error

	Tx(fn func(tx Tx) error) error
	TxImm(fn func(tx Tx) error) error
	Txc(ctx context.Context, fn func(tx Tx) error) error
	TxcImm(ctx context.Context, fn func(tx Tx) error) error
}

type sqlxDB struct {
	db *sqlx.DB
}

func (s *sqlxDB) SQLX() *sqlx.DB {
	return s.db
}

func (s *sqlxDB) Exec(query string, args ...any) (Result, error) {
	r, err := s.db.Exec(query, args...)
	if err != nil {
		return nil, err
	}
	return sqltResult{r}, nil
}

func (s *sqlxDB) ExecContext(ctx context.Context, query string, args ...any) (Result, error) {
	r, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqltResult{r}, nil
}

func (s *sqlxDB) DriverName() string {
	return s.db.DriverName()
}

func (s *sqlxDB) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	return s.db.GetContext(ctx, dest, query, args...)
}

func (s *sqlxDB) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return s.db.SelectContext(ctx, dest, query, args...)
}

func (s *sqlxDB) Close() error {
	return s.db.Close()
}

func (s *sqlxDB) Tx(fn func(tx Tx) error) error {
	return transaction(context.Background(), s.db, false, fn)
}

func (s *sqlxDB) Txc(ctx context.Context, fn func(tx Tx) error) error {
	return transaction(ctx, s.db, false, fn)
}

func (s *sqlxDB) TxImm(fn func(tx Tx) error) error {
	return transaction(context.Background(), s.db, true, fn)
}

func (s *sqlxDB) TxcImm(ctx context.Context, fn func(tx Tx) error) error {
	return transaction(ctx, s.db, true, fn)
}
