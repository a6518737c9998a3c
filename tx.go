package sqlt

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Tx is the surface exposed inside a DB.Tx/TxImm/Txc/TxcImm closure:
// enough to run statements and reads against the connection the
// transaction holds open, plus the driver name of the underlying
// connection.
type Tx interface {
	Exec(query string, args ...any) (Result, error)
	Get(dest any, query string, args ...any) error
	Select(dest any, query string, args ...any) error
	DriverName() string
}

type sqlxTx struct {
	ctx        context.Context
	conn       *sqlx.Conn
	driverName string
}

func (tx *sqlxTx) Exec(query string, args ...any) (Result, error) {
	r, err := tx.conn.ExecContext(tx.ctx, query, args...)
	return sqltResult{r}, err
}

func (tx *sqlxTx) Get(dest any, query string, args ...any) error {
	return tx.conn.GetContext(tx.ctx, dest, query, args...)
}

func (tx *sqlxTx) Select(dest any, query string, args ...any) error {
	return tx.conn.SelectContext(tx.ctx, dest, query, args...)
}

func (tx *sqlxTx) DriverName() string {
	return tx.driverName
}
