package errors

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ErrorDump is the log view of an error: its chain plus whatever the storage
// driver attached. The terminal runs on sqlite by default and on postgres
// when pointed at a shared store.
type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`

	Chain []string `json:"chain,omitempty"`

	Driver         string `json:"db_driver,omitempty"`
	DriverCode     string `json:"db_code,omitempty"`
	DriverExtended string `json:"db_extended_code,omitempty"`
	DriverMessage  string `json:"db_message,omitempty"`
	Constraint     string `json:"db_constraint,omitempty"`
	Table          string `json:"db_table,omitempty"`
	Column         string `json:"db_column,omitempty"`
	Detail         string `json:"db_detail,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		d.Driver = DriverSQLite
		d.DriverCode = strconv.Itoa(int(liteErr.Code))
		d.DriverExtended = strconv.Itoa(int(liteErr.ExtendedCode))
		d.DriverMessage = liteErr.Error()
		return d
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		d.Driver = DriverPostgres
		d.DriverCode = pgxErr.Code
		d.DriverMessage = pgxErr.Message
		d.Constraint = pgxErr.ConstraintName
		d.Table = pgxErr.TableName
		d.Column = pgxErr.ColumnName
		d.Detail = pgxErr.Detail
		return d
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		d.Driver = DriverPostgres
		d.DriverCode = string(pqErr.Code)
		d.DriverMessage = pqErr.Message
		d.Constraint = pqErr.Constraint
		d.Table = pqErr.Table
		d.Column = pqErr.Column
		d.Detail = pqErr.Detail
	}
	return d
}
