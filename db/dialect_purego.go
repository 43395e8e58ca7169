//go:build !cgo

package db

import (
	"database/sql"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// Without cgo the pure Go sqlite driver takes over local files.

func fileDialector(dsn string) gorm.Dialector {
	return sqlite.Open(dsn)
}

func connDialector(conn *sql.DB, dsn string) gorm.Dialector {
	return &sqlite.Dialector{
		DriverName: "libsql",
		Conn:       conn,
		DSN:        dsn,
	}
}
