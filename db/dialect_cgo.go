//go:build cgo

package db

import (
	"database/sql"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func fileDialector(dsn string) gorm.Dialector {
	return sqlite.Open(dsn)
}

func connDialector(conn *sql.DB, dsn string) gorm.Dialector {
	return sqlite.New(sqlite.Config{
		DriverName: "libsql",
		Conn:       conn,
		DSN:        dsn,
	})
}
