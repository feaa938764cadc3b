package database

import (
	"database/sql"

	"github.com/mattn/go-sqlite3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// sqliteDriverName is go-sqlite3 with lower() replaced on every connection.
const sqliteDriverName = "sqlite3_controlops"

func init() {
	sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("lower", sqliteLower, true)
		},
	})
}

// Fold lowercases s with full Unicode case mapping.
// Bind parameters compared against LOWER(column) go through it.
func Fold(s string) string {
	// Casers are stateful and must not be shared between goroutines
	return cases.Lower(language.Und).String(s)
}

// sqliteLower stands in for the built-in lower(), which only folds ASCII.
// NULL arrives as a nil []byte and stays NULL.
func sqliteLower(v any) any {
	switch s := v.(type) {
	case string:
		return Fold(s)
	case []byte:
		if s == nil {
			return nil
		}
		return Fold(string(s))
	default:
		return v
	}
}

func sqliteDialector(dsn string) gorm.Dialector {
	return sqlite.New(sqlite.Config{
		DriverName: sqliteDriverName,
		DSN:        SQLiteDSN(dsn),
	})
}
