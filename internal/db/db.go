package db

import (
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// Open connects to Postgres via the pgx stdlib driver.
func Open(dsn string) (*sqlx.DB, error) {
	return sqlx.Connect("pgx", dsn)
}
