package database

import (
	"context"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// DSN builds the go-sql-driver/mysql connection string.  Extra parameters
// (e.g. "multiStatements=true" for migrations) are appended verbatim.
func DSN(user, pass, host, port, name string, extra ...string) string {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)
	for _, p := range extra {
		dsn += "&" + p
	}
	return dsn
}

// Open connects to MySQL through sqlx and verifies the connection.
func Open(user, pass, host, port, name string) (*sqlx.DB, error) {
	db, err := sqlx.Open("mysql", DSN(user, pass, host, port, name))
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
