// Package database opens the shared connection pool and wraps it in gorm for
// the repositories.
package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/frahmantamala/menu-authz/internal"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	pgxDriverName    = "pgx"
	sqliteDriverName = "sqlite3"
)

// Open connects the sqlx pool for cfg and returns it together with a gorm
// handle sharing the same *sql.DB.
func Open(cfg internal.DatabaseConfig) (*sqlx.DB, *gorm.DB, error) {
	driverName := pgxDriverName
	if cfg.Driver == DriverSQLite {
		driverName = sqliteDriverName
	}

	dbConn, err := sqlx.Connect(driverName, cfg.GetDSN())
	if err != nil {
		return nil, nil, fmt.Errorf("platform/database: connect: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// every sqlite :memory: connection is its own database
	if cfg.Driver == DriverSQLite && strings.Contains(cfg.GetDSN(), ":memory:") {
		dbConn.SetMaxOpenConns(1)
	}

	gormDB, err := Gorm(dbConn, cfg.Driver)
	if err != nil {
		_ = dbConn.Close()
		return nil, nil, err
	}

	return dbConn, gormDB, nil
}

// Gorm wraps an already open pool in a gorm handle for driver.
func Gorm(dbConn *sqlx.DB, driver string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.New(postgres.Config{Conn: dbConn.DB})
	case DriverSQLite:
		dialector = sqlite.New(sqlite.Config{DriverName: sqliteDriverName, Conn: dbConn.DB})
	default:
		return nil, fmt.Errorf("platform/database: unsupported driver %q", driver)
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("platform/database: open gorm: %w", err)
	}
	return gormDB, nil
}

// Ping verifies the pool within ctx.
func Ping(ctx context.Context, dbConn *sqlx.DB) error {
	if err := dbConn.PingContext(ctx); err != nil {
		return fmt.Errorf("platform/database: ping: %w", err)
	}
	return nil
}
