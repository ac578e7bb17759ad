package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Alijeyrad/franchise_backend/config"
)

// InitializeDatabases creates the ledger database, plus any extra names listed
// under server.databases, through the server's "postgres" maintenance
// database. Existing databases are left alone.
func InitializeDatabases(cfg *config.Config) error {
	names := databaseNames(cfg)
	if len(names) == 0 {
		return fmt.Errorf("no database names provided")
	}

	admin := FromCentralConfig(cfg.Database)
	admin.DBName = "postgres"
	admin.MaxOpenConns = 1

	conn, err := openSQLDB(admin)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres database: %w", err)
	}
	defer conn.Close()

	for _, name := range names {
		if err := createDatabaseIfNotExists(conn, name); err != nil {
			return fmt.Errorf("failed to create database %q: %w", name, err)
		}
	}
	return nil
}

func databaseNames(cfg *config.Config) []string {
	seen := map[string]bool{}
	var out []string
	for _, n := range append([]string{cfg.Database.DBName}, cfg.Server.Databases...) {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func createDatabaseIfNotExists(conn *sql.DB, name string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var exists bool
	err := conn.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`, name).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check if database exists: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := conn.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name)); err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	return nil
}
