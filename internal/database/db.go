package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Settings describes how to reach MySQL and size the pool.
type Settings struct {
	User, Pass       string
	Host, Port, Name string
	MaxOpenConns     int
	ConnMaxLifetime  time.Duration
}

// DSN renders s as a go-sql-driver DSN.  DATETIME columns are parsed into
// time.Time in UTC.
func (s Settings) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = s.User
	cfg.Passwd = s.Pass
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(s.Host, s.Port)
	cfg.DBName = s.Name
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.MultiStatements = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// Open connects to MySQL and verifies the connection.
func Open(s Settings) (*sql.DB, error) {
	db, err := sql.Open("mysql", s.DSN())
	if err != nil {
		return nil, err
	}

	maxOpen := s.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	lifetime := s.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 30 * time.Minute
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(lifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate applies every embedded migration in lexical order.  Statements
// are written with IF NOT EXISTS so re-running is harmless.
func Migrate(ctx context.Context, db *sql.DB) error {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		body, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
	}
	return nil
}
