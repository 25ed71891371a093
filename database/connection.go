// Package database provides persistence for the options webhook trader.
//
// This package includes:
//   - Connection management: a lib/pq connection pool handed to GORM
//   - GORM entities (TradingConfig, Order, WebhookLog)
//   - OrderRepository with schema initialization and CRUD access
//
// The core pipeline never touches GORM directly; it sees the repository
// through a narrow interface defined in the trading package.
package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database holds the GORM handle and the underlying sql.DB pool
type Database struct {
	db   *gorm.DB
	conn *sql.DB
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// Connect opens a lib/pq connection pool, tunes it, and wraps it with GORM.
func Connect(cfg Config) (*Database, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName,
	)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Webhook traffic is bursty; keep a modest warm pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(10)
	conn.SetConnMaxLifetime(5 * time.Minute)
	conn.SetConnMaxIdleTime(2 * time.Minute)

	// Verify connection
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Silent logging for production
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	log.Println("✅ Database connection established")

	return &Database{db: db, conn: conn}, nil
}

// DB returns the underlying GORM database instance for direct access when needed.
func (d *Database) DB() *gorm.DB {
	return d.db
}

// Ping checks if the database connection is alive
func (d *Database) Ping() error {
	return d.conn.Ping()
}

// Close closes the database connection
func (d *Database) Close() error {
	if d.conn != nil {
		log.Println("📡 Closing database connection...")
		return d.conn.Close()
	}
	return nil
}
