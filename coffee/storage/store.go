// Package storage persists finalized orders and the per-user order aggregate.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"

	coredatabase "github.com/m3rciful/coffeebot/core/database"
	"github.com/m3rciful/coffeebot/core/logger"
)

//go:embed migrations
var embedded embed.FS

// Migrations holds the per-driver schema, laid out as <driver>/NNNNNN_name.{up,down}.sql.
var Migrations, _ = fs.Sub(embedded, "migrations")

// ErrStorage marks every failure returned by Store.
var ErrStorage = errors.New("storage failure")

// Order is one finalized order row.
type Order struct {
	ID         int64     `db:"id"`
	UserID     int64     `db:"user_id"`
	Name       string    `db:"name"`
	Drink      string    `db:"drink"`
	Sugar      int       `db:"sugar"`
	OrderCount int       `db:"order_count"`
	CreatedAt  time.Time `db:"created_at"`
}

// Store is the sqlx-backed order store. It is safe for concurrent use.
// A Store handed out by WithinTx is bound to one transaction and must not
// outlive the callback.
type Store struct {
	db *sqlx.DB
	tx *sqlx.Tx
}

// New wraps an open connection pool.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Ping verifies the pool can reach the database.
func (s *Store) Ping(ctx context.Context) error {
	return s.wrap(s.db.PingContext(ctx), "ping")
}

// WithinTx runs fn against a Store bound to a single transaction. Every write
// made through that Store is rolled back when fn returns an error. Nested
// calls reuse the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	var fnErr error
	err := coredatabase.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		fnErr = fn(&Store{db: s.db, tx: tx})
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	return s.wrap(err, "transaction")
}

func (s *Store) ext() sqlx.ExtContext {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	return coredatabase.WithTx(ctx, s.db, fn)
}

// InsertOrder appends an order. The first order of a user creates the user
// aggregate with a count of 1; every row stores the aggregate count current
// at insertion, so order_count never decreases across a user's rows.
func (s *Store) InsertOrder(ctx context.Context, userID int64, name, drink string, sugar int) error {
	start := time.Now()
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, s.db.Rebind(
			`INSERT INTO users (user_id, name, orders_count) VALUES (?, ?, 1)
			 ON CONFLICT (user_id) DO NOTHING`), userID, name); err != nil {
			return err
		}
		var count int
		if err := tx.GetContext(ctx, &count, s.db.Rebind(
			`SELECT orders_count FROM users WHERE user_id = ?`), userID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, s.db.Rebind(
			`INSERT INTO orders (user_id, name, drink, sugar, order_count) VALUES (?, ?, ?, ?, ?)`),
			userID, name, drink, sugar, count)
		return err
	})
	s.trace(ctx, "order.insert", userID, start, err)
	return s.wrap(err, "insert order")
}

// IncrementOrderCount bumps the user's aggregate order count.
func (s *Store) IncrementOrderCount(ctx context.Context, userID int64) error {
	start := time.Now()
	_, err := s.ext().ExecContext(ctx, s.db.Rebind(
		`UPDATE users SET orders_count = orders_count + 1 WHERE user_id = ?`), userID)
	s.trace(ctx, "user.increment", userID, start, err)
	return s.wrap(err, "increment order count")
}

// GetUserInfo returns the stored name and order count, or (nil, 0) for unknown users.
func (s *Store) GetUserInfo(ctx context.Context, userID int64) (*string, int, error) {
	var row struct {
		Name  string `db:"name"`
		Count int    `db:"orders_count"`
	}
	err := sqlx.GetContext(ctx, s.ext(), &row, s.db.Rebind(
		`SELECT name, orders_count FROM users WHERE user_id = ?`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, s.wrap(err, "get user info")
	}
	return &row.Name, row.Count, nil
}

// UserExists reports whether the user has finalized at least one order.
func (s *Store) UserExists(ctx context.Context, userID int64) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, s.ext(), &n, s.db.Rebind(
		`SELECT COUNT(*) FROM users WHERE user_id = ?`), userID)
	if err != nil {
		return false, s.wrap(err, "user exists")
	}
	return n > 0, nil
}

// ListOrders returns the user's most recent orders, newest first. limit <= 0 means all.
func (s *Store) ListOrders(ctx context.Context, userID int64, limit int) ([]Order, error) {
	query := `SELECT id, user_id, name, drink, sugar, order_count, created_at
		FROM orders WHERE user_id = ? ORDER BY id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	var out []Order
	if err := sqlx.SelectContext(ctx, s.ext(), &out, s.db.Rebind(query), args...); err != nil {
		return nil, s.wrap(err, "list orders")
	}
	return out, nil
}

func (s *Store) wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrap(err, op), ErrStorage)
}

func (s *Store) trace(ctx context.Context, event string, userID int64, start time.Time, err error) {
	level := slog.LevelDebug
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.Int64("user_id", userID),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		level = slog.LevelError
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	logger.LogEvent(ctx, logger.DB, level, event, attrs...)
}
