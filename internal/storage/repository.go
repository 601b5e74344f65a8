// Package storage persists documents as JSON text in SQLite tables.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"finbits/internal/core"

	_ "modernc.org/sqlite"
)

// timeLayout sorts lexicographically in the same order as time.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// CreateBudget implements backend.BudgetRepository
func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	b.ID = uuid.NewString()
	doc, err := json.Marshal(b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("marshal budget: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO budgets (id, owner, created_at, doc) VALUES (?, ?, ?, ?)`,
		b.ID, b.Owner, formatTime(b.CreatedAt), string(doc))
	if err != nil {
		return core.Budget{}, fmt.Errorf("insert budget: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, owner, id string) (core.Budget, error) {
	var doc string
	err := r.db.QueryRowContext(ctx,
		`SELECT doc FROM budgets WHERE id = ? AND owner = ?`, id, owner).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, fmt.Errorf("budget %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	var b core.Budget
	if err := json.Unmarshal([]byte(doc), &b); err != nil {
		return core.Budget{}, fmt.Errorf("decode budget %s: %w", id, err)
	}
	return b, nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, owner string) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT doc FROM budgets WHERE owner = ? ORDER BY created_at DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	out := make([]core.Budget, 0)
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		var b core.Budget
		if err := json.Unmarshal([]byte(doc), &b); err != nil {
			return nil, fmt.Errorf("decode budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SaveBudget(ctx context.Context, b core.Budget) error {
	doc, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal budget: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE budgets SET doc = ? WHERE id = ? AND owner = ?`, string(doc), b.ID, b.Owner)
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	return expectOneRow(res, "budget", b.ID)
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, owner, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ? AND owner = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return expectOneRow(res, "budget", id)
}

// CreateBit implements backend.BitRepository
func (r *SQLiteRepository) CreateBit(ctx context.Context, b core.Bit) (core.Bit, error) {
	b.ID = uuid.NewString()
	doc, err := json.Marshal(b)
	if err != nil {
		return core.Bit{}, fmt.Errorf("marshal bit: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO bits (id, active, created_at, doc) VALUES (?, ?, ?, ?)`,
		b.ID, b.Active, formatTime(b.CreatedAt), string(doc))
	if err != nil {
		return core.Bit{}, fmt.Errorf("insert bit: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) GetBit(ctx context.Context, id string) (core.Bit, error) {
	var doc string
	err := r.db.QueryRowContext(ctx, `SELECT doc FROM bits WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Bit{}, fmt.Errorf("bit %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Bit{}, fmt.Errorf("get bit: %w", err)
	}
	var b core.Bit
	if err := json.Unmarshal([]byte(doc), &b); err != nil {
		return core.Bit{}, fmt.Errorf("decode bit %s: %w", id, err)
	}
	return b, nil
}

func (r *SQLiteRepository) ListBits(ctx context.Context, activeOnly bool) ([]core.Bit, error) {
	query := `SELECT doc FROM bits ORDER BY created_at DESC`
	if activeOnly {
		query = `SELECT doc FROM bits WHERE active = 1 ORDER BY created_at DESC`
	}
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list bits: %w", err)
	}
	defer rows.Close()

	out := make([]core.Bit, 0)
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan bit: %w", err)
		}
		var b core.Bit
		if err := json.Unmarshal([]byte(doc), &b); err != nil {
			return nil, fmt.Errorf("decode bit: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DeleteBit(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bits WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete bit: %w", err)
	}
	return expectOneRow(res, "bit", id)
}

// GetProgress implements backend.ProgressRepository
func (r *SQLiteRepository) GetProgress(ctx context.Context, userID, bitID string) (core.Progress, error) {
	var doc string
	err := r.db.QueryRowContext(ctx,
		`SELECT doc FROM progress WHERE user_id = ? AND bit_id = ?`, userID, bitID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Progress{}, fmt.Errorf("progress %s/%s: %w", userID, bitID, core.ErrNotFound)
	}
	if err != nil {
		return core.Progress{}, fmt.Errorf("get progress: %w", err)
	}
	var p core.Progress
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return core.Progress{}, fmt.Errorf("decode progress: %w", err)
	}
	return p, nil
}

func (r *SQLiteRepository) SaveProgress(ctx context.Context, p core.Progress) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO progress (user_id, bit_id, doc, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, bit_id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		p.UserID, p.BitID, string(doc), formatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteProgressForBit(ctx context.Context, bitID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM progress WHERE bit_id = ?`, bitID); err != nil {
		return fmt.Errorf("delete progress for bit: %w", err)
	}
	return nil
}

// GetProfile implements backend.ProfileRepository
func (r *SQLiteRepository) GetProfile(ctx context.Context, userID string) (core.Profile, error) {
	var doc string
	err := r.db.QueryRowContext(ctx, `SELECT doc FROM profiles WHERE user_id = ?`, userID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Profile{}, fmt.Errorf("profile %s: %w", userID, core.ErrNotFound)
	}
	if err != nil {
		return core.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	var p core.Profile
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return core.Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	return p, nil
}

func (r *SQLiteRepository) SaveProfile(ctx context.Context, p core.Profile) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, doc, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		p.UserID, string(doc), formatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func expectOneRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
	}
	return nil
}
