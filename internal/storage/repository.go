package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dividi/internal/core"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteRepository stores expenses in a single SQLite file. Participants live
// in their own table keyed by position so order and duplicates survive.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Run migrations before the pool opens so the schema is ready.
	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	// Stored as unix milliseconds; return what a later read will see.
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Millisecond)
	e.Participants = append([]string(nil), e.Participants...)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Expense{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().UnixMilli()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO expenses (id, amount, description, paid_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Amount, e.Description, e.PaidBy, e.CreatedAt.UnixMilli(), now)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	if err := insertParticipants(ctx, tx, e.ID, e.Participants); err != nil {
		return core.Expense{}, err
	}

	if err := tx.Commit(); err != nil {
		return core.Expense{}, fmt.Errorf("commit transaction: %w", err)
	}

	slog.DebugContext(ctx, "Expense saved to SQLite",
		"expense_id", e.ID,
		"amount", e.Amount,
		"paid_by", e.PaidBy,
		"participants", len(e.Participants))

	return e, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return core.Expense{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		e         core.Expense
		createdAt int64
	)
	err = tx.QueryRowContext(ctx,
		`SELECT id, amount, description, paid_by, created_at FROM expenses WHERE id = ?`, id).
		Scan(&e.ID, &e.Amount, &e.Description, &e.PaidBy, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %s: %w", id, err)
	}
	e.CreatedAt = time.UnixMilli(createdAt).UTC()

	rows, err := tx.QueryContext(ctx,
		`SELECT name FROM expense_participants WHERE expense_id = ? ORDER BY position`, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return core.Expense{}, fmt.Errorf("scan participant: %w", err)
		}
		e.Participants = append(e.Participants, name)
	}
	if err := rows.Err(); err != nil {
		return core.Expense{}, fmt.Errorf("iterate participants: %w", err)
	}

	return e, nil
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE expenses SET amount = ?, description = ?, paid_by = ?, updated_at = ? WHERE id = ?`,
		e.Amount, e.Description, e.PaidBy, time.Now().UTC().UnixMilli(), e.ID)
	if err != nil {
		return fmt.Errorf("update expense %s: %w", e.ID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM expense_participants WHERE expense_id = ?`, e.ID); err != nil {
		return fmt.Errorf("clear participants: %w", err)
	}
	if err := insertParticipants(ctx, tx, e.ID, e.Participants); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM expense_participants WHERE expense_id = ?`, id); err != nil {
		return fmt.Errorf("delete participants: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	// One read transaction so expenses and participants come from the same snapshot.
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id, amount, description, paid_by, created_at FROM expenses ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	var expenses []core.Expense
	index := make(map[string]int)
	for rows.Next() {
		var (
			e         core.Expense
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.Amount, &e.Description, &e.PaidBy, &createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.CreatedAt = time.UnixMilli(createdAt).UTC()
		index[e.ID] = len(expenses)
		expenses = append(expenses, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}

	prows, err := tx.QueryContext(ctx,
		`SELECT expense_id, name FROM expense_participants ORDER BY expense_id, position`)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer prows.Close()

	for prows.Next() {
		var id, name string
		if err := prows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		if i, ok := index[id]; ok {
			expenses[i].Participants = append(expenses[i].Participants, name)
		}
	}
	if err := prows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}

	return expenses, nil
}

func insertParticipants(ctx context.Context, tx *sql.Tx, expenseID string, participants []string) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO expense_participants (expense_id, position, name) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare participant insert: %w", err)
	}
	defer stmt.Close()

	for i, name := range participants {
		if _, err := stmt.ExecContext(ctx, expenseID, i, name); err != nil {
			return fmt.Errorf("insert participant %q: %w", name, err)
		}
	}
	return nil
}
