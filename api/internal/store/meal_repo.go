package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"nutrilens/api/internal/analyzer/types"
)

// MealRepo: журнал приёмов пищи, которые бот показал пользователю.
// Only frontends write here; the analyze endpoint never reads it.
type MealRepo struct {
	DB      *sql.DB
	dialect Dialect
}

func NewMealRepo(db *sql.DB, d Dialect) *MealRepo { return &MealRepo{DB: db, dialect: d} }

type MealEntry struct {
	ID        string
	ChatID    int64
	CreatedAt time.Time
	Engine    string
	Model     string
	Result    types.AnalysisResult
}

func (r *MealRepo) Migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS meal_log (
    id             TEXT PRIMARY KEY,
    chat_id        BIGINT NOT NULL,
    created_at     BIGINT NOT NULL,
    engine         TEXT NOT NULL,
    model          TEXT NOT NULL,
    total_calories INTEGER NOT NULL,
    result_json    TEXT NOT NULL
)`
	if _, err := r.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	const idx = `CREATE INDEX IF NOT EXISTS idx_meal_log_chat ON meal_log(chat_id, created_at)`
	if _, err := r.DB.ExecContext(ctx, idx); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// Save stores e and returns its id; ID and CreatedAt are filled when empty.
func (r *MealRepo) Save(ctx context.Context, e MealEntry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	js, err := json.Marshal(e.Result)
	if err != nil {
		return "", err
	}
	q := rebind(r.dialect, `
insert into meal_log (id, chat_id, created_at, engine, model, total_calories, result_json)
values (?, ?, ?, ?, ?, ?, ?)`)
	_, err = r.DB.ExecContext(ctx, q,
		e.ID, e.ChatID, e.CreatedAt.Unix(), e.Engine, e.Model, e.Result.TotalCalories, string(js))
	if err != nil {
		return "", fmt.Errorf("failed to insert meal: %w", err)
	}
	return e.ID, nil
}

// Recent returns up to limit entries of a chat, newest first.
func (r *MealRepo) Recent(ctx context.Context, chatID int64, limit int) ([]MealEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	q := rebind(r.dialect, `
select id, chat_id, created_at, engine, model, result_json
from meal_log
where chat_id = ?
order by created_at desc, id
limit ?`)
	rows, err := r.DB.QueryContext(ctx, q, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query meals: %w", err)
	}
	defer rows.Close()

	var out []MealEntry
	for rows.Next() {
		var (
			e  MealEntry
			ts int64
			js string
		)
		if err := rows.Scan(&e.ID, &e.ChatID, &ts, &e.Engine, &e.Model, &js); err != nil {
			return nil, fmt.Errorf("failed to scan meal: %w", err)
		}
		e.CreatedAt = time.Unix(ts, 0)
		if err := json.Unmarshal([]byte(js), &e.Result); err != nil {
			// битая запись: пропускаем, журнал не критичен
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Get returns one entry or ErrNotFound.
func (r *MealRepo) Get(ctx context.Context, id string) (MealEntry, error) {
	q := rebind(r.dialect, `select id, chat_id, created_at, engine, model, result_json from meal_log where id = ?`)
	var (
		e  MealEntry
		ts int64
		js string
	)
	err := r.DB.QueryRowContext(ctx, q, id).Scan(&e.ID, &e.ChatID, &ts, &e.Engine, &e.Model, &js)
	if err != nil {
		return MealEntry{}, err
	}
	e.CreatedAt = time.Unix(ts, 0)
	if err := json.Unmarshal([]byte(js), &e.Result); err != nil {
		return MealEntry{}, fmt.Errorf("meal %s: bad result_json: %w", id, err)
	}
	return e, nil
}

// CaloriesSince sums total_calories of a chat's meals logged at or after since.
func (r *MealRepo) CaloriesSince(ctx context.Context, chatID int64, since time.Time) (int, error) {
	q := rebind(r.dialect, `select coalesce(sum(total_calories), 0) from meal_log where chat_id = ? and created_at >= ?`)
	var n int64
	if err := r.DB.QueryRowContext(ctx, q, chatID, since.Unix()).Scan(&n); err != nil {
		return 0, err
	}
	return int(n), nil
}

// PurgeOlderThan удаляет старые записи, чтобы не раздувать БД.
func (r *MealRepo) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	cutoff := time.Now().Add(-olderThan).Unix()
	res, err := r.DB.ExecContext(ctx, rebind(r.dialect, `delete from meal_log where created_at < ?`), cutoff)
	if err != nil {
		return 0, err
	}
	aff, _ := res.RowsAffected()
	return aff, nil
}
