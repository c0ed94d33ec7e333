package exam

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinrx/clinrx/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *repoPG) ListByAdmission(ctx context.Context, admission int64) ([]*Exam, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT admission_number, type_exam, value, unit, date
		FROM exam WHERE admission_number = $1
		ORDER BY date DESC`, admission)
	if err != nil {
		return nil, fmt.Errorf("list exams %d: %w", admission, err)
	}
	defer rows.Close()

	var items []*Exam
	for rows.Next() {
		var e Exam
		if err := rows.Scan(&e.AdmissionNumber, &e.TypeExam, &e.Value, &e.Unit, &e.Date); err != nil {
			return nil, fmt.Errorf("scan exam: %w", err)
		}
		items = append(items, &e)
	}
	return items, rows.Err()
}

// Insert ignores results already stored for the same admission, type and date.
func (r *repoPG) Insert(ctx context.Context, exams []*Exam) (int, error) {
	batch := &pgx.Batch{}
	for _, e := range exams {
		batch.Queue(`
			INSERT INTO exam (admission_number, type_exam, value, unit, date)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (admission_number, type_exam, date) DO NOTHING`,
			e.AdmissionNumber, e.TypeExam, e.Value, e.Unit, e.Date)
	}
	br := r.conn(ctx).SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for range exams {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert exam: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}
