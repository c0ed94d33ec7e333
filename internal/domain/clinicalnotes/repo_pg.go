package clinicalnotes

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

const noteCols = `id, admission_number, date, text, prescriber, position, annotations`

func scanNotes(rows pgx.Rows) ([]*Note, error) {
	defer rows.Close()
	var out []*Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.AdmissionNumber, &n.Date, &n.Text, &n.Prescriber, &n.Position, &n.Annotations); err != nil {
			return nil, fmt.Errorf("scan clinical note: %w", err)
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

func (r *repoPG) ListByAdmission(ctx context.Context, admission int64, limit, offset int) ([]*Note, int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM clinical_notes WHERE admission_number = $1`, admission).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count clinical notes %d: %w", admission, err)
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+noteCols+` FROM clinical_notes
		WHERE admission_number = $1 ORDER BY date DESC, id DESC LIMIT $2 OFFSET $3`,
		admission, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list clinical notes %d: %w", admission, err)
	}
	notes, err := scanNotes(rows)
	return notes, total, err
}

func (r *repoPG) WithAnnotation(ctx context.Context, admission int64, kind string, limit int) ([]*Note, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+noteCols+` FROM clinical_notes
		WHERE admission_number = $1 AND COALESCE((annotations->>$2)::int, 0) > 0
		ORDER BY date DESC, id DESC LIMIT $3`, admission, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("list %s notes %d: %w", kind, admission, err)
	}
	return scanNotes(rows)
}

// Insert ignores notes whose id is already stored.
func (r *repoPG) Insert(ctx context.Context, notes []*Note) (int, error) {
	batch := &pgx.Batch{}
	for _, n := range notes {
		batch.Queue(`
			INSERT INTO clinical_notes (id, admission_number, date, text, prescriber, position, annotations)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (id) DO NOTHING`,
			n.ID, n.AdmissionNumber, n.Date, n.Text, n.Prescriber, n.Position, n.Annotations)
	}
	br := r.conn(ctx).SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for range notes {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert clinical note: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}
