package outlier

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

const outlierCols = `id, id_drug, id_segment, dose, frequency, countnum, score, manual_score, updated_at, updated_by`

func scanOutlier(row pgx.Row) (*Outlier, error) {
	var o Outlier
	err := row.Scan(&o.ID, &o.IDDrug, &o.IDSegment, &o.Dose, &o.Frequency, &o.CountNum,
		&o.Score, &o.ManualScore, &o.UpdatedAt, &o.UpdatedBy)
	return &o, err
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Outlier, error) {
	o, err := scanOutlier(r.conn(ctx).QueryRow(ctx, `SELECT `+outlierCols+` FROM outlier WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get outlier %d: %w", id, err)
	}
	return o, nil
}

func (r *repoPG) queryOutliers(ctx context.Context, sql string, args ...interface{}) ([]*Outlier, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list outliers: %w", err)
	}
	defer rows.Close()
	var items []*Outlier
	for rows.Next() {
		o, err := scanOutlier(rows)
		if err != nil {
			return nil, fmt.Errorf("scan outlier: %w", err)
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

func (r *repoPG) List(ctx context.Context, idSegment int, idDrug int64) ([]*Outlier, error) {
	return r.queryOutliers(ctx, `SELECT `+outlierCols+` FROM outlier
		WHERE id_segment = $1 AND id_drug = $2
		ORDER BY countnum DESC, dose, frequency`, idSegment, idDrug)
}

func (r *repoPG) ForDrugs(ctx context.Context, idSegment int, ids []int64) (map[int64][]*Outlier, error) {
	items, err := r.queryOutliers(ctx, `SELECT `+outlierCols+` FROM outlier
		WHERE id_segment = $1 AND id_drug = ANY($2)`, idSegment, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[int64][]*Outlier)
	for _, o := range items {
		out[o.IDDrug] = append(out[o.IDDrug], o)
	}
	return out, nil
}

func (r *repoPG) History(ctx context.Context, idSegment int, days int) ([]*HistoryRow, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT pd.id_drug, pd.dose, COALESCE(pd.id_measure_unit, ''), COALESCE(f.daily_frequency, 1), COUNT(*)
		FROM prescription_drug pd
		JOIN prescription p ON p.id = pd.id_prescription
		LEFT JOIN frequency f ON f.id = pd.id_frequency
		WHERE p.id_segment = $1 AND p.agg IS NOT TRUE
			AND p.date >= CURRENT_DATE - $2::int
			AND pd.dose IS NOT NULL AND pd.suspended_at IS NULL
		GROUP BY 1, 2, 3, 4`, idSegment, days)
	if err != nil {
		return nil, fmt.Errorf("outlier history: %w", err)
	}
	defer rows.Close()
	var items []*HistoryRow
	for rows.Next() {
		var h HistoryRow
		if err := rows.Scan(&h.IDDrug, &h.Dose, &h.IDUnit, &h.Frequency, &h.Count); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		items = append(items, &h)
	}
	return items, rows.Err()
}

// Upsert keeps manual scores set by pharmacists.
func (r *repoPG) Upsert(ctx context.Context, o *Outlier) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO outlier (id_drug, id_segment, dose, frequency, countnum, score, updated_at, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,NOW(),$7)
		ON CONFLICT (id_segment, id_drug, dose, frequency) DO UPDATE SET
			countnum=EXCLUDED.countnum, score=EXCLUDED.score,
			updated_at=NOW(), updated_by=EXCLUDED.updated_by
		RETURNING id, manual_score`,
		o.IDDrug, o.IDSegment, o.Dose, o.Frequency, o.CountNum, o.Score, o.UpdatedBy,
	).Scan(&o.ID, &o.ManualScore)
	if err != nil {
		return fmt.Errorf("upsert outlier: %w", err)
	}
	return nil
}

func (r *repoPG) SetManualScore(ctx context.Context, id int64, score *int, userID int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE outlier SET manual_score = $2, updated_at = NOW(), updated_by = $3
		WHERE id = $1`, id, score, userID)
	if err != nil {
		return fmt.Errorf("set outlier score %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
