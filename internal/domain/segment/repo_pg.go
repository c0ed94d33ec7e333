package segment

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

func (r *repoPG) List(ctx context.Context) ([]*Segment, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id, description, status FROM segment ORDER BY description`)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()
	var items []*Segment
	for rows.Next() {
		var s Segment
		if err := rows.Scan(&s.ID, &s.Description, &s.Status); err != nil {
			return nil, err
		}
		items = append(items, &s)
	}
	return items, rows.Err()
}

func (r *repoPG) GetByID(ctx context.Context, id int) (*Segment, error) {
	var s Segment
	err := r.conn(ctx).QueryRow(ctx, `SELECT id, description, status FROM segment WHERE id = $1`, id).
		Scan(&s.ID, &s.Description, &s.Status)
	if err != nil {
		return nil, fmt.Errorf("get segment %d: %w", id, err)
	}
	return &s, nil
}

func (r *repoPG) Departments(ctx context.Context, idSegment int) ([]*Department, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id_hospital, id_department, id_segment, name
		FROM department WHERE id_segment = $1 ORDER BY name`, idSegment)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	defer rows.Close()
	var items []*Department
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.IDHospital, &d.IDDepartment, &d.IDSegment, &d.Name); err != nil {
			return nil, err
		}
		items = append(items, &d)
	}
	return items, rows.Err()
}

const examCols = `id_segment, type_exam, name, initials, min, max, ref, ord, active, updated_at, updated_by`

func (r *repoPG) Exams(ctx context.Context, idSegment int) ([]*Exam, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+examCols+` FROM segment_exam WHERE id_segment = $1 ORDER BY ord, name`, idSegment)
	if err != nil {
		return nil, fmt.Errorf("list segment exams: %w", err)
	}
	defer rows.Close()
	var items []*Exam
	for rows.Next() {
		var e Exam
		if err := rows.Scan(&e.IDSegment, &e.TypeExam, &e.Name, &e.Initials, &e.Min, &e.Max,
			&e.Ref, &e.Order, &e.Active, &e.UpdatedAt, &e.UpdatedBy); err != nil {
			return nil, err
		}
		items = append(items, &e)
	}
	return items, rows.Err()
}

func (r *repoPG) UpsertExam(ctx context.Context, e *Exam) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO segment_exam (id_segment, type_exam, name, initials, min, max, ref, ord, active, updated_at, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),$10)
		ON CONFLICT (id_segment, type_exam) DO UPDATE SET
			name=EXCLUDED.name, initials=EXCLUDED.initials, min=EXCLUDED.min, max=EXCLUDED.max,
			ref=EXCLUDED.ref, ord=EXCLUDED.ord, active=EXCLUDED.active,
			updated_at=NOW(), updated_by=EXCLUDED.updated_by`,
		e.IDSegment, e.TypeExam, e.Name, e.Initials, e.Min, e.Max, e.Ref, e.Order, e.Active, e.UpdatedBy)
	if err != nil {
		return fmt.Errorf("upsert segment exam: %w", err)
	}
	return nil
}
