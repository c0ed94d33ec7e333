package substance

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

// Tables are schema qualified: the tenant search_path also reaches public,
// but a tenant table with the same name must never shadow the catalog.
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

const subCols = `id, name, id_class, active, link`

func scanSubstance(row pgx.Row) (*Substance, error) {
	var s Substance
	err := row.Scan(&s.ID, &s.Name, &s.IDClass, &s.Active, &s.Link)
	return &s, err
}

func (r *repoPG) List(ctx context.Context, name string, limit, offset int) ([]*Substance, int, error) {
	pattern := "%" + name + "%"
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM public.substance WHERE name ILIKE $1`, pattern).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count substances: %w", err)
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+subCols+` FROM public.substance WHERE name ILIKE $1 ORDER BY name LIMIT $2 OFFSET $3`,
		pattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list substances: %w", err)
	}
	defer rows.Close()
	var items []*Substance
	for rows.Next() {
		s, err := scanSubstance(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Substance, error) {
	s, err := scanSubstance(r.conn(ctx).QueryRow(ctx, `SELECT `+subCols+` FROM public.substance WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get substance %d: %w", id, err)
	}
	return s, nil
}

func (r *repoPG) GetMany(ctx context.Context, ids []int64) (map[int64]*Substance, error) {
	out := make(map[int64]*Substance, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+subCols+` FROM public.substance WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get substances: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		s, err := scanSubstance(rows)
		if err != nil {
			return nil, err
		}
		out[s.ID] = s
	}
	return out, rows.Err()
}

const relQuery = `
	SELECT r.sctid_a, r.sctid_b, r.kind, r.text, r.level, r.active, r.author, r.updated_at,
		COALESCE(a.name, ''), COALESCE(b.name, '')
	FROM public.relation r
	LEFT JOIN public.substance a ON a.id = r.sctid_a
	LEFT JOIN public.substance b ON b.id = r.sctid_b`

func scanRelations(rows pgx.Rows) ([]*Relation, error) {
	defer rows.Close()
	var items []*Relation
	for rows.Next() {
		var rel Relation
		if err := rows.Scan(&rel.SctidA, &rel.SctidB, &rel.Kind, &rel.Text, &rel.Level, &rel.Active,
			&rel.Author, &rel.UpdatedAt, &rel.NameA, &rel.NameB); err != nil {
			return nil, err
		}
		items = append(items, &rel)
	}
	return items, rows.Err()
}

func (r *repoPG) RelationsOf(ctx context.Context, id int64) ([]*Relation, error) {
	rows, err := r.conn(ctx).Query(ctx, relQuery+` WHERE r.sctid_a = $1 OR r.sctid_b = $1 ORDER BY r.kind, r.sctid_a, r.sctid_b`, id)
	if err != nil {
		return nil, fmt.Errorf("list relations: %w", err)
	}
	return scanRelations(rows)
}

func (r *repoPG) RelationsAmong(ctx context.Context, ids []int64) ([]*Relation, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx, relQuery+` WHERE r.active AND r.sctid_a = ANY($1) AND r.sctid_b = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("list relations among substances: %w", err)
	}
	return scanRelations(rows)
}

func (r *repoPG) UpsertRelation(ctx context.Context, rel *Relation) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO public.relation (sctid_a, sctid_b, kind, text, level, active, author, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
		ON CONFLICT (sctid_a, sctid_b, kind) DO UPDATE SET
			text=EXCLUDED.text, level=EXCLUDED.level, active=EXCLUDED.active,
			author=EXCLUDED.author, updated_at=NOW()
		RETURNING updated_at`,
		rel.SctidA, rel.SctidB, rel.Kind, rel.Text, rel.Level, rel.Active, rel.Author).Scan(&rel.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert relation: %w", err)
	}
	return nil
}
