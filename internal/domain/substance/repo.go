package substance

import "context"

// Repository reads and writes the shared public schema tables.
type Repository interface {
	List(ctx context.Context, name string, limit, offset int) ([]*Substance, int, error)
	GetByID(ctx context.Context, id int64) (*Substance, error)
	GetMany(ctx context.Context, ids []int64) (map[int64]*Substance, error)
	RelationsOf(ctx context.Context, id int64) ([]*Relation, error)
	RelationsAmong(ctx context.Context, ids []int64) ([]*Relation, error)
	UpsertRelation(ctx context.Context, r *Relation) error
}
