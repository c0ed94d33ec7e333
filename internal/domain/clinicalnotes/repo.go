package clinicalnotes

import "context"

type Repository interface {
	ListByAdmission(ctx context.Context, admission int64, limit, offset int) ([]*Note, int, error)
	// WithAnnotation returns the latest notes of the admission with at least
	// one match of kind.
	WithAnnotation(ctx context.Context, admission int64, kind string, limit int) ([]*Note, error)
	Insert(ctx context.Context, notes []*Note) (int, error)
}
