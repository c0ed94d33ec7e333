package intervention

import "context"

type Repository interface {
	Get(ctx context.Context, id int64) (*Intervention, error)
	// PendingForLine returns pgx.ErrNoRows when the line has no pending
	// intervention. Patient level interventions are keyed by admission.
	PendingForLine(ctx context.Context, lineID, admission int64) (*Intervention, error)
	Insert(ctx context.Context, i *Intervention) error
	Update(ctx context.Context, i *Intervention) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Intervention, int, error)
	Reasons(ctx context.Context) ([]*Reason, error)
	SetStatus(ctx context.Context, id int64, status string) error
}
