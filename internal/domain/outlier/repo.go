package outlier

import "context"

type Repository interface {
	GetByID(ctx context.Context, id int64) (*Outlier, error)
	List(ctx context.Context, idSegment int, idDrug int64) ([]*Outlier, error)
	ForDrugs(ctx context.Context, idSegment int, ids []int64) (map[int64][]*Outlier, error)
	// History aggregates the prescribed lines of a segment since the given number of days.
	History(ctx context.Context, idSegment int, days int) ([]*HistoryRow, error)
	Upsert(ctx context.Context, o *Outlier) error
	SetManualScore(ctx context.Context, id int64, score *int, userID int64) error
}
