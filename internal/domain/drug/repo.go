package drug

import "context"

type Repository interface {
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Drug, int, error)
	GetByID(ctx context.Context, id int64) (*Drug, error)
	Units(ctx context.Context, idDrug int64) ([]*DrugUnit, error)
	UnitsFor(ctx context.Context, ids []int64) (map[int64][]*DrugUnit, error)
	UpdateUnitFactor(ctx context.Context, idDrug int64, idUnit string, factor float64) error
	Attributes(ctx context.Context, idDrug int64, idSegment int) (*Attributes, error)
	AttributesFor(ctx context.Context, ids []int64, idSegment int) (map[int64]*Attributes, error)
	UpsertAttributes(ctx context.Context, a *Attributes) error
	AttributesList(ctx context.Context, f AttributesFilter, limit, offset int) ([]*AttributesRow, int, error)
	Frequencies(ctx context.Context) (map[string]*Frequency, error)
}
