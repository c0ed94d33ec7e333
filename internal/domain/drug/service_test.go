package drug

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/clinrx/clinrx/internal/platform/api"
)

type attrKey struct {
	drug    int64
	segment int
}

type mockRepo struct {
	drugs       map[int64]*Drug
	units       map[int64][]*DrugUnit
	attrs       map[attrKey]*Attributes
	frequencies map[string]*Frequency
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		drugs:       map[int64]*Drug{},
		units:       map[int64][]*DrugUnit{},
		attrs:       map[attrKey]*Attributes{},
		frequencies: map[string]*Frequency{},
	}
}

func (m *mockRepo) List(_ context.Context, _ ListFilter, limit, offset int) ([]*Drug, int, error) {
	var out []*Drug
	for _, d := range m.drugs {
		out = append(out, d)
	}
	total := len(out)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

func (m *mockRepo) GetByID(_ context.Context, id int64) (*Drug, error) {
	d, ok := m.drugs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return d, nil
}

func (m *mockRepo) Units(_ context.Context, id int64) ([]*DrugUnit, error) {
	return m.units[id], nil
}

func (m *mockRepo) UnitsFor(_ context.Context, ids []int64) (map[int64][]*DrugUnit, error) {
	out := map[int64][]*DrugUnit{}
	for _, id := range ids {
		out[id] = m.units[id]
	}
	return out, nil
}

func (m *mockRepo) UpdateUnitFactor(_ context.Context, idDrug int64, idUnit string, factor float64) error {
	for _, u := range m.units[idDrug] {
		if u.IDUnit == idUnit {
			u.Factor = factor
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *mockRepo) Attributes(_ context.Context, idDrug int64, idSegment int) (*Attributes, error) {
	a, ok := m.attrs[attrKey{idDrug, idSegment}]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return a, nil
}

func (m *mockRepo) AttributesFor(_ context.Context, ids []int64, idSegment int) (map[int64]*Attributes, error) {
	out := map[int64]*Attributes{}
	for _, id := range ids {
		if a, ok := m.attrs[attrKey{id, idSegment}]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (m *mockRepo) UpsertAttributes(_ context.Context, a *Attributes) error {
	m.attrs[attrKey{a.IDDrug, a.IDSegment}] = a
	return nil
}

func (m *mockRepo) AttributesList(_ context.Context, _ AttributesFilter, _, _ int) ([]*AttributesRow, int, error) {
	var out []*AttributesRow
	for _, a := range m.attrs {
		out = append(out, &AttributesRow{Attributes: *a, Name: m.drugs[a.IDDrug].Name})
	}
	return out, len(out), nil
}

func (m *mockRepo) Frequencies(_ context.Context) (map[string]*Frequency, error) {
	return m.frequencies, nil
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	repo.drugs[1] = &Drug{ID: 1, Name: "Dipirona 500mg"}
	repo.drugs[2] = &Drug{ID: 2, Name: "Vancomicina 1g"}
	repo.units[1] = testUnits()
	return NewService(repo), repo
}

func sp(s string) *string { return &s }

func TestService_List_MatchesRepositoryCount(t *testing.T) {
	svc, repo := newTestService()
	items, total, err := svc.List(context.Background(), ListFilter{}, 50, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != len(repo.drugs) || len(items) != len(repo.drugs) {
		t.Errorf("expected %d drugs, got total=%d items=%d", len(repo.drugs), total, len(items))
	}
}

func TestService_Units_NotFound(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Units(context.Background(), 99); !api.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestService_UpsertAttributes(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	a := &Attributes{IDDrug: 1, IDSegment: 1, MaxDose: f64(4000), IDMeasureUnit: sp("mg"), Price: f64(0.2), IDMeasureUnitPrice: sp("amp")}
	if err := svc.UpsertAttributes(ctx, a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := repo.attrs[attrKey{1, 1}]; !ok {
		t.Error("expected attributes stored")
	}
}

func TestService_UpsertAttributes_Rejects(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	div := 0

	tests := map[string]*Attributes{
		"no segment":     {IDDrug: 1},
		"negative dose":  {IDDrug: 1, IDSegment: 1, MaxDose: f64(-1)},
		"zero division":  {IDDrug: 1, IDSegment: 1, Division: &div},
		"unknown unit":   {IDDrug: 1, IDSegment: 1, IDMeasureUnit: sp("ml")},
		"unknown drug":   {IDDrug: 99, IDSegment: 1},
		"negative price": {IDDrug: 1, IDSegment: 1, Price: f64(-3)},
	}
	for name, a := range tests {
		t.Run(name, func(t *testing.T) {
			if err := svc.UpsertAttributes(ctx, a); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestService_Attributes_MissingIsNil(t *testing.T) {
	svc, _ := newTestService()
	a, err := svc.Attributes(context.Background(), 2, 1)
	if err != nil || a != nil {
		t.Errorf("expected nil attributes without error, got %v %v", a, err)
	}
}

func TestService_UpdateUnitFactor(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	if err := svc.UpdateUnitFactor(ctx, 1, "amp", 250); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.units[1][2].Factor != 250 {
		t.Errorf("expected factor 250, got %v", repo.units[1][2].Factor)
	}
	if err := svc.UpdateUnitFactor(ctx, 1, "amp", 0); err == nil {
		t.Error("expected error for zero factor")
	}
	if err := svc.UpdateUnitFactor(ctx, 1, "ml", 2); !api.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}
