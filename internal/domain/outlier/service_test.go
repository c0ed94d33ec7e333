package outlier

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/clinrx/clinrx/internal/domain/drug"
	"github.com/clinrx/clinrx/internal/platform/api"
)

type mockRepo struct {
	outliers map[int64]*Outlier
	history  []*HistoryRow
	nextID   int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{outliers: map[int64]*Outlier{}}
}

func (m *mockRepo) GetByID(_ context.Context, id int64) (*Outlier, error) {
	o, ok := m.outliers[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return o, nil
}

func (m *mockRepo) List(_ context.Context, idSegment int, idDrug int64) ([]*Outlier, error) {
	var out []*Outlier
	for _, o := range m.outliers {
		if o.IDSegment == idSegment && o.IDDrug == idDrug {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockRepo) ForDrugs(_ context.Context, idSegment int, ids []int64) (map[int64][]*Outlier, error) {
	out := map[int64][]*Outlier{}
	for _, id := range ids {
		list, _ := m.List(context.Background(), idSegment, id)
		if list != nil {
			out[id] = list
		}
	}
	return out, nil
}

func (m *mockRepo) History(_ context.Context, _ int, _ int) ([]*HistoryRow, error) {
	return m.history, nil
}

func (m *mockRepo) Upsert(_ context.Context, o *Outlier) error {
	for _, cur := range m.outliers {
		if cur.IDSegment == o.IDSegment && cur.IDDrug == o.IDDrug && cur.matches(o.Dose, o.Frequency) {
			o.ID, o.ManualScore = cur.ID, cur.ManualScore
			m.outliers[o.ID] = o
			return nil
		}
	}
	m.nextID++
	o.ID = m.nextID
	m.outliers[o.ID] = o
	return nil
}

func (m *mockRepo) SetManualScore(_ context.Context, id int64, score *int, userID int64) error {
	o, ok := m.outliers[id]
	if !ok {
		return pgx.ErrNoRows
	}
	o.ManualScore = score
	o.UpdatedBy = &userID
	return nil
}

type mockDrugs struct {
	units map[int64][]*drug.DrugUnit
}

func (m *mockDrugs) Get(_ context.Context, id int64) (*drug.Drug, error) {
	if id == 404 {
		return nil, api.NotFound("drug not found")
	}
	return &drug.Drug{ID: id, Name: "Dipirona"}, nil
}

func (m *mockDrugs) Units(_ context.Context, id int64) ([]*drug.DrugUnit, error) {
	return m.units[id], nil
}

func (m *mockDrugs) UnitsFor(_ context.Context, _ []int64) (map[int64][]*drug.DrugUnit, error) {
	return m.units, nil
}

func (m *mockDrugs) Attributes(_ context.Context, _ int64, _ int) (*drug.Attributes, error) {
	return nil, nil
}

func (m *mockDrugs) AttributesFor(_ context.Context, _ []int64, _ int) (map[int64]*drug.Attributes, error) {
	return map[int64]*drug.Attributes{}, nil
}

func (m *mockDrugs) Frequencies(_ context.Context) (map[string]*drug.Frequency, error) {
	return map[string]*drug.Frequency{"8/8h": {ID: "8/8h"}, "6/6h": {ID: "6/6h"}}, nil
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	drugs := &mockDrugs{units: map[int64][]*drug.DrugUnit{
		1: {{IDDrug: 1, IDUnit: "mg", Factor: 1, Default: true}, {IDDrug: 1, IDUnit: "g", Factor: 1000}},
	}}
	return NewService(repo, drugs), repo
}

func TestService_Generate(t *testing.T) {
	svc, repo := newTestService()
	repo.history = []*HistoryRow{
		{IDDrug: 1, Dose: 500, IDUnit: "mg", Frequency: 4, Count: 70},
		{IDDrug: 1, Dose: 0.5, IDUnit: "g", Frequency: 4, Count: 10},
		{IDDrug: 1, Dose: 1000, IDUnit: "mg", Frequency: 4, Count: 16},
		{IDDrug: 1, Dose: 2000, IDUnit: "mg", Frequency: 4, Count: 4},
	}

	n, err := svc.Generate(context.Background(), 3, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 combinations, got %d", n)
	}
	scores := map[float64]*Outlier{}
	for _, o := range repo.outliers {
		scores[o.Dose] = o
	}
	if o := scores[500]; o == nil || o.CountNum != 80 || o.Score != 0 {
		t.Errorf("500mg and 0.5g should merge with score 0: %+v", o)
	}
	if o := scores[1000]; o == nil || o.Score != 1 {
		t.Errorf("expected score 1 for 1000mg, got %+v", o)
	}
	if o := scores[2000]; o == nil || o.Score != 3 {
		t.Errorf("expected score 3 for 2000mg, got %+v", o)
	}
}

func TestService_Generate_SubMilligramDoseIsSeen(t *testing.T) {
	svc, repo := newTestService()
	units := []*drug.DrugUnit{
		{IDDrug: 2, IDUnit: "mg", Factor: 1, Default: true},
		{IDDrug: 2, IDUnit: "mcg", Factor: 0.001},
	}
	svc.drugs.(*mockDrugs).units[2] = units
	repo.history = []*HistoryRow{{IDDrug: 2, Dose: 62.5, IDUnit: "mcg", Frequency: 1, Count: 100}}

	if _, err := svc.Generate(context.Background(), 3, 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored, _ := repo.List(context.Background(), 3, 2)
	if len(stored) != 1 {
		t.Fatalf("expected one outlier, got %d", len(stored))
	}

	dose, ok := drug.ToDefault(62.5, "mcg", units)
	if !ok {
		t.Fatal("expected mcg to convert")
	}
	if score := Lookup(stored, dose, 1, false); score != 0 {
		t.Errorf("stored dose %v vs line dose %v: expected score 0, got %d", stored[0].Dose, dose, score)
	}
}

func TestService_Generate_KeepsManualScore(t *testing.T) {
	svc, repo := newTestService()
	manual := 0
	repo.outliers[1] = &Outlier{ID: 1, IDDrug: 1, IDSegment: 3, Dose: 2000, Frequency: 4, ManualScore: &manual}
	repo.nextID = 1
	repo.history = []*HistoryRow{
		{IDDrug: 1, Dose: 500, IDUnit: "mg", Frequency: 4, Count: 99},
		{IDDrug: 1, Dose: 2000, IDUnit: "mg", Frequency: 4, Count: 1},
	}
	if _, err := svc.Generate(context.Background(), 3, 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o := repo.outliers[1]
	if o.Score != 3 || o.Effective() != 0 {
		t.Errorf("expected generated 3 with manual 0, got %d/%d", o.Score, o.Effective())
	}
}

func TestService_Generate_InvalidSegment(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Generate(context.Background(), 0, 1); err == nil {
		t.Error("expected error")
	}
}

func TestService_List(t *testing.T) {
	svc, repo := newTestService()
	repo.outliers[1] = &Outlier{ID: 1, IDDrug: 1, IDSegment: 3, Dose: 500, Frequency: 4}

	list, err := svc.List(context.Background(), 3, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list.Outliers) != 1 || len(list.Units) != 2 || len(list.Frequencies) != 2 {
		t.Errorf("unexpected listing: %+v", list)
	}
	if list.Frequencies[0].ID != "6/6h" {
		t.Errorf("frequencies should be sorted, got %s", list.Frequencies[0].ID)
	}

	if _, err := svc.List(context.Background(), 3, 404); err == nil {
		t.Error("expected not found")
	}
}

func TestService_SetManualScore(t *testing.T) {
	svc, repo := newTestService()
	repo.outliers[1] = &Outlier{ID: 1, IDDrug: 1, IDSegment: 3, Score: 3}

	score := 1
	o, err := svc.SetManualScore(context.Background(), 1, &score, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Effective() != 1 {
		t.Errorf("expected manual score 1, got %d", o.Effective())
	}

	bad := 7
	if _, err := svc.SetManualScore(context.Background(), 1, &bad, 9); err == nil {
		t.Error("expected validation error")
	}

	_, err = svc.SetManualScore(context.Background(), 99, &score, 9)
	status, _ := api.Resolve(err)
	if status != 404 {
		t.Errorf("expected 404, got %d", status)
	}
}
