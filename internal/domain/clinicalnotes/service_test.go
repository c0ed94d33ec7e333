package clinicalnotes

import (
	"context"
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/clinrx/clinrx/internal/platform/api"
	"github.com/clinrx/clinrx/internal/platform/db"
)

type mockRepo struct {
	notes []*Note
}

func (m *mockRepo) sorted(admission int64) []*Note {
	var out []*Note
	for _, n := range m.notes {
		if n.AdmissionNumber == admission {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

func (m *mockRepo) ListByAdmission(_ context.Context, admission int64, limit, offset int) ([]*Note, int, error) {
	all := m.sorted(admission)
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (m *mockRepo) WithAnnotation(_ context.Context, admission int64, kind string, limit int) ([]*Note, error) {
	var out []*Note
	for _, n := range m.sorted(admission) {
		if n.Annotations[kind] > 0 && len(out) < limit {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockRepo) Insert(_ context.Context, notes []*Note) (int, error) {
	inserted := 0
	for _, n := range notes {
		dup := false
		for _, cur := range m.notes {
			dup = dup || cur.ID == n.ID
		}
		if !dup {
			m.notes = append(m.notes, n)
			inserted++
		}
	}
	return inserted, nil
}

// mockCache stores JSON like the Redis cache does. down simulates an open
// breaker.
type mockCache struct {
	data map[string][]byte
	sets int
	down bool
}

func (m *mockCache) Get(_ context.Context, key string, dst interface{}) bool {
	raw, ok := m.data[key]
	if m.down || !ok {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

func (m *mockCache) Set(_ context.Context, key string, v interface{}) {
	if m.down {
		return
	}
	raw, _ := json.Marshal(v)
	m.data[key] = raw
	m.sets++
}

func at(day, hour int) time.Time { return time.Date(2024, 3, day, hour, 0, 0, 0, time.UTC) }

func newFixture() (*Service, *mockRepo, *mockCache) {
	repo := &mockRepo{}
	c := &mockCache{data: map[string][]byte{}}
	svc := NewService(repo, c)
	svc.now = func() time.Time { return at(12, 10) }
	return svc, repo, c
}

func tenantCtx() context.Context {
	return db.WithSchema(context.Background(), "hospital_a")
}

func seed(t *testing.T, svc *Service) {
	t.Helper()
	_, err := svc.Ingest(tenantCtx(), []*Note{
		{ID: 1, AdmissionNumber: 77, Date: at(10, 8), Text: "Paciente em hemodiálise. Dieta enteral. Sem queixas."},
		{ID: 2, AdmissionNumber: 77, Date: at(11, 8), Text: "Refere dor abdominal. Manter dieta via oral."},
		{ID: 3, AdmissionNumber: 88, Date: at(11, 9), Text: "Alergia a penicilina."},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestIngest_AnnotatesAndWritesThrough(t *testing.T) {
	svc, repo, c := newFixture()
	seed(t, svc)

	if len(repo.notes) != 3 {
		t.Fatalf("expected 3 notes, got %d", len(repo.notes))
	}
	if repo.notes[0].Annotations[KindDialysis] != 1 || repo.notes[0].Annotations[KindDiet] != 2 {
		t.Errorf("unexpected annotations: %v", repo.notes[0].Annotations)
	}
	for _, k := range []string{"hospital_a:77:diet", "hospital_a:77:dialysis", "hospital_a:77:symptoms", "hospital_a:88:allergy"} {
		if _, ok := c.data[k]; !ok {
			t.Errorf("expected %s to be cached", k)
		}
	}
	if _, ok := c.data["hospital_a:88:diet"]; ok {
		t.Error("summaries of kinds not mentioned must not be written")
	}
}

func TestIngest_CachesAfterCommit(t *testing.T) {
	svc, _, c := newFixture()
	ctx, commit := db.WithCommitHooks(tenantCtx())

	_, err := svc.Ingest(ctx, []*Note{
		{ID: 9, AdmissionNumber: 77, Date: at(12, 8), Text: "Alergia a dipirona."},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.sets != 0 {
		t.Fatalf("expected no cache write before commit, got %d", c.sets)
	}

	commit()
	if c.sets == 0 {
		t.Error("expected summaries cached after commit")
	}
}

func TestIngest_Validation(t *testing.T) {
	svc, _, _ := newFixture()
	ctx := tenantCtx()
	for _, notes := range [][]*Note{
		nil,
		{{ID: 0, AdmissionNumber: 77, Date: at(10, 8), Text: "x"}},
		{{ID: 1, AdmissionNumber: 77, Date: at(10, 8), Text: "   "}},
		{{ID: 1, AdmissionNumber: 77, Text: "dor"}},
	} {
		if _, err := svc.Ingest(ctx, notes); err == nil {
			t.Errorf("expected error for %+v", notes)
		}
	}
}

func TestSummary_ReadThrough(t *testing.T) {
	svc, _, c := newFixture()
	seed(t, svc)
	ctx := tenantCtx()

	sum, err := svc.Summary(ctx, 77, KindDiet)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sum.Excerpts) != 2 || sum.Excerpts[0].IDNote != 2 {
		t.Fatalf("expected newest first, got %+v", sum.Excerpts)
	}
	if sum.Excerpts[0].Sentences[0] != "Manter dieta via oral" {
		t.Errorf("unexpected excerpt %v", sum.Excerpts[0].Sentences)
	}

	// a cached value is served as is
	c.data["hospital_a:77:diet"] = []byte(`{"admissionNumber":77,"kind":"diet","excerpts":[]}`)
	sum, _ = svc.Summary(ctx, 77, KindDiet)
	if len(sum.Excerpts) != 0 {
		t.Errorf("expected the cached summary, got %+v", sum)
	}

	// an uncached kind is built and stored
	before := c.sets
	if _, err := svc.Summary(ctx, 77, KindInfo); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.sets != before+1 {
		t.Error("expected a write after a miss")
	}
}

func TestSummary_CacheDownFallsBack(t *testing.T) {
	svc, _, c := newFixture()
	seed(t, svc)
	c.down = true

	sum, err := svc.Summary(tenantCtx(), 77, KindDialysis)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sum.Excerpts) != 1 || sum.Excerpts[0].Sentences[0] != "Paciente em hemodiálise" {
		t.Errorf("unexpected summary: %+v", sum)
	}
}

func TestSummary_Validation(t *testing.T) {
	svc, _, _ := newFixture()
	_, err := svc.Summary(tenantCtx(), 77, "gossip")
	if status, _ := api.Resolve(err); status != 400 {
		t.Errorf("expected 400, got %d", status)
	}
	_, err = svc.Summary(tenantCtx(), 0, KindDiet)
	if status, _ := api.Resolve(err); status != 400 {
		t.Errorf("expected 400, got %d", status)
	}
}

func TestRefresh(t *testing.T) {
	svc, _, c := newFixture()
	seed(t, svc)
	c.data["hospital_a:77:diet"] = []byte(`{"kind":"diet","excerpts":[]}`)

	out, err := svc.Refresh(tenantCtx(), 77)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != len(Kinds) {
		t.Errorf("expected every kind, got %d", len(out))
	}
	var cached Summary
	json.Unmarshal(c.data["hospital_a:77:diet"], &cached)
	if len(cached.Excerpts) != 2 {
		t.Errorf("expected the stale entry to be replaced, got %+v", cached)
	}

	if _, err := svc.Refresh(tenantCtx(), 77, "gossip"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
