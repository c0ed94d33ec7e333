package exam

import (
	"context"
	"testing"
	"time"

	"github.com/clinrx/clinrx/internal/domain/patient"
	"github.com/clinrx/clinrx/internal/domain/segment"
)

type mockRepo struct {
	exams []*Exam
}

func (m *mockRepo) ListByAdmission(_ context.Context, admission int64) ([]*Exam, error) {
	var out []*Exam
	for _, e := range m.exams {
		if e.AdmissionNumber == admission {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockRepo) Insert(_ context.Context, exams []*Exam) (int, error) {
	m.exams = append(m.exams, exams...)
	return len(exams), nil
}

type mockPatients map[int64]*patient.Patient

func (m mockPatients) Find(_ context.Context, admission int64) (*patient.Patient, error) {
	return m[admission], nil
}

type mockRefs map[string]*segment.Exam

func (m mockRefs) ExamRefs(_ context.Context, _ int) (map[string]*segment.Exam, error) {
	return m, nil
}

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func day(d int) time.Time { return time.Date(2024, 3, d, 8, 0, 0, 0, time.UTC) }

func f64(v float64) *float64 { return &v }
func sp(v string) *string { return &v }

func newTestService() (*Service, *mockRepo, mockPatients) {
	repo := &mockRepo{}
	birth := time.Date(1964, 1, 1, 0, 0, 0, 0, time.UTC)
	patients := mockPatients{1: {AdmissionNumber: 1, Birthdate: &birth, Gender: sp("M"), Weight: f64(70), Height: f64(170)}}
	refs := mockRefs{
		"cr": {TypeExam: "cr", Name: "Creatinina", Initials: "Cr", Min: f64(0.5), Max: f64(1.1), Order: 1},
		"k":  {TypeExam: "k", Name: "Potassio", Initials: "K", Min: f64(3.5), Max: f64(5.5), Order: 2},
	}
	svc := NewService(repo, patients, refs)
	svc.now = func() time.Time { return fixedNow }
	return svc, repo, patients
}

func TestService_View(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.exams = []*Exam{
		{AdmissionNumber: 1, TypeExam: "cr", Value: 1.0, Date: day(1)},
		{AdmissionNumber: 1, TypeExam: "cr", Value: 1.2, Date: day(5)},
		{AdmissionNumber: 1, TypeExam: "k", Value: 4.0, Date: day(5)},
		{AdmissionNumber: 1, TypeExam: "pcr", Value: 12, Date: day(5)},
		{AdmissionNumber: 2, TypeExam: "cr", Value: 3, Date: day(5)},
	}

	view, err := svc.View(context.Background(), 1, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(view.Exams) != 3 {
		t.Fatalf("expected 3 exam types, got %d", len(view.Exams))
	}
	cr := view.Exams[0]
	if cr.TypeExam != "cr" || cr.Value != 1.2 || cr.Prev == nil || *cr.Prev != 1.0 {
		t.Errorf("unexpected creatinine entry: %+v", cr)
	}
	if !cr.Alert {
		t.Error("creatinine 1.2 is above the reference max")
	}
	if view.Exams[2].TypeExam != "pcr" || view.Exams[2].Alert {
		t.Errorf("exam without reference should come last without alert: %+v", view.Exams[2])
	}
	if len(view.Renal) == 0 {
		t.Fatal("expected renal block")
	}
	if view.AlertCount != 1 {
		t.Errorf("expected 1 alert, got %d", view.AlertCount)
	}
}

func TestService_View_Empty(t *testing.T) {
	svc, _, _ := newTestService()
	view, err := svc.View(context.Background(), 9, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(view.Exams) != 0 || view.Renal != nil {
		t.Errorf("expected empty view, got %+v", view)
	}
}

func TestService_Clinical(t *testing.T) {
	svc, repo, patients := newTestService()
	repo.exams = []*Exam{
		{AdmissionNumber: 1, TypeExam: "CR", Value: 2.5, Date: day(2)},
		{AdmissionNumber: 1, TypeExam: "tgo", Value: 80, Date: day(2)},
	}
	latest, err := svc.Latest(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clin := svc.Clinical(context.Background(), patients[1], latest)
	if clin.Clearance == nil || *clin.Clearance >= 50 {
		t.Errorf("expected low clearance, got %v", clin.Clearance)
	}
	if clin.TGO == nil || *clin.TGO != 80 || clin.TGP != nil {
		t.Errorf("unexpected liver values: %+v", clin)
	}
}

func TestService_Ingest(t *testing.T) {
	svc, repo, _ := newTestService()

	n, err := svc.Ingest(context.Background(), []*Exam{{AdmissionNumber: 1, TypeExam: " CR ", Value: 1, Date: day(3)}})
	if err != nil || n != 1 {
		t.Fatalf("expected 1 inserted, got %d %v", n, err)
	}
	if repo.exams[0].TypeExam != "cr" {
		t.Errorf("type should be normalised, got %q", repo.exams[0].TypeExam)
	}

	bad := [][]*Exam{
		nil,
		{{TypeExam: "cr", Date: day(1)}},
		{{AdmissionNumber: 1, Date: day(1)}},
		{{AdmissionNumber: 1, TypeExam: "cr"}},
		{{AdmissionNumber: 1, TypeExam: "cr", Date: day(1), Value: -1}},
	}
	for i, in := range bad {
		if _, err := svc.Ingest(context.Background(), in); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}
