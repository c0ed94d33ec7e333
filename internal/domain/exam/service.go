package exam

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/clinrx/clinrx/internal/domain/patient"
	"github.com/clinrx/clinrx/internal/domain/segment"
	"github.com/clinrx/clinrx/internal/platform/api"
)

type PatientFinder interface {
	Find(ctx context.Context, admission int64) (*patient.Patient, error)
}

type ReferenceSource interface {
	ExamRefs(ctx context.Context, idSegment int) (map[string]*segment.Exam, error)
}

type Service struct {
	repo     Repository
	patients PatientFinder
	refs     ReferenceSource
	now      func() time.Time
}

func NewService(repo Repository, patients PatientFinder, refs ReferenceSource) *Service {
	return &Service{repo: repo, patients: patients, refs: refs, now: time.Now}
}

// Latest returns the newest result per exam type.
func (s *Service) Latest(ctx context.Context, admission int64) (map[string]*Exam, error) {
	items, err := s.repo.ListByAdmission(ctx, admission)
	if err != nil {
		return nil, err
	}
	latest := make(map[string]*Exam)
	for _, e := range items {
		t := strings.ToLower(e.TypeExam)
		if cur, ok := latest[t]; !ok || e.Date.After(cur.Date) {
			latest[t] = e
		}
	}
	return latest, nil
}

// InputsFor builds calculator inputs from a patient and a creatinine value.
func InputsFor(p *patient.Patient, creatinine float64, at time.Time) Inputs {
	in := Inputs{Creatinine: creatinine}
	if p == nil {
		return in
	}
	in.Age, in.HasAge = p.Age(at)
	in.AgeMonths, _ = p.AgeMonths(at)
	in.Female = p.Female()
	in.Black = p.Black()
	if p.Weight != nil {
		in.Weight = *p.Weight
	}
	if p.Height != nil {
		in.Height = *p.Height
	}
	return in
}

// RenalPanel runs every calculator, skipping the ones with no result.
func RenalPanel(in Inputs) []Result {
	all := []Result{
		MDRD(in), CockcroftGault(in), CKDEPI2009(in), CKDEPI2021(in),
		SchwartzBedside(in), SchwartzOriginal(in),
	}
	out := make([]Result, 0, len(all))
	for _, r := range all {
		if !r.Empty() {
			out = append(out, r)
		}
	}
	return out
}

// Clinical derives the values used by the dose rules from the latest exams.
func (s *Service) Clinical(ctx context.Context, p *patient.Patient, latest map[string]*Exam) Clinical {
	var out Clinical
	value := func(t string) *float64 {
		if e, ok := latest[t]; ok {
			v := e.Value
			return &v
		}
		return nil
	}
	out.TGO = value(TypeTGO)
	out.TGP = value(TypeTGP)
	out.Platelets = value(TypePlatelets)
	out.Potassium = value(TypePotassium)
	if cr := value(TypeCreatinine); cr != nil {
		if r := Clearance(InputsFor(p, *cr, s.now())); !r.Empty() {
			out.Clearance = r.Value
		}
	}
	return out
}

// View lists the latest and previous result of each exam type with the
// segment reference ranges, and the renal function block.
func (s *Service) View(ctx context.Context, admission int64, idSegment int) (*View, error) {
	items, err := s.repo.ListByAdmission(ctx, admission)
	if err != nil {
		return nil, err
	}
	refs := map[string]*segment.Exam{}
	if idSegment > 0 && s.refs != nil {
		if refs, err = s.refs.ExamRefs(ctx, idSegment); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Date.After(items[j].Date) })

	byType := make(map[string]*Entry)
	var entries []*Entry
	for _, e := range items {
		t := strings.ToLower(e.TypeExam)
		entry, seen := byType[t]
		if !seen {
			entry = &Entry{TypeExam: t, Name: e.TypeExam, Initials: e.TypeExam, Value: e.Value, Unit: e.Unit, Date: e.Date, order: 1 << 20}
			if ref, ok := refs[t]; ok {
				entry.Name, entry.Initials = ref.Name, ref.Initials
				entry.Min, entry.Max, entry.Ref = ref.Min, ref.Max, ref.Ref
				entry.Alert = !ref.InRange(e.Value)
				entry.order = ref.Order
			}
			byType[t] = entry
			entries = append(entries, entry)
			continue
		}
		if entry.Prev == nil {
			prev, date := e.Value, e.Date
			delta := entry.Value - prev
			entry.Prev, entry.PrevDate, entry.Delta = &prev, &date, &delta
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].order != entries[j].order {
			return entries[i].order < entries[j].order
		}
		return entries[i].TypeExam < entries[j].TypeExam
	})

	view := &View{AdmissionNumber: admission, Exams: entries}
	for _, e := range entries {
		if e.Alert {
			view.AlertCount++
		}
	}

	if cr, ok := byType[TypeCreatinine]; ok {
		var p *patient.Patient
		if s.patients != nil {
			if p, err = s.patients.Find(ctx, admission); err != nil {
				return nil, err
			}
		}
		view.Renal = RenalPanel(InputsFor(p, cr.Value, s.now()))
		for _, r := range view.Renal {
			if r.Alert {
				view.AlertCount++
			}
		}
	}
	if view.Exams == nil {
		view.Exams = []*Entry{}
	}
	return view, nil
}

// Ingest stores results sent by the hospital integration and returns how
// many were new.
func (s *Service) Ingest(ctx context.Context, exams []*Exam) (int, error) {
	if len(exams) == 0 {
		return 0, api.InvalidParams("no exams to ingest")
	}
	for i, e := range exams {
		if e.AdmissionNumber <= 0 {
			return 0, api.InvalidParams("exam " + strconv.Itoa(i) + ": admissionNumber is required")
		}
		e.TypeExam = strings.ToLower(strings.TrimSpace(e.TypeExam))
		if e.TypeExam == "" {
			return 0, api.InvalidParams("exam " + strconv.Itoa(i) + ": typeExam is required")
		}
		if e.Date.IsZero() {
			return 0, api.InvalidParams("exam " + strconv.Itoa(i) + ": date is required")
		}
		if e.Value < 0 {
			return 0, api.InvalidParams("exam " + strconv.Itoa(i) + ": value must not be negative")
		}
	}
	return s.repo.Insert(ctx, exams)
}
