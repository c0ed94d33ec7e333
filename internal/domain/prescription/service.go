package prescription

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clinrx/clinrx/internal/domain/alert"
	"github.com/clinrx/clinrx/internal/domain/drug"
	"github.com/clinrx/clinrx/internal/domain/exam"
	"github.com/clinrx/clinrx/internal/domain/outlier"
	"github.com/clinrx/clinrx/internal/domain/patient"
	"github.com/clinrx/clinrx/internal/domain/substance"
	"github.com/clinrx/clinrx/internal/platform/api"
	"github.com/clinrx/clinrx/internal/platform/metrics"
)

type DrugSource interface {
	UnitsFor(ctx context.Context, ids []int64) (map[int64][]*drug.DrugUnit, error)
	AttributesFor(ctx context.Context, ids []int64, idSegment int) (map[int64]*drug.Attributes, error)
	Frequencies(ctx context.Context) (map[string]*drug.Frequency, error)
}

type RelationSource interface {
	RelationsAmong(ctx context.Context, ids []int64) ([]*substance.Relation, error)
}

type PatientSource interface {
	Find(ctx context.Context, admission int64) (*patient.Patient, error)
	Allergies(ctx context.Context, admission int64) ([]*patient.Allergy, error)
}

type ExamSource interface {
	Latest(ctx context.Context, admission int64) (map[string]*exam.Exam, error)
	Clinical(ctx context.Context, p *patient.Patient, latest map[string]*exam.Exam) exam.Clinical
}

type OutlierSource interface {
	ForDrugs(ctx context.Context, idSegment int, ids []int64) (map[int64][]*outlier.Outlier, error)
}

// Deps groups the sources a prescription check reads from.
type Deps struct {
	Drugs     DrugSource
	Relations RelationSource
	Patients  PatientSource
	Exams     ExamSource
	Outliers  OutlierSource
}

type Service struct {
	repo Repository
	deps Deps
	now  func() time.Time
}

func NewService(repo Repository, deps Deps) *Service {
	return &Service{repo: repo, deps: deps, now: time.Now}
}

func (s *Service) get(ctx context.Context, id int64) (*Prescription, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, api.NotFound("prescription not found")
		}
		return nil, err
	}
	return p, nil
}

// underlying returns the prescriptions merged by an aggregate.
func (s *Service) underlying(ctx context.Context, agg *Prescription) ([]*Prescription, error) {
	same, err := s.repo.SameDay(ctx, agg.AdmissionNumber, agg.Date)
	if err != nil {
		return nil, err
	}
	out := same[:0]
	for _, p := range same {
		if p.segment() == agg.segment() {
			out = append(out, p)
		}
	}
	return out, nil
}

func ids(ps []*Prescription) []int64 {
	out := make([]int64, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

// Get checks a prescription: lines are loaded with their drug setup, alerts
// and scores are computed and the resulting features are stored.
func (s *Service) Get(ctx context.Context, id int64) (*Detail, error) {
	p, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	prescIDs := []int64{p.ID}
	if p.Agg {
		under, err := s.underlying(ctx, p)
		if err != nil {
			return nil, err
		}
		prescIDs = ids(under)
	}
	return s.checkAndStore(ctx, p, prescIDs)
}

func (s *Service) checkAndStore(ctx context.Context, p *Prescription, prescIDs []int64) (*Detail, error) {
	var lines []*Line
	if len(prescIDs) > 0 {
		var err error
		if lines, err = s.repo.Lines(ctx, prescIDs); err != nil {
			return nil, err
		}
	}
	detail, err := s.check(ctx, p, lines)
	if err != nil {
		return nil, err
	}
	if p.Agg {
		detail.Underlying = prescIDs
	}
	if err := s.repo.UpdateFeatures(ctx, p.ID, p.Features); err != nil {
		return nil, err
	}
	return detail, nil
}

func drugIDs(lines []*Line) []int64 {
	seen := make(map[int64]bool)
	var out []int64
	for _, l := range lines {
		if l.IDDrug != nil && !seen[*l.IDDrug] {
			seen[*l.IDDrug] = true
			out = append(out, *l.IDDrug)
		}
	}
	return out
}

func (s *Service) check(ctx context.Context, p *Prescription, lines []*Line) (*Detail, error) {
	d := s.deps
	drugs := drugIDs(lines)
	units, err := d.Drugs.UnitsFor(ctx, drugs)
	if err != nil {
		return nil, err
	}
	attrs, err := d.Drugs.AttributesFor(ctx, drugs, p.segment())
	if err != nil {
		return nil, err
	}
	freqs, err := d.Drugs.Frequencies(ctx)
	if err != nil {
		return nil, err
	}
	outliers, err := d.Outliers.ForDrugs(ctx, p.segment(), drugs)
	if err != nil {
		return nil, err
	}

	pat, err := d.Patients.Find(ctx, p.AdmissionNumber)
	if err != nil {
		return nil, err
	}
	allergies, err := d.Patients.Allergies(ctx, p.AdmissionNumber)
	if err != nil {
		return nil, err
	}
	latest, err := d.Exams.Latest(ctx, p.AdmissionNumber)
	if err != nil {
		return nil, err
	}
	clinical := d.Exams.Clinical(ctx, pat, latest)

	lineIDs := make([]int64, 0, len(lines))
	for _, l := range lines {
		lineIDs = append(lineIDs, l.ID)
	}
	interventions := map[int64]*InterventionInfo{}
	if len(lineIDs) > 0 {
		if interventions, err = s.repo.InterventionsByLine(ctx, lineIDs); err != nil {
			return nil, err
		}
	}
	patientLevel, err := s.repo.PatientInterventions(ctx, p.AdmissionNumber)
	if err != nil {
		return nil, err
	}

	ctxPatient := patientContext(pat, allergies, clinical, s.now())
	views, items := buildLines(lines, units, attrs, freqs, outliers)

	substances := make([]int64, 0, len(items)+len(ctxPatient.AllergySubstances))
	for _, it := range items {
		if it.SCTID != nil {
			substances = append(substances, *it.SCTID)
		}
	}
	for id := range ctxPatient.AllergySubstances {
		substances = append(substances, id)
	}
	var relations []*substance.Relation
	if len(substances) > 1 {
		if relations, err = d.Relations.RelationsAmong(ctx, substances); err != nil {
			return nil, err
		}
	}

	res := alert.Run(items, ctxPatient, relations)
	for _, v := range views {
		v.Alerts = res.For(v.ID)
		if v.Alerts == nil {
			v.Alerts = []alert.Alert{}
		}
		v.Intervention = interventions[v.ID]
	}
	for _, list := range res.Alerts {
		for _, a := range list {
			metrics.AlertsTotal.WithLabelValues(a.Type, a.Level).Inc()
		}
	}

	detail := &Detail{
		Prescription:  p,
		AlertStats:    res.Stats,
		Interventions: patientLevel,
		Clearance:     clinical.Clearance,
		Drugs:         []*LineView{},
		Solutions:     []*LineView{},
		Procedures:    []*LineView{},
		Diets:         []*LineView{},
	}
	if pat != nil {
		if age, ok := pat.Age(s.now()); ok {
			detail.Age = &age
		}
		detail.Weight = pat.Weight
	}
	for _, v := range views {
		switch v.Source {
		case SourceSolution:
			detail.Solutions = append(detail.Solutions, v)
		case SourceProcedure:
			detail.Procedures = append(detail.Procedures, v)
		case SourceDiet:
			detail.Diets = append(detail.Diets, v)
		default:
			detail.Drugs = append(detail.Drugs, v)
		}
	}
	if detail.Interventions == nil {
		detail.Interventions = []*InterventionInfo{}
	}

	p.Features = features(views, res.Stats, len(interventions)+len(patientLevel), s.now())
	return detail, nil
}

func patientContext(p *patient.Patient, allergies []*patient.Allergy, c exam.Clinical, at time.Time) alert.Patient {
	out := alert.Patient{
		AllergyDrugs:      make(map[int64]bool),
		AllergySubstances: make(map[int64]bool),
		Clearance:         c.Clearance,
		TGO:               c.TGO,
		TGP:               c.TGP,
		Platelets:         c.Platelets,
	}
	if p != nil {
		if age, ok := p.Age(at); ok {
			out.Age = &age
		}
		out.Weight = p.Weight
		out.Dialysis = p.DialysisMode()
		out.Tube = p.Tube
	}
	for _, a := range allergies {
		if !a.Active {
			continue
		}
		if a.IDDrug != nil {
			out.AllergyDrugs[*a.IDDrug] = true
		}
		if a.SCTID != nil {
			out.AllergySubstances[*a.SCTID] = true
		}
	}
	return out
}

// scored sources take part in the alert engine and outlier scores.
func scored(source string) bool {
	return source == SourceDrug || source == SourceSolution || source == ""
}

func buildLines(lines []*Line, units map[int64][]*drug.DrugUnit, attrs map[int64]*drug.Attributes,
	freqs map[string]*drug.Frequency, outliers map[int64][]*outlier.Outlier) ([]*LineView, []*alert.Item) {
	views := make([]*LineView, 0, len(lines))
	var items []*alert.Item
	for _, l := range lines {
		v := &LineView{Line: l}
		if l.IDFrequency != nil {
			if f, ok := freqs[*l.IDFrequency]; ok {
				v.DailyFrequency = f.DailyFrequency
			}
		}
		views = append(views, v)
		if l.IDDrug == nil {
			continue
		}
		id := *l.IDDrug
		v.Attributes = attrs[id]

		if def := drug.DefaultUnit(units[id]); def != nil {
			unit := def.IDUnit
			v.DefaultUnit = &unit
		}
		if l.Dose != nil {
			dose := *l.Dose
			if l.IDMeasureUnit != nil {
				if conv, ok := drug.ToDefault(dose, *l.IDMeasureUnit, units[id]); ok {
					dose = conv
				}
			}
			v.DoseDefault = &dose
		}
		if !scored(l.Source) {
			continue
		}

		whitelisted := v.Attributes != nil && v.Attributes.WhiteList
		if v.DoseDefault != nil {
			freq := 1.0
			if v.DailyFrequency != nil {
				freq = *v.DailyFrequency
			}
			v.Score = outlier.Lookup(outliers[id], *v.DoseDefault, freq, whitelisted)
		} else if !whitelisted {
			v.Score = outlier.ScoreUnseen
		}

		it := &alert.Item{
			ID:            l.ID,
			IDDrug:        id,
			DrugName:      l.DrugName,
			SCTID:         l.SCTID,
			IDClass:       l.IDClass,
			Dose:          v.DoseDefault,
			Frequency:     v.DailyFrequency,
			Intravenous:   l.Intravenous(),
			SolutionGroup: l.SolutionGroup,
			Suspended:     l.Suspended(),
			Attributes:    v.Attributes,
		}
		if l.Route != nil {
			it.Route = *l.Route
		}
		if l.Period != nil {
			it.Period = *l.Period
		}
		items = append(items, it)
	}
	return views, items
}

func features(views []*LineView, stats alert.Stats, interventionCount int, at time.Time) *Features {
	f := &Features{
		AlertCount:        stats.Total,
		AlertLevel:        stats.Level,
		AlertStats:        stats.ByType,
		InterventionCount: interventionCount,
		ProcessedAt:       at,
	}
	for _, v := range views {
		if v.Suspended() {
			continue
		}
		switch v.Source {
		case SourceSolution:
			f.SolutionCount++
		case SourceProcedure:
			f.ProcedureCount++
		case SourceDiet:
			f.DietCount++
		default:
			f.DrugCount++
		}
		if a := v.Attributes; a != nil {
			if a.Antimicro {
				f.AntimicroCount++
			}
			if a.MAV {
				f.MAVCount++
			}
			if a.Controlled {
				f.ControlledCount++
			}
			if a.NotDefault {
				f.NotDefaultCount++
			}
		}
		f.ScoreTotal += v.Score
		if v.Score >= outlier.ScoreRare {
			f.DiffCount++
		}
	}
	return f
}

// List returns prescriptions of a day ordered for review.
func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Prescription, int, error) {
	if f.Order == "" {
		f.Order = OrderAlerts
	}
	if !validOrders[f.Order] {
		return nil, 0, api.InvalidParams("invalid order: " + f.Order)
	}
	if f.Date.IsZero() {
		f.Date = s.now()
	}
	f.Date = startOfDay(f.Date)
	return s.repo.List(ctx, f, limit, offset)
}

// Check sets the review status. Checking an aggregate applies to every
// prescription it merges; checking a single prescription refreshes the
// status of its aggregate, which is checked only when all are.
func (s *Service) Check(ctx context.Context, id int64, status string, userID int64) (*Prescription, error) {
	if status != StatusChecked && status != StatusPending {
		return nil, api.InvalidParams("invalid status: " + status)
	}
	p, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.Agg {
		under, err := s.underlying(ctx, p)
		if err != nil {
			return nil, err
		}
		if err := s.repo.SetStatus(ctx, append(ids(under), p.ID), status, userID); err != nil {
			return nil, err
		}
		p.Status = status
		return p, nil
	}

	if err := s.repo.SetStatus(ctx, []int64{p.ID}, status, userID); err != nil {
		return nil, err
	}
	p.Status = status
	if err := s.refreshAggregateStatus(ctx, p, userID); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) refreshAggregateStatus(ctx context.Context, p *Prescription, userID int64) error {
	aggID, err := AggregateID(p.Date, p.segment(), p.AdmissionNumber)
	if err != nil {
		return nil
	}
	agg, err := s.repo.Get(ctx, aggID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	under, err := s.underlying(ctx, agg)
	if err != nil {
		return err
	}
	status := aggregateStatus(under)
	if status == agg.Status {
		return nil
	}
	return s.repo.SetStatus(ctx, []int64{agg.ID}, status, userID)
}

func aggregateStatus(under []*Prescription) string {
	if len(under) == 0 {
		return StatusPending
	}
	for _, p := range under {
		if p.Status != StatusChecked {
			return StatusPending
		}
	}
	return StatusChecked
}

func (s *Service) UpdateNotes(ctx context.Context, lineID int64, notes string, userID int64) error {
	var v *string
	if trimmed := strings.TrimSpace(notes); trimmed != "" {
		v = &trimmed
	}
	if err := s.repo.UpdateNotes(ctx, lineID, v, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return api.NotFound("prescription line not found")
		}
		return err
	}
	return nil
}

// Aggregate merges the day's prescriptions of an admission in a segment into
// the synthetic aggregate prescription and checks it. A nil segment uses
// the one of the latest prescription of the day.
func (s *Service) Aggregate(ctx context.Context, admission int64, day time.Time, idSegment *int, userID int64) (*Detail, error) {
	if admission <= 0 {
		return nil, api.InvalidParams("invalid admission number")
	}
	if day.IsZero() {
		day = s.now()
	}
	day = startOfDay(day)

	same, err := s.repo.SameDay(ctx, admission, day)
	if err != nil {
		return nil, err
	}
	if len(same) == 0 {
		return nil, api.NotFound("no prescriptions for this admission on this day")
	}
	latest := same[len(same)-1]
	for _, p := range same {
		if p.Date.After(latest.Date) {
			latest = p
		}
	}
	segment := latest.segment()
	if idSegment != nil {
		segment = *idSegment
	}
	var under []*Prescription
	for _, p := range same {
		if p.segment() == segment {
			under = append(under, p)
		}
	}
	if len(under) == 0 {
		return nil, api.NotFound("no prescriptions for this admission in this segment")
	}

	aggID, err := AggregateID(day, segment, admission)
	if err != nil {
		return nil, api.InvalidParams(err.Error())
	}
	agg := &Prescription{
		ID:              aggID,
		AdmissionNumber: admission,
		IDHospital:      latest.IDHospital,
		IDSegment:       &segment,
		IDDepartment:    latest.IDDepartment,
		Date:            day,
		Status:          aggregateStatus(under),
		Agg:             true,
		UpdatedBy:       &userID,
	}
	for _, p := range under {
		if p.Expire != nil && (agg.Expire == nil || p.Expire.After(*agg.Expire)) {
			agg.Expire = p.Expire
		}
		agg.Concilia = agg.Concilia || p.Concilia
	}
	if err := s.repo.Upsert(ctx, agg); err != nil {
		return nil, err
	}
	return s.checkAndStore(ctx, agg, ids(under))
}

// Ingest stores prescriptions sent by the hospital integration. Review
// status and pharmacist notes of known prescriptions are kept.
func (s *Service) Ingest(ctx context.Context, records []*IngestRecord, userID int64) (int, error) {
	if len(records) == 0 {
		return 0, api.InvalidParams("no prescriptions to ingest")
	}
	for i, rec := range records {
		prefix := "prescription " + strconv.Itoa(i) + ": "
		switch {
		case rec.ID <= 0:
			return 0, api.InvalidParams(prefix + "id is required")
		case IsAggregateID(rec.ID):
			return 0, api.InvalidParams(prefix + "id collides with aggregate ids")
		case rec.AdmissionNumber <= 0:
			return 0, api.InvalidParams(prefix + "admissionNumber is required")
		case rec.Date.IsZero():
			return 0, api.InvalidParams(prefix + "date is required")
		}
		for j, l := range rec.Lines {
			if l.ID <= 0 {
				return 0, api.InvalidParams(prefix + "line " + strconv.Itoa(j) + ": id is required")
			}
			if l.Source == "" {
				l.Source = SourceDrug
			}
			if !validSources[l.Source] {
				return 0, api.InvalidParams(prefix + "line " + strconv.Itoa(j) + ": invalid source " + l.Source)
			}
			if l.Dose != nil && *l.Dose < 0 {
				return 0, api.InvalidParams(prefix + "line " + strconv.Itoa(j) + ": dose must not be negative")
			}
		}
	}

	for _, rec := range records {
		p := rec.Prescription
		p.Agg = false
		p.Features = nil
		if p.Status == "" {
			p.Status = StatusPending
		}
		p.UpdatedBy = &userID
		if err := s.repo.Upsert(ctx, &p); err != nil {
			return 0, err
		}
		for _, l := range rec.Lines {
			l.IDPrescription = p.ID
			if l.Status == "" {
				l.Status = StatusPending
			}
		}
		if err := s.repo.UpsertLines(ctx, rec.Lines); err != nil {
			return 0, err
		}
	}
	return len(records), nil
}

// Line returns a line with the prescription it belongs to.
func (s *Service) Line(ctx context.Context, lineID int64) (*Line, *Prescription, error) {
	l, err := s.repo.LineByID(ctx, lineID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, api.NotFound("prescription line not found")
		}
		return nil, nil, err
	}
	p, err := s.get(ctx, l.IDPrescription)
	if err != nil {
		return nil, nil, err
	}
	return l, p, nil
}

// DayLines returns the lines of every prescription of the admission on the
// day of p, aggregates excluded.
func (s *Service) DayLines(ctx context.Context, p *Prescription) ([]*Line, error) {
	same, err := s.repo.SameDay(ctx, p.AdmissionNumber, p.Date)
	if err != nil {
		return nil, err
	}
	if len(same) == 0 {
		return nil, nil
	}
	return s.repo.Lines(ctx, ids(same))
}

// SiblingLines returns the active lines of the same drug in the other
// prescriptions of the admission on the same day.
func (s *Service) SiblingLines(ctx context.Context, l *Line, p *Prescription) ([]*Line, error) {
	if l.IDDrug == nil {
		return nil, nil
	}
	lines, err := s.DayLines(ctx, p)
	if err != nil {
		return nil, err
	}
	var out []*Line
	for _, o := range lines {
		if o.IDPrescription == p.ID || o.Suspended() {
			continue
		}
		if o.IDDrug != nil && *o.IDDrug == *l.IDDrug {
			out = append(out, o)
		}
	}
	return out, nil
}
