package intervention

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clinrx/clinrx/internal/domain/drug"
	"github.com/clinrx/clinrx/internal/domain/prescription"
	"github.com/clinrx/clinrx/internal/platform/api"
	"github.com/clinrx/clinrx/internal/platform/metrics"
)

// LineSource resolves prescription lines. Implemented by prescription.Service.
type LineSource interface {
	Line(ctx context.Context, lineID int64) (*prescription.Line, *prescription.Prescription, error)
	SiblingLines(ctx context.Context, l *prescription.Line, p *prescription.Prescription) ([]*prescription.Line, error)
	DayLines(ctx context.Context, p *prescription.Prescription) ([]*prescription.Line, error)
}

// DrugSource is the part of drug.Service used for cost arithmetic.
type DrugSource interface {
	UnitsFor(ctx context.Context, ids []int64) (map[int64][]*drug.DrugUnit, error)
	AttributesFor(ctx context.Context, ids []int64, idSegment int) (map[int64]*drug.Attributes, error)
	Frequencies(ctx context.Context) (map[string]*drug.Frequency, error)
}

type Service struct {
	repo  Repository
	lines LineSource
	drugs DrugSource
	now   func() time.Time
}

func NewService(repo Repository, lines LineSource, drugs DrugSource) *Service {
	return &Service{repo: repo, lines: lines, drugs: drugs, now: time.Now}
}

func (s *Service) get(ctx context.Context, id int64) (*Intervention, error) {
	i, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, api.NotFound("intervention not found")
		}
		return nil, err
	}
	return i, nil
}

func (s *Service) Reasons(ctx context.Context) ([]*Reason, error) {
	return s.repo.Reasons(ctx)
}

// selectedReasons resolves the requested reason ids. Unknown or inactive
// reasons are rejected.
func (s *Service) selectedReasons(ctx context.Context, ids []int) ([]*Reason, error) {
	if len(ids) == 0 {
		return nil, api.InvalidParams("at least one intervention reason is required")
	}
	all, err := s.repo.Reasons(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[int]*Reason, len(all))
	for _, r := range all {
		byID[r.ID] = r
	}
	out := make([]*Reason, 0, len(ids))
	for _, id := range ids {
		r, ok := byID[id]
		if !ok || !r.Active {
			return nil, api.InvalidParams("invalid intervention reason")
		}
		out = append(out, r)
	}
	return out, nil
}

func economyType(req *SaveRequest, reasons []*Reason) (*int, error) {
	if req.EconomyType != nil {
		switch *req.EconomyType {
		case EconomyCustom:
			t := EconomyCustom
			return &t, nil
		case EconomySuspension, EconomySubstitution:
		default:
			return nil, api.InvalidParams("invalid economyType")
		}
	}
	return EconomyTypeFor(reasons), nil
}

// Save records the pending intervention of a line, or of the admission when
// IDPrescriptionDrug is zero. Saving again on a line with a pending
// intervention updates it. With propagate the intervention is repeated on
// the same drug in the other prescriptions of the admission that day.
func (s *Service) Save(ctx context.Context, req *SaveRequest, userID int64) ([]*Intervention, error) {
	if req.Propagate == nil {
		return nil, api.InvalidParams("propagate is required")
	}
	reasons, err := s.selectedReasons(ctx, req.Reasons)
	if err != nil {
		return nil, err
	}
	kind, err := economyType(req, reasons)
	if err != nil {
		return nil, err
	}

	if req.IDPrescriptionDrug == 0 {
		if req.AdmissionNumber <= 0 {
			return nil, api.InvalidParams("admissionNumber is required for patient interventions")
		}
		i, err := s.upsert(ctx, req, kind, 0, 0, req.AdmissionNumber, userID)
		if err != nil {
			return nil, err
		}
		return []*Intervention{i}, nil
	}

	l, p, err := s.lines.Line(ctx, req.IDPrescriptionDrug)
	if err != nil {
		return nil, err
	}
	i, err := s.upsert(ctx, req, kind, l.ID, l.IDPrescription, p.AdmissionNumber, userID)
	if err != nil {
		return nil, err
	}
	out := []*Intervention{i}
	if !*req.Propagate {
		return out, nil
	}

	siblings, err := s.lines.SiblingLines(ctx, l, p)
	if err != nil {
		return nil, err
	}
	for _, sib := range siblings {
		si, err := s.upsert(ctx, req, kind, sib.ID, sib.IDPrescription, p.AdmissionNumber, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, si)
	}
	return out, nil
}

func (s *Service) upsert(ctx context.Context, req *SaveRequest, kind *int,
	lineID, prescriptionID, admission, userID int64) (*Intervention, error) {

	existing, err := s.repo.PendingForLine(ctx, lineID, admission)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	i := existing
	if i == nil {
		i = &Intervention{
			IDPrescriptionDrug: lineID,
			IDPrescription:     prescriptionID,
			AdmissionNumber:    admission,
			Status:             StatusPending,
			CreatedBy:          userID,
		}
	}
	i.Reasons = req.Reasons
	i.Error = req.Error
	i.Cost = req.Cost
	i.Interactions = req.Interactions
	i.Observation = req.Observation
	i.EconomyType = kind
	i.IDPrescriptionDrugDestiny = req.IDPrescriptionDrugDestiny
	i.EconomyDayValue = nil
	if kind != nil && *kind == EconomyCustom {
		i.EconomyDayValue = req.EconomyDayValue
	}

	if existing == nil {
		err = s.repo.Insert(ctx, i)
	} else {
		err = s.repo.Update(ctx, i)
	}
	if err != nil {
		return nil, err
	}
	metrics.InterventionsTotal.WithLabelValues(StatusPending).Inc()
	return i, nil
}

var listStatuses = map[string]bool{
	StatusPending: true, StatusAccepted: true, StatusNotAccepted: true,
	StatusNotApplicable: true, StatusJustified: true,
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Intervention, int, error) {
	for _, st := range f.Statuses {
		if !listStatuses[st] {
			return nil, 0, api.InvalidParams("invalid status " + st)
		}
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, 0, api.InvalidParams("endDate is before startDate")
	}
	return s.repo.List(ctx, f, limit, offset)
}

type costContext struct {
	units map[int64][]*drug.DrugUnit
	attrs map[int64]*drug.Attributes
	freqs map[string]*drug.Frequency
}

func (s *Service) costContext(ctx context.Context, lines []*prescription.Line, idSegment int) (*costContext, error) {
	seen := make(map[int64]bool)
	var ids []int64
	for _, l := range lines {
		if l.IDDrug != nil && !seen[*l.IDDrug] {
			seen[*l.IDDrug] = true
			ids = append(ids, *l.IDDrug)
		}
	}
	units, err := s.drugs.UnitsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	attrs, err := s.drugs.AttributesFor(ctx, ids, idSegment)
	if err != nil {
		return nil, err
	}
	freqs, err := s.drugs.Frequencies(ctx)
	if err != nil {
		return nil, err
	}
	return &costContext{units: units, attrs: attrs, freqs: freqs}, nil
}

// snapshot prices a line. DailyCost stays nil when the drug has no price or
// the dose cannot be expressed in the price unit.
func (cc *costContext) snapshot(l *prescription.Line) *Snapshot {
	snap := &Snapshot{
		IDPrescriptionDrug: l.ID,
		DrugName:           l.DrugName,
		Dose:               l.Dose,
		IDMeasureUnit:      l.IDMeasureUnit,
		IDFrequency:        l.IDFrequency,
		DailyFrequency:     1,
	}
	if l.IDFrequency != nil {
		if f, ok := cc.freqs[*l.IDFrequency]; ok {
			snap.DailyFrequency = drug.DailyFrequency(f.DailyFrequency)
		}
	}
	if l.IDDrug == nil {
		return snap
	}
	snap.IDDrug = *l.IDDrug
	a := cc.attrs[*l.IDDrug]
	if a == nil || a.Price == nil {
		return snap
	}
	snap.Price = a.Price
	units := cc.units[*l.IDDrug]

	priceUnit := a.IDMeasureUnitPrice
	if priceUnit == nil || *priceUnit == "" {
		if def := drug.DefaultUnit(units); def != nil {
			priceUnit = &def.IDUnit
		}
	}
	snap.IDMeasureUnitPrice = priceUnit
	if l.Dose == nil || priceUnit == nil {
		return snap
	}

	dose := *l.Dose
	if l.IDMeasureUnit != nil && *l.IDMeasureUnit != "" {
		converted, ok := drug.ConvertDose(dose, *l.IDMeasureUnit, *priceUnit, units)
		if !ok {
			return snap
		}
		dose = converted
	}
	cost := DailyCost(*a.Price, dose, snap.DailyFrequency)
	snap.DailyCost = &cost
	return snap
}

func segmentOf(p *prescription.Prescription) int {
	if p.IDSegment == nil {
		return 0
	}
	return *p.IDSegment
}

// outcomeData prices the origin line and the candidates for substitution:
// the active lines of other drugs prescribed to the admission on that day.
func (s *Service) outcomeData(ctx context.Context, i *Intervention) (*OutcomeData, error) {
	data := &OutcomeData{Intervention: i}
	if i.PatientLevel() {
		return data, nil
	}
	l, p, err := s.lines.Line(ctx, i.IDPrescriptionDrug)
	if err != nil {
		return nil, err
	}
	day, err := s.lines.DayLines(ctx, p)
	if err != nil {
		return nil, err
	}
	cc, err := s.costContext(ctx, append([]*prescription.Line{l}, day...), segmentOf(p))
	if err != nil {
		return nil, err
	}

	data.Origin = cc.snapshot(l)
	for _, o := range day {
		if o.ID == l.ID || o.IDDrug == nil || o.Suspended() {
			continue
		}
		if l.IDDrug != nil && *o.IDDrug == *l.IDDrug {
			continue
		}
		snap := cc.snapshot(o)
		data.DestinyCandidates = append(data.DestinyCandidates, snap)
		if i.IDPrescriptionDrugDestiny != nil && *i.IDPrescriptionDrugDestiny == o.ID {
			data.Destiny = snap
		}
	}

	if i.EconomyType != nil {
		data.EconomyDayValue = computedDayValue(*i.EconomyType, data.Origin, data.Destiny, i.EconomyDayValue)
	}
	data.EconomyDays, _ = EconomyDays(economyBase(i), i.DateEndEconomy)
	return data, nil
}

func computedDayValue(kind int, origin, destiny *Snapshot, custom *float64) *float64 {
	var originCost float64
	if origin != nil && origin.DailyCost != nil {
		originCost = *origin.DailyCost
	} else if kind != EconomyCustom {
		return nil
	}
	var destinyCost *float64
	if destiny != nil {
		destinyCost = destiny.DailyCost
	}
	v, err := EconomyDayValue(kind, originCost, destinyCost, custom)
	if err != nil {
		return nil
	}
	return &v
}

func economyBase(i *Intervention) time.Time {
	if i.DateBaseEconomy != nil {
		return *i.DateBaseEconomy
	}
	return i.CreatedAt
}

func (s *Service) OutcomeData(ctx context.Context, id int64) (*OutcomeData, error) {
	i, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.outcomeData(ctx, i)
}

func clearOutcome(i *Intervention) {
	i.Status = StatusPending
	i.OutcomeAt = nil
	i.OutcomeBy = nil
	i.Origin = nil
	i.Destiny = nil
	i.EconomyDays = nil
	i.DateBaseEconomy = nil
	i.DateEndEconomy = nil
	if i.EconomyType == nil || *i.EconomyType != EconomyCustom {
		i.EconomyDayValue = nil
	}
}

// SetOutcome records the pharmacist's outcome. Reopening (s) clears the
// outcome and its economy. Economy is only computed for accepted
// interventions.
func (s *Service) SetOutcome(ctx context.Context, id int64, req *OutcomeRequest, userID int64) (*Intervention, error) {
	if !validOutcomes[req.Outcome] {
		return nil, api.InvalidParams("invalid outcome")
	}
	i, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Outcome == OutcomeReopen {
		clearOutcome(i)
		if err := s.repo.Update(ctx, i); err != nil {
			return nil, err
		}
		metrics.InterventionsTotal.WithLabelValues(StatusPending).Inc()
		return i, nil
	}
	if i.Status != StatusPending {
		return nil, api.BusinessRule("intervention already has an outcome, reopen it first")
	}

	clearOutcome(i)
	if req.Outcome == StatusAccepted && i.EconomyType != nil && !i.PatientLevel() {
		if err := s.applyEconomy(ctx, i, req); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	i.Status = req.Outcome
	i.OutcomeAt = &now
	i.OutcomeBy = &userID
	if err := s.repo.Update(ctx, i); err != nil {
		return nil, err
	}
	metrics.InterventionsTotal.WithLabelValues(req.Outcome).Inc()
	return i, nil
}

func (s *Service) applyEconomy(ctx context.Context, i *Intervention, req *OutcomeRequest) error {
	kind := *i.EconomyType
	if req.IDPrescriptionDrugDestiny != nil {
		i.IDPrescriptionDrugDestiny = req.IDPrescriptionDrugDestiny
	}
	if req.EconomyDayValue != nil {
		i.EconomyDayValue = req.EconomyDayValue
	}

	data, err := s.outcomeData(ctx, i)
	if err != nil {
		return err
	}
	if kind == EconomySubstitution && data.Destiny == nil {
		return api.InvalidParams("idPrescriptionDrugDestiny must be one of the candidate lines")
	}

	var originCost float64
	if data.Origin.DailyCost != nil {
		originCost = *data.Origin.DailyCost
	} else if kind != EconomyCustom {
		return api.BusinessRule("origin drug has no price configured")
	}
	var destinyCost *float64
	if data.Destiny != nil {
		destinyCost = data.Destiny.DailyCost
		if destinyCost == nil && kind == EconomySubstitution {
			return api.BusinessRule("destiny drug has no price configured")
		}
	}
	value, err := EconomyDayValue(kind, originCost, destinyCost, i.EconomyDayValue)
	if err != nil {
		return api.InvalidParams(err.Error())
	}

	base := i.CreatedAt
	days, err := EconomyDays(base, req.DateEndEconomy)
	if err != nil {
		return api.InvalidParams(err.Error())
	}
	i.EconomyDayValue = &value
	i.EconomyDays = days
	i.DateBaseEconomy = &base
	i.DateEndEconomy = req.DateEndEconomy
	i.Origin = data.Origin
	i.Destiny = data.Destiny
	return nil
}

// Delete marks the intervention deleted. It stays in the table with status 0.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.SetStatus(ctx, id, StatusDeleted); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return api.NotFound("intervention not found")
		}
		return err
	}
	metrics.InterventionsTotal.WithLabelValues(StatusDeleted).Inc()
	return nil
}
