package alert

import (
	"fmt"
	"sort"
	"strings"

	"github.com/clinrx/clinrx/internal/domain/substance"
)

type pairKey struct{ a, b int64 }

func keyOf(a, b int64) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

type collector struct {
	res *Result
}

func newCollector() *collector {
	return &collector{res: &Result{
		Alerts: make(map[int64][]Alert),
		Stats:  Stats{ByType: make(map[string]int), ByLevel: make(map[string]int)},
	}}
}

func (c *collector) add(a Alert) {
	c.res.Alerts[a.IDLine] = append(c.res.Alerts[a.IDLine], a)
	c.res.Stats.Total++
	c.res.Stats.ByType[a.Type]++
	c.res.Stats.ByLevel[a.Level]++
	c.res.Stats.Level = HigherLevel(c.res.Stats.Level, a.Level)
}

func (c *collector) pair(typ, level, text string, x, y *Item) {
	xid, yid := x.ID, y.ID
	c.add(Alert{Type: typ, Level: level, Text: text, IDLine: xid, Related: &yid})
	c.add(Alert{Type: typ, Level: level, Text: text, IDLine: yid, Related: &xid})
}

// Run computes every alert for the items. Suspended lines and whitelisted
// drugs raise nothing and take no part in pair checks.
func Run(items []*Item, p Patient, relations []*substance.Relation) *Result {
	c := newCollector()

	active := make([]*Item, 0, len(items))
	for _, it := range items {
		if it.active() {
			active = append(active, it)
		}
	}

	for _, it := range active {
		drugAlerts(c, it, p)
	}
	totalDose(c, active, p)

	byPair := make(map[pairKey][]*substance.Relation)
	for _, r := range relations {
		if r == nil || !r.Active {
			continue
		}
		k := keyOf(r.SctidA, r.SctidB)
		byPair[k] = append(byPair[k], r)
	}

	for i := 0; i < len(active); i++ {
		for j := i + 1; j < len(active); j++ {
			pairAlerts(c, active[i], active[j], byPair)
		}
	}
	crossReactivity(c, active, p, byPair)

	return c.res
}

func name(it *Item) string {
	if it.DrugName != "" {
		return it.DrugName
	}
	return fmt.Sprintf("drug %d", it.IDDrug)
}

// maxDoseFor returns the daily limit, scaled by weight when the drug is
// dosed per kg. It reports false when no limit applies.
func maxDoseFor(it *Item, p Patient) (float64, bool) {
	a := it.Attributes
	if a == nil || a.MaxDose == nil {
		return 0, false
	}
	if a.UseWeight {
		if p.Weight == nil || *p.Weight <= 0 {
			return 0, false
		}
		return *a.MaxDose * *p.Weight, true
	}
	return *a.MaxDose, true
}

func drugAlerts(c *collector, it *Item, p Patient) {
	if p.AllergyDrugs[it.IDDrug] || (it.SCTID != nil && p.AllergySubstances[*it.SCTID]) {
		c.add(Alert{Type: TypeAllergy, Level: LevelHigh, IDLine: it.ID,
			Text: "Patient is allergic to " + name(it)})
	}

	a := it.Attributes
	if a == nil {
		return
	}

	if limit, ok := maxDoseFor(it, p); ok {
		if daily := it.dailyDose(); daily != nil && *daily > limit {
			c.add(Alert{Type: TypeMaxDose, Level: LevelHigh, IDLine: it.ID,
				Text: fmt.Sprintf("Daily dose %.2f above the maximum of %.2f", *daily, limit)})
		}
	}

	if a.Kidney != nil {
		switch {
		case p.Dialysis != "":
			c.add(Alert{Type: TypeKidney, Level: LevelMedium, IDLine: it.ID,
				Text: "Patient on dialysis: review dose of " + name(it)})
		case p.Clearance != nil && *p.Clearance < *a.Kidney:
			c.add(Alert{Type: TypeKidney, Level: LevelMedium, IDLine: it.ID,
				Text: fmt.Sprintf("Renal clearance %.1f below %.1f mL/min", *p.Clearance, *a.Kidney)})
		}
	}

	if a.Liver != nil {
		if (p.TGO != nil && *p.TGO > *a.Liver) || (p.TGP != nil && *p.TGP > *a.Liver) {
			c.add(Alert{Type: TypeLiver, Level: LevelMedium, IDLine: it.ID,
				Text: fmt.Sprintf("Liver enzymes above %.0f U/L", *a.Liver)})
		}
	}

	if a.Platelets != nil && p.Platelets != nil && *p.Platelets < *a.Platelets {
		c.add(Alert{Type: TypePlatelets, Level: LevelHigh, IDLine: it.ID,
			Text: fmt.Sprintf("Platelets %.0f below %.0f", *p.Platelets, *a.Platelets)})
	}

	if a.Elderly && p.Age != nil && *p.Age >= ElderlyAge {
		c.add(Alert{Type: TypeElderly, Level: LevelLow, IDLine: it.ID,
			Text: name(it) + " is potentially inappropriate for elderly patients"})
	}

	if a.Tube && p.Tube {
		c.add(Alert{Type: TypeTube, Level: LevelMedium, IDLine: it.ID,
			Text: name(it) + " must not be given through a feeding tube"})
	}

	if a.MaxTime != nil && it.Period > *a.MaxTime {
		c.add(Alert{Type: TypeMaxTime, Level: LevelLow, IDLine: it.ID,
			Text: fmt.Sprintf("In use for %d days, limit is %d", it.Period, *a.MaxTime)})
	}
}

// totalDose flags drugs prescribed on several lines whose summed daily dose
// exceeds the limit.
func totalDose(c *collector, items []*Item, p Patient) {
	byDrug := make(map[int64][]*Item)
	var order []int64
	for _, it := range items {
		if _, ok := byDrug[it.IDDrug]; !ok {
			order = append(order, it.IDDrug)
		}
		byDrug[it.IDDrug] = append(byDrug[it.IDDrug], it)
	}
	for _, id := range order {
		lines := byDrug[id]
		if len(lines) < 2 {
			continue
		}
		limit, ok := maxDoseFor(lines[0], p)
		if !ok {
			continue
		}
		var total float64
		for _, it := range lines {
			if d := it.dailyDose(); d != nil {
				total += *d
			}
		}
		if total <= limit {
			continue
		}
		for _, it := range lines {
			c.add(Alert{Type: TypeMaxDoseTotal, Level: LevelHigh, IDLine: it.ID,
				Text: fmt.Sprintf("Total daily dose %.2f above the maximum of %.2f", total, limit)})
		}
	}
}

func relationLevel(r *substance.Relation) string {
	if r.Level == "" {
		return LevelLow
	}
	return r.Level
}

func sameGroup(x, y *Item) bool {
	return x.SolutionGroup != nil && y.SolutionGroup != nil && *x.SolutionGroup == *y.SolutionGroup
}

// pairAlerts raises at most one alert per kind for the pair.
func pairAlerts(c *collector, x, y *Item, byPair map[pairKey][]*substance.Relation) {
	raised := make(map[string]bool)
	raise := func(typ, level, text string) {
		if raised[typ] {
			return
		}
		raised[typ] = true
		c.pair(typ, level, text, x, y)
	}

	bothSubstances := x.SCTID != nil && y.SCTID != nil
	dupAllowed := !x.skipsDuplicity() && !y.skipsDuplicity()

	if bothSubstances && *x.SCTID == *y.SCTID {
		if dupAllowed {
			raise(TypeDuplicity, LevelMedium, "Duplicity: "+name(x)+" and "+name(y)+" share the same substance")
		}
		return
	}
	if bothSubstances && dupAllowed && x.IDClass != nil && y.IDClass != nil &&
		strings.EqualFold(*x.IDClass, *y.IDClass) {
		raise(TypeTherapeuticDup, LevelLow, "Therapeutic duplicity: "+name(x)+" and "+name(y)+" belong to the same class")
	}
	if !bothSubstances {
		return
	}

	for _, r := range byPair[keyOf(*x.SCTID, *y.SCTID)] {
		level := relationLevel(r)
		switch r.Kind {
		case substance.KindInteraction:
			raise(TypeInteraction, level, r.Text)
		case substance.KindYSite:
			if x.Intravenous && y.Intravenous && !sameGroup(x, y) {
				raise(TypeYSite, level, r.Text)
			}
		case substance.KindSameSolution:
			if sameGroup(x, y) {
				raise(TypeSameSolution, level, r.Text)
			}
		}
	}
}

// crossReactivity raises at most one rx alert per line whose substance cross
// reacts with one the patient is allergic to.
func crossReactivity(c *collector, items []*Item, p Patient, byPair map[pairKey][]*substance.Relation) {
	if len(p.AllergySubstances) == 0 {
		return
	}
	allergens := make([]int64, 0, len(p.AllergySubstances))
	for id, ok := range p.AllergySubstances {
		if ok {
			allergens = append(allergens, id)
		}
	}
	sort.Slice(allergens, func(i, j int) bool { return allergens[i] < allergens[j] })

	for _, it := range items {
		if it.SCTID == nil {
			continue
		}
		if r := crossRelation(*it.SCTID, allergens, byPair); r != nil {
			c.add(Alert{Type: TypeCrossReactivity, Level: relationLevel(r), IDLine: it.ID, Text: r.Text})
		}
	}
}

func crossRelation(sctid int64, allergens []int64, byPair map[pairKey][]*substance.Relation) *substance.Relation {
	for _, allergen := range allergens {
		if allergen == sctid {
			continue
		}
		for _, r := range byPair[keyOf(sctid, allergen)] {
			if r.Kind == substance.KindCrossReactivity {
				return r
			}
		}
	}
	return nil
}
