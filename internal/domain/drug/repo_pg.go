package drug

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinrx/clinrx/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

// where accumulates AND-ed conditions with positional arguments.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, arg interface{}) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(w.args))))
}

func (w *where) raw(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *where) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func (w *where) page(limit, offset int) (string, []interface{}) {
	args := append(append([]interface{}{}, w.args...), limit, offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Drug, int, error) {
	w := &where{}
	if f.IDSegment != nil {
		w.add(`EXISTS (SELECT 1 FROM drug_attributes a WHERE a.id_drug = d.id AND a.id_segment = ?)`, *f.IDSegment)
	}
	if f.Name != "" {
		w.add(`d.name ILIKE ?`, "%"+f.Name+"%")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM drug d`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count drugs: %w", err)
	}

	page, args := w.page(limit, offset)
	rows, err := r.conn(ctx).Query(ctx, `SELECT d.id, d.name, d.sctid, d.id_hospital FROM drug d`+w.sql()+` ORDER BY d.name`+page, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list drugs: %w", err)
	}
	defer rows.Close()
	var items []*Drug
	for rows.Next() {
		var d Drug
		if err := rows.Scan(&d.ID, &d.Name, &d.SCTID, &d.IDHospital); err != nil {
			return nil, 0, err
		}
		items = append(items, &d)
	}
	return items, total, rows.Err()
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Drug, error) {
	var d Drug
	err := r.conn(ctx).QueryRow(ctx, `SELECT id, name, sctid, id_hospital FROM drug WHERE id = $1`, id).
		Scan(&d.ID, &d.Name, &d.SCTID, &d.IDHospital)
	if err != nil {
		return nil, fmt.Errorf("get drug %d: %w", id, err)
	}
	return &d, nil
}

const unitQuery = `
	SELECT du.id_drug, du.id_unit, COALESCE(u.description, du.id_unit), du.factor, du.is_default
	FROM drug_unit du LEFT JOIN unit u ON u.id = du.id_unit`

func scanUnits(rows pgx.Rows) ([]*DrugUnit, error) {
	defer rows.Close()
	var items []*DrugUnit
	for rows.Next() {
		var u DrugUnit
		if err := rows.Scan(&u.IDDrug, &u.IDUnit, &u.Description, &u.Factor, &u.Default); err != nil {
			return nil, err
		}
		items = append(items, &u)
	}
	return items, rows.Err()
}

func (r *repoPG) Units(ctx context.Context, idDrug int64) ([]*DrugUnit, error) {
	rows, err := r.conn(ctx).Query(ctx, unitQuery+` WHERE du.id_drug = $1 ORDER BY du.is_default DESC, du.id_unit`, idDrug)
	if err != nil {
		return nil, fmt.Errorf("list drug units: %w", err)
	}
	return scanUnits(rows)
}

func (r *repoPG) UnitsFor(ctx context.Context, ids []int64) (map[int64][]*DrugUnit, error) {
	out := make(map[int64][]*DrugUnit, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.conn(ctx).Query(ctx, unitQuery+` WHERE du.id_drug = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("list drug units: %w", err)
	}
	units, err := scanUnits(rows)
	if err != nil {
		return nil, err
	}
	for _, u := range units {
		out[u.IDDrug] = append(out[u.IDDrug], u)
	}
	return out, nil
}

func (r *repoPG) UpdateUnitFactor(ctx context.Context, idDrug int64, idUnit string, factor float64) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE drug_unit SET factor = $3 WHERE id_drug = $1 AND id_unit = $2`, idDrug, idUnit, factor)
	if err != nil {
		return fmt.Errorf("update unit factor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const attrCols = `a.id_drug, a.id_segment, a.antimicro, a.mav, a.controlled, a.not_default, a.elderly,
	a.tube, a.whitelist, a.use_weight, a.fasting, a.max_dose, a.kidney, a.liver, a.platelets,
	a.max_time, a.division, a.price, a.id_measure_unit_price, a.id_measure_unit, a.updated_at, a.updated_by`

func attrDest(a *Attributes) []interface{} {
	return []interface{}{&a.IDDrug, &a.IDSegment, &a.Antimicro, &a.MAV, &a.Controlled, &a.NotDefault,
		&a.Elderly, &a.Tube, &a.WhiteList, &a.UseWeight, &a.Fasting, &a.MaxDose, &a.Kidney, &a.Liver,
		&a.Platelets, &a.MaxTime, &a.Division, &a.Price, &a.IDMeasureUnitPrice, &a.IDMeasureUnit,
		&a.UpdatedAt, &a.UpdatedBy}
}

func (r *repoPG) Attributes(ctx context.Context, idDrug int64, idSegment int) (*Attributes, error) {
	var a Attributes
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+attrCols+` FROM drug_attributes a WHERE a.id_drug = $1 AND a.id_segment = $2`,
		idDrug, idSegment).Scan(attrDest(&a)...)
	if err != nil {
		return nil, fmt.Errorf("get drug attributes: %w", err)
	}
	return &a, nil
}

func (r *repoPG) AttributesFor(ctx context.Context, ids []int64, idSegment int) (map[int64]*Attributes, error) {
	out := make(map[int64]*Attributes, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+attrCols+` FROM drug_attributes a WHERE a.id_drug = ANY($1) AND a.id_segment = $2`,
		ids, idSegment)
	if err != nil {
		return nil, fmt.Errorf("list drug attributes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a Attributes
		if err := rows.Scan(attrDest(&a)...); err != nil {
			return nil, err
		}
		out[a.IDDrug] = &a
	}
	return out, rows.Err()
}

func (r *repoPG) UpsertAttributes(ctx context.Context, a *Attributes) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO drug_attributes (id_drug, id_segment, antimicro, mav, controlled, not_default, elderly,
			tube, whitelist, use_weight, fasting, max_dose, kidney, liver, platelets, max_time, division,
			price, id_measure_unit_price, id_measure_unit, updated_at, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,NOW(),$21)
		ON CONFLICT (id_drug, id_segment) DO UPDATE SET
			antimicro=EXCLUDED.antimicro, mav=EXCLUDED.mav, controlled=EXCLUDED.controlled,
			not_default=EXCLUDED.not_default, elderly=EXCLUDED.elderly, tube=EXCLUDED.tube,
			whitelist=EXCLUDED.whitelist, use_weight=EXCLUDED.use_weight, fasting=EXCLUDED.fasting,
			max_dose=EXCLUDED.max_dose, kidney=EXCLUDED.kidney, liver=EXCLUDED.liver,
			platelets=EXCLUDED.platelets, max_time=EXCLUDED.max_time, division=EXCLUDED.division,
			price=EXCLUDED.price, id_measure_unit_price=EXCLUDED.id_measure_unit_price,
			id_measure_unit=EXCLUDED.id_measure_unit, updated_at=NOW(), updated_by=EXCLUDED.updated_by`,
		a.IDDrug, a.IDSegment, a.Antimicro, a.MAV, a.Controlled, a.NotDefault, a.Elderly,
		a.Tube, a.WhiteList, a.UseWeight, a.Fasting, a.MaxDose, a.Kidney, a.Liver, a.Platelets,
		a.MaxTime, a.Division, a.Price, a.IDMeasureUnitPrice, a.IDMeasureUnit, a.UpdatedBy)
	if err != nil {
		return fmt.Errorf("upsert drug attributes: %w", err)
	}
	return nil
}

func flagCond(w *where, flag *bool, column string) {
	if flag == nil {
		return
	}
	if *flag {
		w.raw(column + ` IS NOT NULL`)
	} else {
		w.raw(column + ` IS NULL`)
	}
}

func (r *repoPG) AttributesList(ctx context.Context, f AttributesFilter, limit, offset int) ([]*AttributesRow, int, error) {
	w := &where{}
	if f.IDSegment != nil {
		w.add(`a.id_segment = ?`, *f.IDSegment)
	}
	if f.Name != "" {
		w.add(`d.name ILIKE ?`, "%"+f.Name+"%")
	}
	flagCond(w, f.HasPrice, "a.price")
	flagCond(w, f.HasMaxDose, "a.max_dose")
	flagCond(w, f.HasSubstance, "d.sctid")

	from := ` FROM drug_attributes a
		JOIN drug d ON d.id = a.id_drug
		JOIN segment s ON s.id = a.id_segment
		LEFT JOIN public.substance sub ON sub.id = d.sctid`

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+from+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count drug attributes: %w", err)
	}

	page, args := w.page(limit, offset)
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+attrCols+`, d.name, d.sctid, sub.name, s.description`+
		from+w.sql()+` ORDER BY d.name, s.description`+page, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list drug attributes: %w", err)
	}
	defer rows.Close()
	var items []*AttributesRow
	for rows.Next() {
		var row AttributesRow
		dest := append(attrDest(&row.Attributes), &row.Name, &row.SCTID, &row.SubstanceName, &row.Segment)
		if err := rows.Scan(dest...); err != nil {
			return nil, 0, err
		}
		items = append(items, &row)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Frequencies(ctx context.Context) (map[string]*Frequency, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id, description, daily_frequency FROM frequency`)
	if err != nil {
		return nil, fmt.Errorf("list frequencies: %w", err)
	}
	defer rows.Close()
	out := map[string]*Frequency{}
	for rows.Next() {
		var f Frequency
		if err := rows.Scan(&f.ID, &f.Description, &f.DailyFrequency); err != nil {
			return nil, err
		}
		out[f.ID] = &f
	}
	return out, rows.Err()
}
