package prescription

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinrx/clinrx/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
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

const prescriptionCols = `p.id, p.admission_number, p.id_hospital, p.id_segment, p.id_department, p.date,
	p.expire, p.status, p.agg, p.concilia, p.features, p.prescriber, p.updated_at, p.updated_by`

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.AdmissionNumber, &p.IDHospital, &p.IDSegment, &p.IDDepartment, &p.Date,
		&p.Expire, &p.Status, &p.Agg, &p.Concilia, &p.Features, &p.Prescriber, &p.UpdatedAt, &p.UpdatedBy)
	return &p, err
}

func (r *repoPG) Get(ctx context.Context, id int64) (*Prescription, error) {
	p, err := scanPrescription(r.conn(ctx).QueryRow(ctx,
		`SELECT `+prescriptionCols+` FROM prescription p WHERE p.id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get prescription %d: %w", id, err)
	}
	return p, nil
}

// Upsert keeps the review status and features of an existing prescription.
func (r *repoPG) Upsert(ctx context.Context, p *Prescription) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO prescription (id, admission_number, id_hospital, id_segment, id_department, date,
			expire, status, agg, concilia, features, prescriber, updated_at, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW(),$13)
		ON CONFLICT (id) DO UPDATE SET
			admission_number=EXCLUDED.admission_number, id_hospital=EXCLUDED.id_hospital,
			id_segment=EXCLUDED.id_segment, id_department=EXCLUDED.id_department,
			date=EXCLUDED.date, expire=EXCLUDED.expire, agg=EXCLUDED.agg,
			concilia=EXCLUDED.concilia, prescriber=EXCLUDED.prescriber,
			status=CASE WHEN EXCLUDED.agg THEN EXCLUDED.status ELSE prescription.status END,
			updated_at=NOW(), updated_by=EXCLUDED.updated_by`,
		p.ID, p.AdmissionNumber, p.IDHospital, p.IDSegment, p.IDDepartment, p.Date,
		p.Expire, p.Status, p.Agg, p.Concilia, p.Features, p.Prescriber, p.UpdatedBy)
	if err != nil {
		return fmt.Errorf("upsert prescription %d: %w", p.ID, err)
	}
	return nil
}

// UpsertLines keeps pharmacist notes and the checked flag of existing lines.
func (r *repoPG) UpsertLines(ctx context.Context, lines []*Line) error {
	if len(lines) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(`
			INSERT INTO prescription_drug (id, id_prescription, id_drug, dose, id_measure_unit, id_frequency,
				route, dose_interval, suspended_at, solution_group, source, period, notes, checked, status)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
			ON CONFLICT (id) DO UPDATE SET
				id_prescription=EXCLUDED.id_prescription, id_drug=EXCLUDED.id_drug, dose=EXCLUDED.dose,
				id_measure_unit=EXCLUDED.id_measure_unit, id_frequency=EXCLUDED.id_frequency,
				route=EXCLUDED.route, dose_interval=EXCLUDED.dose_interval, suspended_at=EXCLUDED.suspended_at,
				solution_group=EXCLUDED.solution_group, source=EXCLUDED.source, period=EXCLUDED.period,
				status=EXCLUDED.status`,
			l.ID, l.IDPrescription, l.IDDrug, l.Dose, l.IDMeasureUnit, l.IDFrequency,
			l.Route, l.Interval, l.SuspendedAt, l.SolutionGroup, l.Source, l.Period, l.Notes, l.Checked, l.Status)
	}
	br := r.conn(ctx).SendBatch(ctx, batch)
	defer br.Close()
	for range lines {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert prescription line: %w", err)
		}
	}
	return nil
}

const lineCols = `pd.id, pd.id_prescription, pd.id_drug, pd.dose, pd.id_measure_unit, pd.id_frequency,
	pd.route, pd.dose_interval, pd.suspended_at, pd.solution_group, pd.source, pd.period, pd.notes,
	pd.checked, pd.status, COALESCE(d.name, ''), d.sctid, s.id_class`

const lineFrom = ` FROM prescription_drug pd
	LEFT JOIN drug d ON d.id = pd.id_drug
	LEFT JOIN public.substance s ON s.id = d.sctid`

func scanLines(rows pgx.Rows) ([]*Line, error) {
	defer rows.Close()
	var items []*Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.IDPrescription, &l.IDDrug, &l.Dose, &l.IDMeasureUnit, &l.IDFrequency,
			&l.Route, &l.Interval, &l.SuspendedAt, &l.SolutionGroup, &l.Source, &l.Period, &l.Notes,
			&l.Checked, &l.Status, &l.DrugName, &l.SCTID, &l.IDClass); err != nil {
			return nil, fmt.Errorf("scan prescription line: %w", err)
		}
		items = append(items, &l)
	}
	return items, rows.Err()
}

func (r *repoPG) Lines(ctx context.Context, prescriptionIDs []int64) ([]*Line, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+lineCols+lineFrom+`
		WHERE pd.id_prescription = ANY($1)
		ORDER BY pd.source, pd.solution_group NULLS LAST, pd.id`, prescriptionIDs)
	if err != nil {
		return nil, fmt.Errorf("list prescription lines: %w", err)
	}
	return scanLines(rows)
}

func (r *repoPG) LineByID(ctx context.Context, id int64) (*Line, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+lineCols+lineFrom+` WHERE pd.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get prescription line %d: %w", id, err)
	}
	items, err := scanLines(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("get prescription line %d: %w", id, pgx.ErrNoRows)
	}
	return items[0], nil
}

func (r *repoPG) queryPrescriptions(ctx context.Context, sql string, args ...interface{}) ([]*Prescription, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list prescriptions: %w", err)
	}
	defer rows.Close()
	var items []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prescription: %w", err)
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *repoPG) SameDay(ctx context.Context, admission int64, day time.Time) ([]*Prescription, error) {
	return r.queryPrescriptions(ctx, `SELECT `+prescriptionCols+` FROM prescription p
		WHERE p.admission_number = $1 AND p.date::date = $2::date AND p.agg IS NOT TRUE
		ORDER BY p.id`, admission, day)
}

func (r *repoPG) UpdateFeatures(ctx context.Context, id int64, f *Features) error {
	if _, err := r.conn(ctx).Exec(ctx, `UPDATE prescription SET features = $2 WHERE id = $1`, id, f); err != nil {
		return fmt.Errorf("update features %d: %w", id, err)
	}
	return nil
}

func (r *repoPG) SetStatus(ctx context.Context, ids []int64, status string, userID int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescription SET status = $2, updated_at = NOW(), updated_by = $3
		WHERE id = ANY($1)`, ids, status, userID)
	if err != nil {
		return fmt.Errorf("set prescription status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	if _, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescription_drug SET checked = $2 WHERE id_prescription = ANY($1)`,
		ids, status == StatusChecked); err != nil {
		return fmt.Errorf("set line checked: %w", err)
	}
	return nil
}

func (r *repoPG) UpdateNotes(ctx context.Context, lineID int64, notes *string, userID int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescription_drug SET notes = $2, notes_updated_by = $3, notes_updated_at = NOW()
		WHERE id = $1`, lineID, notes, userID)
	if err != nil {
		return fmt.Errorf("update line notes %d: %w", lineID, err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

var orderClauses = map[string]string{
	OrderAlerts: `COALESCE((p.features->>'alertCount')::int, 0) DESC, p.date DESC`,
	OrderScore:  `COALESCE((p.features->>'scoreTotal')::int, 0) DESC, p.date DESC`,
	OrderDate:   `p.date DESC`,
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Prescription, int, error) {
	var conds []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(args))))
	}
	add("p.date::date = ?::date", f.Date)
	if f.IDSegment != nil {
		add("p.id_segment = ?", *f.IDSegment)
	}
	if len(f.Departments) > 0 {
		add("p.id_department = ANY(?)", f.Departments)
	}
	if f.Agg != nil {
		add("p.agg = ?", *f.Agg)
	}
	if f.Status != nil {
		add("p.status = ?", *f.Status)
	}
	where := " WHERE " + strings.Join(conds, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM prescription p`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count prescriptions: %w", err)
	}

	order, ok := orderClauses[f.Order]
	if !ok {
		order = orderClauses[OrderAlerts]
	}
	args = append(args, limit, offset)
	items, err := r.queryPrescriptions(ctx, `SELECT `+prescriptionCols+` FROM prescription p`+where+
		` ORDER BY `+order+fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func scanInterventions(rows pgx.Rows) ([]*InterventionInfo, error) {
	defer rows.Close()
	var items []*InterventionInfo
	for rows.Next() {
		var i InterventionInfo
		if err := rows.Scan(&i.ID, &i.IDPrescriptionDrug, &i.Status, &i.Reasons, &i.Observation); err != nil {
			return nil, fmt.Errorf("scan intervention: %w", err)
		}
		items = append(items, &i)
	}
	return items, rows.Err()
}

// InterventionsByLine returns the newest non deleted intervention of each line.
func (r *repoPG) InterventionsByLine(ctx context.Context, lineIDs []int64) (map[int64]*InterventionInfo, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT DISTINCT ON (id_prescription_drug) id, id_prescription_drug, status, reasons, observation
		FROM intervention
		WHERE id_prescription_drug = ANY($1) AND status <> '0'
		ORDER BY id_prescription_drug, created_at DESC`, lineIDs)
	if err != nil {
		return nil, fmt.Errorf("list line interventions: %w", err)
	}
	items, err := scanInterventions(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]*InterventionInfo, len(items))
	for _, i := range items {
		out[i.IDPrescriptionDrug] = i
	}
	return out, nil
}

func (r *repoPG) PatientInterventions(ctx context.Context, admission int64) ([]*InterventionInfo, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, id_prescription_drug, status, reasons, observation
		FROM intervention
		WHERE admission_number = $1 AND id_prescription_drug = 0 AND status <> '0'
		ORDER BY created_at DESC`, admission)
	if err != nil {
		return nil, fmt.Errorf("list patient interventions: %w", err)
	}
	return scanInterventions(rows)
}
