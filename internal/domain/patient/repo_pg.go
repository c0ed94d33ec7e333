package patient

import (
	"context"
	"fmt"

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

const patientCols = `admission_number, id_patient, id_hospital, birthdate, gender, skin_color,
	weight, weight_date, height, dialysis, tube, alert_text, admission_date, discharge_date,
	observation, updated_at, updated_by`

func (r *repoPG) Get(ctx context.Context, admission int64) (*Patient, error) {
	var p Patient
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE admission_number = $1`, admission).Scan(
		&p.AdmissionNumber, &p.IDPatient, &p.IDHospital, &p.Birthdate, &p.Gender, &p.SkinColor,
		&p.Weight, &p.WeightDate, &p.Height, &p.Dialysis, &p.Tube, &p.AlertText, &p.AdmissionDate,
		&p.DischargeDate, &p.Observation, &p.UpdatedAt, &p.UpdatedBy)
	if err != nil {
		return nil, fmt.Errorf("get patient %d: %w", admission, err)
	}
	return &p, nil
}

func (r *repoPG) Upsert(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient (`+patientCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,NOW(),$16)
		ON CONFLICT (admission_number) DO UPDATE SET
			id_patient=EXCLUDED.id_patient, id_hospital=EXCLUDED.id_hospital,
			birthdate=EXCLUDED.birthdate, gender=EXCLUDED.gender, skin_color=EXCLUDED.skin_color,
			weight=EXCLUDED.weight, weight_date=EXCLUDED.weight_date, height=EXCLUDED.height,
			dialysis=EXCLUDED.dialysis, tube=EXCLUDED.tube, alert_text=EXCLUDED.alert_text,
			admission_date=EXCLUDED.admission_date, discharge_date=EXCLUDED.discharge_date,
			observation=EXCLUDED.observation, updated_at=NOW(), updated_by=EXCLUDED.updated_by`,
		p.AdmissionNumber, p.IDPatient, p.IDHospital, p.Birthdate, p.Gender, p.SkinColor,
		p.Weight, p.WeightDate, p.Height, p.Dialysis, p.Tube, p.AlertText, p.AdmissionDate,
		p.DischargeDate, p.Observation, p.UpdatedBy)
	if err != nil {
		return fmt.Errorf("upsert patient: %w", err)
	}
	return nil
}

func (r *repoPG) AddWeight(ctx context.Context, h *WeightHistory) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO weight_history (admission_number, weight, height, date, created_by)
		VALUES ($1,$2,$3,$4,$5)`,
		h.AdmissionNumber, h.Weight, h.Height, h.Date, h.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert weight history: %w", err)
	}
	return nil
}

func (r *repoPG) WeightHistory(ctx context.Context, admission int64) ([]*WeightHistory, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT admission_number, weight, height, date, created_by
		FROM weight_history WHERE admission_number = $1 ORDER BY date DESC`, admission)
	if err != nil {
		return nil, fmt.Errorf("list weight history: %w", err)
	}
	defer rows.Close()
	var items []*WeightHistory
	for rows.Next() {
		var h WeightHistory
		if err := rows.Scan(&h.AdmissionNumber, &h.Weight, &h.Height, &h.Date, &h.CreatedBy); err != nil {
			return nil, err
		}
		items = append(items, &h)
	}
	return items, rows.Err()
}

func (r *repoPG) Allergies(ctx context.Context, admission int64) ([]*Allergy, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT a.admission_number, a.id_drug, a.sctid, a.description, a.active, d.name
		FROM allergy a LEFT JOIN drug d ON d.id = a.id_drug
		WHERE a.admission_number = $1 AND a.active
		ORDER BY a.description`, admission)
	if err != nil {
		return nil, fmt.Errorf("list allergies: %w", err)
	}
	defer rows.Close()
	var items []*Allergy
	for rows.Next() {
		var a Allergy
		if err := rows.Scan(&a.AdmissionNumber, &a.IDDrug, &a.SCTID, &a.Description, &a.Active, &a.DrugName); err != nil {
			return nil, err
		}
		items = append(items, &a)
	}
	return items, rows.Err()
}

// ReplaceAllergies marks the current allergies inactive and inserts the new set.
func (r *repoPG) ReplaceAllergies(ctx context.Context, admission int64, allergies []*Allergy) error {
	q := r.conn(ctx)
	if _, err := q.Exec(ctx, `UPDATE allergy SET active = false WHERE admission_number = $1`, admission); err != nil {
		return fmt.Errorf("deactivate allergies: %w", err)
	}
	for _, a := range allergies {
		if _, err := q.Exec(ctx, `
			INSERT INTO allergy (admission_number, id_drug, sctid, description, active)
			VALUES ($1,$2,$3,$4,true)`, admission, a.IDDrug, a.SCTID, a.Description); err != nil {
			return fmt.Errorf("insert allergy: %w", err)
		}
	}
	return nil
}
