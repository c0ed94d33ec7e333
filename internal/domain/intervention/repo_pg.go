package intervention

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

const interventionCols = `id, id_prescription_drug, id_prescription, admission_number, reasons, error, cost,
	interactions, observation, status, economy_type, economy_day_value, economy_days, date_base_economy,
	date_end_economy, id_prescription_drug_destiny, origin, destiny, outcome_at, outcome_by,
	created_at, created_by`

func scanIntervention(row pgx.Row) (*Intervention, error) {
	var i Intervention
	err := row.Scan(&i.ID, &i.IDPrescriptionDrug, &i.IDPrescription, &i.AdmissionNumber, &i.Reasons,
		&i.Error, &i.Cost, &i.Interactions, &i.Observation, &i.Status, &i.EconomyType,
		&i.EconomyDayValue, &i.EconomyDays, &i.DateBaseEconomy, &i.DateEndEconomy,
		&i.IDPrescriptionDrugDestiny, &i.Origin, &i.Destiny, &i.OutcomeAt, &i.OutcomeBy,
		&i.CreatedAt, &i.CreatedBy)
	return &i, err
}

func (r *repoPG) Get(ctx context.Context, id int64) (*Intervention, error) {
	i, err := scanIntervention(r.conn(ctx).QueryRow(ctx,
		`SELECT `+interventionCols+` FROM intervention WHERE id = $1 AND status <> '0'`, id))
	if err != nil {
		return nil, fmt.Errorf("get intervention %d: %w", id, err)
	}
	return i, nil
}

func (r *repoPG) PendingForLine(ctx context.Context, lineID, admission int64) (*Intervention, error) {
	q := `SELECT ` + interventionCols + ` FROM intervention
		WHERE id_prescription_drug = $1 AND status = 's'`
	args := []interface{}{lineID}
	if lineID == 0 {
		q += ` AND admission_number = $2`
		args = append(args, admission)
	}
	i, err := scanIntervention(r.conn(ctx).QueryRow(ctx, q+` ORDER BY id DESC LIMIT 1`, args...))
	if err != nil {
		return nil, fmt.Errorf("pending intervention for line %d: %w", lineID, err)
	}
	return i, nil
}

func (r *repoPG) Insert(ctx context.Context, i *Intervention) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO intervention (id_prescription_drug, id_prescription, admission_number, reasons,
			error, cost, interactions, observation, status, economy_type, economy_day_value,
			id_prescription_drug_destiny, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at`,
		i.IDPrescriptionDrug, i.IDPrescription, i.AdmissionNumber, i.Reasons, i.Error, i.Cost,
		i.Interactions, i.Observation, i.Status, i.EconomyType, i.EconomyDayValue,
		i.IDPrescriptionDrugDestiny, i.CreatedBy,
	).Scan(&i.ID, &i.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert intervention: %w", err)
	}
	return nil
}

func (r *repoPG) Update(ctx context.Context, i *Intervention) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE intervention SET reasons = $2, error = $3, cost = $4, interactions = $5,
			observation = $6, status = $7, economy_type = $8, economy_day_value = $9,
			economy_days = $10, date_base_economy = $11, date_end_economy = $12,
			id_prescription_drug_destiny = $13, origin = $14, destiny = $15,
			outcome_at = $16, outcome_by = $17
		WHERE id = $1`,
		i.ID, i.Reasons, i.Error, i.Cost, i.Interactions, i.Observation, i.Status,
		i.EconomyType, i.EconomyDayValue, i.EconomyDays, i.DateBaseEconomy, i.DateEndEconomy,
		i.IDPrescriptionDrugDestiny, i.Origin, i.Destiny, i.OutcomeAt, i.OutcomeBy,
	)
	if err != nil {
		return fmt.Errorf("update intervention %d: %w", i.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update intervention %d: %w", i.ID, pgx.ErrNoRows)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Intervention, int, error) {
	conds := []string{"status <> '0'"}
	var args []interface{}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.AdmissionNumber != nil {
		add("admission_number = $%d", *f.AdmissionNumber)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at < $%d", *f.To)
	}
	if len(f.Statuses) > 0 {
		add("status = ANY($%d)", f.Statuses)
	}
	where := " WHERE " + strings.Join(conds, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM intervention`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count interventions: %w", err)
	}

	q := fmt.Sprintf(`SELECT %s FROM intervention%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		interventionCols, where, len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list interventions: %w", err)
	}
	defer rows.Close()

	var out []*Intervention
	for rows.Next() {
		i, err := scanIntervention(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan intervention: %w", err)
		}
		out = append(out, i)
	}
	return out, total, rows.Err()
}

func (r *repoPG) Reasons(ctx context.Context) ([]*Reason, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, description, parent, suspension, substitution, active
		FROM intervention_reason ORDER BY COALESCE(parent, id), parent NULLS FIRST, description`)
	if err != nil {
		return nil, fmt.Errorf("list intervention reasons: %w", err)
	}
	defer rows.Close()

	var out []*Reason
	for rows.Next() {
		var re Reason
		if err := rows.Scan(&re.ID, &re.Description, &re.Parent, &re.Suspension, &re.Substitution, &re.Active); err != nil {
			return nil, fmt.Errorf("scan intervention reason: %w", err)
		}
		out = append(out, &re)
	}
	return out, rows.Err()
}

func (r *repoPG) SetStatus(ctx context.Context, id int64, status string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE intervention SET status = $2 WHERE id = $1 AND status <> '0'`, id, status)
	if err != nil {
		return fmt.Errorf("set intervention %d status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set intervention %d status: %w", id, pgx.ErrNoRows)
	}
	return nil
}
