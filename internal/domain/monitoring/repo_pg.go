package monitoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthwatch/healthwatch/internal/platform/db"
)

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}

// -- Patients --

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.pool)
}

const patientCols = `id, name, COALESCE(age, 0), COALESCE(address, ''),
	COALESCE(device_name, ''), COALESCE(device_status, ''), COALESCE(device_battery, ''),
	COALESCE(caregiver_name, ''), COALESCE(caregiver_relationship, ''),
	COALESCE(caregiver_phone, ''), COALESCE(caregiver_email, ''), current_state`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Age, &p.Address,
		&p.DeviceName, &p.DeviceStatus, &p.DeviceBattery,
		&p.CaregiverName, &p.CaregiverRelationship, &p.CaregiverPhone, &p.CaregiverEmail,
		&p.CurrentState)
	if err != nil {
		return nil, notFound(err, "patient")
	}
	return &p, nil
}

func (r *patientRepoPG) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *patientRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1 FOR UPDATE`, id))
}

func (r *patientRepoPG) UpdateState(ctx context.Context, id uuid.UUID, state State) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE patient SET current_state = $2, updated_at = NOW() WHERE id = $1`, id, string(state))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("patient: %w", ErrNotFound)
	}
	return nil
}

func (r *patientRepoPG) CountWithCaregiver(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patient WHERE caregiver_name IS NOT NULL AND caregiver_name <> ''`).Scan(&n)
	return n, err
}

// -- Vitals and trend --

type vitalsRepoPG struct{ pool *pgxpool.Pool }

func NewVitalsRepoPG(pool *pgxpool.Pool) VitalsRepository {
	return &vitalsRepoPG{pool: pool}
}

func (r *vitalsRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.pool)
}

func (r *vitalsRepoPG) Get(ctx context.Context, patientID uuid.UUID, state State) (*VitalsSnapshot, error) {
	var v VitalsSnapshot
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, patient_id, state, hr, sleep_hours, steps, fatigue, stability_score, status,
			bp_sys, bp_dia, resting_hr, activity_min, last_updated
		FROM vitals WHERE patient_id = $1 AND state = $2`, patientID, string(state)).
		Scan(&v.ID, &v.PatientID, &v.State, &v.HR, &v.SleepHours, &v.Steps, &v.Fatigue,
			&v.StabilityScore, &v.Status, &v.BPSys, &v.BPDia, &v.RestingHR, &v.ActivityMin, &v.LastUpdated)
	if err != nil {
		return nil, notFound(err, "vitals")
	}
	return &v, nil
}

func (r *vitalsRepoPG) StampLastUpdated(ctx context.Context, patientID uuid.UUID, state State, at time.Time) error {
	// GREATEST skips NULL, so the first stamp always lands.
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE vitals SET last_updated = GREATEST(last_updated, $3::timestamptz)
		WHERE patient_id = $1 AND state = $2`, patientID, string(state), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("vitals: %w", ErrNotFound)
	}
	return nil
}

func (r *vitalsRepoPG) ListTrend(ctx context.Context, patientID uuid.UUID, state State) ([]TrendPoint, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT day_label, score, sort_order FROM trend_score
		WHERE patient_id = $1 AND state = $2 ORDER BY sort_order`, patientID, string(state))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []TrendPoint{}
	for rows.Next() {
		var tp TrendPoint
		if err := rows.Scan(&tp.Name, &tp.Score, &tp.SortOrder); err != nil {
			return nil, err
		}
		items = append(items, tp)
	}
	return items, rows.Err()
}

// -- Metrics --

type metricsRepoPG struct{ pool *pgxpool.Pool }

func NewMetricsRepoPG(pool *pgxpool.Pool) MetricsRepository {
	return &metricsRepoPG{pool: pool}
}

func (r *metricsRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.pool)
}

func (r *metricsRepoPG) ListSamples(ctx context.Context, patientID uuid.UUID, period string) ([]MetricSample, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, period_type, label, sort_order, hr, resting_hr, bp_sys, bp_dia,
			steps, sleep, activity_min
		FROM health_metric WHERE patient_id = $1 AND period_type = $2 ORDER BY sort_order`,
		patientID, period)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []MetricSample{}
	for rows.Next() {
		var s MetricSample
		if err := rows.Scan(&s.ID, &s.PatientID, &s.PeriodType, &s.Label, &s.SortOrder,
			&s.HR, &s.RestingHR, &s.BPSys, &s.BPDia, &s.Steps, &s.Sleep, &s.ActivityMin); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *metricsRepoPG) GetSummary(ctx context.Context, patientID uuid.UUID, period string) (*PeriodSummary, error) {
	var s PeriodSummary
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT hr_current, hr_resting, hr_baseline, sleep_total, sleep_baseline, steps,
			step_change, bp_sys, bp_dia, activity_min
		FROM period_summary WHERE patient_id = $1 AND period_type = $2`, patientID, period).
		Scan(&s.HRCurrent, &s.HRResting, &s.HRBaseline, &s.SleepTotal, &s.SleepBaseline,
			&s.Steps, &s.StepChange, &s.BPSys, &s.BPDia, &s.ActivityMin)
	if err != nil {
		return nil, notFound(err, "period summary")
	}
	return &s, nil
}

// -- Insights --

type insightRepoPG struct{ pool *pgxpool.Pool }

func NewInsightRepoPG(pool *pgxpool.Pool) InsightRepository {
	return &insightRepoPG{pool: pool}
}

func (r *insightRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.pool)
}

func (r *insightRepoPG) Append(ctx context.Context, in *Insight) error {
	in.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO insight (id, patient_id, insight_text, state, source)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		in.ID, in.PatientID, in.Text, string(in.State), in.Source).Scan(&in.CreatedAt)
}

func (r *insightRepoPG) List(ctx context.Context, patientID uuid.UUID, state State, limit int) ([]Insight, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, insight_text, state, source, created_at
		FROM insight
		WHERE patient_id = $1 AND ($2 = '' OR state = $2)
		ORDER BY created_at DESC, id
		LIMIT $3`, patientID, string(state), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Insight{}
	for rows.Next() {
		var in Insight
		if err := rows.Scan(&in.ID, &in.PatientID, &in.Text, &in.State, &in.Source, &in.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, in)
	}
	return items, rows.Err()
}

func (r *insightRepoPG) CountByState(ctx context.Context, patientID uuid.UUID, state State) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM insight WHERE patient_id = $1 AND state = $2`, patientID, string(state)).Scan(&n)
	return n, err
}

// -- Seed --

type seedRepoPG struct{ pool *pgxpool.Pool }

func NewSeedRepoPG(pool *pgxpool.Pool) SeedStore {
	return &seedRepoPG{pool: pool}
}

func (r *seedRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.pool)
}

func (r *seedRepoPG) PatientExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM patient WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *seedRepoPG) InsertPatient(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient (id, name, age, address, device_name, device_status, device_battery,
			caregiver_name, caregiver_relationship, caregiver_phone, caregiver_email, current_state)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		p.ID, p.Name, p.Age, p.Address, p.DeviceName, p.DeviceStatus, p.DeviceBattery,
		p.CaregiverName, p.CaregiverRelationship, p.CaregiverPhone, p.CaregiverEmail, string(p.CurrentState))
	return err
}

func (r *seedRepoPG) InsertVitals(ctx context.Context, v *VitalsSnapshot) error {
	v.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO vitals (id, patient_id, state, hr, sleep_hours, steps, fatigue, stability_score,
			status, bp_sys, bp_dia, resting_hr, activity_min, last_updated)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		v.ID, v.PatientID, string(v.State), v.HR, v.SleepHours, v.Steps, v.Fatigue, v.StabilityScore,
		v.Status, v.BPSys, v.BPDia, v.RestingHR, v.ActivityMin, v.LastUpdated)
	return err
}

func (r *seedRepoPG) InsertTrendPoint(ctx context.Context, patientID uuid.UUID, state State, tp TrendPoint) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO trend_score (id, patient_id, state, day_label, score, sort_order)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		uuid.New(), patientID, string(state), tp.Name, tp.Score, tp.SortOrder)
	return err
}

func (r *seedRepoPG) InsertSample(ctx context.Context, s *MetricSample) error {
	s.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO health_metric (id, patient_id, period_type, label, sort_order, hr, resting_hr,
			bp_sys, bp_dia, steps, sleep, activity_min)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		s.ID, s.PatientID, s.PeriodType, s.Label, s.SortOrder, s.HR, s.RestingHR,
		s.BPSys, s.BPDia, s.Steps, s.Sleep, s.ActivityMin)
	return err
}

func (r *seedRepoPG) InsertSummary(ctx context.Context, patientID uuid.UUID, period string, sum *PeriodSummary) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO period_summary (id, patient_id, period_type, hr_current, hr_resting, hr_baseline,
			sleep_total, sleep_baseline, steps, step_change, bp_sys, bp_dia, activity_min)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		uuid.New(), patientID, period, sum.HRCurrent, sum.HRResting, sum.HRBaseline,
		sum.SleepTotal, sum.SleepBaseline, sum.Steps, sum.StepChange, sum.BPSys, sum.BPDia, sum.ActivityMin)
	return err
}
