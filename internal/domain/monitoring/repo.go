package monitoring

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type PatientRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*Patient, error)
	// GetForUpdate locks the patient row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Patient, error)
	UpdateState(ctx context.Context, id uuid.UUID, state State) error
	CountWithCaregiver(ctx context.Context) (int, error)
}

type VitalsRepository interface {
	Get(ctx context.Context, patientID uuid.UUID, state State) (*VitalsSnapshot, error)
	// StampLastUpdated sets last_updated to at unless it already holds a later time.
	StampLastUpdated(ctx context.Context, patientID uuid.UUID, state State, at time.Time) error
	ListTrend(ctx context.Context, patientID uuid.UUID, state State) ([]TrendPoint, error)
}

type MetricsRepository interface {
	ListSamples(ctx context.Context, patientID uuid.UUID, period string) ([]MetricSample, error)
	GetSummary(ctx context.Context, patientID uuid.UUID, period string) (*PeriodSummary, error)
}

type InsightRepository interface {
	Append(ctx context.Context, in *Insight) error
	// List returns insights newest first. An empty state matches both.
	List(ctx context.Context, patientID uuid.UUID, state State, limit int) ([]Insight, error)
	CountByState(ctx context.Context, patientID uuid.UUID, state State) (int, error)
}

// SeedStore writes the initial dataset.
type SeedStore interface {
	PatientExists(ctx context.Context, id uuid.UUID) (bool, error)
	InsertPatient(ctx context.Context, p *Patient) error
	InsertVitals(ctx context.Context, v *VitalsSnapshot) error
	InsertTrendPoint(ctx context.Context, patientID uuid.UUID, state State, tp TrendPoint) error
	InsertSample(ctx context.Context, s *MetricSample) error
	InsertSummary(ctx context.Context, patientID uuid.UUID, period string, sum *PeriodSummary) error
}

// Transactor runs fn inside one database transaction; *db.TxManager implements it.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
