package monitoring

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var defaultSeed []byte

// SeedData is the initial dataset for one monitored patient.
type SeedData struct {
	Patient   Patient                   `yaml:"patient"`
	Vitals    []VitalsSnapshot          `yaml:"vitals"`
	Trends    map[State][]TrendPoint    `yaml:"trends"`
	Metrics   map[string][]MetricSample `yaml:"metrics"`
	Summaries map[string]PeriodSummary  `yaml:"summaries"`
	Insights  []Insight                 `yaml:"insights"`
}

// DefaultSeed parses the embedded dataset.
func DefaultSeed() (*SeedData, error) {
	return ParseSeed(defaultSeed)
}

func ParseSeed(b []byte) (*SeedData, error) {
	var sd SeedData
	if err := yaml.Unmarshal(b, &sd); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if err := sd.Validate(); err != nil {
		return nil, err
	}
	return &sd, nil
}

// Validate checks that the dataset resolves every state: one vitals row and
// one trend series per state.
func (sd *SeedData) Validate() error {
	if sd.Patient.Name == "" {
		return fmt.Errorf("seed: patient name is required")
	}
	if _, err := ParseState(string(sd.Patient.CurrentState)); err != nil {
		return fmt.Errorf("seed: patient: %w", err)
	}

	seen := map[State]bool{}
	for _, v := range sd.Vitals {
		if _, err := ParseState(string(v.State)); err != nil {
			return fmt.Errorf("seed: vitals: %w", err)
		}
		if seen[v.State] {
			return fmt.Errorf("seed: duplicate vitals for state %q", v.State)
		}
		if v.StabilityScore < 0 || v.StabilityScore > 100 {
			return fmt.Errorf("seed: vitals %q stability score %d out of range", v.State, v.StabilityScore)
		}
		seen[v.State] = true
	}

	for _, st := range []State{StateStable, StateRisk} {
		if !seen[st] {
			return fmt.Errorf("seed: missing vitals for state %q", st)
		}
		points := sd.Trends[st]
		if len(points) == 0 {
			return fmt.Errorf("seed: missing trend for state %q", st)
		}
		for _, tp := range points {
			if tp.Score < 0 || tp.Score > 100 {
				return fmt.Errorf("seed: trend %q/%s score %d out of range", st, tp.Name, tp.Score)
			}
		}
	}

	for period := range sd.Metrics {
		if !IsKnownPeriod(period) {
			return fmt.Errorf("seed: unknown metrics period %q", period)
		}
	}
	for period := range sd.Summaries {
		if !IsKnownPeriod(period) {
			return fmt.Errorf("seed: unknown summary period %q", period)
		}
	}
	return nil
}

// Seeder loads SeedData into the store once. Everything is written in one
// transaction so a patient never exists without both state snapshots.
type Seeder struct {
	store    SeedStore
	insights InsightRepository
	tx       Transactor
	logger   zerolog.Logger
}

func NewSeeder(store SeedStore, insights InsightRepository, tx Transactor, logger zerolog.Logger) *Seeder {
	return &Seeder{store: store, insights: insights, tx: tx, logger: logger}
}

// Seed writes data for patientID. It returns false without writing when the
// patient already exists.
func (s *Seeder) Seed(ctx context.Context, patientID uuid.UUID, data *SeedData) (bool, error) {
	seeded := false
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		exists, err := s.store.PatientExists(ctx, patientID)
		if err != nil {
			return fmt.Errorf("check patient: %w", err)
		}
		if exists {
			return nil
		}

		p := data.Patient
		p.ID = patientID
		if err := s.store.InsertPatient(ctx, &p); err != nil {
			return fmt.Errorf("insert patient: %w", err)
		}

		for i := range data.Vitals {
			v := data.Vitals[i]
			v.PatientID = patientID
			if err := s.store.InsertVitals(ctx, &v); err != nil {
				return fmt.Errorf("insert vitals %s: %w", v.State, err)
			}
		}

		for _, st := range []State{StateStable, StateRisk} {
			for i, tp := range data.Trends[st] {
				tp.SortOrder = i
				if err := s.store.InsertTrendPoint(ctx, patientID, st, tp); err != nil {
					return fmt.Errorf("insert trend %s/%s: %w", st, tp.Name, err)
				}
			}
		}

		for _, period := range []string{PeriodDay, PeriodWeek, PeriodMonth, PeriodYear} {
			for i, sample := range data.Metrics[period] {
				sample.PatientID = patientID
				sample.PeriodType = period
				sample.SortOrder = i
				if err := s.store.InsertSample(ctx, &sample); err != nil {
					return fmt.Errorf("insert %s sample %s: %w", period, sample.Label, err)
				}
			}
			if sum, ok := data.Summaries[period]; ok {
				if err := s.store.InsertSummary(ctx, patientID, period, &sum); err != nil {
					return fmt.Errorf("insert %s summary: %w", period, err)
				}
			}
		}

		for i := range data.Insights {
			in := data.Insights[i]
			in.PatientID = patientID
			in.Source = "seed"
			if err := s.insights.Append(ctx, &in); err != nil {
				return fmt.Errorf("insert seed insight: %w", err)
			}
		}

		seeded = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if seeded {
		s.logger.Info().Str("patient_id", patientID.String()).Msg("seeded monitoring data")
	}
	return seeded, nil
}
