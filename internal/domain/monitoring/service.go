package monitoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthwatch/healthwatch/internal/domain/insight"
	"github.com/healthwatch/healthwatch/internal/platform/events"
	"github.com/healthwatch/healthwatch/internal/platform/telemetry"
	"github.com/healthwatch/healthwatch/pkg/pagination"
)

const (
	earlyDetectionScore = 75
)

// Repositories groups the storage dependencies of Service.
type Repositories struct {
	Patients PatientRepository
	Vitals   VitalsRepository
	Metrics  MetricsRepository
	Insights InsightRepository
	Tx       Transactor
}

// Service serves the dashboard for one monitored patient and owns the
// stable/risk toggle.
type Service struct {
	patientID uuid.UUID
	repos     Repositories
	generator *insight.Generator
	publisher events.Publisher
	metrics   *telemetry.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

type Option func(*Service)

// WithPublisher emits a state-change event after every sync.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the wall clock used to stamp risk vitals.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(patientID uuid.UUID, repos Repositories, gen *insight.Generator, opts ...Option) *Service {
	s := &Service{
		patientID: patientID,
		repos:     repos,
		generator: gen,
		publisher: events.NopPublisher{},
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) PatientID() uuid.UUID {
	return s.patientID
}

func (s *Service) GetPatient(ctx context.Context) (*Patient, error) {
	return s.repos.Patients.Get(ctx, s.patientID)
}

// GetVitals returns the snapshot for the current state with a freshly
// generated insight, which is appended to the insight log.
func (s *Service) GetVitals(ctx context.Context) (*VitalsView, error) {
	p, err := s.repos.Patients.Get(ctx, s.patientID)
	if err != nil {
		return nil, err
	}
	v, err := s.repos.Vitals.Get(ctx, s.patientID, p.CurrentState)
	if err != nil {
		return nil, err
	}
	text := s.generateInsight(ctx, p, v)
	return &VitalsView{VitalsSnapshot: *v, Insight: text, ThemeColor: p.CurrentState.ThemeColor()}, nil
}

func (s *Service) GetTrend(ctx context.Context) ([]TrendPoint, error) {
	p, err := s.repos.Patients.Get(ctx, s.patientID)
	if err != nil {
		return nil, err
	}
	return s.repos.Vitals.ListTrend(ctx, s.patientID, p.CurrentState)
}

// ListHealthData returns the samples for period in display order. Unknown
// periods simply have no samples.
func (s *Service) ListHealthData(ctx context.Context, period string) ([]MetricSample, error) {
	samples, err := s.repos.Metrics.ListSamples(ctx, s.patientID, period)
	if err != nil {
		return nil, err
	}
	if samples == nil {
		samples = []MetricSample{}
	}
	return samples, nil
}

// GetHealthSummary computes the summary from samples, falling back to the
// stored summary row when the period has none.
func (s *Service) GetHealthSummary(ctx context.Context, period string) (*PeriodSummary, error) {
	samples, err := s.repos.Metrics.ListSamples(ctx, s.patientID, period)
	if err != nil {
		return nil, err
	}
	if len(samples) > 0 {
		return Summarize(period, samples)
	}
	sum, err := s.repos.Metrics.GetSummary(ctx, s.patientID, period)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("no health data for period %q: %w", period, ErrNotFound)
		}
		return nil, err
	}
	return sum, nil
}

// Sync flips the patient between stable and risk. The flip and the risk
// timestamp are committed under a row lock; the insight is generated after
// the lock is released.
func (s *Service) Sync(ctx context.Context) (*SyncView, error) {
	var patient *Patient
	var from State
	var at time.Time

	err := s.repos.Tx.InTx(ctx, func(ctx context.Context) error {
		p, err := s.repos.Patients.GetForUpdate(ctx, s.patientID)
		if err != nil {
			return err
		}
		from = p.CurrentState
		p.CurrentState = from.Toggle()

		if err := s.repos.Patients.UpdateState(ctx, s.patientID, p.CurrentState); err != nil {
			return fmt.Errorf("update state: %w", err)
		}
		at = s.now().UTC()
		if p.CurrentState == StateRisk {
			if err := s.repos.Vitals.StampLastUpdated(ctx, s.patientID, StateRisk, at); err != nil {
				return fmt.Errorf("stamp risk vitals: %w", err)
			}
		}
		patient = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	to := patient.CurrentState
	s.metrics.RecordSync(string(to))
	s.logger.Info().
		Str("patient_id", s.patientID.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("patient state toggled")

	if err := s.publisher.PublishStateChange(ctx, events.StateChange{
		PatientID: s.patientID,
		From:      string(from),
		To:        string(to),
		At:        at,
	}); err != nil {
		s.logger.Warn().Err(err).Msg("publish state change")
	}

	// The toggle is committed from here on.
	v, err := s.repos.Vitals.Get(ctx, s.patientID, to)
	if err != nil {
		return nil, s.committedSyncError(err, from, to)
	}
	trend, err := s.repos.Vitals.ListTrend(ctx, s.patientID, to)
	if err != nil {
		return nil, s.committedSyncError(err, from, to)
	}
	text := s.generateInsight(ctx, patient, v)

	if trend == nil {
		trend = []TrendPoint{}
	}
	return &SyncView{
		VitalsView: VitalsView{VitalsSnapshot: *v, Insight: text, ThemeColor: to.ThemeColor()},
		Trend:      trend,
	}, nil
}

// Stats derives the dashboard counters from the insight log, the patient
// table and the risk trend.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	risks, err := s.repos.Insights.CountByState(ctx, s.patientID, StateRisk)
	if err != nil {
		return nil, fmt.Errorf("count risk insights: %w", err)
	}
	caregivers, err := s.repos.Patients.CountWithCaregiver(ctx)
	if err != nil {
		return nil, fmt.Errorf("count caregivers: %w", err)
	}
	trend, err := s.repos.Vitals.ListTrend(ctx, s.patientID, StateRisk)
	if err != nil {
		return nil, fmt.Errorf("risk trend: %w", err)
	}
	return &Stats{
		RiskEventsPrevented: risks,
		AvgEarlyDetection:   earlyDetection(trend),
		ActiveCaregivers:    caregivers,
	}, nil
}

// earlyDetection counts the risk-trend days that still scored well before
// the decline, reported in hours. At least one day is always reported.
func earlyDetection(riskTrend []TrendPoint) string {
	days := 0
	for _, tp := range riskTrend {
		if tp.Score >= earlyDetectionScore {
			days++
		}
	}
	if days == 0 {
		days = 1
	}
	return fmt.Sprintf("%dh", days*24)
}

// ListInsights returns the insight log newest first, optionally filtered by
// state.
func (s *Service) ListInsights(ctx context.Context, state string, limit int) ([]Insight, error) {
	var st State
	if state != "" {
		var err error
		if st, err = ParseState(state); err != nil {
			return nil, err
		}
	}
	return s.repos.Insights.List(ctx, s.patientID, st, pagination.Clamp(limit))
}

func (s *Service) committedSyncError(err error, from, to State) error {
	s.logger.Error().Err(err).
		Str("patient_id", s.patientID.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("state toggle committed but sync view could not be loaded")
	return fmt.Errorf("load %s view after toggle: %w", to, err)
}

// generateInsight always returns text. A failed append is logged and the
// caller still receives the insight.
func (s *Service) generateInsight(ctx context.Context, p *Patient, v *VitalsSnapshot) string {
	res := s.generator.Generate(ctx, insight.Input{
		Name:           p.Name,
		Age:            p.Age,
		CaregiverName:  p.CaregiverName,
		HeartRate:      v.HR,
		SleepHours:     v.SleepHours,
		Steps:          v.Steps,
		Fatigue:        v.Fatigue,
		StabilityScore: v.StabilityScore,
		SystolicBP:     v.BPSys,
	})

	entry := &Insight{
		PatientID: s.patientID,
		Text:      res.Text,
		State:     v.State,
		Source:    string(res.Source),
	}
	if err := s.repos.Insights.Append(ctx, entry); err != nil {
		s.logger.Error().Err(err).
			Str("patient_id", s.patientID.String()).
			Str("state", string(v.State)).
			Msg("append insight")
	}
	return res.Text
}
