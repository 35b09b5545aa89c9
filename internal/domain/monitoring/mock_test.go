package monitoring

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/healthwatch/healthwatch/internal/platform/auth"
)

// memStore is an in-memory implementation of every repository interface.
type memStore struct {
	mu         sync.Mutex
	patients   map[uuid.UUID]*Patient
	vitals     map[State]*VitalsSnapshot
	trends     map[State][]TrendPoint
	samples    map[string][]MetricSample
	summaries  map[string]PeriodSummary
	insights   []Insight
	txCalls    int
	locked     int
	failTx     error
	failAppend error
	failVitals error
	seq        int
}

func newMemStore() *memStore {
	return &memStore{
		patients:  map[uuid.UUID]*Patient{},
		vitals:    map[State]*VitalsSnapshot{},
		trends:    map[State][]TrendPoint{},
		samples:   map[string][]MetricSample{},
		summaries: map[string]PeriodSummary{},
	}
}

func (m *memStore) repos() Repositories {
	return Repositories{
		Patients: memPatients{m},
		Vitals:   memVitals{m},
		Metrics:  memMetrics{m},
		Insights: memInsights{m},
		Tx:       m,
	}
}

func (m *memStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txCalls++
	if m.failTx != nil {
		return m.failTx
	}
	return fn(ctx)
}

type memPatients struct{ m *memStore }

func (r memPatients) Get(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.patients[id]
	if !ok {
		return nil, fmt.Errorf("patient: %w", ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (r memPatients) GetForUpdate(ctx context.Context, id uuid.UUID) (*Patient, error) {
	r.m.locked++
	return r.Get(ctx, id)
}

func (r memPatients) UpdateState(_ context.Context, id uuid.UUID, state State) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.patients[id]
	if !ok {
		return fmt.Errorf("patient: %w", ErrNotFound)
	}
	p.CurrentState = state
	return nil
}

func (r memPatients) CountWithCaregiver(context.Context) (int, error) {
	n := 0
	for _, p := range r.m.patients {
		if p.CaregiverName != "" {
			n++
		}
	}
	return n, nil
}

type memVitals struct{ m *memStore }

func (r memVitals) Get(_ context.Context, _ uuid.UUID, state State) (*VitalsSnapshot, error) {
	if r.m.failVitals != nil {
		return nil, r.m.failVitals
	}
	v, ok := r.m.vitals[state]
	if !ok {
		return nil, fmt.Errorf("vitals: %w", ErrNotFound)
	}
	cp := *v
	return &cp, nil
}

func (r memVitals) StampLastUpdated(_ context.Context, _ uuid.UUID, state State, at time.Time) error {
	v, ok := r.m.vitals[state]
	if !ok {
		return fmt.Errorf("vitals: %w", ErrNotFound)
	}
	if v.LastUpdated == nil || at.After(*v.LastUpdated) {
		v.LastUpdated = &at
	}
	return nil
}

func (r memVitals) ListTrend(_ context.Context, _ uuid.UUID, state State) ([]TrendPoint, error) {
	return append([]TrendPoint{}, r.m.trends[state]...), nil
}

type memMetrics struct{ m *memStore }

func (r memMetrics) ListSamples(_ context.Context, _ uuid.UUID, period string) ([]MetricSample, error) {
	return append([]MetricSample{}, r.m.samples[period]...), nil
}

func (r memMetrics) GetSummary(_ context.Context, _ uuid.UUID, period string) (*PeriodSummary, error) {
	s, ok := r.m.summaries[period]
	if !ok {
		return nil, fmt.Errorf("period summary: %w", ErrNotFound)
	}
	return &s, nil
}

type memInsights struct{ m *memStore }

func (r memInsights) Append(_ context.Context, in *Insight) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failAppend != nil {
		return r.m.failAppend
	}
	r.m.seq++
	in.ID = uuid.New()
	in.CreatedAt = time.Unix(int64(r.m.seq), 0).UTC()
	r.m.insights = append(r.m.insights, *in)
	return nil
}

func (r memInsights) List(_ context.Context, _ uuid.UUID, state State, limit int) ([]Insight, error) {
	var out []Insight
	for _, in := range r.m.insights {
		if state == "" || in.State == state {
			out = append(out, in)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memInsights) CountByState(_ context.Context, _ uuid.UUID, state State) (int, error) {
	n := 0
	for _, in := range r.m.insights {
		if in.State == state {
			n++
		}
	}
	return n, nil
}

// SeedStore

func (m *memStore) PatientExists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := m.patients[id]
	return ok, nil
}

func (m *memStore) InsertPatient(_ context.Context, p *Patient) error {
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *memStore) InsertVitals(_ context.Context, v *VitalsSnapshot) error {
	v.ID = uuid.New()
	cp := *v
	m.vitals[v.State] = &cp
	return nil
}

func (m *memStore) InsertTrendPoint(_ context.Context, _ uuid.UUID, state State, tp TrendPoint) error {
	m.trends[state] = append(m.trends[state], tp)
	return nil
}

func (m *memStore) InsertSample(_ context.Context, s *MetricSample) error {
	m.samples[s.PeriodType] = append(m.samples[s.PeriodType], *s)
	return nil
}

func (m *memStore) InsertSummary(_ context.Context, _ uuid.UUID, period string, sum *PeriodSummary) error {
	m.summaries[period] = *sum
	return nil
}

func contextWithRoles(ctx context.Context, roles ...string) context.Context {
	return context.WithValue(ctx, auth.UserRolesKey, roles)
}
