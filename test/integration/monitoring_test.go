//go:build integration

package integration

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/healthwatch/healthwatch/internal/domain/monitoring"
)

func TestSeed_Idempotent(t *testing.T) {
	ctx := context.Background()
	id := seedPatient(t, ctx)

	data, err := monitoring.DefaultSeed()
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}
	seeded, err := newSeeder().Seed(ctx, id, data)
	if err != nil {
		t.Fatalf("reseed: %v", err)
	}
	if seeded {
		t.Error("expected second seed to be a no-op")
	}
}

func TestService_ReadsSeededPatient(t *testing.T) {
	ctx := context.Background()
	svc := newService(seedPatient(t, ctx))

	p, err := svc.GetPatient(ctx)
	if err != nil {
		t.Fatalf("get patient: %v", err)
	}
	if p.CurrentState != monitoring.StateStable {
		t.Errorf("expected stable, got %s", p.CurrentState)
	}

	trend, err := svc.GetTrend(ctx)
	if err != nil {
		t.Fatalf("get trend: %v", err)
	}
	if len(trend) != 7 {
		t.Errorf("expected 7 trend points, got %d", len(trend))
	}

	sum, err := svc.GetHealthSummary(ctx, monitoring.PeriodDay)
	if err != nil {
		t.Fatalf("day summary: %v", err)
	}
	if sum.Steps != 46000 || sum.StepChange != 785 {
		t.Errorf("unexpected day summary: steps=%d change=%d", sum.Steps, sum.StepChange)
	}

	_, err = svc.GetHealthSummary(ctx, "quarter")
	if !errors.Is(err, monitoring.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown period, got %v", err)
	}

	samples, err := svc.ListHealthData(ctx, "quarter")
	if err != nil {
		t.Fatalf("list unknown period: %v", err)
	}
	if len(samples) != 0 {
		t.Errorf("expected no samples, got %d", len(samples))
	}
}

func TestService_SyncTogglesAndStamps(t *testing.T) {
	ctx := context.Background()
	svc := newService(seedPatient(t, ctx))

	first, err := svc.Sync(ctx)
	if err != nil {
		t.Fatalf("first sync: %v", err)
	}
	if first.State != monitoring.StateRisk {
		t.Fatalf("expected risk, got %s", first.State)
	}
	if first.LastUpdated == nil {
		t.Fatal("expected risk snapshot to be stamped")
	}
	if first.Insight == "" {
		t.Error("expected insight text")
	}
	if first.ThemeColor != monitoring.ThemeRisk {
		t.Errorf("unexpected theme %s", first.ThemeColor)
	}

	second, err := svc.Sync(ctx)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if second.State != monitoring.StateStable {
		t.Fatalf("expected stable, got %s", second.State)
	}

	third, err := svc.Sync(ctx)
	if err != nil {
		t.Fatalf("third sync: %v", err)
	}
	if third.LastUpdated.Before(*first.LastUpdated) {
		t.Errorf("risk timestamp went backwards: %s then %s", first.LastUpdated, third.LastUpdated)
	}

	risk, err := svc.ListInsights(ctx, "risk", 0)
	if err != nil {
		t.Fatalf("list insights: %v", err)
	}
	// One seeded risk insight plus two generated on entering risk.
	if len(risk) != 3 {
		t.Fatalf("expected 3 risk insights, got %d", len(risk))
	}
	if risk[0].CreatedAt.Before(risk[1].CreatedAt) {
		t.Error("expected newest insight first")
	}
	if risk[0].Source != "fallback" {
		t.Errorf("expected fallback source without a credential, got %s", risk[0].Source)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.RiskEventsPrevented != 3 {
		t.Errorf("expected 3 risk events, got %d", stats.RiskEventsPrevented)
	}
}

func TestService_ConcurrentSyncsSerialize(t *testing.T) {
	ctx := context.Background()
	svc := newService(seedPatient(t, ctx))

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Sync(ctx); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("sync: %v", err)
	}

	p, err := svc.GetPatient(ctx)
	if err != nil {
		t.Fatalf("get patient: %v", err)
	}
	if p.CurrentState != monitoring.StateStable {
		t.Errorf("expected an even number of toggles to end stable, got %s", p.CurrentState)
	}

	risk, err := svc.ListInsights(ctx, "risk", 0)
	if err != nil {
		t.Fatalf("list insights: %v", err)
	}
	if len(risk) != 1+n/2 {
		t.Errorf("expected %d risk insights, got %d", 1+n/2, len(risk))
	}
}
