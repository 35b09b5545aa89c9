// Package insight turns a patient's current vitals into a short
// caregiver-readable assessment, using a text-generation model when one is
// configured and deterministic fallback text otherwise.
package insight

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthwatch/healthwatch/internal/platform/llm"
	"github.com/healthwatch/healthwatch/internal/platform/telemetry"
)

// Source records where an insight's text came from.
type Source string

const (
	SourceLLM      Source = "llm"
	SourceFallback Source = "fallback"
)

// Completer is the text-generation dependency; *llm.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Result is a generated insight. Text is never empty.
type Result struct {
	Text   string
	Source Source
	AtRisk bool
}

// Generator produces insights. It never returns an error: every failure of
// the text-generation call degrades to FallbackText.
type Generator struct {
	completer Completer
	logger    zerolog.Logger
	metrics   *telemetry.Metrics
}

// NewGenerator creates a generator. A nil completer means no credential is
// configured and every insight is fallback text.
func NewGenerator(completer Completer, logger zerolog.Logger, metrics *telemetry.Metrics) *Generator {
	return &Generator{completer: completer, logger: logger, metrics: metrics}
}

// Live reports whether the generator will attempt model calls.
func (g *Generator) Live() bool {
	return g.completer != nil
}

func (g *Generator) Generate(ctx context.Context, in Input) Result {
	atRisk := IsAtRisk(in.StabilityScore)
	state := "stable"
	if atRisk {
		state = "risk"
	}

	res := Result{AtRisk: atRisk, Source: SourceFallback}
	defer func() { g.metrics.RecordInsight(state, string(res.Source)) }()

	if g.completer == nil {
		g.logger.Debug().Str("state", state).Msg("no text-generation credential configured, using fallback insight")
		res.Text = FallbackText(in)
		return res
	}

	g.logger.Info().Str("state", state).Msg("requesting insight from text-generation service")
	start := time.Now()
	text, err := g.completer.Complete(ctx, BuildPrompt(in))
	if err != nil {
		g.metrics.ObserveLLM(outcome(err), time.Since(start))
		g.logFailure(err, state)
		res.Text = FallbackText(in)
		return res
	}
	g.metrics.ObserveLLM("ok", time.Since(start))

	res.Text = text
	res.Source = SourceLLM
	return res
}

func (g *Generator) logFailure(err error, state string) {
	evt := g.logger.Warn().Str("state", state).Str("error_type", outcome(err))
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		evt = evt.Int("status", apiErr.StatusCode).Str("body", apiErr.Body)
	}
	evt.Err(err).Msg("text-generation call failed, using fallback insight")
}

func outcome(err error) string {
	var apiErr *llm.APIError
	var netErr net.Error
	switch {
	case errors.As(err, &apiErr):
		return "http_error"
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.Is(err, llm.ErrEmptyResponse):
		return "empty"
	case errors.Is(err, llm.ErrCircuitOpen):
		return "circuit_open"
	default:
		return "error"
	}
}
