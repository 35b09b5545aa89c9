package monitoring

import (
	"fmt"
	"math"
	"strconv"
)

const (
	BaselineHR             = 70
	BaselineSleepPerSample = 7.5
	BaselineDailySteps     = 5200
)

var periodDays = map[string]int64{
	PeriodDay:   1,
	PeriodWeek:  7,
	PeriodMonth: 30,
	PeriodYear:  365,
}

// IsKnownPeriod reports whether period is day, week, month or year.
func IsKnownPeriod(period string) bool {
	_, ok := periodDays[period]
	return ok
}

// BaselineSteps is the expected step total for period. Unknown periods use
// the weekly baseline.
func BaselineSteps(period string) int64 {
	days, ok := periodDays[period]
	if !ok {
		days = periodDays[PeriodWeek]
	}
	return BaselineDailySteps * days
}

// Summarize aggregates samples into a PeriodSummary. Averages and the step
// change round half to even; sleep totals keep one decimal.
func Summarize(period string, samples []MetricSample) (*PeriodSummary, error) {
	n := len(samples)
	if n == 0 {
		return nil, fmt.Errorf("no samples for period %q: %w", period, ErrNotFound)
	}

	var hr, rhr, bpSys, bpDia, activity, steps int64
	var sleep float64
	for _, s := range samples {
		hr += int64(s.HR)
		rhr += int64(s.RestingHR)
		bpSys += int64(s.BPSys)
		bpDia += int64(s.BPDia)
		activity += int64(s.ActivityMin)
		steps += int64(s.Steps)
		sleep += s.Sleep
	}

	baseline := BaselineSteps(period)
	return &PeriodSummary{
		HRCurrent:     average(hr, n),
		HRResting:     average(rhr, n),
		HRBaseline:    BaselineHR,
		SleepTotal:    roundTenths(sleep),
		SleepBaseline: roundTenths(BaselineSleepPerSample * float64(n)),
		Steps:         steps,
		StepChange:    StepChangePct(steps, baseline),
		BPSys:         average(bpSys, n),
		BPDia:         average(bpDia, n),
		ActivityMin:   average(activity, n),
	}, nil
}

// StepChangePct is the rounded percentage difference of total from baseline.
func StepChangePct(total, baseline int64) int {
	if baseline == 0 {
		return 0
	}
	return int(math.RoundToEven(float64(total-baseline) / float64(baseline) * 100))
}

func average(sum int64, n int) int {
	return int(math.RoundToEven(float64(sum) / float64(n)))
}

// roundTenths rounds through the shortest decimal form so 0.35 becomes 0.3,
// the same as rounding the exact binary value.
func roundTenths(v float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 1, 64), 64)
	if err != nil {
		return math.RoundToEven(v*10) / 10
	}
	return r
}
