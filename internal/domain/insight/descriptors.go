package insight

// RiskThreshold is the stability score below which a patient is at risk.
const RiskThreshold = 70

// IsAtRisk reports whether score falls below RiskThreshold.
func IsAtRisk(stabilityScore int) bool {
	return stabilityScore < RiskThreshold
}

func HeartRateDescriptor(hr int) string {
	if hr > 80 {
		return "elevated"
	}
	return "normal"
}

func SleepDescriptor(hours float64) string {
	switch {
	case hours < 5:
		return "very low"
	case hours < 6.5:
		return "below normal"
	default:
		return "good"
	}
}

func ActivityDescriptor(steps int) string {
	switch {
	case steps < 2000:
		return "very little movement"
	case steps < 4000:
		return "less movement than usual"
	default:
		return "normal movement"
	}
}

func BloodPressureDescriptor(systolic int) string {
	if systolic > 130 {
		return "high"
	}
	return "normal"
}
