package insight

import (
	"fmt"
	"strings"
)

const (
	riskCallToAction   = "the user needs urgent care immediately."
	stableCallToAction = "no action is needed and to continue the normal routine."
)

// Input is the patient and vitals data an insight is generated from.
type Input struct {
	Name           string
	Age            int
	CaregiverName  string
	HeartRate      int
	SleepHours     float64
	Steps          int
	Fatigue        string
	StabilityScore int
	SystolicBP     int
}

// FirstName returns the first word of the patient's name.
func (in Input) FirstName() string {
	if fields := strings.Fields(in.Name); len(fields) > 0 {
		return fields[0]
	}
	return "The patient"
}

func (in Input) caregiver() string {
	if strings.TrimSpace(in.CaregiverName) == "" {
		return "the caregiver"
	}
	return in.CaregiverName
}

// BuildPrompt renders the caregiver-facing instruction sent to the model.
func BuildPrompt(in Input) string {
	first := in.FirstName()

	var tone string
	if IsAtRisk(in.StabilityScore) {
		tone = fmt.Sprintf("%s is showing warning signs and needs attention right away. "+
			"Write 2-3 sentences that clearly alert the caregiver. "+
			"End with a direct call to action stating: %s "+
			"ENSURE A RESPONSE IS ALWAYS PROVIDED.", first, riskCallToAction)
	} else {
		tone = fmt.Sprintf("%s is doing well today. "+
			"Write 2-3 warm, reassuring sentences confirming everything looks fine. "+
			"End by saying %s "+
			"ENSURE A RESPONSE IS ALWAYS PROVIDED.", first, stableCallToAction)
	}

	var b strings.Builder
	b.WriteString("You are a health monitoring AI helping caregivers of elderly patients.\n")
	b.WriteString(tone)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Patient: %s, %d years old\n", first, in.Age)
	fmt.Fprintf(&b, "Heart rate today: %s\n", HeartRateDescriptor(in.HeartRate))
	fmt.Fprintf(&b, "Sleep last night: %s\n", SleepDescriptor(in.SleepHours))
	fmt.Fprintf(&b, "Movement today: %s\n", ActivityDescriptor(in.Steps))
	fmt.Fprintf(&b, "Energy level: %s fatigue\n", strings.ToLower(in.Fatigue))
	fmt.Fprintf(&b, "Blood pressure: %s", BloodPressureDescriptor(in.SystolicBP))
	return b.String()
}

// FallbackText is the deterministic insight used whenever the model cannot
// provide one.
func FallbackText(in Input) string {
	first := in.FirstName()
	if IsAtRisk(in.StabilityScore) {
		return fmt.Sprintf("%s is currently showing signs that require attention. "+
			"Please review their recent vital signs for heart rate, sleep, and activity levels. "+
			"Contact %s for further assessment.", first, in.caregiver())
	}
	return fmt.Sprintf("%s appears stable today. "+
		"Their vital signs for heart rate, sleep, and activity levels are within normal ranges. "+
		"No immediate action is required.", first)
}
