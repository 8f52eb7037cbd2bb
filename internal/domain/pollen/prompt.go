package pollen

import (
	"fmt"
	"strings"
)

const scienceBlock = `MELBOURNE POLLEN SCIENCE (FIXED TIMING):
- Classification: 0-19 (LOW), 20-49 (MODERATE), 50-99 (HIGH), 100+ (EXTREME)
- PRIMARY PEAK: 5am-10am (thermal release from grass)
- SECONDARY PEAK: 6pm-9pm (evening thermal currents)
- LOWEST LEVELS: 10pm-5am (pollen settles overnight)
- Hot northerly winds = danger (bring countryside pollen)
- Cool southerly winds = relief (ocean air)
- HUMIDITY EFFECTS: high humidity (70%+) normally weighs pollen down = BETTER conditions, low humidity (<30%) lets pollen linger = worse symptoms
- EXCEPTION - Thunderstorm asthma: pollen 50+ AND humidity 80+ AND approaching storms = EXTREME DANGER (moisture ruptures pollen into fragments that reach deep into the lungs)`

const alternativesBlock = `ALTERNATIVES FOR HIGH-RISK TIMES:
- Indoor gyms, shopping centers, libraries
- Covered/enclosed outdoor dining
- Air-conditioned transport
- Indoor entertainment venues`

const responseRules = `RESPONSE RULES:
- Maximum 40 words total
- One clear recommendation with a specific time
- Use emoji for visual impact
- NO markdown: no asterisks, bullets, headings or other formatting
- For ANY outdoor activity: state exact safe times from the rules above
- If the current time is in an avoid period: suggest the next safe window
- If the current time is safe: confirm and give the end time
- Always provide an indoor alternative when advising against an outdoor activity
- Stay focused on hayfever management only`

// BuildSystemPrompt renders the persona and rules document that steers the
// completion service. currentTime is Melbourne local time as HH:MM. The
// output depends only on its inputs.
func BuildSystemPrompt(s Scenario, flow Flow, currentTime string) string {
	rule := RuleFor(ParseRiskTier(s.RiskLevel))

	var b strings.Builder
	b.WriteString("You are PollenPilot, Melbourne's AI hayfever management assistant.\n\n")

	fmt.Fprintf(&b, "CURRENT TIME: %s\n", currentTime)
	fmt.Fprintf(&b, "CURRENT CONDITIONS: %s\n", s.Conditions)
	fmt.Fprintf(&b, "Grass pollen: %d grains/m³ (%s)\n", s.GrassPollen, s.RiskLevel)
	fmt.Fprintf(&b, "Wind: %dkm/h %s\n", s.WindSpeed, s.WindDirection)
	fmt.Fprintf(&b, "Temperature: %d°C, Humidity: %d%%\n", s.Temperature, s.Humidity)
	fmt.Fprintf(&b, "Date: %s\n", s.Date)
	if s.Confidence != "" {
		fmt.Fprintf(&b, "Forecast confidence: %s\n", s.Confidence)
	}
	if note := humidityNote(s.Humidity); note != "" {
		fmt.Fprintf(&b, "HUMIDITY ADJUSTMENT: %s\n", note)
	}
	if ThunderstormAsthmaRisk(s) {
		b.WriteString("THUNDERSTORM ASTHMA ALERT: current conditions meet the thunderstorm asthma combination. Treat as EXTREME DANGER and advise staying indoors with windows closed.\n")
	}

	b.WriteString("\n")
	b.WriteString(scienceBlock)
	b.WriteString("\n\n")

	b.WriteString("OUTDOOR ACTIVITY DECISION RULES (ALWAYS FOLLOW EXACTLY):\n")
	fmt.Fprintf(&b, "Risk Level: %s (%d grains/m³)\n\n", s.RiskLevel, s.GrassPollen)
	writeActivityRule(&b, rule)
	b.WriteString("\n")

	b.WriteString(alternativesBlock)
	b.WriteString("\n\n")
	b.WriteString(responseRules)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Current flow context: %s - %s", flowLabel(flow), flow.Description())
	return b.String()
}

func writeActivityRule(b *strings.Builder, rule ActivityRule) {
	b.WriteString("SAFE TIMES FOR ALL OUTDOOR ACTIVITIES:\n")
	if rule.HasSafeWindow() {
		fmt.Fprintf(b, "- Safe windows: %s\n", strings.Join(rule.SafeWindows, " and "))
		fmt.Fprintf(b, "- AVOID: %s\n", strings.Join(rule.AvoidTimes, ", "))
	} else {
		b.WriteString("- NO SAFE TIMES - stay indoors\n")
		b.WriteString("- ALL outdoor activities discouraged\n")
	}

	b.WriteString("\nSPECIFIC ACTIVITY GUIDANCE:\n")
	if rule.HasSafeWindow() {
		fmt.Fprintf(b, "- Running/Exercise: Safe during: %s\n", rule.SafeWindows[0])
		fmt.Fprintf(b, "- Picnics/Outdoor dining: Plan for: %s\n", rule.SafeWindows[len(rule.SafeWindows)-1])
	} else {
		b.WriteString("- Running/Exercise: Indoor gym only - too risky outside\n")
		b.WriteString("- Picnics/Outdoor dining: Indoor venues only\n")
	}
	if rule.WindowOpenGuidance != windowNever {
		fmt.Fprintf(b, "- Window opening: Safe %s\n", rule.WindowOpenGuidance)
	} else {
		b.WriteString("- Window opening: Keep closed - use air conditioning\n")
	}
	if rule.HasSafeWindow() {
		b.WriteString("- Walking/commuting: Brief essential trips only during safe windows\n")
	} else {
		b.WriteString("- Walking/commuting: Minimize exposure - mask recommended\n")
	}
}

func humidityNote(humidity int) string {
	switch {
	case humidity >= 70:
		return fmt.Sprintf("High humidity (%d%%) keeps pollen grounded - conditions better than expected!", humidity)
	case humidity <= 40:
		return fmt.Sprintf("Low humidity (%d%%) keeps pollen airborne longer - extra caution needed!", humidity)
	default:
		return ""
	}
}

// ThunderstormAsthmaRisk reports whether the scenario itself combines high
// pollen, saturated air and an approaching storm.
func ThunderstormAsthmaRisk(s Scenario) bool {
	if s.GrassPollen < 50 || s.Humidity < 80 {
		return false
	}
	conditions := strings.ToLower(s.Conditions)
	return strings.Contains(conditions, "storm") || strings.Contains(conditions, "thunder")
}

func flowLabel(flow Flow) string {
	if strings.TrimSpace(string(flow)) == "" {
		return string(FlowGeneral)
	}
	return string(flow)
}
