package pollen

import "strings"

// RiskTier is one of the five normalized hayfever risk categories.
type RiskTier string

const (
	TierLow      RiskTier = "low"
	TierModerate RiskTier = "moderate"
	TierHigh     RiskTier = "high"
	TierVeryHigh RiskTier = "veryHigh"
	TierExtreme  RiskTier = "extreme"
)

// ParseRiskTier maps free-text risk labels onto a tier. Lookup is
// case-insensitive and ignores spaces and hyphens; anything unrecognised is
// treated as moderate.
func ParseRiskTier(raw string) RiskTier {
	key := strings.ToLower(raw)
	key = strings.ReplaceAll(key, " ", "")
	key = strings.ReplaceAll(key, "-", "")
	switch key {
	case "low":
		return TierLow
	case "moderate":
		return TierModerate
	case "high":
		return TierHigh
	case "veryhigh":
		return TierVeryHigh
	case "extreme":
		return TierExtreme
	default:
		return TierModerate
	}
}

var highRiskLabels = map[string]struct{}{
	"high":      {},
	"very high": {},
	"extreme":   {},
}

// IsHighRisk is the coarse high/low split used to pick fallback narratives.
// It matches the lower-cased label exactly, so "very-high" is not high risk
// here even though ParseRiskTier maps it to TierVeryHigh.
func IsHighRisk(raw string) bool {
	_, ok := highRiskLabels[strings.ToLower(raw)]
	return ok
}

// ActivityRule holds the outdoor timing guidance for a tier.
type ActivityRule struct {
	SafeWindows        []string
	AvoidTimes         []string
	WindowOpenGuidance string
}

// HasSafeWindow reports whether any outdoor time is considered safe.
func (r ActivityRule) HasSafeWindow() bool {
	return len(r.SafeWindows) > 0
}

const windowNever = "never"

// RuleFor returns a fresh copy of the activity rule for tier.
func RuleFor(tier RiskTier) ActivityRule {
	switch tier {
	case TierLow:
		return ActivityRule{
			SafeWindows:        []string{"06:00-09:00", "18:00-06:00"},
			AvoidTimes:         []string{"10:00-17:00"},
			WindowOpenGuidance: "after 18:00",
		}
	case TierHigh:
		return ActivityRule{
			SafeWindows:        []string{"22:00-06:00"},
			AvoidTimes:         []string{"06:00-22:00"},
			WindowOpenGuidance: "after 22:00",
		}
	case TierVeryHigh:
		return ActivityRule{
			SafeWindows:        []string{"23:00-05:00"},
			AvoidTimes:         []string{"05:00-23:00"},
			WindowOpenGuidance: "after 23:00",
		}
	case TierExtreme:
		return ActivityRule{
			SafeWindows:        []string{},
			AvoidTimes:         []string{"all day"},
			WindowOpenGuidance: windowNever,
		}
	default:
		return ActivityRule{
			SafeWindows:        []string{"06:00-08:00", "20:00-06:00"},
			AvoidTimes:         []string{"08:00-20:00"},
			WindowOpenGuidance: "after 20:00",
		}
	}
}
