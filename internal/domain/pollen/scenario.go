package pollen

import "strings"

// Scenario is a fixed snapshot of Melbourne pollen and weather conditions.
type Scenario struct {
	Name          string `json:"name" validate:"required"`
	Date          string `json:"date"`
	GrassPollen   int    `json:"grassPollen" validate:"min=0"`
	WindSpeed     int    `json:"windSpeed" validate:"min=0"`
	WindDirection string `json:"windDirection"`
	Temperature   int    `json:"temperature"`
	Humidity      int    `json:"humidity" validate:"min=0,max=100"`
	RiskLevel     string `json:"riskLevel" validate:"required"`
	Conditions    string `json:"conditions"`
	Confidence    string `json:"confidence"`
}

// IsZero reports whether no scenario was supplied at all.
func (s Scenario) IsZero() bool {
	return s == Scenario{}
}

// IsNameOnly reports whether the scenario carries only a name, as sent by
// clients that reference a catalog entry.
func (s Scenario) IsNameOnly() bool {
	return strings.TrimSpace(s.Name) != "" &&
		strings.TrimSpace(s.RiskLevel) == "" &&
		s.GrassPollen == 0 && s.WindSpeed == 0 && s.Humidity == 0 && s.Temperature == 0
}

var catalog = []Scenario{
	{
		Name:          "Classic Bad Day - Melbourne Cup Day",
		Date:          "November 6, 2024",
		GrassPollen:   85,
		WindSpeed:     24,
		WindDirection: "North",
		Temperature:   29,
		Humidity:      42,
		RiskLevel:     "Very High",
		Conditions:    "Hot northerly winds bringing pollen from countryside",
		Confidence:    "High - matches historical Cup Day patterns",
	},
	{
		Name:          "Deceptive Calm",
		Date:          "October 15, 2024",
		GrassPollen:   45,
		WindSpeed:     6,
		WindDirection: "Variable",
		Temperature:   22,
		Humidity:      68,
		RiskLevel:     "Moderate",
		Conditions:    "Still air, moderate pollen - easy to underestimate",
		Confidence:    "Moderate - pollen can vary in calm conditions",
	},
	{
		Name:          "Thunderstorm Asthma Risk",
		Date:          "November 18, 2024",
		GrassPollen:   72,
		WindSpeed:     18,
		WindDirection: "Changing",
		Temperature:   26,
		Humidity:      85,
		RiskLevel:     "Extreme",
		Conditions:    "Thunderstorm approaching with high pollen - dangerous combination",
		Confidence:    "High - enhanced forecasting system active since 2017",
	},
	{
		Name:          "Southerly Relief",
		Date:          "November 12, 2024",
		GrassPollen:   15,
		WindSpeed:     12,
		WindDirection: "South",
		Temperature:   19,
		Humidity:      58,
		RiskLevel:     "Low",
		Conditions:    "Cool southerly winds from ocean clearing the air",
		Confidence:    "High - southerlies consistently bring relief",
	},
}

// Scenarios returns a copy of the canonical scenario catalog.
func Scenarios() []Scenario {
	out := make([]Scenario, len(catalog))
	copy(out, catalog)
	return out
}

// FindScenario looks up a catalog entry by name, ignoring case.
func FindScenario(name string) (Scenario, bool) {
	name = strings.TrimSpace(name)
	for _, s := range catalog {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return Scenario{}, false
}
