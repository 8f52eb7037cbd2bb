package pollen

// Flow is the conversational mode that selects a narrative template.
type Flow string

const (
	FlowMorningCheckIn   Flow = "Morning Check-in"
	FlowActivityPlanning Flow = "Activity Planning"
	FlowBadDayRecovery   Flow = "Bad Day Recovery"
	FlowGeneral          Flow = "General"
)

// Flows lists the recognised flows in display order.
func Flows() []Flow {
	return []Flow{FlowMorningCheckIn, FlowActivityPlanning, FlowBadDayRecovery, FlowGeneral}
}

// Description returns the focus line shown for a flow. Unknown flows get the
// generic description.
func (f Flow) Description() string {
	switch f {
	case FlowMorningCheckIn:
		return "Start your day with current risk levels and proactive recommendations"
	case FlowActivityPlanning:
		return "Get specific timing advice for outdoor activities and alternatives"
	case FlowBadDayRecovery:
		return "Immediate relief strategies and validation during symptom flare-ups"
	default:
		return "AI-powered hayfever management for Melbourne residents"
	}
}
