package util

import (
	"log/slog"
	"time"
)

// MelbourneZone is the default zone for advice timing.
const MelbourneZone = "Australia/Melbourne"

// LoadZone resolves an IANA zone, falling back to a fixed AEST offset when
// the tz database is unavailable.
func LoadZone(name string, logger *slog.Logger) *time.Location {
	if name == "" {
		name = MelbourneZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		if logger != nil {
			logger.Warn("timezone unavailable, using fixed +10:00 offset", "zone", name, "error", err)
		}
		return time.FixedZone("AEST", 10*60*60)
	}
	return loc
}

// ClockTime formats t as 24-hour HH:MM in loc.
func ClockTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("15:04")
}
