// Package timezone provides pure wall-clock/instant arithmetic for phase
// scheduling. Functions prefer a safe fallback plus a logged warning over an
// error, because they back monitoring and UI surfaces.
package timezone

import (
	"fmt"
	"log/slog"
	"time"
)

// Service is stateless; Logger and Now are injectable for tests.
type Service struct {
	Logger *slog.Logger
	Now    func() time.Time
}

func (s Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ProjectTimezone resolves the effective zone for a project: project timezone
// if valid, else the organization timezone, else UTC. It never fails.
func (s Service) ProjectTimezone(projectTZ *string, orgTZ string) string {
	if projectTZ != nil && s.ValidateTimezone(*projectTZ) {
		return *projectTZ
	}
	if orgTZ != "" && s.ValidateTimezone(orgTZ) {
		return orgTZ
	}
	s.logger().Warn("no resolvable timezone; falling back to UTC", "org_timezone", orgTZ)
	return "UTC"
}

// TransitionTime computes the UTC instant at which the given wall-clock time
// ("HH:MM") occurs on date's calendar day in the given zone. The zone's
// offset is resolved at that date. Malformed input logs an error and returns
// the input date unchanged.
func (s Service) TransitionTime(date time.Time, hhmm, tz string) time.Time {
	hour, minute, err := parseClock(hhmm)
	if err != nil {
		s.logger().Error("invalid transition time", "time", hhmm, "err", err)
		return date
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.logger().Error("invalid timezone for transition time", "timezone", tz, "err", err)
		return date
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, loc).UTC()
}

// IsTransitionDue reports whether the scheduled instant is at or before now.
func (s Service) IsTransitionDue(instant time.Time) bool {
	return !instant.After(s.now())
}

// usDaylightZones are the continental-US zones the summer heuristic covers.
// Arizona (America/Phoenix) does not observe DST and is deliberately absent.
var usDaylightZones = map[string]bool{
	"America/New_York":    true,
	"America/Detroit":     true,
	"America/Chicago":     true,
	"America/Denver":      true,
	"America/Boise":       true,
	"America/Los_Angeles": true,
}

// HandleDaylightSaving applies a fixed one-hour adjustment for US zones
// between April and October. This is a heuristic, not a tzdata walk; gate
// instants themselves are computed with the real zone database in
// TransitionTime, so the heuristic only feeds diagnostics.
func (s Service) HandleDaylightSaving(date time.Time, tz string) time.Time {
	if !usDaylightZones[tz] {
		return date
	}
	if m := date.Month(); m >= time.April && m <= time.October {
		return date.Add(-time.Hour)
	}
	return date
}

// ValidateTimezone reports whether id resolves in the zone database.
func (s Service) ValidateTimezone(id string) bool {
	if id == "" {
		return false
	}
	if _, err := time.LoadLocation(id); err != nil {
		s.logger().Warn("unresolvable timezone", "timezone", id)
		return false
	}
	return true
}

// OffsetDifference returns the difference in minutes between the current UTC
// offsets of two zones (a minus b). Returns 0 rather than failing.
func (s Service) OffsetDifference(a, b string) int {
	locA, err := time.LoadLocation(a)
	if err != nil {
		s.logger().Warn("offset difference: unresolvable timezone", "timezone", a)
		return 0
	}
	locB, err := time.LoadLocation(b)
	if err != nil {
		s.logger().Warn("offset difference: unresolvable timezone", "timezone", b)
		return 0
	}
	now := s.now()
	_, offA := now.In(locA).Zone()
	_, offB := now.In(locB).Zone()
	return (offA - offB) / 60
}

func parseClock(hhmm string) (int, int, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(hhmm, "%2d:%2d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", hhmm)
	}
	if len(hhmm) != 5 || hhmm[2] != ':' {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", hhmm)
	}
	if hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("hour %d out of range", hour)
	}
	if minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("minute %d out of range", minute)
	}
	return hour, minute, nil
}
