package timeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Accepted timestamp layouts, tried in order. The exports are not consistent:
// the ticketing CSV writes ISO-ish datetimes, the calendar feed RFC3339, and
// the vehicle log day-first dates.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"01/02/2006 15:04:05",
}

func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", s)
}

// parseDecimalHours converts a decimal-hours string ("1.5", "0,75") into
// minutes. The vehicle log uses both dot and comma separators.
func parseDecimalHours(s string) (int, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0, fmt.Errorf("empty hours value")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("unparsable hours %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative hours %q", s)
	}
	return int(d.Mul(decimal.NewFromInt(60)).IntPart()), nil
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// extractCandidates normalizes every raw record into an Event candidate with
// its source baseline confidence. Rows missing mandatory fields or carrying
// unparsable dates are dropped and counted, never fatal.
func (b *Builder) extractCandidates(day time.Time, records SourceRecords) (events []*Event, skipped int) {
	for _, rec := range records.Ticketing {
		e, err := b.ticketingEvent(rec)
		if err != nil {
			skipped++
			continue
		}
		events = append(events, e)
	}
	for _, rec := range records.Vehicle {
		e, err := b.vehicleEvent(day, rec)
		if err != nil {
			skipped++
			continue
		}
		events = append(events, e)
	}
	for _, rec := range records.RemoteSessions {
		e, err := b.sessionEvent(rec)
		if err != nil {
			skipped++
			continue
		}
		events = append(events, e)
	}
	for _, rec := range records.Calendar {
		e, err := b.calendarEvent(rec)
		if err != nil {
			skipped++
			continue
		}
		events = append(events, e)
	}
	return events, skipped
}

func (b *Builder) ticketingEvent(rec TicketingRecord) (*Event, error) {
	client := strings.TrimSpace(rec.Client)
	if client == "" {
		return nil, fmt.Errorf("ticketing record without client")
	}
	start, err := parseTimestamp(rec.Start, b.cfg.Location)
	if err != nil {
		return nil, err
	}
	var end *time.Time
	if t, err := parseTimestamp(rec.End, b.cfg.Location); err == nil && !t.Before(start) {
		end = &t
	}
	e, err := NewEvent(SourceTicketing, KindActivity, start, end)
	if err != nil {
		return nil, err
	}
	e.Client = client
	e.Description = strings.TrimSpace(rec.Description)
	e.Location = ParseLocationType(rec.LocationType)
	e.Status = StatusPrimary
	return e, nil
}

func (b *Builder) vehicleEvent(day time.Time, rec VehicleRecord) (*Event, error) {
	dest := strings.TrimSpace(rec.Destination)
	if dest == "" {
		return nil, fmt.Errorf("vehicle record without destination")
	}
	minutes, hoursErr := parseDecimalHours(rec.Hours)

	start, err := parseTimestamp(rec.Start, b.cfg.Location)
	if err != nil {
		if hoursErr != nil {
			return nil, fmt.Errorf("vehicle record without usable time data")
		}
		// No timestamps in the log: anchor at the working-day open and
		// let the reported duration carry the interval.
		start = day.Add(time.Duration(b.cfg.WorkdayStartMinute) * time.Minute)
	}

	var e *Event
	if end, endErr := parseTimestamp(rec.End, b.cfg.Location); endErr == nil && end.After(start) {
		e, err = NewEvent(SourceVehicle, KindTravel, start, &end)
	} else {
		if hoursErr != nil {
			return nil, fmt.Errorf("vehicle record without end time or hours")
		}
		e, err = NewDurationEvent(SourceVehicle, KindTravel, start, minutes)
	}
	if err != nil {
		return nil, err
	}
	e.Client = dest
	e.Description = "Vehicle trip: " + dest
	e.Location = LocationTravel
	return e, nil
}

func (b *Builder) sessionEvent(rec SessionRecord) (*Event, error) {
	start, err := parseTimestamp(rec.Start, b.cfg.Location)
	if err != nil {
		return nil, err
	}
	if rec.DurationMinutes < b.cfg.MinSessionMinutes {
		return nil, fmt.Errorf("session below significance threshold")
	}
	e, err := NewDurationEvent(SourceRemoteSession, KindSession, start, rec.DurationMinutes)
	if err != nil {
		return nil, err
	}
	e.Client = strings.TrimSpace(rec.Computer)
	e.Description = "Remote session: " + strings.TrimSpace(rec.User)
	e.Location = LocationRemote
	return e, nil
}

func (b *Builder) calendarEvent(rec CalendarRecord) (*Event, error) {
	client := strings.TrimSpace(rec.Client)
	if client == "" {
		client = strings.TrimSpace(rec.Location)
	}
	if client == "" {
		return nil, fmt.Errorf("calendar record without client or location")
	}
	start, err := parseTimestamp(rec.Start, b.cfg.Location)
	if err != nil {
		return nil, err
	}
	var end *time.Time
	if t, err := parseTimestamp(rec.End, b.cfg.Location); err == nil && t.After(start) {
		end = &t
	}
	e, err := NewEvent(SourceCalendar, KindActivity, start, end)
	if err != nil {
		return nil, err
	}
	e.Client = client
	e.Description = "Scheduled appointment: " + client
	e.Location = LocationOnsite
	return e, nil
}
