package timeline

// SourceRecords holds one technician day's raw records as exported by the
// five systems of record. Field values are carried as written in the exports;
// normalization parses, validates, and drops what it cannot use.
type SourceRecords struct {
	Ticketing      []TicketingRecord `json:"ticketing"`
	Vehicle        []VehicleRecord   `json:"vehicle"`
	RemoteSessions []SessionRecord   `json:"remote_sessions"`
	Calendar       []CalendarRecord  `json:"calendar"`
	TimeClock      []PunchRecord     `json:"time_clock"`
}

// IsEmpty reports whether no source delivered any record.
func (r SourceRecords) IsEmpty() bool {
	return len(r.Ticketing) == 0 && len(r.Vehicle) == 0 &&
		len(r.RemoteSessions) == 0 && len(r.Calendar) == 0 && len(r.TimeClock) == 0
}

// TicketingRecord is one activity row from the ticketing system export.
// Client and Start are mandatory; rows without them are dropped.
type TicketingRecord struct {
	ID           string `json:"id"`
	Client       string `json:"client"`
	Description  string `json:"description"`
	Start        string `json:"start"`
	End          string `json:"end"`
	LocationType string `json:"location_type"`
}

// VehicleRecord is one company-vehicle usage row. Hours is a decimal-hours
// string ("1.5"); when Start/End are absent the duration is the source of
// truth and the start is estimated at the working-day open.
type VehicleRecord struct {
	Destination string `json:"destination"`
	Hours       string `json:"hours"`
	Start       string `json:"start"`
	End         string `json:"end"`
}

// SessionRecord is one remote-control session log row.
type SessionRecord struct {
	Computer        string `json:"computer"`
	User            string `json:"user"`
	Start           string `json:"start"`
	DurationMinutes int    `json:"duration_minutes"`
}

// CalendarRecord is one appointment from the shared calendar feed.
type CalendarRecord struct {
	Client   string `json:"client"`
	Location string `json:"location"`
	Start    string `json:"start"`
	End      string `json:"end"`
}

// PunchRecord is one time-clock punch ("in"/"out").
type PunchRecord struct {
	Direction string `json:"direction"`
	At        string `json:"at"`
}
