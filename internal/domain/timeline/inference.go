package timeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// inferTravel inserts synthetic travel events between consecutive onsite
// visits to different clients, when the gap is plausible for the estimated
// drive: at least the estimate, at most twice it.
func (b *Builder) inferTravel(events []*Event) []*Event {
	out := events
	for i := 0; i+1 < len(events); i++ {
		cur, next := events[i], events[i+1]
		if cur.Location != LocationOnsite || next.Location != LocationOnsite {
			continue
		}
		if cur.Client == "" || next.Client == "" || sameClient(cur, next) {
			continue
		}
		gap := cur.GapMinutes(next)
		estimate := b.cfg.EstimateTravelMinutes(next.Client)
		if estimate <= 0 || gap < estimate || gap > estimate*2 {
			continue
		}
		start := cur.EndOrStart()
		end := next.Start
		out = append(out, &Event{
			ID:              uuid.New(),
			Source:          SourceInferred,
			Kind:            KindTravel,
			Start:           start,
			End:             &end,
			Client:          fmt.Sprintf("%s -> %s", cur.Client, next.Client),
			Description:     "Inferred travel between clients",
			Location:        LocationTravel,
			Confidence:      75,
			Status:          StatusInferred,
			InferenceReason: "travel_between_onsite_clients",
		})
	}
	return out
}

// inferBreaks classifies 30-120 minute gaps between consecutive events as
// breaks: lunch inside the midday window, coffee for short gaps, extended
// for anything over an hour. It must run on the sorted timeline after travel
// inference so a gap already filled by a travel event is not filled again.
func (b *Builder) inferBreaks(events []*Event) []*Event {
	out := events
	for i := 0; i+1 < len(events); i++ {
		cur, next := events[i], events[i+1]
		gap := cur.GapMinutes(next)
		if gap < 30 || gap > 120 {
			continue
		}
		start := cur.EndOrStart()
		end := next.Start
		kind, ok := b.classifyBreak(start, end, gap)
		if !ok {
			continue
		}
		out = append(out, &Event{
			ID:              uuid.New(),
			Source:          SourceInferred,
			Kind:            KindBreak,
			Start:           start,
			End:             &end,
			Description:     "Inferred " + kind + " break",
			Location:        LocationOffice,
			Confidence:      80,
			Status:          StatusInferred,
			InferenceReason: "break_" + kind,
		})
	}
	return out
}

func (b *Builder) classifyBreak(start, end time.Time, gapMinutes int) (string, bool) {
	if b.inMiddayWindow(start) && b.inMiddayWindow(end) && gapMinutes >= 30 {
		return "lunch", true
	}
	if gapMinutes <= 30 {
		return "coffee", true
	}
	return "extended", true
}

func (b *Builder) inMiddayWindow(t time.Time) bool {
	minute := t.Hour()*60 + t.Minute()
	return minute >= b.cfg.MiddayStartMinute && minute <= b.cfg.MiddayEndMinute
}

func sameClient(a, c *Event) bool {
	return containsFold(a.Client, c.Client) || containsFold(c.Client, a.Client)
}
