package timeline

// resolveConflicts scans candidates in start order and removes contradictory
// overlaps. Same-client events from different sources are corroboration, not
// contradiction; they are left for the near-duplicate merge.
//
// Resolution policy: higher base confidence wins, then longer duration, then
// earlier start. The loser is superseded and survives only as audit evidence.
func (b *Builder) resolveConflicts(candidates []*Event) (kept, superseded []*Event) {
	kept = make([]*Event, 0, len(candidates))
	for _, cur := range candidates {
		placed := true
		for i := 0; i < len(kept); i++ {
			prev := kept[i]
			if prev.OverlapMinutes(cur) <= b.cfg.OverlapToleranceMinutes {
				continue
			}
			if b.mergeable(prev, cur) {
				continue
			}
			if winsConflict(prev, cur) {
				// The loser still tells us its source saw activity here.
				if prev.Source != cur.Source {
					prev.Corroborate(cur.Source)
				}
				superseded = append(superseded, cur)
				placed = false
				break
			}
			if cur.Source != prev.Source {
				cur.Corroborate(prev.Source)
			}
			superseded = append(superseded, prev)
			kept = append(kept[:i], kept[i+1:]...)
			i--
		}
		if placed {
			kept = append(kept, cur)
		}
	}
	return kept, superseded
}

// winsConflict reports whether a beats b under the resolution policy.
func winsConflict(a, c *Event) bool {
	if a.Source.BaseConfidence() != c.Source.BaseConfidence() {
		return a.Source.BaseConfidence() > c.Source.BaseConfidence()
	}
	if a.DurationMinutes() != c.DurationMinutes() {
		return a.DurationMinutes() > c.DurationMinutes()
	}
	return !a.Start.After(c.Start)
}

// mergeable marks pairs the merge step owns: same client reported by two
// different sources for the same kind of work.
func (b *Builder) mergeable(a, c *Event) bool {
	if a.Source == c.Source || a.Kind != c.Kind {
		return false
	}
	if a.Client == "" || c.Client == "" {
		return false
	}
	return containsFold(a.Client, c.Client) || containsFold(c.Client, a.Client)
}

// mergeNearDuplicates collapses same-client events from different sources
// whose intervals overlap or sit within the proximity window. The
// higher-confidence source keeps the record; the other becomes a
// corroborating source and widens the interval.
func (b *Builder) mergeNearDuplicates(events []*Event) []*Event {
	if len(events) < 2 {
		return events
	}
	merged := make([]*Event, 0, len(events))
	merged = append(merged, events[0])
	for _, cur := range events[1:] {
		last := merged[len(merged)-1]
		if b.mergeable(last, cur) && b.withinProximity(last, cur) {
			merged[len(merged)-1] = b.mergeEvents(last, cur)
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}

func (b *Builder) withinProximity(a, c *Event) bool {
	if a.OverlapMinutes(c) > 0 {
		return true
	}
	gap := a.GapMinutes(c)
	if gap < 0 {
		gap = -gap
	}
	return gap <= b.cfg.ProximityWindowMinutes
}

func (b *Builder) mergeEvents(a, c *Event) *Event {
	keeper, other := a, c
	if winsConflict(c, a) {
		keeper, other = c, a
	}
	if other.Start.Before(keeper.Start) {
		keeper.Start = other.Start
	}
	if keeper.End == nil || (other.End != nil && other.End.After(*keeper.End)) {
		keeper.End = other.End
	}
	keeper.Corroborate(other.Source)
	for _, s := range other.Supporting {
		keeper.Corroborate(s)
	}
	return keeper
}
