package kpi

import (
	"sort"

	"github.com/ecodata/plantpulse/internal/period"
	"github.com/ecodata/plantpulse/internal/schema"
)

// ParetoEntry is one stoppage cause in the Pareto ranking.
type ParetoEntry struct {
	EventType   string  `json:"event_type"`
	Count       int     `json:"count"`
	DowntimeMin float64 `json:"downtime_min"`
}

// ParetoOfStoppages ranks stoppage causes among events of medium or
// higher severity. Causes are ordered by total downtime minutes, with
// occurrence count breaking ties, and the list is capped at the
// configured top-N.
func (a *Aggregator) ParetoOfStoppages(events []schema.EventRecord, w period.Window) []ParetoEntry {
	byType := make(map[string]*ParetoEntry)
	for _, e := range events {
		if !w.Contains(e.Timestamp) || e.SeverityCode < schema.SeverityCodeMedium {
			continue
		}
		entry, ok := byType[e.EventType]
		if !ok {
			entry = &ParetoEntry{EventType: e.EventType}
			byType[e.EventType] = entry
		}
		entry.Count++
		entry.DowntimeMin += e.DurationMin
	}

	entries := make([]ParetoEntry, 0, len(byType))
	for _, e := range byType {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].DowntimeMin != entries[j].DowntimeMin {
			return entries[i].DowntimeMin > entries[j].DowntimeMin
		}
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].EventType < entries[j].EventType
	})
	if len(entries) > a.cfg.ParetoTopN {
		entries = entries[:a.cfg.ParetoTopN]
	}
	return entries
}
