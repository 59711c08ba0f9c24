package telemetry

import (
	"encoding/json"
	"strconv"
	"time"

	"galway/internal/olive"
)

// Share is an observed count next to the table's expected percentage.
type Share struct {
	Count    int     `json:"count"`
	Observed float64 `json:"observed"`
	Expected int     `json:"expected"`
}

type Stats struct {
	Period       string            `json:"period"`
	EventCounts  map[EventType]int `json:"event_counts"`
	Branches     int               `json:"branches"`
	Registered   int               `json:"registered"`
	Threads      int               `json:"threads"`
	Replies      int               `json:"replies"`
	OliveCounts  map[string]Share  `json:"olive_counts"`
	OliveTypes   map[string]Share  `json:"olive_types"`
	OverallTiers map[string]int    `json:"overall_tiers"`
}

// CalculateStats folds events into counts and the observed olive
// distribution. Only freshly grown branches (generated or planted) count
// toward the distribution; confirmations re-use an earlier candidate.
func CalculateStats(events []Event, since time.Time) (Stats, error) {
	stats := Stats{
		Period:       since.Format("2006-01-02"),
		EventCounts:  make(map[EventType]int),
		OliveCounts:  make(map[string]Share),
		OliveTypes:   make(map[string]Share),
		OverallTiers: make(map[string]int),
	}
	for _, e := range olive.CountTable.Entries {
		stats.OliveCounts[strconv.Itoa(e.Key)] = Share{Expected: e.Percentage()}
	}
	for _, e := range olive.TypeTable.Entries {
		stats.OliveTypes[e.DisplayName] = Share{Expected: e.Percentage()}
	}

	for _, event := range events {
		stats.EventCounts[event.Type]++

		switch event.Type {
		case EventUserRegistered:
			stats.Registered++
			continue
		case EventThreadCreated:
			stats.Threads++
			continue
		case EventReplyCreated:
			stats.Replies++
			continue
		case EventBranchGenerated, EventSeedPlanted:
		default:
			continue
		}

		var metadata EventMetadata
		if err := json.Unmarshal([]byte(event.Metadata), &metadata); err != nil {
			continue
		}
		stats.Branches++
		if n, ok := metadata["olive_count"].(float64); ok {
			key := strconv.Itoa(int(n))
			s := stats.OliveCounts[key]
			s.Count++
			stats.OliveCounts[key] = s
		}
		if typ, ok := metadata["olive_type"].(string); ok {
			s := stats.OliveTypes[typ]
			s.Count++
			stats.OliveTypes[typ] = s
		}
		if tier, ok := metadata["rarity"].(string); ok {
			stats.OverallTiers[tier]++
		}
	}

	if stats.Branches > 0 {
		total := float64(stats.Branches)
		for k, s := range stats.OliveCounts {
			s.Observed = float64(s.Count) / total
			stats.OliveCounts[k] = s
		}
		for k, s := range stats.OliveTypes {
			s.Observed = float64(s.Count) / total
			stats.OliveTypes[k] = s
		}
	}
	return stats, nil
}
