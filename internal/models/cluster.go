package models

import "time"

// ConceptCluster is a named group of related concepts and the items that share them.
type ConceptCluster struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Concepts        []string   `json:"concepts"`
	TimelineItemIDs []string   `json:"timeline_item_ids"`
	ImportanceScore float64    `json:"importance_score"`
	TimeRange       *TimeRange `json:"time_range,omitempty"`
}

// TimeRange is an inclusive span of time.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t lies within the range, bounds included.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}
