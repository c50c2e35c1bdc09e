package models

import (
	"fmt"
	"math"
	"time"
)

// MaxListLimit caps the page size of list queries.
const MaxListLimit = 10000

// Earliest and Latest are the first and last instants representable as int64
// nanoseconds since the Unix epoch, 1677-09-21 to 2262-04-11. They bound
// open-ended time ranges and every stored timestamp.
var (
	Earliest = time.Unix(0, math.MinInt64).UTC()
	Latest   = time.Unix(0, math.MaxInt64).UTC()
)

// EndOfDay returns the last instant of the calendar day that starts at day,
// in day's location. Date-only upper bounds expand to it so that the named day
// is included.
func EndOfDay(day time.Time) time.Time {
	return day.AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// Storable reports whether t lies within [Earliest, Latest].
func Storable(t time.Time) bool {
	return !t.Before(Earliest) && !t.After(Latest)
}

// ListOptions controls ordering and paging of list results.
// The zero value lists everything, newest first.
type ListOptions struct {
	Ascending bool         `json:"ascending,omitempty"`
	Limit     int          `json:"limit,omitempty"`
	Offset    int          `json:"offset,omitempty"`
	Sources   []SourceType `json:"sources,omitempty"`
}

// Validate normalizes paging values and rejects unknown sources.
func (o *ListOptions) Validate() error {
	if o.Limit < 0 {
		o.Limit = 0
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	for _, s := range o.Sources {
		if !s.Valid() {
			return fmt.Errorf("unknown source type %q", s)
		}
	}
	return nil
}

// ConceptCount is a concept and the number of stored items that contain it.
type ConceptCount struct {
	Concept string `json:"concept"`
	Count   int    `json:"count"`
}

// Stats summarizes the items of a time range.
type Stats struct {
	TotalItems             int                `json:"total_items"`
	BySource               map[SourceType]int `json:"by_source"`
	ByCategory             map[Category]int   `json:"by_category"`
	AverageConceptsPerItem float64            `json:"average_concepts_per_item"`
	DateRange              *TimeRange         `json:"date_range,omitempty"`
}

// TimeWindow groups the items of one fixed-size slice of time.
type TimeWindow struct {
	Start           time.Time          `json:"start"`
	End             time.Time          `json:"end"`
	ItemIDs         []string           `json:"item_ids"`
	BySource        map[SourceType]int `json:"by_source"`
	TopConcepts     []string           `json:"top_concepts"`
	ActivitySummary string             `json:"activity_summary"`
	// ImportanceScore is the mean importance of the window's items.
	ImportanceScore float64 `json:"importance_score"`
	HasMeeting      bool    `json:"has_meeting"`
}
