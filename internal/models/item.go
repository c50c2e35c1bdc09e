// Package models defines core data structures for timeline items, clusters, and queries.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// SourceType identifies where a timeline item came from.
type SourceType string

const (
	SourceScreenshot SourceType = "screenshot"
	SourceNote       SourceType = "note"
	SourceEmail      SourceType = "email"
	SourceMeeting    SourceType = "meeting"
)

// SourceTypes lists every supported source in a stable order.
var SourceTypes = []SourceType{SourceScreenshot, SourceNote, SourceEmail, SourceMeeting}

// Valid reports whether s is one of the supported sources.
func (s SourceType) Valid() bool {
	switch s {
	case SourceScreenshot, SourceNote, SourceEmail, SourceMeeting:
		return true
	}
	return false
}

// Category is the single label the concept extractor assigns to an item.
type Category string

const (
	CategoryProject       Category = "project"
	CategoryMeeting       Category = "meeting"
	CategoryIdea          Category = "idea"
	CategoryTask          Category = "task"
	CategoryCommunication Category = "communication"
	CategoryResearch      Category = "research"
	CategoryPlanning      Category = "planning"
	CategoryReview        Category = "review"
	CategoryOther         Category = "other"
)

// Categories is the closed set of categories, in tie-break order.
var Categories = []Category{
	CategoryProject, CategoryMeeting, CategoryIdea, CategoryTask, CategoryCommunication,
	CategoryResearch, CategoryPlanning, CategoryReview, CategoryOther,
}

// ParseCategory maps s onto the closed set. Unknown values return false.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// TimelineItem is one artifact from any source placed on the unified timeline.
type TimelineItem struct {
	ID                string     `json:"id" db:"id"`
	SourceType        SourceType `json:"source_type" db:"source_type"`
	SourceID          string     `json:"source_id,omitempty" db:"source_id"`
	Title             string     `json:"title" db:"title"`
	Content           string     `json:"content" db:"content"`
	Timestamp         time.Time  `json:"timestamp" db:"timestamp"`
	LastModified      *time.Time `json:"last_modified,omitempty" db:"last_modified"`
	Metadata          Metadata   `json:"metadata" db:"metadata"`
	ExtractedConcepts []string   `json:"extracted_concepts" db:"-"`
	ConceptCategories []Category `json:"concept_categories" db:"categories"`
	ImportanceScore   float64    `json:"importance_score" db:"importance_score"`
	Summary           string     `json:"summary,omitempty" db:"summary"`
	RelatedItems      []string   `json:"related_items,omitempty" db:"-"`
}

// HasConcept reports whether c is among the item's extracted concepts.
func (t *TimelineItem) HasConcept(c string) bool {
	for _, x := range t.ExtractedConcepts {
		if x == c {
			return true
		}
	}
	return false
}

// UnmarshalJSON decodes an item, resolving the metadata variant from source_type.
func (t *TimelineItem) UnmarshalJSON(data []byte) error {
	type plain TimelineItem
	aux := struct {
		*plain
		Metadata json.RawMessage `json:"metadata"`
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	md, err := DecodeMetadata(t.SourceType, aux.Metadata)
	if err != nil {
		return fmt.Errorf("item %s: %w", t.ID, err)
	}
	t.Metadata = md
	return nil
}

// RawItem is a provider-native record as returned by a source connector.
// It is consumed only by the normalizer.
type RawItem struct {
	Source    SourceType          `json:"source"`
	NativeID  string              `json:"native_id"`
	Timestamp string              `json:"timestamp"`
	Modified  string              `json:"modified,omitempty"`
	Title     string              `json:"title,omitempty"`
	Body      string              `json:"body,omitempty"`
	Format    ContentFormat       `json:"format,omitempty"`
	Turns     []Turn              `json:"turns,omitempty"`
	Fields    map[string]string   `json:"fields,omitempty"`
	Lists     map[string][]string `json:"lists,omitempty"`
}

// ContentFormat describes how RawItem.Body is encoded.
type ContentFormat string

const (
	FormatPlain      ContentFormat = "plain"
	FormatHTML       ContentFormat = "html"
	FormatMarkdown   ContentFormat = "markdown"
	FormatTranscript ContentFormat = "transcript"
)

// Turn is one speaker turn of a meeting transcript.
type Turn struct {
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
	Offset  float64 `json:"offset,omitempty"`
}
