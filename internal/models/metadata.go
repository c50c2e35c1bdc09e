package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Metadata holds the source-specific attributes of an item. Exactly one variant is
// set and it must match the item's source type.
type Metadata struct {
	Screenshot *ScreenshotMetadata
	Note       *NoteMetadata
	Email      *EmailMetadata
	Meeting    *MeetingMetadata
}

// ScreenshotMetadata describes a captured screen.
type ScreenshotMetadata struct {
	Filename     string `json:"filename,omitempty"`
	OriginalPath string `json:"original_path,omitempty"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	Device       string `json:"device,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
}

// NoteMetadata describes a note from a notes application export.
type NoteMetadata struct {
	Folder     string     `json:"folder,omitempty"`
	Account    string     `json:"account,omitempty"`
	WordCount  int        `json:"word_count"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	ModifiedAt *time.Time `json:"modified_at,omitempty"`
}

// EmailMetadata describes one message.
type EmailMetadata struct {
	From           string   `json:"from,omitempty"`
	To             []string `json:"to,omitempty"`
	Cc             []string `json:"cc,omitempty"`
	Folder         string   `json:"folder,omitempty"`
	MessageID      string   `json:"message_id,omitempty"`
	HasAttachments bool     `json:"has_attachments"`
}

// MeetingMetadata describes a recorded meeting.
type MeetingMetadata struct {
	Participants    []string `json:"participants,omitempty"`
	Organizer       string   `json:"organizer,omitempty"`
	DurationMinutes float64  `json:"duration_minutes"`
	URL             string   `json:"url,omitempty"`
	ActionItems     []string `json:"action_items,omitempty"`
	HasActionItems  bool     `json:"has_action_items"`
}

// Devices a screenshot can be attributed to.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
	DeviceUnknown = "unknown"
)

// Kind returns the source type of the active variant, or "" when none is set.
func (m Metadata) Kind() SourceType {
	switch {
	case m.Screenshot != nil:
		return SourceScreenshot
	case m.Note != nil:
		return SourceNote
	case m.Email != nil:
		return SourceEmail
	case m.Meeting != nil:
		return SourceMeeting
	}
	return ""
}

func (m Metadata) variants() int {
	n := 0
	if m.Screenshot != nil {
		n++
	}
	if m.Note != nil {
		n++
	}
	if m.Email != nil {
		n++
	}
	if m.Meeting != nil {
		n++
	}
	return n
}

// Validate checks that exactly one variant is set, that it belongs to source and
// that its fields are in range.
func (m Metadata) Validate(source SourceType) error {
	if n := m.variants(); n != 1 {
		return fmt.Errorf("metadata must have exactly one variant, got %d", n)
	}
	if k := m.Kind(); k != source {
		return fmt.Errorf("metadata variant %q does not match source %q", k, source)
	}
	switch {
	case m.Screenshot != nil:
		s := m.Screenshot
		if s.Width < 0 || s.Height < 0 || s.FileSize < 0 {
			return fmt.Errorf("screenshot dimensions and size must be non-negative")
		}
		switch s.Device {
		case "", DeviceMobile, DeviceTablet, DeviceDesktop, DeviceUnknown:
		default:
			return fmt.Errorf("unknown screenshot device %q", s.Device)
		}
	case m.Note != nil:
		if m.Note.WordCount < 0 {
			return fmt.Errorf("note word count must be non-negative")
		}
	case m.Meeting != nil:
		if m.Meeting.DurationMinutes < 0 {
			return fmt.Errorf("meeting duration must be non-negative")
		}
		if m.Meeting.HasActionItems != (len(m.Meeting.ActionItems) > 0) {
			return fmt.Errorf("meeting has_action_items disagrees with action_items")
		}
	}
	return nil
}

// MarshalJSON encodes the active variant as a flat object.
func (m Metadata) MarshalJSON() ([]byte, error) {
	switch {
	case m.Screenshot != nil:
		return json.Marshal(m.Screenshot)
	case m.Note != nil:
		return json.Marshal(m.Note)
	case m.Email != nil:
		return json.Marshal(m.Email)
	case m.Meeting != nil:
		return json.Marshal(m.Meeting)
	}
	return []byte("{}"), nil
}

// DecodeMetadata decodes a flat metadata object into the variant for source.
// Empty input yields an empty variant.
func DecodeMetadata(source SourceType, data []byte) (Metadata, error) {
	if len(data) == 0 || string(data) == "null" {
		data = []byte("{}")
	}
	var (
		m   Metadata
		err error
	)
	switch source {
	case SourceScreenshot:
		m.Screenshot = &ScreenshotMetadata{}
		err = json.Unmarshal(data, m.Screenshot)
	case SourceNote:
		m.Note = &NoteMetadata{}
		err = json.Unmarshal(data, m.Note)
	case SourceEmail:
		m.Email = &EmailMetadata{}
		err = json.Unmarshal(data, m.Email)
	case SourceMeeting:
		m.Meeting = &MeetingMetadata{}
		err = json.Unmarshal(data, m.Meeting)
	default:
		return Metadata{}, fmt.Errorf("unknown source type %q", source)
	}
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to decode %s metadata: %w", source, err)
	}
	return m, nil
}
