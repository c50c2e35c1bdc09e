package meeting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const transcriptsQuery = `query Transcripts($fromDate: DateTime, $toDate: DateTime, $limit: Int, $skip: Int) {
  transcripts(fromDate: $fromDate, toDate: $toDate, limit: $limit, skip: $skip) {
    id
    title
    date
    duration
    transcript_url
    meeting_link
    participants
    organizer_email
    summary {
      overview
      action_items
    }
    sentences {
      text
      speaker_name
      start_time
    }
  }
}`

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message    string         `json:"message"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

type transcriptsResponse struct {
	Data struct {
		Transcripts []transcript `json:"transcripts"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type transcript struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Date           flexTime   `json:"date"`
	Duration       float64    `json:"duration"`
	TranscriptURL  string     `json:"transcript_url"`
	MeetingLink    string     `json:"meeting_link"`
	Participants   []string   `json:"participants"`
	OrganizerEmail string     `json:"organizer_email"`
	Summary        *summary   `json:"summary"`
	Sentences      []sentence `json:"sentences"`
}

type summary struct {
	Overview    string     `json:"overview"`
	ActionItems stringList `json:"action_items"`
}

type sentence struct {
	Text        string  `json:"text"`
	SpeakerName string  `json:"speaker_name"`
	StartTime   float64 `json:"start_time"`
}

// flexTime accepts either epoch milliseconds or an RFC 3339 string.
type flexTime struct{ time.Time }

func (t *flexTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			t.Time = time.UnixMilli(ms).UTC()
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("date %q: %w", s, err)
		}
		t.Time = parsed.UTC()
		return nil
	}
	ms, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("date %s: %w", b, err)
	}
	t.Time = time.UnixMilli(int64(ms)).UTC()
	return nil
}

// stringList accepts a JSON array of strings or one newline separated string.
type stringList []string

func (l *stringList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '[' {
		var list []string
		if err := json.Unmarshal(b, &list); err != nil {
			return err
		}
		*l = list
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*• "))
		if line != "" {
			*l = append(*l, line)
		}
	}
	return nil
}
