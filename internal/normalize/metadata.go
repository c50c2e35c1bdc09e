package normalize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperjump/mindline/internal/models"
)

// buildMetadata maps the raw item's loose fields onto the metadata variant of its source.
func buildMetadata(raw models.RawItem, content string) (models.Metadata, error) {
	f := fields(raw.Fields)
	switch raw.Source {
	case models.SourceScreenshot:
		w, err := f.intField(models.FieldWidth)
		if err != nil {
			return models.Metadata{}, err
		}
		h, err := f.intField(models.FieldHeight)
		if err != nil {
			return models.Metadata{}, err
		}
		size, err := f.int64Field(models.FieldFileSize)
		if err != nil {
			return models.Metadata{}, err
		}
		return models.Metadata{Screenshot: &models.ScreenshotMetadata{
			Filename:     f[models.FieldFilename],
			OriginalPath: f[models.FieldOriginalPath],
			Width:        w,
			Height:       h,
			Device:       ProbableDevice(w, h),
			FileSize:     size,
		}}, nil

	case models.SourceNote:
		md := &models.NoteMetadata{
			Folder:    f[models.FieldFolder],
			Account:   f[models.FieldAccount],
			WordCount: len(strings.Fields(content)),
		}
		if t, err := ParseTimestamp(f[models.FieldCreated]); err == nil {
			md.CreatedAt = &t
		}
		if t, err := ParseTimestamp(raw.Modified); err == nil {
			md.ModifiedAt = &t
		}
		return models.Metadata{Note: md}, nil

	case models.SourceEmail:
		att, err := f.boolField(models.FieldHasAttachments)
		if err != nil {
			return models.Metadata{}, err
		}
		return models.Metadata{Email: &models.EmailMetadata{
			From:           f[models.FieldFrom],
			To:             nonEmpty(raw.Lists[models.ListTo]),
			Cc:             nonEmpty(raw.Lists[models.ListCc]),
			Folder:         f[models.FieldFolder],
			MessageID:      f[models.FieldMessageID],
			HasAttachments: att,
		}}, nil

	case models.SourceMeeting:
		dur, err := f.floatField(models.FieldDurationMinutes)
		if err != nil {
			return models.Metadata{}, err
		}
		actions := nonEmpty(raw.Lists[models.ListActionItems])
		return models.Metadata{Meeting: &models.MeetingMetadata{
			Participants:    nonEmpty(raw.Lists[models.ListParticipants]),
			Organizer:       f[models.FieldOrganizer],
			DurationMinutes: dur,
			URL:             f[models.FieldURL],
			ActionItems:     actions,
			HasActionItems:  len(actions) > 0,
		}}, nil
	}
	return models.Metadata{}, fmt.Errorf("unknown source type %q", raw.Source)
}

// ProbableDevice guesses the capturing device from screenshot dimensions.
func ProbableDevice(width, height int) string {
	switch {
	case width <= 0 || height <= 0:
		return models.DeviceUnknown
	case height > width && width < 900:
		return models.DeviceMobile
	case height > width:
		return models.DeviceTablet
	case float64(width)/float64(height) < 1.45 && width <= 2732:
		return models.DeviceTablet
	}
	return models.DeviceDesktop
}

type fields map[string]string

func (f fields) intField(key string) (int, error) {
	v, err := f.int64Field(key)
	return int(v), err
}

func (f fields) int64Field(key string) (int64, error) {
	s := strings.TrimSpace(f[key])
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", key, err)
	}
	return n, nil
}

func (f fields) floatField(key string) (float64, error) {
	s := strings.TrimSpace(f[key])
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", key, err)
	}
	return n, nil
}

func (f fields) boolField(key string) (bool, error) {
	s := strings.TrimSpace(f[key])
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("field %s: %w", key, err)
	}
	return b, nil
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
