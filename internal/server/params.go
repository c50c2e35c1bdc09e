package server

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/mindline/internal/models"
)

// listParams are the paging and filter parameters shared by list endpoints.
type listParams struct {
	Limit   int      `validate:"min=0,max=10000"`
	Offset  int      `validate:"min=0"`
	Order   string   `validate:"omitempty,oneof=asc desc"`
	Sources []string `validate:"dive,oneof=screenshot note email meeting"`
}

func (p listParams) options() models.ListOptions {
	opts := models.ListOptions{Limit: p.Limit, Offset: p.Offset, Ascending: p.Order == "asc"}
	for _, s := range p.Sources {
		opts.Sources = append(opts.Sources, models.SourceType(s))
	}
	return opts
}

func (s *Server) parseList(q url.Values) (models.ListOptions, error) {
	var p listParams
	var err error
	if p.Limit, err = intParam(q, "limit", 100); err != nil {
		return models.ListOptions{}, err
	}
	if p.Offset, err = intParam(q, "offset", 0); err != nil {
		return models.ListOptions{}, err
	}
	p.Order = strings.ToLower(q.Get("order"))
	p.Sources = listParam(q, "source")
	if err := s.validate.Struct(p); err != nil {
		return models.ListOptions{}, err
	}
	return p.options(), nil
}

// parseRange reads start and end. A missing bound leaves the range open on
// that side. A date-only end covers the whole day.
func parseRange(q url.Values) (time.Time, time.Time, error) {
	start, end := models.Earliest, models.Latest
	var err error
	if v := q.Get("start"); v != "" {
		if start, err = parseTime(v); err != nil {
			return start, end, fmt.Errorf("start: %w", err)
		}
	}
	if v := q.Get("end"); v != "" {
		if end, err = parseEnd(v); err != nil {
			return start, end, fmt.Errorf("end: %w", err)
		}
	}
	return start, end, nil
}

// parseTime accepts RFC 3339 timestamps and plain dates.
func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q", v)
	}
	return t, nil
}

// parseEnd is parseTime for inclusive upper bounds: a plain date means the end
// of that day.
func parseEnd(v string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return models.EndOfDay(t), nil
	}
	return parseTime(v)
}

func intParam(q url.Values, key string, def int) (int, error) {
	v := q.Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: not an integer", key)
	}
	return n, nil
}

// listParam reads a repeated or comma separated parameter.
func listParam(q url.Values, key string) []string {
	var out []string
	for _, v := range q[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
