// Package screenshot reads the markdown reports written for analyzed screenshots.
//
// A report looks like:
//
//	# Screenshot Analysis: Screenshot 2024-01-02 at 10.11.12.png
//
//	## Metadata
//	- **File**: Screenshot 2024-01-02 at 10.11.12.png
//	- **Created**: 2024-01-02T10:11:12
//	- **Dimensions**: 2880x1800
//	- **Size**: 482113 bytes
//	- **Original Path**: /Users/me/Desktop/Screenshot 2024-01-02 at 10.11.12.png
//
//	## LLM Analysis
//	...text read from the image...
//
// Every section except Metadata becomes the item body. Reports without sections
// are taken whole.
package screenshot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/mindline/internal/config"
	"github.com/hyperjump/mindline/internal/connector"
	"github.com/hyperjump/mindline/internal/models"
	"github.com/hyperjump/mindline/internal/normalize"
)

// DefaultExtensions are the report file types read when none are configured.
var DefaultExtensions = []string{".md", ".txt"}

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif"}

var (
	headingRe   = regexp.MustCompile(`^#\s+(?:Screenshot Analysis:\s*)?(.+?)\s*$`)
	sectionRe   = regexp.MustCompile(`^##\s+(.+?)\s*$`)
	metaLineRe  = regexp.MustCompile(`^\s*[-*]\s+\*\*([^*]+)\*\*:\s*(.*?)\s*$`)
	dimensionRe = regexp.MustCompile(`(\d+)\s*[x×]\s*(\d+)`)
	leadingInt  = regexp.MustCompile(`^\d+`)
	skipLineRe  = regexp.MustCompile(`^\*\*Screenshot Link\*\*|^\s*-{3,}\s*$`)

	// macOS: "Screenshot 2024-01-02 at 10.11.12", optionally with " PM".
	macNameRe = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})[ _]at[ _](\d{1,2})[.:](\d{2})[.:](\d{2})(?:\s*([AP]M))?`)
	// Android and others: "Screenshot_20240102-101112".
	compactNameRe = regexp.MustCompile(`(\d{4})(\d{2})(\d{2})[-_](\d{2})(\d{2})(\d{2})`)
)

// Connector reads screenshot reports from a directory.
type Connector struct {
	dir    string
	exts   []string
	loc    *time.Location
	logger *zap.Logger
}

var _ connector.Connector = (*Connector)(nil)

// Option configures a Connector.
type Option func(*Connector)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Connector) { c.logger = logger }
}

// WithLocation sets the zone for timestamps that carry none. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(c *Connector) { c.loc = loc }
}

// New returns a connector for cfg.Dir.
func New(cfg config.ScreenshotSourceConfig, opts ...Option) *Connector {
	c := &Connector{dir: cfg.Dir, exts: cfg.Extensions, loc: time.Local, logger: zap.NewNop()}
	if len(c.exts) == 0 {
		c.exts = DefaultExtensions
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Source returns models.SourceScreenshot.
func (c *Connector) Source() models.SourceType { return models.SourceScreenshot }

// Fetch returns the reports whose screenshot was taken within [start, end].
// Reports that cannot be read are skipped and reported in the returned error
// alongside the items that could be read.
func (c *Connector) Fetch(ctx context.Context, start, end time.Time) ([]models.RawItem, error) {
	var (
		items []models.RawItem
		errs  []error
	)
	err := connector.WalkFiles(ctx, c.dir, c.exts, func(f connector.File) error {
		item, err := c.read(f)
		if err != nil {
			c.logger.Warn("skipping screenshot report", zap.String("path", f.Path), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", f.Rel, err))
			return nil
		}
		ts, _ := time.Parse(time.RFC3339Nano, item.Timestamp)
		if connector.InWindow(ts, start, end) {
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		errs = append(errs, err)
	}
	return items, errors.Join(errs...)
}

type report struct {
	title string
	meta  map[string]string
	body  string
}

func parseReport(text string) report {
	r := report{meta: make(map[string]string)}
	var (
		body     []string
		section  string
		sections bool
	)
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if m := sectionRe.FindStringSubmatch(line); m != nil {
			section = strings.ToLower(m[1])
			sections = true
			continue
		}
		if r.title == "" && !sections {
			if m := headingRe.FindStringSubmatch(line); m != nil {
				r.title = m[1]
				continue
			}
		}
		if m := metaLineRe.FindStringSubmatch(line); m != nil && (section == "metadata" || !sections) {
			r.meta[strings.ToLower(strings.TrimSpace(m[1]))] = m[2]
			if section == "metadata" {
				continue
			}
		}
		if section == "metadata" || skipLineRe.MatchString(line) {
			continue
		}
		body = append(body, line)
	}
	r.body = strings.TrimSpace(strings.Join(body, "\n"))
	return r
}

func (c *Connector) read(f connector.File) (models.RawItem, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return models.RawItem{}, err
	}
	r := parseReport(string(data))

	imagePath := r.meta["original path"]
	if imagePath == "" {
		imagePath = siblingImage(f.Path)
	}
	filename := r.meta["file"]
	if filename == "" && imagePath != "" {
		filename = filepath.Base(imagePath)
	}
	if filename == "" {
		filename = filepath.Base(f.Path)
	}

	ts, ok := c.parseTime(r.meta["created"])
	if !ok {
		ts, ok = c.timeFromName(filename)
	}
	if !ok {
		ts = f.Info.ModTime()
	}

	width, height := parseDimensions(r.meta["dimensions"])
	var size int64
	if m := leadingInt.FindString(strings.TrimSpace(r.meta["size"])); m != "" {
		size, _ = strconv.ParseInt(m, 10, 64)
	}
	if imagePath != "" && (width == 0 || size == 0) {
		w, h, n, err := probeImage(imagePath)
		if err != nil {
			c.logger.Debug("cannot probe screenshot image", zap.String("path", imagePath), zap.Error(err))
		} else if width == 0 {
			width, height = w, h
		}
		if size == 0 {
			size = n
		}
	}

	title := r.title
	if title == "" {
		title = strings.TrimSuffix(filename, filepath.Ext(filename))
	}
	body := r.body
	if body == "" {
		body = strings.TrimSpace(string(data))
	}
	fields := map[string]string{
		models.FieldFilename:     filename,
		models.FieldOriginalPath: imagePath,
		models.FieldWidth:        strconv.Itoa(width),
		models.FieldHeight:       strconv.Itoa(height),
		models.FieldFileSize:     strconv.FormatInt(size, 10),
	}
	return models.RawItem{
		Source:    models.SourceScreenshot,
		NativeID:  f.Rel,
		Timestamp: ts.UTC().Format(time.RFC3339Nano),
		Modified:  f.Info.ModTime().UTC().Format(time.RFC3339Nano),
		Title:     title,
		Body:      body,
		Format:    models.FormatPlain,
		Fields:    fields,
	}, nil
}

// parseTime reads zone-less timestamps in the connector's location and
// anything else through the shared timestamp parser.
func (c *Connector) parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, c.loc); err == nil {
			return t, true
		}
	}
	t, err := normalize.ParseTimestamp(s)
	return t, err == nil
}

func (c *Connector) timeFromName(name string) (time.Time, bool) {
	if m := macNameRe.FindStringSubmatch(name); m != nil {
		n := atoiAll(m[1:7])
		hour := n[3]
		switch {
		case m[7] == "PM" && hour < 12:
			hour += 12
		case m[7] == "AM" && hour == 12:
			hour = 0
		}
		return time.Date(n[0], time.Month(n[1]), n[2], hour, n[4], n[5], 0, c.loc), validDate(n)
	}
	if m := compactNameRe.FindStringSubmatch(name); m != nil {
		n := atoiAll(m[1:7])
		return time.Date(n[0], time.Month(n[1]), n[2], n[3], n[4], n[5], 0, c.loc), validDate(n)
	}
	return time.Time{}, false
}

func atoiAll(in []string) []int {
	out := make([]int, len(in))
	for i, s := range in {
		out[i], _ = strconv.Atoi(s)
	}
	return out
}

func validDate(n []int) bool {
	return n[1] >= 1 && n[1] <= 12 && n[2] >= 1 && n[2] <= 31 && n[3] <= 23 && n[4] <= 59 && n[5] <= 59
}

func parseDimensions(s string) (int, int) {
	m := dimensionRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0
	}
	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	return w, h
}

// siblingImage returns an image next to the report with the same stem, if any.
func siblingImage(reportPath string) string {
	stem := strings.TrimSuffix(reportPath, filepath.Ext(reportPath))
	for _, ext := range imageExtensions {
		for _, candidate := range []string{stem + ext, stem + strings.ToUpper(ext)} {
			if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
				return candidate
			}
		}
	}
	return ""
}

func probeImage(path string) (width, height int, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, 0, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return 0, 0, 0, err
	}
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, info.Size(), err
	}
	return cfg.Width, cfg.Height, info.Size(), nil
}
