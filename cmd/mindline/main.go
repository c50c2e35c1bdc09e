// Package main is the mindline CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/mindline/internal/cli"
	"github.com/hyperjump/mindline/internal/config"
	"github.com/hyperjump/mindline/internal/keyword"
	"github.com/hyperjump/mindline/internal/mcpserver"
	"github.com/hyperjump/mindline/internal/models"
	"github.com/hyperjump/mindline/internal/pipeline"
	"github.com/hyperjump/mindline/internal/query"
	"github.com/hyperjump/mindline/internal/schedule"
	"github.com/hyperjump/mindline/internal/server"
	"github.com/hyperjump/mindline/internal/storage"
	"github.com/hyperjump/mindline/internal/watcher"
	"github.com/hyperjump/mindline/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "~/.mindline/config.yaml"

// resolveHome expands a leading "~/" to the user's home directory.
func resolveHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	path = resolveHome(path)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func newLogger(cfg *config.Config, debug bool) (*zap.Logger, error) {
	var file *utils.FileOutput
	if cfg.Log.File != "" {
		file = &utils.FileOutput{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
		}
	}
	return utils.NewLogger(cfg.Debug || debug, file)
}

// setup loads config, builds the logger and opens every component, exiting on failure.
func setup(configPath string, debug bool) (*config.Config, *zap.Logger, *Components) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := newLogger(cfg, debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved))
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, logger, components
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "analyze":
		runAnalyze()
	case "range":
		runRange()
	case "concepts":
		runConcepts()
	case "search":
		runSearch()
	case "top":
		runTop()
	case "clusters":
		runClusters()
	case "stats":
		runStats()
	case "serve", "server":
		runServe()
	case "mcp":
		runMCP()
	case "init":
		runInit()
	case "status":
		runStatus()
	case "delete":
		runDelete()
	case "version", "--version", "-v":
		fmt.Printf("mindline version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// argsReorder moves any flags (and their values) that appear after positional
// arguments to the front so that flag.Parse() sees them. Go's flag package stops
// at the first non-flag argument, so "mindline search invoice -limit 5" would
// otherwise leave -limit unparsed.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// joinArgs joins positional args with spaces so multi-word queries work the
// same with or without shell quoting.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// parseWhen accepts RFC 3339, YYYY-MM-DD, or a duration like "48h" meaning
// that long before now. An empty string yields def.
func parseWhen(s string, now, def time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, time.Local); err == nil {
		return t.UTC(), nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q: use RFC 3339, YYYY-MM-DD, or a duration such as 48h", s)
}

// parseUntil is parseWhen for --end: a plain date means the end of that local day.
func parseUntil(s string, now, def time.Time) (time.Time, error) {
	if t, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), time.Local); err == nil {
		return models.EndOfDay(t).UTC(), nil
	}
	return parseWhen(s, now, def)
}

// parseSources splits a comma separated --source value.
func parseSources(s string) ([]models.SourceType, error) {
	var out []models.SourceType
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		src := models.SourceType(part)
		if !src.Valid() {
			return nil, fmt.Errorf("unknown source %q: use screenshot, note, email, or meeting", part)
		}
		out = append(out, src)
	}
	return out, nil
}

// queryFlags are shared by the read commands.
type queryFlags struct {
	fs         *flag.FlagSet
	configPath *string
	output     *string
	limit      *int
	source     *string
}

func newQueryFlags(name string, defaultLimit int) *queryFlags {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return &queryFlags{
		fs:         fs,
		configPath: fs.String("config", defaultConfigPath, "config file path"),
		output:     fs.String("output", "text", "output format: text or json"),
		limit:      fs.Int("limit", defaultLimit, "maximum number of results (0 = unlimited)"),
		source:     fs.String("source", "", "comma separated sources: screenshot, note, email, meeting"),
	}
}

func (q *queryFlags) parse(args []string) (cli.OutputFormat, models.ListOptions) {
	_ = q.fs.Parse(argsReorder(args))
	format, err := cli.ParseFormat(*q.output)
	if err != nil {
		exitf("%v", err)
	}
	sources, err := parseSources(*q.source)
	if err != nil {
		exitf("%v", err)
	}
	return format, models.ListOptions{Limit: *q.limit, Sources: sources}
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func runAnalyze() {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	start := fs.String("start", "", "window start: RFC 3339, YYYY-MM-DD, or a duration before now (default 24h)")
	end := fs.String("end", "", "window end (default now)")
	output := fs.String("output", "text", "output format: text or json")
	noExport := fs.Bool("no-export", false, "do not write the JSON export file")
	serverURL := fs.String("server", "", "run the analysis on a running server instead of locally")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*output)
	if err != nil {
		exitf("%v", err)
	}
	now := time.Now().UTC()
	endAt, err := parseUntil(*end, now, now)
	if err != nil {
		exitf("%v", err)
	}
	startAt, err := parseWhen(*start, now, endAt.Add(-24*time.Hour))
	if err != nil {
		exitf("%v", err)
	}
	if endAt.Before(startAt) {
		exitf("end %s is before start %s", endAt.Format(time.RFC3339), startAt.Format(time.RFC3339))
	}

	if *serverURL != "" {
		res, err := newRemote(*serverURL).analyze(startAt, endAt)
		if err != nil {
			exitf("Analysis failed: %v", err)
		}
		if err := writeRemoteAnalysis(os.Stdout, res, format); err != nil {
			exitf("Output failed: %v", err)
		}
		return
	}

	cfg, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	res, err := components.Pipeline.Analyze(ctx, startAt, endAt)
	if err != nil {
		if res != nil {
			_ = cli.WriteAnalysis(os.Stderr, res, "", cli.OutputText)
		}
		exitf("Analysis failed: %v", err)
	}
	exported := ""
	if !*noExport && cfg.Storage.ExportDir != "" {
		if exported, err = res.ExportTo(cfg.Storage.ExportDir); err != nil {
			logger.Warn("export failed", zap.String("dir", cfg.Storage.ExportDir), zap.Error(err))
		}
	}
	if err := cli.WriteAnalysis(os.Stdout, res, exported, format); err != nil {
		exitf("Output failed: %v", err)
	}
}

func runRange() {
	q := newQueryFlags("range", 100)
	start := q.fs.String("start", "", "range start: RFC 3339, YYYY-MM-DD, or a duration before now (default 24h)")
	end := q.fs.String("end", "", "range end (default now)")
	asc := q.fs.Bool("asc", false, "oldest first")
	format, opts := q.parse(os.Args[2:])
	opts.Ascending = *asc

	now := time.Now().UTC()
	endAt, err := parseUntil(*end, now, now)
	if err != nil {
		exitf("%v", err)
	}
	startAt, err := parseWhen(*start, now, endAt.Add(-24*time.Hour))
	if err != nil {
		exitf("%v", err)
	}

	_, logger, components := setup(*q.configPath, false)
	defer logger.Sync()
	defer components.Close()

	items, err := components.Engine.Range(context.Background(), startAt, endAt, opts)
	if err != nil {
		exitf("Range query failed: %v", err)
	}
	if err := cli.WriteItems(os.Stdout, items, format); err != nil {
		exitf("Output failed: %v", err)
	}
}

func runConcepts() {
	q := newQueryFlags("concepts", 100)
	q.fs.Usage = func() {
		fmt.Fprintf(q.fs.Output(), "Usage: mindline concepts [flags] <concept>...\n\nLists items tagged with every concept.\n\n")
		q.fs.PrintDefaults()
	}
	format, opts := q.parse(os.Args[2:])
	if q.fs.NArg() < 1 {
		q.fs.Usage()
		os.Exit(1)
	}

	_, logger, components := setup(*q.configPath, false)
	defer logger.Sync()
	defer components.Close()

	items, err := components.Engine.ByConcepts(context.Background(), q.fs.Args(), opts)
	if err != nil {
		exitf("Concept query failed: %v", err)
	}
	if err := cli.WriteItems(os.Stdout, items, format); err != nil {
		exitf("Output failed: %v", err)
	}
}

// printSearchUsage prints search subcommand usage and search hints.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: mindline search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Ranked full-text search runs by default; --substring matches exact text ignoring case.
When ranked search finds nothing it retries once with typo tolerance.

Examples:
  mindline search vendor invoice
  mindline search --fuzzy 2 invocie
  mindline search --substring "Q3 planning"
  mindline search --server http://localhost:8421 roadmap
`)
}

func runSearch() {
	q := newQueryFlags("search", 20)
	substring := q.fs.Bool("substring", false, "substring match instead of ranked full-text search")
	fuzzy := q.fs.Int("fuzzy", 0, "maximum edit distance per term (0-2)")
	serverURL := q.fs.String("server", "", "query a running server instead of opening storage directly")
	q.fs.Usage = func() { printSearchUsage(q.fs) }
	format, opts := q.parse(os.Args[2:])

	text := joinArgs(q.fs.Args())
	if text == "" {
		printSearchUsage(q.fs)
		os.Exit(1)
	}
	if *fuzzy < 0 || *fuzzy > 2 {
		exitf("--fuzzy must be between 0 and 2")
	}

	if *serverURL != "" {
		if err := newRemote(*serverURL).search(os.Stdout, text, *substring, *fuzzy, opts, format); err != nil {
			exitf("Search failed: %v", err)
		}
		return
	}

	_, logger, components := setup(*q.configPath, false)
	defer logger.Sync()
	defer components.Close()
	ctx := context.Background()

	if *substring {
		items, err := components.Engine.Search(ctx, text, opts)
		if err != nil {
			exitf("Search failed: %v", err)
		}
		if err := cli.WriteItems(os.Stdout, items, format); err != nil {
			exitf("Output failed: %v", err)
		}
		return
	}

	results, err := fullText(ctx, components.Engine, text, *fuzzy, opts)
	if err != nil {
		exitf("Search failed: %v", err)
	}
	if err := cli.WriteResults(os.Stdout, results, format); err != nil {
		exitf("Output failed: %v", err)
	}
}

// fullText runs a ranked search and, when nothing matches exactly, retries once
// with typo tolerance.
func fullText(ctx context.Context, engine *query.Engine, text string, fuzziness int, opts models.ListOptions) ([]query.Result, error) {
	so := &keyword.SearchOptions{TitleBoost: 2, Fuzziness: fuzziness, Sources: opts.Sources}
	results, err := engine.FullText(ctx, text, opts.Limit, so)
	if err != nil || len(results) > 0 || fuzziness > 0 {
		return results, err
	}
	so.Fuzziness = 1
	return engine.FullText(ctx, text, opts.Limit, so)
}

func runTop() {
	q := newQueryFlags("top", 20)
	format, opts := q.parse(os.Args[2:])
	if opts.Limit < 1 {
		exitf("--limit must be at least 1")
	}

	_, logger, components := setup(*q.configPath, false)
	defer logger.Sync()
	defer components.Close()

	concepts, err := components.Engine.TopConcepts(context.Background(), opts.Limit)
	if err != nil {
		exitf("Top concepts failed: %v", err)
	}
	if err := cli.WriteConcepts(os.Stdout, concepts, format); err != nil {
		exitf("Output failed: %v", err)
	}
}

func runClusters() {
	q := newQueryFlags("clusters", 0)
	format, opts := q.parse(os.Args[2:])

	_, logger, components := setup(*q.configPath, false)
	defer logger.Sync()
	defer components.Close()

	clusters, err := components.Engine.Clusters(context.Background())
	if err != nil {
		exitf("Clusters failed: %v", err)
	}
	if opts.Limit > 0 && len(clusters) > opts.Limit {
		clusters = clusters[:opts.Limit]
	}
	if err := cli.WriteClusters(os.Stdout, clusters, format); err != nil {
		exitf("Output failed: %v", err)
	}
}

func runStats() {
	q := newQueryFlags("stats", 0)
	start := q.fs.String("start", "", "range start (default: everything)")
	end := q.fs.String("end", "", "range end (default: everything)")
	window := q.fs.Duration("window", 0, "also group the range into windows of this size, e.g. 24h")
	format, _ := q.parse(os.Args[2:])

	now := time.Now().UTC()
	startAt, err := parseWhen(*start, now, models.Earliest)
	if err != nil {
		exitf("%v", err)
	}
	endAt, err := parseUntil(*end, now, models.Latest)
	if err != nil {
		exitf("%v", err)
	}

	_, logger, components := setup(*q.configPath, false)
	defer logger.Sync()
	defer components.Close()
	ctx := context.Background()

	stats, err := components.Engine.Stats(ctx, startAt, endAt)
	if err != nil {
		exitf("Stats failed: %v", err)
	}
	if err := cli.WriteStats(os.Stdout, stats, format); err != nil {
		exitf("Output failed: %v", err)
	}
	if *window <= 0 {
		return
	}
	windows, err := components.Engine.TimeWindows(ctx, startAt, endAt, *window)
	if err != nil {
		exitf("Windows failed: %v", err)
	}
	if format == cli.OutputText {
		fmt.Println("\n# windows")
	}
	if err := cli.WriteWindows(os.Stdout, windows, format); err != nil {
		exitf("Output failed: %v", err)
	}
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Watch.Enabled {
		roots, exts := watchRoots(cfg)
		for _, root := range roots {
			if err := os.MkdirAll(root, 0755); err != nil {
				logger.Fatal("Failed to create source directory", zap.String("dir", root), zap.Error(err))
			}
		}
		w := watcher.New(roots, exts, func(paths []string) {
			logger.Info("source files changed", zap.Int("paths", len(paths)))
			if _, err := schedule.Trailing(ctx, components.Pipeline, cfg.Watch.Window, time.Now()); err != nil {
				logger.Error("watch analysis failed", zap.Error(err))
			}
		}, watcher.WithDebounce(cfg.Watch.Debounce), watcher.WithLogger(logger))
		if err := w.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	if cfg.Schedule.Spec != "" {
		sched, err := schedule.New(cfg.Schedule.Spec, cfg.Schedule.Window, components.Pipeline, schedule.WithLogger(logger))
		if err != nil {
			logger.Fatal("Invalid schedule", zap.Error(err))
		}
		sched.Start(ctx)
		defer sched.Stop()
		logger.Info("scheduled analysis", zap.String("spec", cfg.Schedule.Spec), zap.Time("next", sched.Next()))
	}

	srv := server.NewServer(components.Engine, components.Pipeline, &cfg.Server, logger,
		server.WithMetrics(components.Metrics))
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

func runMCP() {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	_, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	if err := mcpserver.Serve(mcpserver.New(components.Engine, version)); err != nil {
		logger.Error("mcp server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "where to write the config file")
	force := fs.Bool("force", false, "overwrite an existing config file")
	_ = fs.Parse(os.Args[2:])

	path := resolveHome(*configPath)
	if err := initConfig(path, *force); err != nil {
		exitf("Init failed: %v", err)
	}
	fmt.Printf("Wrote %s\n", path)
	fmt.Println("Enable email or meeting sources there, or put secrets in a .env file next to it.")
}

// initConfig writes a fully defaulted config to path with storage paths relative to it.
func initConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	cfg := config.Default()
	cfg.Storage.DatabasePath = "./data/timeline.db"
	cfg.Storage.BleveIndexPath = "./data/index"
	cfg.Storage.ExportDir = "./exports"
	cfg.Sources.Screenshot.Dir = "./screenshots"
	cfg.Sources.Notes.Dir = "./notes"
	return config.Save(path, cfg)
}

// statusResponse is the shape of the status output.
type statusResponse struct {
	Items          int64                `json:"items"`
	Clusters       int                  `json:"clusters"`
	DiskUsageBytes *int64               `json:"disk_usage_bytes,omitempty"`
	Sources        []string             `json:"sources"`
	Storage        config.StorageConfig `json:"storage"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		exitf("%v", err)
	}

	cfg, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()
	ctx := context.Background()

	count, err := components.Store.Count(ctx)
	if err != nil {
		exitf("Count items failed: %v", err)
	}
	clusters, err := components.Store.Clusters(ctx)
	if err != nil {
		exitf("Load clusters failed: %v", err)
	}
	status := statusResponse{Items: count, Clusters: len(clusters), Storage: cfg.Storage}
	for _, c := range newConnectors(cfg, logger) {
		status.Sources = append(status.Sources, string(c.Source()))
	}
	if n, err := storage.DiskUsage(cfg.Storage.DatabasePath, cfg.Storage.BleveIndexPath); err == nil {
		status.DiskUsageBytes = &n
	}

	if format == cli.OutputJSON {
		if err := writeJSON(os.Stdout, status); err != nil {
			exitf("Output failed: %v", err)
		}
		return
	}
	fmt.Printf("items:              %d   # stored timeline items\n", status.Items)
	fmt.Printf("clusters:           %d   # from the latest analysis\n", status.Clusters)
	if status.DiskUsageBytes != nil {
		fmt.Printf("disk_usage_bytes:   %d   # database + index on disk\n", *status.DiskUsageBytes)
	}
	fmt.Printf("sources:            %s\n", strings.Join(status.Sources, ", "))
	fmt.Println()
	fmt.Println("# storage")
	fmt.Printf("database_path:      %s\n", status.Storage.DatabasePath)
	fmt.Printf("bleve_index_path:   %s\n", status.Storage.BleveIndexPath)
	if status.Storage.ExportDir != "" {
		fmt.Printf("export_dir:         %s\n", status.Storage.ExportDir)
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: mindline delete [flags] <item-id>")
		os.Exit(1)
	}
	id := fs.Arg(0)

	_, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	if err := components.Engine.Delete(context.Background(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			exitf("No item with id %s", id)
		}
		exitf("Deletion failed: %v", err)
	}
	fmt.Printf("Item deleted: %s\n", id)
}

// analysisSummary is what a server returns for POST /api/v1/analyze.
type analysisSummary struct {
	RunID        string                       `json:"run_id"`
	Start        time.Time                    `json:"start"`
	End          time.Time                    `json:"end"`
	Items        int                          `json:"items"`
	Clusters     int                          `json:"clusters"`
	Skipped      int                          `json:"skipped"`
	SourceErrors map[models.SourceType]string `json:"source_errors,omitempty"`
	DurationMS   int64                        `json:"duration_ms"`
}

func (a *analysisSummary) result() *pipeline.Result {
	return &pipeline.Result{
		RunID:        a.RunID,
		Start:        a.Start,
		End:          a.End,
		Items:        make([]models.TimelineItem, a.Items),
		Clusters:     make([]models.ConceptCluster, a.Clusters),
		SourceErrors: a.SourceErrors,
		Skipped:      a.Skipped,
		Duration:     time.Duration(a.DurationMS) * time.Millisecond,
	}
}

func printUsage() {
	fmt.Println(`mindline - Personal timeline analysis across screenshots, notes, email and meetings

Usage:
  mindline analyze [flags]             Fetch sources, extract concepts, cluster and score
  mindline range [flags]               List items in a time range
  mindline concepts [flags] <word>...  List items tagged with every concept
  mindline search [flags] <query>      Ranked full-text or substring search
  mindline top [flags]                 Most frequent concepts
  mindline clusters [flags]            Concept clusters from the latest analysis
  mindline stats [flags]               Counts by source and category
  mindline serve [flags]               Start the HTTP API, watcher and scheduler
  mindline mcp [flags]                 Serve timeline tools over MCP (stdio)
  mindline init [flags]                Write a default config file
  mindline status [flags]              Show storage status
  mindline delete [flags] <id>         Delete an item
  mindline version                     Show version
  mindline help                        Show this help

Common Flags:
  --config string    Config file path (default: ~/.mindline/config.yaml, or ./config.yaml when present)
  --output string    Output format: text or json (default: text)

Analyze Flags:
  --start string     Window start: RFC 3339, YYYY-MM-DD, or a duration before now (default: 24h)
  --end string       Window end (default: now)
  --no-export        Skip writing timeline_analysis_<timestamp>.json
  --server string    Run the analysis on a running server
  --debug            Enable debug logging

Query Flags (range, concepts, search, top, clusters):
  --limit int        Maximum number of results
  --source string    Comma separated sources: screenshot, note, email, meeting
  --asc              Oldest first (range)
  --substring        Substring instead of ranked search (search)
  --fuzzy int        Typo tolerance 0-2 (search)
  --server string    Query a running server (search)

Stats Flags:
  --start, --end     Range (default: everything)
  --window duration  Also group into windows, e.g. 24h

Examples:
  mindline init
  mindline analyze --start 168h
  mindline range --start 2024-04-01 --end 2024-04-08 --source email,meeting
  mindline concepts invoice vendor
  mindline search --output json "quarterly roadmap"
  mindline top --limit 10
  mindline stats --window 24h
  mindline serve`)
}
