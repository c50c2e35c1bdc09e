package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/hyperjump/mindline/internal/models"
)

const driverName = "sqlite3_mindline"

func init() {
	// lower() in SQLite only folds ASCII. unicode_lower gives Search the same
	// case folding the Go side uses for the needle.
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("unicode_lower", strings.ToLower, true)
		},
	})
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open(driverName, dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; also keeps :memory: databases on a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		source_type TEXT NOT NULL,
		source_id TEXT,
		title TEXT,
		content TEXT NOT NULL,
		timestamp_ns INTEGER NOT NULL,
		last_modified_ns INTEGER,
		metadata TEXT,
		concepts TEXT,
		categories TEXT,
		importance_score REAL NOT NULL DEFAULT 0,
		summary TEXT,
		related_items TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_items_timestamp ON items(timestamp_ns);
	CREATE INDEX IF NOT EXISTS idx_items_source ON items(source_type, timestamp_ns);

	CREATE TABLE IF NOT EXISTS item_concepts (
		item_id TEXT NOT NULL,
		concept TEXT NOT NULL,
		PRIMARY KEY (item_id, concept),
		FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_item_concepts_concept ON item_concepts(concept);

	CREATE TABLE IF NOT EXISTS clusters (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		concepts TEXT NOT NULL,
		item_ids TEXT NOT NULL,
		importance_score REAL NOT NULL DEFAULT 0,
		start_ns INTEGER,
		end_ns INTEGER
	);
	`
	_, err := db.Exec(schema)
	return err
}

const itemColumns = `id, source_type, source_id, title, content, timestamp_ns, last_modified_ns,
	metadata, concepts, categories, importance_score, summary, related_items`

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (models.TimelineItem, error) {
	var (
		it                                     models.TimelineItem
		source, metadata, concepts, categories string
		sourceID, title, summary, related      sql.NullString
		ts                                     int64
		modified                               sql.NullInt64
	)
	if err := row.Scan(&it.ID, &source, &sourceID, &title, &it.Content, &ts, &modified,
		&metadata, &concepts, &categories, &it.ImportanceScore, &summary, &related); err != nil {
		return it, err
	}
	it.SourceType = models.SourceType(source)
	it.SourceID = sourceID.String
	it.Title = title.String
	it.Summary = summary.String
	it.Timestamp = fromNanos(ts)
	if modified.Valid {
		t := fromNanos(modified.Int64)
		it.LastModified = &t
	}

	md, err := models.DecodeMetadata(it.SourceType, []byte(metadata))
	if err != nil {
		return it, fmt.Errorf("item %s: %w", it.ID, err)
	}
	it.Metadata = md
	if err := unmarshalList(concepts, &it.ExtractedConcepts); err != nil {
		return it, fmt.Errorf("item %s: failed to unmarshal concepts: %w", it.ID, err)
	}
	if err := unmarshalList(categories, &it.ConceptCategories); err != nil {
		return it, fmt.Errorf("item %s: failed to unmarshal categories: %w", it.ID, err)
	}
	if err := unmarshalList(related.String, &it.RelatedItems); err != nil {
		return it, fmt.Errorf("item %s: failed to unmarshal related items: %w", it.ID, err)
	}
	return it, nil
}

func unmarshalList(data string, v any) error {
	if data == "" {
		return nil
	}
	return json.Unmarshal([]byte(data), v)
}

func toNanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(ns int64) time.Time { return time.Unix(0, ns).UTC() }

// Upsert inserts or overwrites items by id in a single transaction. Items not
// in the batch are left untouched.
func (s *SQLiteStore) Upsert(ctx context.Context, items []models.TimelineItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	upsert, err := tx.PrepareContext(ctx, `
		INSERT INTO items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_type = excluded.source_type,
			source_id = excluded.source_id,
			title = excluded.title,
			content = excluded.content,
			timestamp_ns = excluded.timestamp_ns,
			last_modified_ns = excluded.last_modified_ns,
			metadata = excluded.metadata,
			concepts = excluded.concepts,
			categories = excluded.categories,
			importance_score = excluded.importance_score,
			summary = excluded.summary,
			related_items = excluded.related_items`)
	if err != nil {
		return err
	}
	defer upsert.Close()

	unlink, err := tx.PrepareContext(ctx, `DELETE FROM item_concepts WHERE item_id = ?`)
	if err != nil {
		return err
	}
	defer unlink.Close()

	link, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO item_concepts (item_id, concept) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer link.Close()

	for i := range items {
		it := &items[i]
		if it.ID == "" {
			return fmt.Errorf("item %d has no id", i)
		}
		args, err := itemArgs(it)
		if err != nil {
			return err
		}
		if _, err := upsert.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to upsert item %s: %w", it.ID, err)
		}
		if _, err := unlink.ExecContext(ctx, it.ID); err != nil {
			return err
		}
		for _, c := range it.ExtractedConcepts {
			if c = foldConcept(c); c == "" {
				continue
			}
			if _, err := link.ExecContext(ctx, it.ID, c); err != nil {
				return fmt.Errorf("failed to link concept %q to %s: %w", c, it.ID, err)
			}
		}
	}
	return tx.Commit()
}

func itemArgs(it *models.TimelineItem) ([]any, error) {
	if !models.Storable(it.Timestamp) {
		return nil, fmt.Errorf("%w: item %s at %s", ErrOutOfRange, it.ID, it.Timestamp.Format(time.RFC3339))
	}
	if it.LastModified != nil && !models.Storable(*it.LastModified) {
		return nil, fmt.Errorf("%w: item %s modified at %s", ErrOutOfRange, it.ID, it.LastModified.Format(time.RFC3339))
	}
	metadata, err := json.Marshal(it.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata of %s: %w", it.ID, err)
	}
	concepts, err := json.Marshal(it.ExtractedConcepts)
	if err != nil {
		return nil, err
	}
	categories, err := json.Marshal(it.ConceptCategories)
	if err != nil {
		return nil, err
	}
	var related any
	if it.RelatedItems != nil {
		b, err := json.Marshal(it.RelatedItems)
		if err != nil {
			return nil, err
		}
		related = string(b)
	}
	var modified any
	if it.LastModified != nil {
		modified = toNanos(*it.LastModified)
	}
	return []any{
		it.ID, string(it.SourceType), it.SourceID, it.Title, it.Content,
		toNanos(it.Timestamp), modified, string(metadata), string(concepts), string(categories),
		it.ImportanceScore, it.Summary, related,
	}, nil
}

func foldConcept(c string) string { return strings.ToLower(strings.TrimSpace(c)) }

// Get returns an item by id, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.TimelineItem, error) {
	it, err := scanItem(s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// GetMany returns the stored items among ids, in the order of ids. Unknown ids
// are skipped.
func (s *SQLiteStore) GetMany(ctx context.Context, ids []string) ([]models.TimelineItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.TimelineItem, len(ids))
	for _, it := range collect(rows, &err) {
		byID[it.ID] = it
	}
	if err != nil {
		return nil, err
	}
	out := make([]models.TimelineItem, 0, len(byID))
	for _, id := range ids {
		if it, ok := byID[id]; ok {
			out = append(out, it)
			delete(byID, id)
		}
	}
	return out, nil
}

// Delete removes an item and its concept links.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	return nil
}

// Count returns the total number of stored items.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&count)
	return count, err
}

// QueryByRange returns items with start <= timestamp <= end.
func (s *SQLiteStore) QueryByRange(ctx context.Context, start, end time.Time, opts models.ListOptions) ([]models.TimelineItem, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s is before start %s", ErrInvalidRange, end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	if start.Before(models.Earliest) {
		start = models.Earliest
	}
	if end.After(models.Latest) {
		end = models.Latest
	}
	return s.list(ctx, opts, `timestamp_ns >= ? AND timestamp_ns <= ?`, toNanos(start), toNanos(end))
}

// QueryByConcepts returns items whose concepts include every concept given.
// Matching is case-insensitive. An empty set matches every item.
func (s *SQLiteStore) QueryByConcepts(ctx context.Context, concepts []string, opts models.ListOptions) ([]models.TimelineItem, error) {
	seen := make(map[string]bool, len(concepts))
	var args []any
	for _, c := range concepts {
		if c = foldConcept(c); c != "" && !seen[c] {
			seen[c] = true
			args = append(args, c)
		}
	}
	if len(args) == 0 {
		return s.list(ctx, opts, "")
	}
	where := `id IN (SELECT item_id FROM item_concepts WHERE concept IN (` + placeholders(len(args)) + `)
		GROUP BY item_id HAVING COUNT(DISTINCT concept) = ?)`
	return s.list(ctx, opts, where, append(args, len(args))...)
}

// Search returns items whose title or content contains text, ignoring case.
// Empty text matches every item.
func (s *SQLiteStore) Search(ctx context.Context, text string, opts models.ListOptions) ([]models.TimelineItem, error) {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return s.list(ctx, opts, "")
	}
	return s.list(ctx, opts,
		`(instr(unicode_lower(coalesce(title, '')), ?) > 0 OR instr(unicode_lower(content), ?) > 0)`,
		needle, needle)
}

func (s *SQLiteStore) list(ctx context.Context, opts models.ListOptions, where string, args ...any) ([]models.TimelineItem, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	var conds []string
	if where != "" {
		conds = append(conds, where)
	}
	if len(opts.Sources) > 0 {
		conds = append(conds, `source_type IN (`+placeholders(len(opts.Sources))+`)`)
		for _, src := range opts.Sources {
			args = append(args, string(src))
		}
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + itemColumns + ` FROM items`)
	if len(conds) > 0 {
		b.WriteString(` WHERE ` + strings.Join(conds, ` AND `))
	}
	if opts.Ascending {
		b.WriteString(` ORDER BY timestamp_ns ASC, id ASC`)
	} else {
		b.WriteString(` ORDER BY timestamp_ns DESC, id ASC`)
	}
	limit := opts.Limit
	if limit == 0 {
		limit = -1
	}
	b.WriteString(` LIMIT ? OFFSET ?`)
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	items := collect(rows, &err)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// collect scans and closes rows, reporting the first failure through errp.
func collect(rows *sql.Rows, errp *error) []models.TimelineItem {
	defer rows.Close()
	var items []models.TimelineItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			*errp = err
			return nil
		}
		items = append(items, it)
	}
	*errp = rows.Err()
	return items
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// TopConcepts returns the n concepts found in the most items, ties broken
// alphabetically. n <= 0 returns all.
func (s *SQLiteStore) TopConcepts(ctx context.Context, n int) ([]models.ConceptCount, error) {
	if n <= 0 {
		n = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT concept, COUNT(*) AS c FROM item_concepts
		 GROUP BY concept ORDER BY c DESC, concept ASC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ConceptCount
	for rows.Next() {
		var cc models.ConceptCount
		if err := rows.Scan(&cc.Concept, &cc.Count); err != nil {
			return nil, err
		}
		out = append(out, cc)
	}
	return out, rows.Err()
}

// ReplaceClusters swaps the stored cluster set for clusters in one transaction.
// Readers see either the old set or the new one.
func (s *SQLiteStore) ReplaceClusters(ctx context.Context, clusters []models.ConceptCluster) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM clusters`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO clusters (id, position, name, description, concepts, item_ids, importance_score, start_ns, end_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, c := range clusters {
		concepts, err := json.Marshal(c.Concepts)
		if err != nil {
			return err
		}
		ids, err := json.Marshal(c.TimelineItemIDs)
		if err != nil {
			return err
		}
		var start, end any
		if c.TimeRange != nil {
			start, end = toNanos(c.TimeRange.Start), toNanos(c.TimeRange.End)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, i, c.Name, c.Description,
			string(concepts), string(ids), c.ImportanceScore, start, end); err != nil {
			return fmt.Errorf("failed to insert cluster %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// Clusters returns the stored clusters in the order they were saved.
func (s *SQLiteStore) Clusters(ctx context.Context) ([]models.ConceptCluster, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, concepts, item_ids, importance_score, start_ns, end_ns
		 FROM clusters ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ConceptCluster
	for rows.Next() {
		var (
			c             models.ConceptCluster
			description   sql.NullString
			concepts, ids string
			start, end    sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &c.Name, &description, &concepts, &ids, &c.ImportanceScore, &start, &end); err != nil {
			return nil, err
		}
		c.Description = description.String
		if err := json.Unmarshal([]byte(concepts), &c.Concepts); err != nil {
			return nil, fmt.Errorf("cluster %s: failed to unmarshal concepts: %w", c.ID, err)
		}
		if err := json.Unmarshal([]byte(ids), &c.TimelineItemIDs); err != nil {
			return nil, fmt.Errorf("cluster %s: failed to unmarshal item ids: %w", c.ID, err)
		}
		if start.Valid && end.Valid {
			c.TimeRange = &models.TimeRange{Start: fromNanos(start.Int64), End: fromNanos(end.Int64)}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
