package notes

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/mindline/internal/config"
	"github.com/hyperjump/mindline/internal/models"
	"github.com/hyperjump/mindline/internal/normalize"
)

var modified = time.Date(2024, 6, 3, 15, 30, 0, 0, time.UTC)

func write(t *testing.T, root, rel, body string, mtime time.Time) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0644))
	require.NoError(t, os.Chtimes(p, mtime, mtime))
}

func TestFetch(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "Work/Roadmap.md", "# Roadmap\n\n- **Ship** beta", modified)
	write(t, dir, "Work/Meeting prep.html", "<h1>Prep</h1><p>Agenda items</p>", modified)
	write(t, dir, "inbox.txt", "Buy milk", modified)
	write(t, dir, "Old/ancient.md", "old note", modified.AddDate(-1, 0, 0))
	write(t, dir, "Work/blank.md", "   ", modified)
	write(t, dir, "sheet.xlsx", "ignored", modified)

	c := New(config.NotesSourceConfig{Enabled: true, Dir: dir, Account: "iCloud"})
	items, err := c.Fetch(context.Background(), modified.Add(-time.Hour), modified.Add(time.Hour))
	require.NoError(t, err)
	sort.Slice(items, func(i, j int) bool { return items[i].NativeID < items[j].NativeID })
	require.Len(t, items, 3)

	assert.Equal(t, "Work/Meeting prep.html", items[0].NativeID)
	assert.Equal(t, models.FormatHTML, items[0].Format)
	assert.Equal(t, "Work/Roadmap.md", items[1].NativeID)
	assert.Equal(t, models.FormatMarkdown, items[1].Format)
	assert.Equal(t, "Roadmap", items[1].Title)
	assert.Equal(t, "Work", items[1].Fields[models.FieldFolder])
	assert.Equal(t, "iCloud", items[1].Fields[models.FieldAccount])
	assert.Equal(t, "2024-06-03T15:30:00Z", items[1].Timestamp)
	assert.Equal(t, "inbox.txt", items[2].NativeID)
	assert.Equal(t, "", items[2].Fields[models.FieldFolder])

	norm, err := normalize.New().Normalize(items[1])
	require.NoError(t, err)
	assert.Equal(t, "Roadmap\n\nShip beta", norm.Content)
	assert.Equal(t, "Work", norm.Metadata.Note.Folder)
	assert.Equal(t, 3, norm.Metadata.Note.WordCount)
}

func TestFetch_reportsUnreadableFiles(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "good.md", "fine", modified)
	write(t, dir, "broken.docx", "not a zip", modified)

	items, err := New(config.NotesSourceConfig{Dir: dir}).Fetch(context.Background(), modified, modified)
	require.Len(t, items, 1, "partial results survive")
	assert.Equal(t, "good.md", items[0].NativeID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.docx")
}

func TestFolderOf(t *testing.T) {
	assert.Equal(t, "Work", folderOf("Work/sub/x.md"))
	assert.Equal(t, "", folderOf("x.md"))
}
