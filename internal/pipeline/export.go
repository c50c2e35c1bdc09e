package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Export writes the result to path as indented JSON, creating parent directories.
func (r *Result) Export(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ExportName returns the file name used for a result exported into a directory.
func ExportName(r *Result) string {
	return "timeline_analysis_" + r.End.Format("20060102_150405") + ".json"
}

// ExportTo writes the result into dir under ExportName and returns the path.
func (r *Result) ExportTo(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, ExportName(r))
	return path, r.Export(path)
}
