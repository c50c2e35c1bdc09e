package connector

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// File is a regular file found under a source directory.
type File struct {
	Path string
	// Rel is Path relative to the walked root, with forward slashes.
	Rel  string
	Info os.FileInfo
}

// WalkFiles calls fn for each regular file under dir whose extension is in exts
// (case-insensitive, leading dot optional; empty allows all). Hidden files and
// directories are skipped. The walk stops with ctx's error once ctx is done, so
// callers keep whatever they collected before.
func WalkFiles(ctx context.Context, dir string, exts []string, fn func(File) error) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", absDir)
	}
	return filepath.WalkDir(absDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path != absDir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !ExtensionAllowed(filepath.Ext(path), exts) {
			return nil
		}
		// Follow symlinks so only regular files are reported.
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(absDir, path)
		if err != nil {
			return err
		}
		return fn(File{Path: path, Rel: filepath.ToSlash(rel), Info: finfo})
	})
}

// ExtensionAllowed reports whether ext is in allowed. An empty list allows every extension.
func ExtensionAllowed(ext string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
