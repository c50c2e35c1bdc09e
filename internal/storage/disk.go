package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// DiskUsage returns the bytes used on disk by the database file, its WAL
// companions and the full-text index directory. Files or directories that do
// not exist count as zero.
func DiskUsage(dbPath, indexPath string) (int64, error) {
	var paths []string
	if dbPath != "" {
		paths = append(paths, dbPath, dbPath+"-wal", dbPath+"-shm")
	}
	return sizeOf(append(paths, indexPath)...)
}

func sizeOf(paths ...string) (int64, error) {
	var total int64
	for _, root := range paths {
		if root == "" {
			continue
		}
		err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
			return nil
		})
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
