// Package inbox reads buoy files that the FTP mirror has dropped on local
// disk, one directory per station:
//
//	<root>/<station-id>/Seychelles}2025-08.his
package inbox

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Dir is a file source rooted at a local directory.
// It implements pipeline.FileSource.
type Dir struct {
	root string
}

// NewDir creates a source rooted at root.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// List returns the regular files in the station's directory, sorted by name.
// A station without a directory yet has no files.
func (d *Dir) List(ctx context.Context, stationID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := d.stationDir(stationID)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Read returns the full contents of one file.
func (d *Dir) Read(ctx context.Context, stationID, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := d.stationDir(stationID)
	if err != nil {
		return nil, err
	}
	if name != filepath.Base(name) || name == "." || name == ".." {
		return nil, fmt.Errorf("invalid file name %q", name)
	}

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

func (d *Dir) stationDir(stationID string) (string, error) {
	if stationID == "" || stationID != filepath.Base(stationID) || stationID == "." || stationID == ".." {
		return "", fmt.Errorf("invalid station id %q", stationID)
	}
	return filepath.Join(d.root, stationID), nil
}
