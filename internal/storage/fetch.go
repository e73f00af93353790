package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// DownloadPrefix copies every object below prefix into dir, flattening keys to
// their base name. It returns the local paths in listing order.
func DownloadPrefix(ctx context.Context, store ObjectStorage, prefix, dir string) ([]string, error) {
	objects, err := store.ListObjects(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		dest := filepath.Join(dir, path.Base(obj.Key))
		if err := store.DownloadObject(ctx, obj.Key, dest); err != nil {
			return nil, fmt.Errorf("download %s: %w", obj.Key, err)
		}
		paths = append(paths, dest)
	}
	return paths, nil
}

// PlanKey is the object key of an exported plan.
func PlanKey(prefix, targetDate, runID string) string {
	if prefix == "" {
		prefix = "plans"
	}
	return path.Join(prefix, targetDate, runID+".json")
}
