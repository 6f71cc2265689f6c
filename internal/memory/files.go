package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// writeJSONFile atomically writes v as indented JSON to path. The record is
// first written to a temporary sibling and only then promoted to its final
// name, so a crash mid-write never leaves a half-written record visible to
// readers. The previous version is kept as a .bak file until the new write
// is confirmed.
func writeJSONFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file %s: %w", tmpPath, err)
	}

	bakPath := path + ".bak"
	hadPrevious := false
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, bakPath); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("back up %s: %w", path, err)
		}
		hadPrevious = true
	}

	if err := os.Rename(tmpPath, path); err != nil {
		// Restore the backup so readers still see the old record.
		if hadPrevious {
			if rerr := os.Rename(bakPath, path); rerr != nil {
				log.Error().Err(rerr).Str("path", path).Msg("failed to restore backup after aborted write")
			}
		}
		os.Remove(tmpPath)
		return fmt.Errorf("promote %s: %w", path, err)
	}

	if hadPrevious {
		os.Remove(bakPath)
	}
	return nil
}

// readJSONFile reads a JSON record from path into v.
func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("empty record %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// quarantineFile renames a corrupt record aside so it can be inspected
// later. Corrupt records are never deleted.
func quarantineFile(path string) {
	ts := time.Now().Format("20060102_150405")
	quarantined := path + ".corrupted_" + ts
	if err := os.Rename(path, quarantined); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to quarantine corrupt record")
		return
	}
	log.Warn().Str("path", path).Str("quarantined", quarantined).Msg("quarantined corrupt record")
}

// recentFiles returns up to limit *.json files in dir, most recently
// modified first. Files that cannot be stat'd are skipped.
func recentFiles(dir string, limit int) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("failed to list record directory")
		return nil
	}

	type fileInfo struct {
		path    string
		modTime time.Time
	}
	var files []fileInfo
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{
			path:    filepath.Join(dir, entry.Name()),
			modTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].modTime.Equal(files[j].modTime) {
			// Session filenames embed the start time, so name order is a
			// stable tiebreaker for equal mtimes.
			return files[i].path > files[j].path
		}
		return files[i].modTime.After(files[j].modTime)
	})

	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths
}
