package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TimestampFormat is the sortable prefix of migration file names.
const TimestampFormat = "20060102150405"

// FileName returns "<timestamp>_<suffix>.sql".
func FileName(now time.Time, suffix string) string {
	return now.Format(TimestampFormat) + "_" + suffix + ".sql"
}

// WriteFile writes sql to dir/FileName(now, suffix) and returns the path.
// The content goes to a temporary file first and is renamed into place, so
// the final name never holds a partial migration.
func WriteFile(dir, suffix string, now time.Time, sql string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	path := filepath.Join(dir, FileName(now, suffix))

	tmp, err := os.CreateTemp(dir, ".demo-import-*.sql.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if _, err := tmp.WriteString(sql); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing migration: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("syncing migration: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing migration: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return "", fmt.Errorf("setting migration permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("renaming migration into place: %w", err)
	}
	return path, nil
}

// Latest returns the newest migration in dir whose name ends in
// "_<suffix>.sql", or an error when there is none.
func Latest(dir, suffix string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("reading output directory: %w", err)
	}
	want := "_" + suffix + ".sql"
	latest := ""
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, want) || len(name) <= len(TimestampFormat) {
			continue
		}
		if _, err := time.Parse(TimestampFormat, name[:len(TimestampFormat)]); err != nil {
			continue
		}
		if name > latest {
			latest = name
		}
	}
	if latest == "" {
		return "", fmt.Errorf("no %s migration found in %s", want, dir)
	}
	return filepath.Join(dir, latest), nil
}
