package recovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/streamops/sentinel/internal/domain"
)

// backupTimeFormats are the accepted backup directory name layouts
var backupTimeFormats = []string{
	"20060102-150405",
	"20060102T150405",
	"2006-01-02_15-04-05",
	"2006-01-02",
}

// Backup is one candidate backup directory
type Backup struct {
	Path      string
	Timestamp time.Time
}

// RestoreScript returns the path of the backup's restore script
func (b Backup) RestoreScript() string {
	return filepath.Join(b.Path, "restore.sh")
}

// FindLatestBackup selects the newest backup for a service that is younger
// than maxAge and carries a restore.sh. Backup layout: <root>/<service>/
// contains timestamped directories.
func FindLatestBackup(root, service string, maxAge time.Duration, now time.Time) (Backup, error) {
	dir := filepath.Join(root, service)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Backup{}, domain.ErrNoBackupAvailable
		}
		return Backup{}, fmt.Errorf("reading backup dir: %w", err)
	}

	var candidates []Backup
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		ts, ok := parseBackupTime(entry.Name())
		if !ok {
			continue
		}
		if now.Sub(ts) > maxAge {
			continue
		}
		b := Backup{Path: filepath.Join(dir, entry.Name()), Timestamp: ts}
		if _, err := os.Stat(b.RestoreScript()); err != nil {
			continue
		}
		candidates = append(candidates, b)
	}

	if len(candidates) == 0 {
		return Backup{}, domain.ErrNoBackupAvailable
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Timestamp.After(candidates[j].Timestamp)
	})
	return candidates[0], nil
}

func parseBackupTime(name string) (time.Time, bool) {
	for _, layout := range backupTimeFormats {
		if ts, err := time.ParseInLocation(layout, name, time.Local); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
