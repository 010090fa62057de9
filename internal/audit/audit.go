// Package audit maintains the tamper-resistant record of every
// external-action attempt. Entries are sanitized, schema-validated and
// appended to date-partitioned files rewritten atomically, so no
// partial-write state is ever observable to readers.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adjutant-ai/adjutant/internal/models"
	"github.com/adjutant-ai/adjutant/internal/sanitize"
)

const partitionPrefix = "audit-"

// Sink receives a copy of every entry after it has been durably written.
// Sink failures are logged, never propagated; the file partition remains the
// source of truth.
type Sink interface {
	Log(ctx context.Context, entry models.AuditLogEntry) error
}

// Logger appends audit entries to date-partitioned storage.
type Logger struct {
	dir    string
	logger *slog.Logger
	sinks  []Sink
	now    func() time.Time

	mu sync.Mutex
}

// NewLogger creates the partition directory and returns a Logger.
func NewLogger(dir string, logger *slog.Logger, sinks ...Sink) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	return &Logger{
		dir:    dir,
		logger: logger,
		sinks:  sinks,
		now:    time.Now,
	}, nil
}

// LogExecution sanitizes, validates and persists one entry, returning its id.
// Invalid entries are refused rather than silently written.
func (l *Logger) LogExecution(ctx context.Context, entry models.AuditLogEntry) (string, error) {
	if entry.EntryID == "" {
		entry.EntryID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now().UTC()
	} else {
		entry.Timestamp = entry.Timestamp.UTC()
	}

	// Sanitization runs unconditionally before validation and persistence.
	if entry.Parameters != nil {
		entry.Parameters = sanitize.Sanitize(entry.Parameters).(map[string]any)
	}
	if entry.Metadata != nil {
		entry.Metadata = sanitize.Sanitize(entry.Metadata).(map[string]any)
	}

	if err := entry.Validate(); err != nil {
		return "", fmt.Errorf("invalid audit entry: %w", err)
	}

	l.mu.Lock()
	err := l.append(entry)
	l.mu.Unlock()
	if err != nil {
		return "", err
	}

	for _, sink := range l.sinks {
		if err := sink.Log(ctx, entry); err != nil {
			l.logger.Warn("audit sink write failed",
				"entry_id", entry.EntryID,
				"error", err,
			)
		}
	}

	return entry.EntryID, nil
}

// append rewrites the day's partition with the new entry included.
func (l *Logger) append(entry models.AuditLogEntry) error {
	path := l.partitionPath(entry.Timestamp)

	entries, err := readPartition(path)
	if err != nil {
		return err
	}
	entries = append(entries, entry)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal audit partition: %w", err)
	}

	tmp, err := os.CreateTemp(l.dir, ".audit-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp partition: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp partition: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp partition: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename partition: %w", err)
	}
	return nil
}

func (l *Logger) partitionPath(ts time.Time) string {
	return filepath.Join(l.dir, fmt.Sprintf("%s%s.json", partitionPrefix, ts.UTC().Format("2006-01-02")))
}

func readPartition(path string) ([]models.AuditLogEntry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read audit partition: %w", err)
	}

	var entries []models.AuditLogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse audit partition %s: %w", filepath.Base(path), err)
	}
	return entries, nil
}

// Entries returns up to limit entries for the given UTC date (zero limit
// means all), oldest first.
func (l *Logger) Entries(date time.Time, limit int) ([]models.AuditLogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := readPartition(l.partitionPath(date))
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// CleanupOldLogs compresses (archive=true) or deletes partitions older than
// retentionDays and reports the bytes freed.
func (l *Logger) CleanupOldLogs(retentionDays int, archive bool) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().UTC().AddDate(0, 0, -retentionDays)

	dirEntries, err := os.ReadDir(l.dir)
	if err != nil {
		return 0, fmt.Errorf("list audit dir: %w", err)
	}

	var freed int64
	for _, de := range dirEntries {
		name := de.Name()
		if !strings.HasPrefix(name, partitionPrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		dateStr := strings.TrimSuffix(strings.TrimPrefix(name, partitionPrefix), ".json")
		day, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			l.logger.Warn("unparseable audit partition name", "file", name)
			continue
		}
		if !day.Before(cutoff) {
			continue
		}

		path := filepath.Join(l.dir, name)
		info, err := de.Info()
		if err != nil {
			return freed, fmt.Errorf("stat partition %s: %w", name, err)
		}

		if archive {
			archived, err := gzipFile(path)
			if err != nil {
				return freed, fmt.Errorf("archive partition %s: %w", name, err)
			}
			freed += info.Size() - archived
		} else {
			if err := os.Remove(path); err != nil {
				return freed, fmt.Errorf("remove partition %s: %w", name, err)
			}
			freed += info.Size()
		}

		l.logger.Info("audit partition cleaned up",
			"file", name,
			"archived", archive,
		)
	}
	return freed, nil
}

// Dates lists the UTC dates with a live (uncompressed) partition, ascending.
func (l *Logger) Dates() ([]time.Time, error) {
	dirEntries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("list audit dir: %w", err)
	}

	var dates []time.Time
	for _, de := range dirEntries {
		name := de.Name()
		if !strings.HasPrefix(name, partitionPrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		dateStr := strings.TrimSuffix(strings.TrimPrefix(name, partitionPrefix), ".json")
		if day, err := time.Parse("2006-01-02", dateStr); err == nil {
			dates = append(dates, day)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}
