package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/adjutant-ai/adjutant/internal/models"
)

func testLogger(t *testing.T, sinks ...Sink) *Logger {
	t.Helper()
	l, err := NewLogger(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)), sinks...)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	return l
}

func validEntry() models.AuditLogEntry {
	return models.AuditLogEntry{
		ActionType:     models.ActionSendMessage,
		Actor:          models.ActorAutomation,
		Target:         "alice@example.com",
		ApprovalStatus: models.AuditApproved,
		Approver:       "bob",
		Connector:      "email",
		Result:         models.AuditSuccess,
	}
}

func TestLogExecution_FillsDefaults(t *testing.T) {
	l := testLogger(t)

	id, err := l.LogExecution(context.Background(), validEntry())
	if err != nil {
		t.Fatalf("LogExecution: %v", err)
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("returned id is not a uuid: %v", err)
	}
	if parsed.Version() != 4 {
		t.Errorf("expected v4 uuid, got v%d", parsed.Version())
	}

	entries, err := l.Entries(time.Now(), 0)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Timestamp.IsZero() {
		t.Error("timestamp not filled")
	}
	if entries[0].Timestamp.Location() != time.UTC {
		t.Error("timestamp not UTC")
	}
}

func TestLogExecution_RejectsInvalid(t *testing.T) {
	l := testLogger(t)

	cases := []struct {
		name   string
		mutate func(*models.AuditLogEntry)
	}{
		{"missing target", func(e *models.AuditLogEntry) { e.Target = "" }},
		{"bad action type", func(e *models.AuditLogEntry) { e.ActionType = "email-blast" }},
		{"bad actor", func(e *models.AuditLogEntry) { e.Actor = "robot" }},
		{"bad approval status", func(e *models.AuditLogEntry) { e.ApprovalStatus = "maybe" }},
		{"bad result", func(e *models.AuditLogEntry) { e.Result = "meh" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entry := validEntry()
			tc.mutate(&entry)
			if _, err := l.LogExecution(context.Background(), entry); err == nil {
				t.Error("expected validation error, entry was written")
			}
		})
	}
}

func TestLogExecution_RejectsNonV4ID(t *testing.T) {
	l := testLogger(t)

	entry := validEntry()
	// uuid v1 style id
	entry.EntryID = "c232ab00-9414-11ec-b3c8-9f68deced846"
	if _, err := l.LogExecution(context.Background(), entry); err == nil {
		t.Error("expected rejection of non-v4 uuid")
	}
}

func TestLogExecution_SanitizesSecrets(t *testing.T) {
	l := testLogger(t)

	secret := "super-secret-password-value-12345"
	entry := validEntry()
	entry.Parameters = map[string]any{
		"password": secret,
		"subject":  "quarterly report",
	}
	entry.Metadata = map[string]any{
		"api_key": secret,
	}

	if _, err := l.LogExecution(context.Background(), entry); err != nil {
		t.Fatalf("LogExecution: %v", err)
	}

	// The serialized partition must not contain the raw secret.
	files, err := os.ReadDir(l.dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(l.dir, f.Name()))
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		if strings.Contains(string(data), secret) {
			t.Fatalf("raw secret leaked into partition %s", f.Name())
		}
	}

	entries, _ := l.Entries(time.Now(), 0)
	if entries[0].Parameters["subject"] != "quarterly report" {
		t.Error("non-sensitive parameter was altered")
	}
}

func TestEntries_Limit(t *testing.T) {
	l := testLogger(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := l.LogExecution(ctx, validEntry()); err != nil {
			t.Fatalf("LogExecution: %v", err)
		}
	}

	entries, err := l.Entries(time.Now(), 3)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("expected 3 entries, got %d", len(entries))
	}
}

func TestEntries_PartitionIsValidJSON(t *testing.T) {
	l := testLogger(t)

	if _, err := l.LogExecution(context.Background(), validEntry()); err != nil {
		t.Fatalf("LogExecution: %v", err)
	}

	path := l.partitionPath(time.Now())
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var entries []models.AuditLogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("partition is not valid JSON: %v", err)
	}
}

func TestCleanupOldLogs_Archive(t *testing.T) {
	l := testLogger(t)

	// Write an entry dated 40 days back by steering the clock.
	old := time.Now().UTC().AddDate(0, 0, -40)
	l.now = func() time.Time { return old }
	if _, err := l.LogExecution(context.Background(), validEntry()); err != nil {
		t.Fatalf("LogExecution: %v", err)
	}
	l.now = time.Now

	freed, err := l.CleanupOldLogs(30, true)
	if err != nil {
		t.Fatalf("CleanupOldLogs: %v", err)
	}
	if freed <= 0 {
		t.Errorf("expected positive bytes freed, got %d", freed)
	}

	// Original gone, archive present.
	if _, err := os.Stat(l.partitionPath(old)); !os.IsNotExist(err) {
		t.Error("original partition still present after archive")
	}
	if _, err := os.Stat(l.partitionPath(old) + ".gz"); err != nil {
		t.Errorf("archive missing: %v", err)
	}
}

func TestCleanupOldLogs_Delete(t *testing.T) {
	l := testLogger(t)

	old := time.Now().UTC().AddDate(0, 0, -40)
	l.now = func() time.Time { return old }
	if _, err := l.LogExecution(context.Background(), validEntry()); err != nil {
		t.Fatalf("LogExecution: %v", err)
	}
	l.now = time.Now

	freed, err := l.CleanupOldLogs(30, false)
	if err != nil {
		t.Fatalf("CleanupOldLogs: %v", err)
	}
	if freed <= 0 {
		t.Errorf("expected positive bytes freed, got %d", freed)
	}
	if _, err := os.Stat(l.partitionPath(old)); !os.IsNotExist(err) {
		t.Error("partition not deleted")
	}
}

func TestCleanupOldLogs_KeepsRecent(t *testing.T) {
	l := testLogger(t)

	if _, err := l.LogExecution(context.Background(), validEntry()); err != nil {
		t.Fatalf("LogExecution: %v", err)
	}

	if _, err := l.CleanupOldLogs(30, false); err != nil {
		t.Fatalf("CleanupOldLogs: %v", err)
	}
	entries, err := l.Entries(time.Now(), 0)
	if err != nil || len(entries) != 1 {
		t.Errorf("recent partition should survive cleanup: %d entries, %v", len(entries), err)
	}
}

type captureSink struct {
	entries []models.AuditLogEntry
}

func (s *captureSink) Log(ctx context.Context, entry models.AuditLogEntry) error {
	s.entries = append(s.entries, entry)
	return nil
}

func TestSink_ReceivesEntries(t *testing.T) {
	sink := &captureSink{}
	l := testLogger(t, sink)

	if _, err := l.LogExecution(context.Background(), validEntry()); err != nil {
		t.Fatalf("LogExecution: %v", err)
	}
	if len(sink.entries) != 1 {
		t.Errorf("sink received %d entries, want 1", len(sink.entries))
	}
}
