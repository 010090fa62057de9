package approval

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/adjutant-ai/adjutant/internal/audit"
	"github.com/adjutant-ai/adjutant/internal/connectors"
	"github.com/adjutant-ai/adjutant/internal/health"
	"github.com/adjutant-ai/adjutant/internal/models"
	"github.com/adjutant-ai/adjutant/internal/retry"
	"github.com/adjutant-ai/adjutant/internal/store"
)

type orchFixture struct {
	store *store.MemStore
	audit *audit.Logger
	conns *connectors.Registry
	orch  *Orchestrator
	conn  *testConnector
	cache *connectors.FailedRequestCache
}

func newOrchFixture(t *testing.T) *orchFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	auditLog, err := audit.NewLogger(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("audit.NewLogger: %v", err)
	}

	conn := &testConnector{name: "email"}
	conns := connectors.NewRegistry()
	conns.Register(connectors.Registration{
		Connector:  conn,
		Domain:     models.DomainPersonal,
		Capability: "send",
	})

	s := store.NewMemStore()
	cache := connectors.NewFailedRequestCache(s, conns, logger)

	cfg := DefaultOrchestratorConfig()
	cfg.RetryPolicy = retry.Policy{MaxAttempts: 1, RetryIf: connectors.IsRetryable}
	orch := NewOrchestrator(s, auditLog, conns, health.NewRegistry(0), cache, cfg, logger)

	return &orchFixture{store: s, audit: auditLog, conns: conns, orch: orch, conn: conn, cache: cache}
}

func approvedRequest() *models.ApprovalRequest {
	now := time.Now().UTC()
	return &models.ApprovalRequest{
		DocType:    models.DocTypeApprovalRequest,
		ID:         uuid.NewString(),
		ActionType: models.ActionSendMessage,
		Target:     "alice@example.com",
		RiskLevel:  models.RiskLow,
		CreatedAt:  now,
		Status:     models.ApprovalApproved,
		Approver:   "user",
		ApprovedAt: &now,
		Domain:     models.DomainPersonal,
		Connector:  "email",
		Operation:  "send",
	}
}

func putRequest(t *testing.T, s store.Store, state store.State, req *models.ApprovalRequest) {
	t.Helper()
	if err := store.PutJSON(context.Background(), s, state, req.ID, req); err != nil {
		t.Fatalf("PutJSON: %v", err)
	}
}

func getRequest(t *testing.T, s store.Store, state store.State, id string) models.ApprovalRequest {
	t.Helper()
	var req models.ApprovalRequest
	if err := store.GetJSON(context.Background(), s, state, id, &req); err != nil {
		t.Fatalf("request %s not in %s: %v", id, state, err)
	}
	return req
}

func TestRunCycle_ExecutesApprovedRequest(t *testing.T) {
	f := newOrchFixture(t)
	req := approvedRequest()
	putRequest(t, f.store, store.StateApproved, req)

	f.orch.RunCycle(context.Background())

	if f.conn.invoked != 1 {
		t.Fatalf("connector invoked %d times, want 1", f.conn.invoked)
	}

	done := getRequest(t, f.store, store.StateDone, req.ID)
	if done.Status != models.ApprovalExecuted {
		t.Errorf("status: %s", done.Status)
	}
	if done.ExecutedAt == nil {
		t.Error("execution timestamp not set")
	}
	if _, err := f.store.Get(context.Background(), store.StateApproved, req.ID); !errors.Is(err, store.ErrNotFound) {
		t.Error("record still present in approved store after execution")
	}
}

func TestRunCycle_ExecutionTimestampSetOnce(t *testing.T) {
	f := newOrchFixture(t)
	req := approvedRequest()
	stamped := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	req.ExecutedAt = &stamped
	putRequest(t, f.store, store.StateApproved, req)

	f.orch.RunCycle(context.Background())

	done := getRequest(t, f.store, store.StateDone, req.ID)
	if !done.ExecutedAt.Equal(stamped) {
		t.Errorf("execution timestamp overwritten: %v", done.ExecutedAt)
	}
}

func TestRunCycle_TreatsMovedPendingAsHumanApproval(t *testing.T) {
	f := newOrchFixture(t)
	req := approvedRequest()
	req.Status = models.ApprovalPending
	req.Approver = ""
	req.ApprovedAt = nil
	putRequest(t, f.store, store.StateApproved, req)

	f.orch.RunCycle(context.Background())

	done := getRequest(t, f.store, store.StateDone, req.ID)
	if done.Approver != "user" {
		t.Errorf("approver: %q", done.Approver)
	}
	if done.ApprovedAt == nil {
		t.Error("approval timestamp not set on human-moved record")
	}
	if f.conn.invoked != 1 {
		t.Errorf("connector invoked %d times, want 1", f.conn.invoked)
	}
}

func TestRunCycle_RejectsInvalidRecord(t *testing.T) {
	f := newOrchFixture(t)
	req := approvedRequest()
	req.ActionType = "" // structurally invalid, must never execute
	putRequest(t, f.store, store.StateApproved, req)

	f.orch.RunCycle(context.Background())

	if f.conn.invoked != 0 {
		t.Fatalf("invalid record was executed %d times", f.conn.invoked)
	}

	rejected := getRequest(t, f.store, store.StateRejected, req.ID)
	if rejected.Status != models.ApprovalRejected {
		t.Errorf("status: %s", rejected.Status)
	}
	if !strings.Contains(rejected.Notes, "validation failed") {
		t.Errorf("notes missing validation reason: %q", rejected.Notes)
	}
}

func TestRunCycle_RejectsOnExecutionFailure(t *testing.T) {
	f := newOrchFixture(t)
	f.conn.fail = connectors.NewError("email", connectors.CodeInvalidParams, errors.New("missing recipient"))

	req := approvedRequest()
	putRequest(t, f.store, store.StateApproved, req)

	f.orch.RunCycle(context.Background())

	rejected := getRequest(t, f.store, store.StateRejected, req.ID)
	if !strings.Contains(rejected.Notes, "execution failed") {
		t.Errorf("notes: %q", rejected.Notes)
	}
}

func TestRunCycle_AuthFailureCreatesUrgentItem(t *testing.T) {
	f := newOrchFixture(t)
	f.conn.fail = connectors.NewError("email", connectors.CodeAuth, errors.New("token expired"))

	req := approvedRequest()
	putRequest(t, f.store, store.StateApproved, req)

	f.orch.RunCycle(context.Background())

	records, err := f.store.List(context.Background(), store.StateNeedsAction)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 credential notification item, got %d", len(records))
	}

	var item models.ActionItem
	if err := json.Unmarshal(records[0].Data, &item); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if item.Priority != models.PriorityUrgent {
		t.Errorf("priority: %s", item.Priority)
	}
	if item.Source != models.ItemSourceSystem {
		t.Errorf("source: %s", item.Source)
	}
}

func TestRunCycle_NetworkFailureCachesRequest(t *testing.T) {
	f := newOrchFixture(t)
	f.conn.fail = connectors.NewError("email", connectors.CodeNetwork, errors.New("connection refused"))

	req := approvedRequest()
	putRequest(t, f.store, store.StateApproved, req)

	f.orch.RunCycle(context.Background())

	pending, err := f.cache.Pending(context.Background())
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 cached failed request, got %d", len(pending))
	}
	if pending[0].Connector != "email" || pending[0].ApprovalID != req.ID {
		t.Errorf("cached request mismatch: %+v", pending[0])
	}
}

func TestRunCycle_PanicDoesNotHaltLoop(t *testing.T) {
	f := newOrchFixture(t)

	bad := &testConnector{name: "flaky", panic: true}
	f.conns.Register(connectors.Registration{
		Connector:  bad,
		Domain:     models.DomainBusiness,
		Capability: "send",
	})

	broken := approvedRequest()
	broken.Connector = "flaky"
	healthy := approvedRequest()
	putRequest(t, f.store, store.StateApproved, broken)
	putRequest(t, f.store, store.StateApproved, healthy)

	f.orch.RunCycle(context.Background())

	if f.conn.invoked != 1 {
		t.Errorf("healthy request not executed after sibling panic (invoked=%d)", f.conn.invoked)
	}
	getRequest(t, f.store, store.StateRejected, broken.ID)
	getRequest(t, f.store, store.StateDone, healthy.ID)
}

func TestRunCycle_ExpiresStalePendingRequests(t *testing.T) {
	f := newOrchFixture(t)

	stale := approvedRequest()
	stale.Status = models.ApprovalPending
	stale.Approver = ""
	stale.ApprovedAt = nil
	stale.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	putRequest(t, f.store, store.StatePendingApproval, stale)

	fresh := approvedRequest()
	fresh.Status = models.ApprovalPending
	fresh.Approver = ""
	fresh.ApprovedAt = nil
	putRequest(t, f.store, store.StatePendingApproval, fresh)

	f.orch.RunCycle(context.Background())

	rejected := getRequest(t, f.store, store.StateRejected, stale.ID)
	if !strings.Contains(rejected.Notes, "expired") {
		t.Errorf("notes missing expiration reason: %q", rejected.Notes)
	}

	if _, err := f.store.Get(context.Background(), store.StatePendingApproval, fresh.ID); err != nil {
		t.Errorf("fresh pending request was expired: %v", err)
	}
}

func TestRunCycle_AuditsHumanRejectionOnce(t *testing.T) {
	f := newOrchFixture(t)

	req := approvedRequest()
	req.Status = models.ApprovalRejected
	putRequest(t, f.store, store.StateRejected, req)

	f.orch.RunCycle(context.Background())
	f.orch.RunCycle(context.Background())

	entries, err := f.audit.Entries(time.Now(), 0)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	count := 0
	for _, e := range entries {
		if e.ApprovalID == req.ID && e.ApprovalStatus == models.AuditRejected {
			count++
		}
	}
	if count != 1 {
		t.Errorf("human rejection audited %d times, want exactly 1", count)
	}
}

func TestRunCycle_SkipsAlreadyAuditedAPIRejection(t *testing.T) {
	f := newOrchFixture(t)

	// Records rejected through the API land here already audited by the
	// handler; the loop must not log them a second time.
	req := approvedRequest()
	req.Status = models.ApprovalRejected
	req.DecidedVia = "api"
	putRequest(t, f.store, store.StateRejected, req)

	f.orch.RunCycle(context.Background())

	entries, err := f.audit.Entries(time.Now(), 0)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	for _, e := range entries {
		if e.ApprovalID == req.ID && e.ApprovalStatus == models.AuditRejected {
			t.Errorf("api rejection audited again by the poll loop")
		}
	}
}

func TestRunCycle_FinishesSourceItem(t *testing.T) {
	f := newOrchFixture(t)

	item := models.ActionItem{
		ID:       "42",
		Source:   models.ItemSourceEmail,
		Title:    "Reply to Alice",
		Priority: models.PriorityNormal,
		Status:   models.ItemStatusStaged,
	}
	if err := store.PutJSON(context.Background(), f.store, store.StatePlans, item.DedupKey(), item); err != nil {
		t.Fatalf("PutJSON: %v", err)
	}

	req := approvedRequest()
	req.SourceItemID = item.DedupKey()
	putRequest(t, f.store, store.StateApproved, req)

	f.orch.RunCycle(context.Background())

	var finished models.ActionItem
	if err := store.GetJSON(context.Background(), f.store, store.StateDone, item.DedupKey(), &finished); err != nil {
		t.Fatalf("source item not moved to done: %v", err)
	}
	if finished.Status != models.ItemStatusDone {
		t.Errorf("item status: %s", finished.Status)
	}
}

func TestRunCycle_FinishesSourceItemOnFailure(t *testing.T) {
	f := newOrchFixture(t)
	f.conn.fail = connectors.NewError("email", connectors.CodeInvalidParams, errors.New("missing recipient"))

	item := models.ActionItem{
		ID:       "42",
		Source:   models.ItemSourceEmail,
		Title:    "Reply to Alice",
		Priority: models.PriorityNormal,
		Status:   models.ItemStatusStaged,
	}
	if err := store.PutJSON(context.Background(), f.store, store.StatePlans, item.DedupKey(), item); err != nil {
		t.Fatalf("PutJSON: %v", err)
	}

	req := approvedRequest()
	req.SourceItemID = item.DedupKey()
	putRequest(t, f.store, store.StateApproved, req)

	f.orch.RunCycle(context.Background())

	var finished models.ActionItem
	if err := store.GetJSON(context.Background(), f.store, store.StateRejected, item.DedupKey(), &finished); err != nil {
		t.Fatalf("source item not moved to rejected: %v", err)
	}
	if finished.Status != models.ItemStatusRejected {
		t.Errorf("item status: %s", finished.Status)
	}
	if _, err := f.store.Get(context.Background(), store.StatePlans, item.DedupKey()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("source item still in plans: %v", err)
	}
}

func TestCanTransition_Edges(t *testing.T) {
	cases := []struct {
		from models.ApprovalStatus
		to   models.ApprovalStatus
		want bool
	}{
		{models.ApprovalPending, models.ApprovalApproved, true},
		{models.ApprovalPending, models.ApprovalRejected, true},
		{models.ApprovalPending, models.ApprovalExecuted, false},
		{models.ApprovalApproved, models.ApprovalExecuted, true},
		{models.ApprovalApproved, models.ApprovalRejected, true},
		{models.ApprovalApproved, models.ApprovalPending, false},
		{models.ApprovalExecuted, models.ApprovalRejected, false},
		{models.ApprovalRejected, models.ApprovalApproved, false},
	}
	for _, tc := range cases {
		req := models.ApprovalRequest{Status: tc.from}
		if got := req.CanTransition(tc.to); got != tc.want {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
