package sweep_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"callsheet/internal/config"
	"callsheet/internal/db"
	"callsheet/internal/domain"
	"callsheet/internal/engine"
	"callsheet/internal/migrate"
	"callsheet/internal/phase"
	"callsheet/internal/repo"
	"callsheet/internal/sweep"
)

func newSweepEnv(t *testing.T) (sweep.Evaluator, *engine.Engine, context.Context) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	eng := engine.New(conn, cfg, nil)
	eng.Now = func() time.Time { return time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC) }
	ev := sweep.Evaluator{
		Engine: eng,
		Repo:   eng.Repo,
		Audit:  eng.Audit,
		Config: cfg,
		Now:    eng.Now,
	}
	return ev, &eng, context.Background()
}

// seedProject creates a project with past schedule dates and a fully
// finalized checklist, then walks it forward until it sits in target.
func seedProject(t *testing.T, e *engine.Engine, ctx context.Context, id string, target phase.Phase) {
	t.Helper()
	seedProjectDates(t, e, ctx, id, "2025-06-01", "2025-06-09", target)
}

func seedProjectDates(t *testing.T, e *engine.Engine, ctx context.Context, id, rehearsal, showEnd string, target phase.Phase) {
	t.Helper()
	if _, err := e.CreateProject(ctx, engine.ProjectCreateOptions{
		ID:                 id,
		Name:               id,
		Timezone:           "UTC",
		RehearsalStartDate: rehearsal,
		ShowEndDate:        showEnd,
		ActorID:            "tester",
	}); err != nil {
		t.Fatalf("create %s: %v", id, err)
	}
	yes := true
	if _, err := e.UpdateChecklist(ctx, id, engine.ChecklistUpdate{
		RolesFinalized:           &yes,
		LocationsFinalized:       &yes,
		TeamAssignmentsFinalized: &yes,
		TalentRosterFinalized:    &yes,
	}, "tester"); err != nil {
		t.Fatalf("finalize %s: %v", id, err)
	}
	for _, next := range []phase.Phase{phase.Staffing, phase.PreShow, phase.Active, phase.PostShow, phase.Complete} {
		cur, err := e.GetCurrentPhase(ctx, id)
		if err != nil {
			t.Fatalf("phase of %s: %v", id, err)
		}
		if cur == target {
			return
		}
		if _, err := e.ExecuteTransition(ctx, id, next, phase.TriggerManual, "tester"); err != nil {
			t.Fatalf("advance %s to %s: %v", id, next, err)
		}
	}
}

func attemptDetails(t *testing.T, entry domain.AuditLogEntry) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(entry.Details), &m); err != nil {
		t.Fatalf("decode attempt details: %v", err)
	}
	return m
}

func attemptEntries(t *testing.T, e *engine.Engine, ctx context.Context, projectID string) []domain.AuditLogEntry {
	t.Helper()
	entries, err := e.Repo.LatestAuditEntries(ctx, repo.AuditFilters{
		ProjectID:  projectID,
		ActionType: "automatic_transition_attempt",
	})
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	return entries
}

func TestSweepAdvancesDueProjects(t *testing.T) {
	ev, e, ctx := newSweepEnv(t)
	// pre_show with a past rehearsal date: due
	seedProject(t, e, ctx, "due-1", phase.PreShow)
	// active with a past show end: due
	seedProject(t, e, ctx, "due-2", phase.Active)
	// prep is not in the default sweep phase set, so it stays put even
	// though its gate is satisfied
	seedProject(t, e, ctx, "prep-1", phase.Prep)

	result, err := ev.EvaluateAllProjects(ctx, false)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.TotalProjects != 3 || result.EvaluatedProjects != 3 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if result.SuccessfulTransitions != 2 || result.FailedTransitions != 0 {
		t.Fatalf("expected 2 transitions, got %+v", result)
	}

	for id, want := range map[string]phase.Phase{
		"due-1":  phase.Active,
		"due-2":  phase.PostShow,
		"prep-1": phase.Prep,
	} {
		cur, err := e.GetCurrentPhase(ctx, id)
		if err != nil {
			t.Fatalf("phase of %s: %v", id, err)
		}
		if cur != want {
			t.Fatalf("%s: expected %s, got %s", id, want, cur)
		}
	}

	entries, err := e.Repo.LatestAuditEntries(ctx, repo.AuditFilters{ActionType: "automatic_transition_attempt"})
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("every attempt must be recorded, got %d entries", len(entries))
	}
	succeeded := 0
	for _, entry := range entries {
		if entry.TriggeredBy != "system" {
			t.Fatalf("sweep attempts must be system-triggered, got %s", entry.TriggeredBy)
		}
		if attemptDetails(t, entry)["success"] == true {
			succeeded++
		}
	}
	if succeeded != 2 {
		t.Fatalf("expected 2 successful attempts, got %d", succeeded)
	}

	blocked := attemptEntries(t, e, ctx, "prep-1")
	if len(blocked) != 1 {
		t.Fatalf("expected 1 blocked attempt for prep-1, got %d", len(blocked))
	}
	d := attemptDetails(t, blocked[0])
	if d["success"] != false || !strings.Contains(d["reason"].(string), "not enabled for automatic transitions") {
		t.Fatalf("unexpected blocked attempt: %+v", d)
	}
}

func TestSweepAuditsBlockedAttempt(t *testing.T) {
	ev, e, ctx := newSweepEnv(t)
	// rehearsal is still 2 days out, so the pre_show gate is closed
	seedProjectDates(t, e, ctx, "waiting-1", "2025-06-12", "2025-06-20", phase.PreShow)

	result, err := ev.EvaluateAllProjects(ctx, false)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.EvaluatedProjects != 1 || result.SuccessfulTransitions != 0 ||
		result.FailedTransitions != 0 || len(result.Errors) != 0 {
		t.Fatalf("blocked gate is not a batch failure: %+v", result)
	}

	entries := attemptEntries(t, e, ctx, "waiting-1")
	if len(entries) != 1 {
		t.Fatalf("blocked attempt must be audited, got %d entries", len(entries))
	}
	d := attemptDetails(t, entries[0])
	if d["success"] != false {
		t.Fatalf("expected success=false, got %+v", d)
	}
	if d["from"] != "pre_show" || d["to"] != "active" {
		t.Fatalf("attempt must name the phases, got %+v", d)
	}
	if !strings.Contains(d["reason"].(string), "scheduled for") {
		t.Fatalf("reason must carry the blocker, got %+v", d)
	}
}

func TestSweepLostRaceRecordedAsBlocked(t *testing.T) {
	ev, e, ctx := newSweepEnv(t)
	seedProject(t, e, ctx, "race-1", phase.PreShow)

	// The gate reads as open during evaluation but closed again at commit,
	// which is how a concurrent advance between the two reads presents.
	due := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	early := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	racing := *e
	racing.Now = func() time.Time {
		calls++
		if calls == 1 {
			return due
		}
		return early
	}
	ev.Engine = racing

	result, err := ev.EvaluateAllProjects(ctx, false)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.SuccessfulTransitions != 0 || result.FailedTransitions != 0 || len(result.Errors) != 0 {
		t.Fatalf("a lost race is a blocked attempt, not a failure: %+v", result)
	}
	cur, err := e.GetCurrentPhase(ctx, "race-1")
	if err != nil {
		t.Fatalf("phase: %v", err)
	}
	if cur != phase.PreShow {
		t.Fatalf("project must not have advanced, got %s", cur)
	}

	entries := attemptEntries(t, e, ctx, "race-1")
	if len(entries) != 1 {
		t.Fatalf("lost race must be audited, got %d entries", len(entries))
	}
	if d := attemptDetails(t, entries[0]); d["success"] != false {
		t.Fatalf("expected success=false, got %+v", d)
	}
}

func TestSweepDryRunChangesNothing(t *testing.T) {
	ev, e, ctx := newSweepEnv(t)
	seedProject(t, e, ctx, "due-1", phase.PreShow)

	result, err := ev.EvaluateAllProjects(ctx, true)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if !result.DryRun || result.SuccessfulTransitions != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	cur, err := e.GetCurrentPhase(ctx, "due-1")
	if err != nil {
		t.Fatalf("phase: %v", err)
	}
	if cur != phase.PreShow {
		t.Fatalf("dry run must not advance, got %s", cur)
	}
	entries := attemptEntries(t, e, ctx, "due-1")
	if len(entries) != 1 {
		t.Fatalf("dry-run attempt must still be recorded, got %d entries", len(entries))
	}
	if d := attemptDetails(t, entries[0]); d["dry_run"] != true {
		t.Fatalf("dry-run attempt must be flagged, got %+v", d)
	}
}

func TestSweepSkipsDisabledProjects(t *testing.T) {
	ev, e, ctx := newSweepEnv(t)
	seedProject(t, e, ctx, "due-1", phase.PreShow)
	if _, err := e.DB.ExecContext(ctx, `UPDATE projects SET auto_transitions_enabled=0 WHERE id='due-1'`); err != nil {
		t.Fatalf("disable: %v", err)
	}
	result, err := ev.EvaluateAllProjects(ctx, false)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.TotalProjects != 0 {
		t.Fatalf("disabled project must not be listed, got %+v", result)
	}
}

func TestScheduledTransitionsWindow(t *testing.T) {
	ev, e, ctx := newSweepEnv(t)
	seedProjectDates(t, e, ctx, "future-1", "2025-06-12", "2025-06-20", phase.PreShow)

	// rehearsal 2025-06-12 00:00 UTC is 36h after the frozen now
	items, err := ev.ScheduledTransitions(ctx, 72*time.Hour)
	if err != nil {
		t.Fatalf("scheduled: %v", err)
	}
	if len(items) != 1 || items[0].ProjectID != "future-1" {
		t.Fatalf("expected future-1 in window, got %+v", items)
	}
	if items[0].TargetPhase != phase.Active {
		t.Fatalf("expected target active, got %s", items[0].TargetPhase)
	}

	items, err = ev.ScheduledTransitions(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("scheduled: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected nothing inside 24h, got %+v", items)
	}
}
