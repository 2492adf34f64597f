package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"callsheet/internal/config"
	"callsheet/internal/db"
	"callsheet/internal/engine"
	"callsheet/internal/migrate"
	"callsheet/internal/phase"
	"callsheet/internal/repo"
)

type testEnv struct {
	Engine *engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
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
	return testEnv{Engine: &eng, Ctx: context.Background()}
}

func (env testEnv) createProject(t *testing.T, id string) {
	t.Helper()
	_, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{
		ID:                 id,
		Name:               "Summer Run",
		Timezone:           "UTC",
		RehearsalStartDate: "2025-06-01",
		ShowEndDate:        "2025-06-09",
		ActorID:            "tester",
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
}

func (env testEnv) finalize(t *testing.T, id string, upd engine.ChecklistUpdate) {
	t.Helper()
	if _, err := env.Engine.UpdateChecklist(env.Ctx, id, upd, "tester"); err != nil {
		t.Fatalf("update checklist: %v", err)
	}
}

func boolPtr(b bool) *bool { return &b }

func TestPrepGateBlocksUntilChecklistFinalized(t *testing.T) {
	env := newTestEnv(t)
	env.createProject(t, "proj-1")

	ev, err := env.Engine.EvaluateTransition(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if ev.CanTransition {
		t.Fatalf("expected prep gate to block, got %+v", ev)
	}
	if len(ev.Blockers) != 2 {
		t.Fatalf("expected 2 blockers, got %v", ev.Blockers)
	}

	env.finalize(t, "proj-1", engine.ChecklistUpdate{
		RolesFinalized:     boolPtr(true),
		LocationsFinalized: boolPtr(true),
	})
	ev, err = env.Engine.EvaluateTransition(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !ev.CanTransition || ev.TargetPhase == nil || *ev.TargetPhase != phase.Staffing {
		t.Fatalf("expected staffing to be reachable, got %+v", ev)
	}
}

func TestFullForwardChain(t *testing.T) {
	env := newTestEnv(t)
	env.createProject(t, "proj-1")
	env.finalize(t, "proj-1", engine.ChecklistUpdate{
		RolesFinalized:     boolPtr(true),
		LocationsFinalized: boolPtr(true),
	})

	p, err := env.Engine.ExecuteTransition(env.Ctx, "proj-1", phase.Staffing, phase.TriggerManual, "tester")
	if err != nil {
		t.Fatalf("to staffing: %v", err)
	}
	if p.Phase != string(phase.Staffing) {
		t.Fatalf("expected staffing, got %s", p.Phase)
	}

	env.finalize(t, "proj-1", engine.ChecklistUpdate{
		TeamAssignmentsFinalized: boolPtr(true),
		TalentRosterFinalized:    boolPtr(true),
	})
	if _, err := env.Engine.ExecuteTransition(env.Ctx, "proj-1", phase.PreShow, phase.TriggerManual, "tester"); err != nil {
		t.Fatalf("to pre_show: %v", err)
	}
	// rehearsal start (2025-06-01) is in the past, so the gate is open
	if _, err := env.Engine.ExecuteTransition(env.Ctx, "proj-1", phase.Active, phase.TriggerManual, "tester"); err != nil {
		t.Fatalf("to active: %v", err)
	}
	// show end 2025-06-09 at the 06:00 post-show hour has also passed
	if _, err := env.Engine.ExecuteTransition(env.Ctx, "proj-1", phase.PostShow, phase.TriggerManual, "tester"); err != nil {
		t.Fatalf("to post_show: %v", err)
	}
	// no timecards exist, so none are unfinalized
	if _, err := env.Engine.ExecuteTransition(env.Ctx, "proj-1", phase.Complete, phase.TriggerManual, "tester"); err != nil {
		t.Fatalf("to complete: %v", err)
	}

	// archive date (Apr 1) next occurs in 2026, so immediate archive is blocked
	var tna *engine.TransitionNotAllowedError
	if _, err := env.Engine.ExecuteTransition(env.Ctx, "proj-1", phase.Archived, phase.TriggerManual, "tester"); !errors.As(err, &tna) {
		t.Fatalf("expected TransitionNotAllowedError, got %v", err)
	}
	env.Engine.Now = func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }
	p, err = env.Engine.ExecuteTransition(env.Ctx, "proj-1", phase.Archived, phase.TriggerManual, "tester")
	if err != nil {
		t.Fatalf("to archived: %v", err)
	}
	if p.Phase != string(phase.Archived) {
		t.Fatalf("expected archived, got %s", p.Phase)
	}

	ev, err := env.Engine.EvaluateTransition(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("evaluate archived: %v", err)
	}
	if ev.TargetPhase != nil || ev.CanTransition {
		t.Fatalf("archived must be terminal, got %+v", ev)
	}
}

func TestArchiveFeb29WaitsForLeapYear(t *testing.T) {
	env := newTestEnv(t)
	env.createProject(t, "proj-1")
	env.finalize(t, "proj-1", engine.ChecklistUpdate{
		RolesFinalized:           boolPtr(true),
		LocationsFinalized:       boolPtr(true),
		TeamAssignmentsFinalized: boolPtr(true),
		TalentRosterFinalized:    boolPtr(true),
	})
	for _, target := range []phase.Phase{phase.Staffing, phase.PreShow, phase.Active, phase.PostShow, phase.Complete} {
		if _, err := env.Engine.ExecuteTransition(env.Ctx, "proj-1", target, phase.TriggerManual, "tester"); err != nil {
			t.Fatalf("advance to %s: %v", target, err)
		}
	}
	if _, err := env.Engine.DB.ExecContext(env.Ctx, `UPDATE projects SET archive_month=2, archive_day=29 WHERE id='proj-1'`); err != nil {
		t.Fatalf("set archive date: %v", err)
	}

	// completed 2025-06-10; Feb 29 does not exist again until 2028
	ev, err := env.Engine.EvaluateTransition(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if ev.CanTransition {
		t.Fatalf("archive gate must wait for a real Feb 29")
	}
	want := time.Date(2028, 2, 29, 6, 0, 0, 0, time.UTC)
	if ev.ScheduledAt == nil || !ev.ScheduledAt.Equal(want) {
		t.Fatalf("expected archive at %s, got %v", want, ev.ScheduledAt)
	}

	env.Engine.Now = func() time.Time { return time.Date(2028, 3, 1, 0, 0, 0, 0, time.UTC) }
	p, err := env.Engine.ExecuteTransition(env.Ctx, "proj-1", phase.Archived, phase.TriggerManual, "tester")
	if err != nil {
		t.Fatalf("to archived: %v", err)
	}
	if p.Phase != string(phase.Archived) {
		t.Fatalf("expected archived, got %s", p.Phase)
	}
}

func TestExecuteTransitionRejectsWrongTarget(t *testing.T) {
	env := newTestEnv(t)
	env.createProject(t, "proj-1")

	var tna *engine.TransitionNotAllowedError
	if _, err := env.Engine.ExecuteTransition(env.Ctx, "proj-1", phase.Active, phase.TriggerManual, "tester"); !errors.As(err, &tna) {
		t.Fatalf("expected TransitionNotAllowedError for phase skip, got %v", err)
	}
	if tna.Current != phase.Prep {
		t.Fatalf("expected current prep, got %s", tna.Current)
	}
}

func TestRepeatedTransitionFails(t *testing.T) {
	env := newTestEnv(t)
	env.createProject(t, "proj-1")
	env.finalize(t, "proj-1", engine.ChecklistUpdate{
		RolesFinalized:     boolPtr(true),
		LocationsFinalized: boolPtr(true),
	})
	if _, err := env.Engine.ExecuteTransition(env.Ctx, "proj-1", phase.Staffing, phase.TriggerManual, "tester"); err != nil {
		t.Fatalf("first advance: %v", err)
	}
	var tna *engine.TransitionNotAllowedError
	if _, err := env.Engine.ExecuteTransition(env.Ctx, "proj-1", phase.Staffing, phase.TriggerManual, "tester"); !errors.As(err, &tna) {
		t.Fatalf("expected repeat advance to fail, got %v", err)
	}
}

func TestPostShowBlockedByUnfinalizedTimecards(t *testing.T) {
	env := newTestEnv(t)
	env.createProject(t, "proj-1")
	env.finalize(t, "proj-1", engine.ChecklistUpdate{
		RolesFinalized:           boolPtr(true),
		LocationsFinalized:       boolPtr(true),
		TeamAssignmentsFinalized: boolPtr(true),
		TalentRosterFinalized:    boolPtr(true),
	})
	for _, target := range []phase.Phase{phase.Staffing, phase.PreShow, phase.Active, phase.PostShow} {
		if _, err := env.Engine.ExecuteTransition(env.Ctx, "proj-1", target, phase.TriggerManual, "tester"); err != nil {
			t.Fatalf("advance to %s: %v", target, err)
		}
	}

	ta, err := env.Engine.AddTeamAssignment(env.Ctx, "proj-1", "Jules", "supervisor", "tester")
	if err != nil {
		t.Fatalf("add team member: %v", err)
	}
	tc, err := env.Engine.AddTimecard(env.Ctx, "proj-1", ta.ID, "2025-06-08", "tester")
	if err != nil {
		t.Fatalf("add timecard: %v", err)
	}

	ev, err := env.Engine.EvaluateTransition(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if ev.CanTransition {
		t.Fatalf("expected submitted timecard to block completion")
	}

	if err := env.Engine.SetTimecardStatus(env.Ctx, "proj-1", tc.ID, "approved", "tester"); err != nil {
		t.Fatalf("approve timecard: %v", err)
	}
	ev, err = env.Engine.EvaluateTransition(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !ev.CanTransition {
		t.Fatalf("expected approval to open the gate, blockers: %v", ev.Blockers)
	}
}

func TestTimeGateReportsSchedule(t *testing.T) {
	env := newTestEnv(t)
	// freeze before the rehearsal start so the pre_show gate is closed
	env.Engine.Now = func() time.Time { return time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC) }
	env.createProject(t, "proj-1")
	env.finalize(t, "proj-1", engine.ChecklistUpdate{
		RolesFinalized:           boolPtr(true),
		LocationsFinalized:       boolPtr(true),
		TeamAssignmentsFinalized: boolPtr(true),
		TalentRosterFinalized:    boolPtr(true),
	})
	for _, target := range []phase.Phase{phase.Staffing, phase.PreShow} {
		if _, err := env.Engine.ExecuteTransition(env.Ctx, "proj-1", target, phase.TriggerManual, "tester"); err != nil {
			t.Fatalf("advance to %s: %v", target, err)
		}
	}

	ev, err := env.Engine.EvaluateTransition(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if ev.CanTransition {
		t.Fatalf("expected future rehearsal start to block")
	}
	if ev.ScheduledAt == nil {
		t.Fatalf("expected scheduled instant to be reported")
	}
	want := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if !ev.ScheduledAt.Equal(want) {
		t.Fatalf("expected %s, got %s", want, ev.ScheduledAt)
	}
}

func TestAuditTrailRecordsTransitions(t *testing.T) {
	env := newTestEnv(t)
	env.createProject(t, "proj-1")
	env.finalize(t, "proj-1", engine.ChecklistUpdate{
		RolesFinalized:     boolPtr(true),
		LocationsFinalized: boolPtr(true),
	})
	if _, err := env.Engine.ExecuteTransition(env.Ctx, "proj-1", phase.Staffing, phase.TriggerManual, "tester"); err != nil {
		t.Fatalf("advance: %v", err)
	}
	entries, err := env.Engine.Repo.LatestAuditEntries(env.Ctx, repo.AuditFilters{
		ProjectID:  "proj-1",
		ActionType: "phase_transition",
	})
	if err != nil {
		t.Fatalf("audit entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one transition entry, got %d", len(entries))
	}
	if entries[0].TriggeredBy != "tester" {
		t.Fatalf("expected tester as actor, got %s", entries[0].TriggeredBy)
	}
}
