package criteria_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"callsheet/internal/config"
	"callsheet/internal/criteria"
	"callsheet/internal/db"
	"callsheet/internal/engine"
	"callsheet/internal/migrate"
)

func newValidator(t *testing.T) (criteria.Validator, *engine.Engine, context.Context) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default(), nil)
	eng.Now = func() time.Time { return time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC) }
	return criteria.Validator{Repo: eng.Repo}, &eng, context.Background()
}

func createProject(t *testing.T, e *engine.Engine, ctx context.Context) {
	t.Helper()
	_, err := e.CreateProject(ctx, engine.ProjectCreateOptions{
		ID:                 "proj-1",
		Name:               "Summer Run",
		Description:        "two week run",
		Timezone:           "UTC",
		RehearsalStartDate: "2025-06-01",
		ShowEndDate:        "2025-06-09",
		ActorID:            "tester",
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
}

func TestValidatePrepCompletion(t *testing.T) {
	v, e, ctx := newValidator(t)
	createProject(t, e, ctx)

	res, err := v.ValidatePrepCompletion(ctx, "proj-1")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.IsComplete {
		t.Fatal("expected incomplete without locations and role templates")
	}
	if !contains(res.Blockers, "No locations defined") || !contains(res.Blockers, "No role templates defined") {
		t.Fatalf("expected location and role blockers, got %v", res.Blockers)
	}

	if _, err := e.AddLocation(ctx, "proj-1", "Main Stage", "tester"); err != nil {
		t.Fatalf("add location: %v", err)
	}
	if _, err := e.AddRoleTemplate(ctx, "proj-1", "supervisor", "tester"); err != nil {
		t.Fatalf("add role: %v", err)
	}
	res, err = v.ValidatePrepCompletion(ctx, "proj-1")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !res.IsComplete {
		t.Fatalf("expected complete, pending %v blockers %v", res.PendingItems, res.Blockers)
	}
}

func TestValidateStaffingCompletion(t *testing.T) {
	v, e, ctx := newValidator(t)
	createProject(t, e, ctx)

	res, err := v.ValidateStaffingCompletion(ctx, "proj-1")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !contains(res.Blockers, "At least one team member must be assigned") {
		t.Fatalf("expected empty-team blocker, got %v", res.Blockers)
	}

	// staff without a lead role still blocks
	if _, err := e.AddTeamAssignment(ctx, "proj-1", "Sam", "staff", "tester"); err != nil {
		t.Fatalf("add team member: %v", err)
	}
	res, _ = v.ValidateStaffingCompletion(ctx, "proj-1")
	if !contains(res.Blockers, "No supervisor or coordinator assigned") {
		t.Fatalf("expected lead-role blocker, got %v", res.Blockers)
	}

	if _, err := e.AddTeamAssignment(ctx, "proj-1", "Robin", "coordinator", "tester"); err != nil {
		t.Fatalf("add coordinator: %v", err)
	}
	if _, err := e.AddTalentAssignment(ctx, "proj-1", "Star", "Guide", "tester"); err != nil {
		t.Fatalf("add talent: %v", err)
	}
	res, err = v.ValidateStaffingCompletion(ctx, "proj-1")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !res.IsComplete {
		t.Fatalf("expected complete, pending %v blockers %v", res.PendingItems, res.Blockers)
	}
}

func TestValidatePreShowEscortCoverage(t *testing.T) {
	v, e, ctx := newValidator(t)
	createProject(t, e, ctx)
	if _, err := e.UpdateChecklist(ctx, "proj-1", allFinalized(), "tester"); err != nil {
		t.Fatalf("finalize checklist: %v", err)
	}

	// 3 of 4 escorted = 75%, below the 80% threshold
	for _, pair := range [][2]string{{"A", "e1"}, {"B", "e2"}, {"C", "e3"}, {"D", ""}} {
		if _, err := e.AddTalentAssignment(ctx, "proj-1", pair[0], pair[1], "tester"); err != nil {
			t.Fatalf("add talent: %v", err)
		}
	}
	res, err := v.ValidatePreShowReadiness(ctx, "proj-1")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.IsComplete {
		t.Fatal("expected pending escort coverage")
	}
	found := false
	for _, item := range res.PendingItems {
		if strings.Contains(item, "below 80%") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected below-threshold pending item, got %v", res.PendingItems)
	}

	// escorting the fourth pushes coverage to 100%
	if _, err := e.AddTalentAssignment(ctx, "proj-1", "E", "e4", "tester"); err != nil {
		t.Fatalf("add talent: %v", err)
	}
	// 4 of 5 = 80%, at threshold counts as complete
	res, err = v.ValidatePreShowReadiness(ctx, "proj-1")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !res.IsComplete {
		t.Fatalf("expected complete at threshold, pending %v", res.PendingItems)
	}
}

func TestValidateTimecardCompletion(t *testing.T) {
	v, e, ctx := newValidator(t)
	createProject(t, e, ctx)

	ta, err := e.AddTeamAssignment(ctx, "proj-1", "Jules", "supervisor", "tester")
	if err != nil {
		t.Fatalf("add team member: %v", err)
	}
	if _, err := e.AddTeamAssignment(ctx, "proj-1", "Quiet", "staff", "tester"); err != nil {
		t.Fatalf("add team member: %v", err)
	}
	tc, err := e.AddTimecard(ctx, "proj-1", ta.ID, "2025-06-08", "tester")
	if err != nil {
		t.Fatalf("add timecard: %v", err)
	}

	res, err := v.ValidateTimecardCompletion(ctx, "proj-1")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.IsComplete {
		t.Fatal("expected pending with submitted timecard and silent member")
	}
	foundMissing := false
	for _, item := range res.PendingItems {
		if strings.Contains(item, "Quiet") {
			foundMissing = true
		}
	}
	if !foundMissing {
		t.Fatalf("expected Quiet named as missing, got %v", res.PendingItems)
	}

	if err := e.SetTimecardStatus(ctx, "proj-1", tc.ID, "paid", "tester"); err != nil {
		t.Fatalf("pay timecard: %v", err)
	}
	res, err = v.ValidateTimecardCompletion(ctx, "proj-1")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	// the silent member still has no timecard
	if res.IsComplete {
		t.Fatalf("expected still pending, got complete")
	}
}

func TestValidationErrorCodes(t *testing.T) {
	v, _, ctx := newValidator(t)
	_, err := v.ValidatePrepCompletion(ctx, "no-such-project")
	var ce *criteria.Error
	if !errors.As(err, &ce) {
		t.Fatalf("expected criteria.Error, got %v", err)
	}
	if ce.Code != criteria.CodeValidation {
		t.Fatalf("missing project should map to %s, got %s", criteria.CodeValidation, ce.Code)
	}
}

func allFinalized() engine.ChecklistUpdate {
	yes := true
	return engine.ChecklistUpdate{
		RolesFinalized:           &yes,
		LocationsFinalized:       &yes,
		TeamAssignmentsFinalized: &yes,
		TalentRosterFinalized:    &yes,
	}
}

func contains(items []string, want string) bool {
	for _, it := range items {
		if it == want {
			return true
		}
	}
	return false
}
