package settings_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"callsheet/internal/config"
	"callsheet/internal/db"
	"callsheet/internal/engine"
	"callsheet/internal/migrate"
	"callsheet/internal/settings"
	"callsheet/internal/timezone"
)

func newService(t *testing.T) (settings.Service, context.Context) {
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
	ctx := context.Background()
	if _, err := eng.CreateProject(ctx, engine.ProjectCreateOptions{ID: "proj-1", Name: "Summer Run", ActorID: "tester"}); err != nil {
		t.Fatalf("create project: %v", err)
	}
	return settings.Service{
		DB:       conn,
		Repo:     eng.Repo,
		Audit:    eng.Audit,
		TZ:       timezone.Service{},
		Defaults: cfg.Defaults,
		Now:      eng.Now,
	}, ctx
}

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestGetReturnsDefaultsForNewProject(t *testing.T) {
	svc, ctx := newService(t)
	cfg, err := svc.Get(ctx, "proj-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !cfg.AutoTransitionsEnabled || cfg.ArchiveMonth != 4 || cfg.ArchiveDay != 1 || cfg.PostShowTransitionHour != 6 {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestUpdatePersistsAndReturnsMerged(t *testing.T) {
	svc, ctx := newService(t)
	cfg, err := svc.Update(ctx, "proj-1", settings.ConfigurationUpdate{
		Timezone:               strPtr("America/Chicago"),
		ShowEndDate:            strPtr("2025-09-01"),
		ArchiveMonth:           intPtr(10),
		ArchiveDay:             intPtr(15),
		PostShowTransitionHour: intPtr(4),
		AutoTransitionsEnabled: boolPtr(false),
	}, "tester")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if cfg.ArchiveMonth != 10 || cfg.ArchiveDay != 15 || cfg.PostShowTransitionHour != 4 {
		t.Fatalf("archive fields not applied: %+v", cfg)
	}
	if cfg.AutoTransitionsEnabled {
		t.Fatal("expected auto transitions disabled")
	}
	if cfg.Timezone == nil || *cfg.Timezone != "America/Chicago" {
		t.Fatalf("timezone not applied: %+v", cfg.Timezone)
	}

	// a fresh read must agree
	again, err := svc.Get(ctx, "proj-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if again.ArchiveMonth != 10 || again.ShowEndDate == nil || *again.ShowEndDate != "2025-09-01" {
		t.Fatalf("re-read disagrees: %+v", again)
	}
}

func TestUpdateRejectsImpossibleArchiveDate(t *testing.T) {
	svc, ctx := newService(t)
	_, err := svc.Update(ctx, "proj-1", settings.ConfigurationUpdate{
		ArchiveMonth: intPtr(2),
		ArchiveDay:   intPtr(31),
	}, "tester")
	var ve *settings.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for February 31, got %v", err)
	}

	// February 29 recurs on leap years and is allowed
	if _, err := svc.Update(ctx, "proj-1", settings.ConfigurationUpdate{
		ArchiveMonth: intPtr(2),
		ArchiveDay:   intPtr(29),
	}, "tester"); err != nil {
		t.Fatalf("February 29 should be accepted: %v", err)
	}
}

func TestUpdateValidatesBeforeWriting(t *testing.T) {
	svc, ctx := newService(t)
	_, err := svc.Update(ctx, "proj-1", settings.ConfigurationUpdate{
		ArchiveMonth:           intPtr(7),
		PostShowTransitionHour: intPtr(24),
	}, "tester")
	var ve *settings.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	// the valid month in the same request must not have been written
	cfg, err := svc.Get(ctx, "proj-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cfg.ArchiveMonth != 4 {
		t.Fatalf("partial write detected, archive month %d", cfg.ArchiveMonth)
	}
}

func TestUpdateRejectsBadInputs(t *testing.T) {
	svc, ctx := newService(t)
	cases := []settings.ConfigurationUpdate{
		{Timezone: strPtr("Mars/Olympus")},
		{RehearsalStartDate: strPtr("June 1st")},
		{ShowEndDate: strPtr("2025-13-01")},
		{ArchiveMonth: intPtr(0)},
		{ArchiveDay: intPtr(32)},
		{PostShowTransitionHour: intPtr(-1)},
	}
	for i, upd := range cases {
		var ve *settings.ValidationError
		if _, err := svc.Update(ctx, "proj-1", upd, "tester"); !errors.As(err, &ve) {
			t.Errorf("case %d: expected ValidationError, got %v", i, err)
		}
	}
}
