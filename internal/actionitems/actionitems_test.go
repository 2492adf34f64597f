package actionitems_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"callsheet/internal/actionitems"
	"callsheet/internal/config"
	"callsheet/internal/db"
	"callsheet/internal/engine"
	"callsheet/internal/migrate"
	"callsheet/internal/readiness"
)

func newService(t *testing.T, feedURL string) (actionitems.Service, context.Context) {
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

	ctx := context.Background()
	if _, err := eng.CreateProject(ctx, engine.ProjectCreateOptions{
		ID:                 "proj-1",
		Name:               "Summer Run",
		Timezone:           "UTC",
		RehearsalStartDate: "2025-06-01",
		ShowEndDate:        "2025-06-09",
		ActorID:            "tester",
	}); err != nil {
		t.Fatalf("create project: %v", err)
	}

	svc := actionitems.Service{Engine: eng}
	if feedURL != "" {
		svc.Readiness = readiness.NewClient(config.ReadinessConfig{
			URL:         feedURL,
			TokenSecret: "test-secret",
			Issuer:      "callsheet-test",
		}, nil)
	}
	return svc, ctx
}

func findItem(list actionitems.List, title string) (int, bool) {
	for i, it := range list.Items {
		if it.Title == title {
			return i, true
		}
	}
	return 0, false
}

func TestListPhaseDerivedItems(t *testing.T) {
	svc, ctx := newService(t, "")

	list, err := svc.List(ctx, "proj-1", actionitems.Filters{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list.Phase != "prep" {
		t.Fatalf("expected prep phase, got %s", list.Phase)
	}
	for _, title := range []string{"Finalize role templates", "Finalize locations"} {
		if _, ok := findItem(list, title); !ok {
			t.Fatalf("missing item %q in %+v", title, list.Items)
		}
	}
	if list.Summary.Total != len(list.Items) {
		t.Fatalf("summary total %d != %d items", list.Summary.Total, len(list.Items))
	}
	if list.Summary.Pending+list.Summary.Completed != list.Summary.Total {
		t.Fatalf("summary does not add up: %+v", list.Summary)
	}
	if list.Summary.Required < 2 {
		t.Fatalf("prep checklist items must be required, got %+v", list.Summary)
	}
}

func TestListFilters(t *testing.T) {
	svc, ctx := newService(t, "")

	list, err := svc.List(ctx, "proj-1", actionitems.Filters{RequiredOnly: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, it := range list.Items {
		if !it.RequiredForTransition {
			t.Fatalf("required_only returned %+v", it)
		}
	}

	list, err = svc.List(ctx, "proj-1", actionitems.Filters{Category: engine.CategoryLocations})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list.Items) == 0 {
		t.Fatal("expected at least the locations checklist item")
	}
	for _, it := range list.Items {
		if it.Category != engine.CategoryLocations {
			t.Fatalf("category filter returned %+v", it)
		}
	}
}

func TestListPhasePreview(t *testing.T) {
	svc, ctx := newService(t, "")

	list, err := svc.List(ctx, "proj-1", actionitems.Filters{Phase: "post_show"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list.Phase != "post_show" {
		t.Fatalf("preview must report the requested phase, got %s", list.Phase)
	}
	if _, ok := findItem(list, "Approve and pay all timecards"); !ok {
		t.Fatalf("expected timecard item in post_show preview, got %+v", list.Items)
	}

	if _, err := svc.List(ctx, "proj-1", actionitems.Filters{Phase: "closing-night"}); err == nil {
		t.Fatal("unknown phase must be rejected")
	}
}

func TestListMergesReadinessFeed(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/projects/proj-1/readiness" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[
			{"area":"crew","title":"Book security escorts","priority":"critical"},
			{"area":"venue","title":"  finalize   LOCATIONS ","priority":"important"},
			{"area":"payroll","title":"Confirm payroll cutoff","priority":"optional","done":true},
			{"area":"misc","title":"   "}
		]}`))
	}))
	defer srv.Close()

	svc, ctx := newService(t, srv.URL)
	list, err := svc.List(ctx, "proj-1", actionitems.Filters{IncludeReadinessItems: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.HasPrefix(gotAuth, "Bearer ") {
		t.Fatalf("feed call must carry a bearer token, got %q", gotAuth)
	}

	i, ok := findItem(list, "Book security escorts")
	if !ok {
		t.Fatalf("feed item missing from %+v", list.Items)
	}
	got := list.Items[i]
	if got.Category != engine.CategoryStaffing || got.Priority != "high" {
		t.Fatalf("crew/critical should map to staffing/high, got %+v", got)
	}
	if got.RequiredForTransition {
		t.Fatal("feed items are never required for transition")
	}

	// "finalize LOCATIONS" duplicates the phase item by normalized title
	count := 0
	for _, it := range list.Items {
		if strings.EqualFold(strings.Join(strings.Fields(it.Title), " "), "finalize locations") {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("duplicate feed title must be dropped, found %d copies", count)
	}

	if i, ok := findItem(list, "Confirm payroll cutoff"); !ok {
		t.Fatal("payroll feed item missing")
	} else if it := list.Items[i]; it.Category != engine.CategoryTimecards || it.Priority != "low" || !it.Completed {
		t.Fatalf("payroll/optional/done mapped wrong: %+v", it)
	}

	if _, ok := findItem(list, "   "); ok {
		t.Fatal("blank feed titles must be skipped")
	}
}

func TestListDegradesWhenFeedUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	srv.Close()

	svc, ctx := newService(t, srv.URL)
	withFeed, err := svc.List(ctx, "proj-1", actionitems.Filters{IncludeReadinessItems: true})
	if err != nil {
		t.Fatalf("feed failure must not fail the list: %v", err)
	}

	svc.Readiness = nil
	baseline, err := svc.List(ctx, "proj-1", actionitems.Filters{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(withFeed.Items) != len(baseline.Items) {
		t.Fatalf("degraded list should match phase items: %d != %d", len(withFeed.Items), len(baseline.Items))
	}
}
