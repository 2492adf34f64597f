// Package actionitems merges phase-derived work items with the external
// readiness feed into one deduplicated, filterable operator list.
package actionitems

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"callsheet/internal/domain"
	"callsheet/internal/engine"
	"callsheet/internal/phase"
	"callsheet/internal/readiness"
)

type Service struct {
	Engine    engine.Engine
	Readiness *readiness.Client
	Logger    *slog.Logger
}

// Filters narrow the merged list. Zero values mean no filtering. Phase
// previews the list for a phase other than the project's current one.
type Filters struct {
	Phase                 string
	Category              string
	Priority              string
	RequiredOnly          bool
	IncludeReadinessItems bool
}

// Summary totals the merged list for dashboard-style display.
type Summary struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
	Required  int `json:"required"`
}

type List struct {
	ProjectID string              `json:"projectId"`
	Phase     phase.Phase         `json:"phase"`
	Items     []domain.ActionItem `json:"items"`
	Summary   Summary             `json:"summary"`
}

func (s Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// List returns the phase-derived items, optionally merged with the readiness
// feed. A feed failure degrades to phase items with a warning rather than
// failing the request.
func (s Service) List(ctx context.Context, projectID string, filters Filters) (List, error) {
	current, err := s.Engine.GetCurrentPhase(ctx, projectID)
	if err != nil {
		return List{}, err
	}
	var items []domain.ActionItem
	if filters.Phase != "" {
		p, err := phase.Parse(filters.Phase)
		if err != nil {
			return List{}, err
		}
		current = p
		items = s.Engine.ActionItemsForPhase(ctx, projectID, p)
	} else {
		items = s.Engine.PhaseActionItems(ctx, projectID)
	}

	if filters.IncludeReadinessItems && s.Readiness.Enabled() {
		snap, err := s.Readiness.Fetch(ctx, projectID)
		if err != nil {
			s.logger().Warn("readiness feed unavailable", "project", projectID, "error", err)
		} else {
			items = mergeReadiness(items, snap.Items)
		}
	}

	items = applyFilters(items, filters)
	out := List{ProjectID: projectID, Phase: current, Items: items}
	for _, it := range items {
		out.Summary.Total++
		if it.Completed {
			out.Summary.Completed++
		} else {
			out.Summary.Pending++
		}
		if it.RequiredForTransition {
			out.Summary.Required++
		}
	}
	return out, nil
}

// mergeReadiness appends feed items that do not duplicate an existing item by
// normalized title. Feed items are never required for transition; only phase
// gates decide that.
func mergeReadiness(items []domain.ActionItem, feed []readiness.Item) []domain.ActionItem {
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		seen[normalizeTitle(it.Title)] = true
	}
	for i, fi := range feed {
		key := normalizeTitle(fi.Title)
		if seen[key] {
			continue
		}
		seen[key] = true
		items = append(items, domain.ActionItem{
			ID:          fmt.Sprintf("readiness-%d", i+1),
			Title:       fi.Title,
			Description: fi.Detail,
			Category:    categoryForArea(fi.Area),
			Priority:    priorityFor(fi.Priority),
			Completed:   fi.Done,
		})
	}
	return items
}

func applyFilters(items []domain.ActionItem, f Filters) []domain.ActionItem {
	out := make([]domain.ActionItem, 0, len(items))
	for _, it := range items {
		if f.Category != "" && it.Category != f.Category {
			continue
		}
		if f.Priority != "" && it.Priority != f.Priority {
			continue
		}
		if f.RequiredOnly && !it.RequiredForTransition {
			continue
		}
		out = append(out, it)
	}
	return out
}

func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

func categoryForArea(area string) string {
	switch area {
	case "staffing", "crew", "talent":
		return engine.CategoryStaffing
	case "locations", "venue":
		return engine.CategoryLocations
	case "scheduling", "schedule":
		return engine.CategoryScheduling
	case "timecards", "payroll":
		return engine.CategoryTimecards
	}
	return engine.CategoryGeneral
}

func priorityFor(feedPriority string) string {
	switch feedPriority {
	case "critical":
		return "high"
	case "important":
		return "medium"
	}
	return "low"
}
