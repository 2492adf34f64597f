package engine

import (
	"context"
	"fmt"
	"time"

	"callsheet/internal/domain"
	"callsheet/internal/phase"
)

// Action item categories shared with the merged readiness feed.
const (
	CategoryStaffing   = "staffing"
	CategoryLocations  = "locations"
	CategoryScheduling = "scheduling"
	CategoryTimecards  = "timecards"
	CategoryGeneral    = "general"
)

// PhaseActionItems derives the operator to-do list for the project's current
// phase. Items marked required mirror exactly the blockers EvaluateTransition
// would report, so the list never diverges from what gates the next move.
// On internal failure it logs and returns an empty list; visibility degrades
// gracefully rather than failing the caller.
func (e Engine) PhaseActionItems(ctx context.Context, projectID string) []domain.ActionItem {
	p, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		e.logger().Warn("action items unavailable", "project_id", projectID, "err", err)
		return []domain.ActionItem{}
	}
	current, err := phase.Parse(p.Phase)
	if err != nil {
		e.logger().Warn("action items unavailable", "project_id", projectID, "err", err)
		return []domain.ActionItem{}
	}
	return e.itemsFor(ctx, p, current)
}

// ActionItemsForPhase derives the list for an explicit phase rather than the
// project's current one, for previewing upcoming work.
func (e Engine) ActionItemsForPhase(ctx context.Context, projectID string, target phase.Phase) []domain.ActionItem {
	p, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		e.logger().Warn("action items unavailable", "project_id", projectID, "err", err)
		return []domain.ActionItem{}
	}
	return e.itemsFor(ctx, p, target)
}

func (e Engine) itemsFor(ctx context.Context, p domain.Project, current phase.Phase) []domain.ActionItem {
	if current == phase.Archived {
		return []domain.ActionItem{}
	}
	items, err := e.generateActionItems(ctx, p, current)
	if err != nil {
		e.logger().Warn("action items degraded", "project_id", p.ID, "phase", current, "err", err)
		return []domain.ActionItem{}
	}
	return items
}

func (e Engine) generateActionItems(ctx context.Context, p domain.Project, current phase.Phase) ([]domain.ActionItem, error) {
	switch current {
	case phase.Prep:
		return e.prepActionItems(ctx, p)
	case phase.Staffing:
		return e.staffingActionItems(ctx, p)
	case phase.PreShow:
		return e.preShowActionItems(ctx, p)
	case phase.Active:
		return e.activeActionItems(ctx, p)
	case phase.PostShow:
		return e.postShowActionItems(ctx, p)
	case phase.Complete:
		return e.completeActionItems(ctx, p)
	}
	return []domain.ActionItem{}, nil
}

func (e Engine) prepActionItems(ctx context.Context, p domain.Project) ([]domain.ActionItem, error) {
	checklist, err := e.checklist(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	items := []domain.ActionItem{
		{
			ID:                    "prep-finalize-roles",
			Title:                 "Finalize role templates",
			Description:           "Lock the set of roles the production staffs against",
			Category:              CategoryStaffing,
			Priority:              "high",
			Completed:             checklist.RolesFinalized,
			RequiredForTransition: true,
		},
		{
			ID:                    "prep-finalize-locations",
			Title:                 "Finalize locations",
			Description:           "Lock the rehearsal and show locations",
			Category:              CategoryLocations,
			Priority:              "high",
			Completed:             checklist.LocationsFinalized,
			RequiredForTransition: true,
		},
	}
	res, err := e.Criteria.ValidatePrepCompletion(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	for i, b := range res.Blockers {
		items = append(items, domain.ActionItem{
			ID:       fmt.Sprintf("prep-blocker-%d", i+1),
			Title:    b,
			Category: CategoryGeneral,
			Priority: "high",
		})
	}
	for i, pending := range res.PendingItems {
		items = append(items, domain.ActionItem{
			ID:       fmt.Sprintf("prep-pending-%d", i+1),
			Title:    pending,
			Category: CategoryGeneral,
			Priority: "medium",
		})
	}
	return items, nil
}

func (e Engine) staffingActionItems(ctx context.Context, p domain.Project) ([]domain.ActionItem, error) {
	checklist, err := e.checklist(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	items := []domain.ActionItem{
		{
			ID:                    "staffing-finalize-team",
			Title:                 "Finalize team assignments",
			Description:           "Confirm every staffed role has an assignee",
			Category:              CategoryStaffing,
			Priority:              "high",
			Completed:             checklist.TeamAssignmentsFinalized,
			RequiredForTransition: true,
		},
		{
			ID:                    "staffing-finalize-talent",
			Title:                 "Finalize talent roster",
			Description:           "Confirm the talent roster for the run",
			Category:              CategoryStaffing,
			Priority:              "high",
			Completed:             checklist.TalentRosterFinalized,
			RequiredForTransition: true,
		},
	}
	res, err := e.Criteria.ValidateStaffingCompletion(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	for i, b := range res.Blockers {
		items = append(items, domain.ActionItem{
			ID:       fmt.Sprintf("staffing-blocker-%d", i+1),
			Title:    b,
			Category: CategoryStaffing,
			Priority: "high",
		})
	}
	for i, pending := range res.PendingItems {
		items = append(items, domain.ActionItem{
			ID:       fmt.Sprintf("staffing-pending-%d", i+1),
			Title:    pending,
			Category: CategoryStaffing,
			Priority: "medium",
		})
	}
	return items, nil
}

func (e Engine) preShowActionItems(ctx context.Context, p domain.Project) ([]domain.ActionItem, error) {
	items := []domain.ActionItem{e.scheduleItem(p, p.RehearsalStartDate, "00:00",
		"pre-show-rehearsal-start", "Rehearsal start", "Production goes active at the scheduled rehearsal start")}
	res, err := e.Criteria.ValidatePreShowReadiness(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	for i, pending := range res.PendingItems {
		items = append(items, domain.ActionItem{
			ID:       fmt.Sprintf("pre-show-pending-%d", i+1),
			Title:    pending,
			Category: CategoryStaffing,
			Priority: "medium",
		})
	}
	return items, nil
}

func (e Engine) activeActionItems(_ context.Context, p domain.Project) ([]domain.ActionItem, error) {
	return []domain.ActionItem{e.scheduleItem(p, p.ShowEndDate, clockHour(p.PostShowTransitionHour),
		"active-show-end", "Show end", "Production moves to post-show wrap after the final show")}, nil
}

func (e Engine) postShowActionItems(ctx context.Context, p domain.Project) ([]domain.ActionItem, error) {
	res, err := e.Criteria.ValidateTimecardCompletion(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	unfinalized, err := e.Repo.CountUnfinalizedTimecards(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("count timecards: %w", err)
	}
	items := []domain.ActionItem{{
		ID:                    "post-show-finalize-timecards",
		Title:                 "Approve and pay all timecards",
		Description:           fmt.Sprintf("%d timecards still open", unfinalized),
		Category:              CategoryTimecards,
		Priority:              "high",
		Completed:             unfinalized == 0,
		RequiredForTransition: true,
	}}
	for i, pending := range res.PendingItems {
		items = append(items, domain.ActionItem{
			ID:       fmt.Sprintf("post-show-pending-%d", i+1),
			Title:    pending,
			Category: CategoryTimecards,
			Priority: "medium",
		})
	}
	return items, nil
}

func (e Engine) completeActionItems(_ context.Context, p domain.Project) ([]domain.ActionItem, error) {
	ev := domain.TransitionEvaluation{ProjectID: p.ID}
	e.archiveGate(&ev, p)
	item := domain.ActionItem{
		ID:                    "complete-archive",
		Title:                 "Archive production",
		Category:              CategoryScheduling,
		Priority:              "low",
		Completed:             len(ev.Blockers) == 0,
		RequiredForTransition: true,
	}
	if ev.ScheduledAt != nil {
		item.Description = fmt.Sprintf("Archive scheduled for %s", ev.ScheduledAt.Format(time.RFC3339))
	}
	return []domain.ActionItem{item}, nil
}

// scheduleItem builds the wait-state item for a time-gated phase; it is
// complete once the gate instant has passed.
func (e Engine) scheduleItem(p domain.Project, dateStr *string, hhmm, id, what, desc string) domain.ActionItem {
	item := domain.ActionItem{
		ID:                    id,
		Title:                 what + " pending",
		Description:           desc,
		Category:              CategoryScheduling,
		Priority:              "high",
		RequiredForTransition: true,
	}
	ev := domain.TransitionEvaluation{ProjectID: p.ID}
	e.timeGate(&ev, p, dateStr, hhmm, what)
	if ev.ScheduledAt != nil {
		item.Description = fmt.Sprintf("%s scheduled for %s", what, ev.ScheduledAt.Format(time.RFC3339))
	}
	item.Completed = len(ev.Blockers) == 0
	return item
}
