// Package criteria evaluates completion checklists per phase against live
// assignment, talent and timecard data. Validators are read-and-classify
// only; they never mutate state. Because their results gate irreversible
// phase moves, data-fetch failures are wrapped and re-thrown rather than
// absorbed.
package criteria

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"callsheet/internal/domain"
	"callsheet/internal/repo"
)

const (
	CodeDatabase   = "DATABASE_ERROR"
	CodeValidation = "VALIDATION_ERROR"
)

// Error carries a stable code alongside the wrapped cause.
type Error struct {
	Code string
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	code := CodeDatabase
	if errors.Is(err, repo.ErrNotFound) {
		code = CodeValidation
	}
	return &Error{Code: code, Op: op, Err: err}
}

type Validator struct {
	Repo repo.Repo
}

// ValidatePrepCompletion classifies basic project setup. Missing locations or
// role templates are promoted to blockers because they gate staffing.
func (v Validator) ValidatePrepCompletion(ctx context.Context, projectID string) (domain.ValidationResult, error) {
	var res domain.ValidationResult
	p, err := v.Repo.GetProject(ctx, projectID)
	if err != nil {
		return res, wrap("fetch project", err)
	}
	classify(&res, p.Name != "", "Project name set", "Project name missing")
	classify(&res, p.Description != "", "Project description set", "Project description missing")
	classify(&res, p.RehearsalStartDate != nil, "Rehearsal start date set", "Rehearsal start date missing")
	classify(&res, p.ShowEndDate != nil, "Show end date set", "Show end date missing")
	classify(&res, p.Timezone != nil && *p.Timezone != "", "Project timezone set", "Project timezone missing")

	locations, err := v.Repo.CountLocations(ctx, projectID)
	if err != nil {
		return res, wrap("count locations", err)
	}
	if locations == 0 {
		res.Blockers = append(res.Blockers, "No locations defined")
	} else {
		res.CompletedItems = append(res.CompletedItems, fmt.Sprintf("%d locations defined", locations))
	}
	roles, err := v.Repo.CountRoleTemplates(ctx, projectID)
	if err != nil {
		return res, wrap("count role templates", err)
	}
	if roles == 0 {
		res.Blockers = append(res.Blockers, "No role templates defined")
	} else {
		res.CompletedItems = append(res.CompletedItems, fmt.Sprintf("%d role templates defined", roles))
	}
	res.IsComplete = len(res.PendingItems) == 0 && len(res.Blockers) == 0
	return res, nil
}

// ValidateStaffingCompletion checks team and talent assignment coverage. A
// roster without either a supervisor or a coordinator is blocked separately
// from having no staff at all.
func (v Validator) ValidateStaffingCompletion(ctx context.Context, projectID string) (domain.ValidationResult, error) {
	var res domain.ValidationResult
	team, err := v.Repo.ListTeamAssignments(ctx, projectID)
	if err != nil {
		return res, wrap("list team assignments", err)
	}
	if len(team) == 0 {
		res.Blockers = append(res.Blockers, "At least one team member must be assigned")
	} else {
		res.CompletedItems = append(res.CompletedItems, fmt.Sprintf("%d team members assigned", len(team)))
		hasSupervisor, hasCoordinator := false, false
		for _, a := range team {
			switch a.Role {
			case "supervisor":
				hasSupervisor = true
			case "coordinator":
				hasCoordinator = true
			}
		}
		if !hasSupervisor && !hasCoordinator {
			res.Blockers = append(res.Blockers, "No supervisor or coordinator assigned")
		} else {
			res.CompletedItems = append(res.CompletedItems, "Lead role coverage in place")
		}
	}
	talent, err := v.Repo.ListTalentAssignments(ctx, projectID)
	if err != nil {
		return res, wrap("list talent assignments", err)
	}
	if len(talent) == 0 {
		res.PendingItems = append(res.PendingItems, "No talent assigned")
	} else {
		res.CompletedItems = append(res.CompletedItems, fmt.Sprintf("%d talent assigned", len(talent)))
	}
	res.IsComplete = len(res.PendingItems) == 0 && len(res.Blockers) == 0
	return res, nil
}

// escortCoverageThreshold is the minimum share of talent with an assigned
// escort for pre-show readiness to count the item complete.
const escortCoverageThreshold = 0.8

// ValidatePreShowReadiness checks the setup-checklist finalization flags and
// escort coverage. Coverage below threshold stays a pending item, not a
// blocker.
func (v Validator) ValidatePreShowReadiness(ctx context.Context, projectID string) (domain.ValidationResult, error) {
	var res domain.ValidationResult
	checklist, err := v.checklistOrDefault(ctx, projectID)
	if err != nil {
		return res, wrap("fetch setup checklist", err)
	}
	classify(&res, checklist.RolesFinalized, "Roles finalized", "Roles not finalized")
	classify(&res, checklist.LocationsFinalized, "Locations finalized", "Locations not finalized")
	classify(&res, checklist.TeamAssignmentsFinalized, "Team assignments finalized", "Team assignments not finalized")
	classify(&res, checklist.TalentRosterFinalized, "Talent roster finalized", "Talent roster not finalized")

	talent, err := v.Repo.ListTalentAssignments(ctx, projectID)
	if err != nil {
		return res, wrap("list talent assignments", err)
	}
	if len(talent) > 0 {
		escorted := 0
		for _, t := range talent {
			if t.EscortName != nil && *t.EscortName != "" {
				escorted++
			}
		}
		coverage := float64(escorted) / float64(len(talent))
		item := fmt.Sprintf("Escort coverage %d/%d talent", escorted, len(talent))
		classify(&res, coverage >= escortCoverageThreshold, item, item+" (below 80%)")
	} else {
		res.PendingItems = append(res.PendingItems, "No talent roster to escort")
	}
	res.IsComplete = len(res.PendingItems) == 0 && len(res.Blockers) == 0
	return res, nil
}

// ValidateTimecardCompletion requires every submitted timecard to reach an
// approved or paid status, and names members who never submitted at all.
func (v Validator) ValidateTimecardCompletion(ctx context.Context, projectID string) (domain.ValidationResult, error) {
	var res domain.ValidationResult
	unfinalized, err := v.Repo.CountUnfinalizedTimecards(ctx, projectID)
	if err != nil {
		return res, wrap("count timecards", err)
	}
	if unfinalized > 0 {
		res.PendingItems = append(res.PendingItems, fmt.Sprintf("%d timecards not yet approved or paid", unfinalized))
	} else {
		res.CompletedItems = append(res.CompletedItems, "All submitted timecards approved or paid")
	}
	missing, err := v.Repo.MembersWithoutTimecards(ctx, projectID)
	if err != nil {
		return res, wrap("list members without timecards", err)
	}
	if len(missing) > 0 {
		res.PendingItems = append(res.PendingItems, "Missing timecard submissions: "+strings.Join(missing, ", "))
	} else {
		res.CompletedItems = append(res.CompletedItems, "Every team member has submitted timecards")
	}
	res.IsComplete = len(res.PendingItems) == 0 && len(res.Blockers) == 0
	return res, nil
}

// checklistOrDefault treats a missing checklist row as all-unfinalized.
func (v Validator) checklistOrDefault(ctx context.Context, projectID string) (domain.SetupChecklist, error) {
	c, err := v.Repo.GetSetupChecklist(ctx, projectID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.SetupChecklist{ProjectID: projectID}, nil
	}
	return c, err
}

func classify(res *domain.ValidationResult, ok bool, done, pending string) {
	if ok {
		res.CompletedItems = append(res.CompletedItems, done)
	} else {
		res.PendingItems = append(res.PendingItems, pending)
	}
}
