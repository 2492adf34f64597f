package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"callsheet/internal/audit"
	"callsheet/internal/domain"
	"callsheet/internal/phase"
	"callsheet/internal/repo"
)

// ProjectCreateOptions are parameters for creating a production.
type ProjectCreateOptions struct {
	ID                 string
	Name               string
	Description        string
	Timezone           string
	RehearsalStartDate string
	ShowEndDate        string
	ActorID            string
}

// CreateProject initializes a production in the prep phase with its setup
// checklist, the organization row, and the mirrored settings record.
func (e Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions) (domain.Project, error) {
	if e.Config == nil {
		return domain.Project{}, errors.New("config not loaded")
	}
	if opts.ID == "" {
		return domain.Project{}, errors.New("project id is required")
	}
	if opts.Name == "" {
		return domain.Project{}, errors.New("name is required")
	}
	if opts.Timezone != "" && !e.TZ.ValidateTimezone(opts.Timezone) {
		return domain.Project{}, fmt.Errorf("timezone %q is not a valid IANA identifier", opts.Timezone)
	}
	now := e.now().UTC().Format(time.RFC3339)
	d := e.Config.Defaults
	p := domain.Project{
		ID:                     opts.ID,
		OrgID:                  e.Config.Org.ID,
		Name:                   opts.Name,
		Description:            opts.Description,
		Phase:                  string(phase.Prep),
		PhaseUpdatedAt:         now,
		AutoTransitionsEnabled: d.AutoTransitionsEnabled,
		ArchiveMonth:           d.ArchiveMonth,
		ArchiveDay:             d.ArchiveDay,
		PostShowTransitionHour: d.PostShowTransitionHour,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if opts.Timezone != "" {
		p.Timezone = &opts.Timezone
	}
	if opts.RehearsalStartDate != "" {
		if _, err := time.Parse("2006-01-02", opts.RehearsalStartDate); err != nil {
			return domain.Project{}, fmt.Errorf("rehearsal start date: %w", err)
		}
		p.RehearsalStartDate = &opts.RehearsalStartDate
	}
	if opts.ShowEndDate != "" {
		if _, err := time.Parse("2006-01-02", opts.ShowEndDate); err != nil {
			return domain.Project{}, fmt.Errorf("show end date: %w", err)
		}
		p.ShowEndDate = &opts.ShowEndDate
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	org := domain.Organization{
		ID:        e.Config.Org.ID,
		Name:      e.Config.Org.Name,
		Timezone:  e.Config.Org.Timezone,
		CreatedAt: now,
	}
	if org.Name == "" {
		org.Name = org.ID
	}
	if err := e.Repo.InsertOrganization(ctx, tx, org); err != nil {
		return domain.Project{}, fmt.Errorf("ensure org: %w", err)
	}
	if err := e.Repo.InsertProject(ctx, tx, p); err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	if err := e.Repo.UpsertSetupChecklist(ctx, tx, domain.SetupChecklist{ProjectID: p.ID, UpdatedAt: now}); err != nil {
		return domain.Project{}, fmt.Errorf("insert setup checklist: %w", err)
	}
	if err := e.Repo.UpsertSettings(ctx, tx, configurationOf(p), now); err != nil {
		return domain.Project{}, fmt.Errorf("insert settings: %w", err)
	}
	if err := e.Audit.Append(ctx, tx, "project_created", p.ID, actorOr(opts.ActorID), audit.Details{
		"name": p.Name, "phase": p.Phase,
	}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

func configurationOf(p domain.Project) domain.PhaseConfiguration {
	return domain.PhaseConfiguration{
		ProjectID:              p.ID,
		Timezone:               p.Timezone,
		RehearsalStartDate:     p.RehearsalStartDate,
		ShowEndDate:            p.ShowEndDate,
		AutoTransitionsEnabled: p.AutoTransitionsEnabled,
		ArchiveMonth:           p.ArchiveMonth,
		ArchiveDay:             p.ArchiveDay,
		PostShowTransitionHour: p.PostShowTransitionHour,
	}
}

// ChecklistUpdate carries optional flag changes; nil leaves a flag untouched.
type ChecklistUpdate struct {
	RolesFinalized           *bool
	LocationsFinalized       *bool
	TeamAssignmentsFinalized *bool
	TalentRosterFinalized    *bool
}

// UpdateChecklist sets setup-checklist finalization flags and audits the
// change.
func (e Engine) UpdateChecklist(ctx context.Context, projectID string, upd ChecklistUpdate, actorID string) (domain.SetupChecklist, error) {
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return domain.SetupChecklist{}, err
	}
	c, err := e.checklist(ctx, projectID)
	if err != nil {
		return domain.SetupChecklist{}, err
	}
	if upd.RolesFinalized != nil {
		c.RolesFinalized = *upd.RolesFinalized
	}
	if upd.LocationsFinalized != nil {
		c.LocationsFinalized = *upd.LocationsFinalized
	}
	if upd.TeamAssignmentsFinalized != nil {
		c.TeamAssignmentsFinalized = *upd.TeamAssignmentsFinalized
	}
	if upd.TalentRosterFinalized != nil {
		c.TalentRosterFinalized = *upd.TalentRosterFinalized
	}
	c.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return c, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertSetupChecklist(ctx, tx, c); err != nil {
		return c, err
	}
	if err := e.Audit.Append(ctx, tx, "checklist_updated", projectID, actorOr(actorID), audit.Details{
		"roles_finalized":            c.RolesFinalized,
		"locations_finalized":        c.LocationsFinalized,
		"team_assignments_finalized": c.TeamAssignmentsFinalized,
		"talent_roster_finalized":    c.TalentRosterFinalized,
	}); err != nil {
		return c, err
	}
	return c, tx.Commit()
}

func (e Engine) AddLocation(ctx context.Context, projectID, name, actorID string) (domain.Location, error) {
	if name == "" {
		return domain.Location{}, errors.New("name is required")
	}
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return domain.Location{}, err
	}
	l := domain.Location{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Name:      name,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertLocation(ctx, l); err != nil {
		return domain.Location{}, err
	}
	return l, e.Audit.Record(ctx, "location_added", projectID, actorOr(actorID), audit.Details{"name": name})
}

func (e Engine) AddRoleTemplate(ctx context.Context, projectID, role, actorID string) (domain.RoleTemplate, error) {
	if role == "" {
		return domain.RoleTemplate{}, errors.New("role is required")
	}
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return domain.RoleTemplate{}, err
	}
	t := domain.RoleTemplate{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Role:      role,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertRoleTemplate(ctx, t); err != nil {
		return domain.RoleTemplate{}, err
	}
	return t, e.Audit.Record(ctx, "role_template_added", projectID, actorOr(actorID), audit.Details{"role": role})
}

func (e Engine) AddTeamAssignment(ctx context.Context, projectID, memberName, role, actorID string) (domain.TeamAssignment, error) {
	if memberName == "" {
		return domain.TeamAssignment{}, errors.New("member name is required")
	}
	if role == "" {
		role = "staff"
	}
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return domain.TeamAssignment{}, err
	}
	a := domain.TeamAssignment{
		ID:         uuid.New().String(),
		ProjectID:  projectID,
		MemberName: memberName,
		Role:       role,
		CreatedAt:  e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertTeamAssignment(ctx, a); err != nil {
		return domain.TeamAssignment{}, err
	}
	return a, e.Audit.Record(ctx, "team_assignment_added", projectID, actorOr(actorID), audit.Details{
		"member_name": memberName, "role": role,
	})
}

func (e Engine) AddTalentAssignment(ctx context.Context, projectID, talentName, escortName, actorID string) (domain.TalentAssignment, error) {
	if talentName == "" {
		return domain.TalentAssignment{}, errors.New("talent name is required")
	}
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return domain.TalentAssignment{}, err
	}
	a := domain.TalentAssignment{
		ID:         uuid.New().String(),
		ProjectID:  projectID,
		TalentName: talentName,
		CreatedAt:  e.now().UTC().Format(time.RFC3339),
	}
	if escortName != "" {
		a.EscortName = &escortName
	}
	if err := e.Repo.InsertTalentAssignment(ctx, a); err != nil {
		return domain.TalentAssignment{}, err
	}
	return a, e.Audit.Record(ctx, "talent_assignment_added", projectID, actorOr(actorID), audit.Details{
		"talent_name": talentName,
	})
}

func (e Engine) AddTimecard(ctx context.Context, projectID, teamAssignmentID, workDate, actorID string) (domain.Timecard, error) {
	if teamAssignmentID == "" {
		return domain.Timecard{}, errors.New("team assignment is required")
	}
	if _, err := time.Parse("2006-01-02", workDate); err != nil {
		return domain.Timecard{}, fmt.Errorf("work date: %w", err)
	}
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return domain.Timecard{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	t := domain.Timecard{
		ID:               uuid.New().String(),
		ProjectID:        projectID,
		TeamAssignmentID: teamAssignmentID,
		WorkDate:         workDate,
		Status:           "submitted",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := e.Repo.InsertTimecard(ctx, t); err != nil {
		return domain.Timecard{}, err
	}
	return t, e.Audit.Record(ctx, "timecard_added", projectID, actorOr(actorID), audit.Details{
		"team_assignment_id": teamAssignmentID, "work_date": workDate,
	})
}

var timecardStatuses = map[string]bool{
	"draft": true, "submitted": true, "approved": true, "paid": true, "rejected": true,
}

func (e Engine) SetTimecardStatus(ctx context.Context, projectID, timecardID, status, actorID string) error {
	if !timecardStatuses[status] {
		return fmt.Errorf("unknown timecard status %q", status)
	}
	ts := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateTimecardStatus(ctx, timecardID, status, ts); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("timecard %s: %w", timecardID, err)
		}
		return err
	}
	return e.Audit.Record(ctx, "timecard_status_changed", projectID, actorOr(actorID), audit.Details{
		"timecard_id": timecardID, "status": status,
	})
}

func actorOr(actorID string) string {
	if actorID == "" {
		return "system"
	}
	return actorID
}
