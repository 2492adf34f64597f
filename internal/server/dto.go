package server

import (
	"encoding/json"
	"time"

	"callsheet/internal/domain"
	"callsheet/internal/sweep"
)

// Request payloads

type CreateProjectRequest struct {
	ID                     string  `json:"id"`
	Name                   string  `json:"name"`
	Description            *string `json:"description,omitempty"`
	Timezone               *string `json:"timezone,omitempty"`
	RehearsalStartDate     *string `json:"rehearsal_start_date,omitempty" format:"date"`
	ShowEndDate            *string `json:"show_end_date,omitempty" format:"date"`
	AutoTransitionsEnabled *bool   `json:"auto_transitions_enabled,omitempty"`
}

type ExecuteTransitionRequest struct {
	TargetPhase string `json:"target_phase" enum:"prep,staffing,pre_show,active,post_show,complete,archived"`
}

type UpdateChecklistRequest struct {
	RolesFinalized           *bool `json:"roles_finalized,omitempty"`
	LocationsFinalized       *bool `json:"locations_finalized,omitempty"`
	TeamAssignmentsFinalized *bool `json:"team_assignments_finalized,omitempty"`
	TalentRosterFinalized    *bool `json:"talent_roster_finalized,omitempty"`
}

type UpdateConfigurationRequest struct {
	Timezone               *string `json:"timezone,omitempty"`
	RehearsalStartDate     *string `json:"rehearsal_start_date,omitempty"`
	ShowEndDate            *string `json:"show_end_date,omitempty"`
	AutoTransitionsEnabled *bool   `json:"auto_transitions_enabled,omitempty"`
	ArchiveMonth           *int    `json:"archive_month,omitempty" minimum:"1" maximum:"12"`
	ArchiveDay             *int    `json:"archive_day,omitempty" minimum:"1" maximum:"31"`
	PostShowTransitionHour *int    `json:"post_show_transition_hour,omitempty" minimum:"0" maximum:"23"`
}

type AddLocationRequest struct {
	Name string `json:"name"`
}

type AddRoleTemplateRequest struct {
	Role string `json:"role"`
}

type AddTeamAssignmentRequest struct {
	MemberName string `json:"member_name"`
	Role       string `json:"role,omitempty"`
}

type AddTalentAssignmentRequest struct {
	TalentName string `json:"talent_name"`
	EscortName string `json:"escort_name,omitempty"`
}

type AddTimecardRequest struct {
	TeamAssignmentID string `json:"team_assignment_id"`
	WorkDate         string `json:"work_date" format:"date"`
}

type SetTimecardStatusRequest struct {
	Status string `json:"status" enum:"draft,submitted,approved,paid,rejected"`
}

// Response payloads

type ProjectResponse struct {
	ID                     string  `json:"id"`
	OrgID                  string  `json:"org_id"`
	Name                   string  `json:"name"`
	Description            string  `json:"description,omitempty"`
	Phase                  string  `json:"phase" enum:"prep,staffing,pre_show,active,post_show,complete,archived"`
	PhaseUpdatedAt         string  `json:"phase_updated_at" format:"date-time"`
	Timezone               *string `json:"timezone,omitempty"`
	RehearsalStartDate     *string `json:"rehearsal_start_date,omitempty"`
	ShowEndDate            *string `json:"show_end_date,omitempty"`
	AutoTransitionsEnabled bool    `json:"auto_transitions_enabled"`
	ArchiveMonth           int     `json:"archive_month"`
	ArchiveDay             int     `json:"archive_day"`
	PostShowTransitionHour int     `json:"post_show_transition_hour"`
	CreatedAt              string  `json:"created_at" format:"date-time"`
	UpdatedAt              string  `json:"updated_at" format:"date-time"`
}

type EvaluationResponse struct {
	ProjectID     string   `json:"project_id"`
	CurrentPhase  string   `json:"current_phase"`
	TargetPhase   *string  `json:"target_phase,omitempty"`
	CanTransition bool     `json:"can_transition"`
	Blockers      []string `json:"blockers,omitempty"`
	Reason        string   `json:"reason"`
	ScheduledAt   *string  `json:"scheduled_at,omitempty" format:"date-time"`
}

type ChecklistResponse struct {
	ProjectID                string `json:"project_id"`
	RolesFinalized           bool   `json:"roles_finalized"`
	LocationsFinalized       bool   `json:"locations_finalized"`
	TeamAssignmentsFinalized bool   `json:"team_assignments_finalized"`
	TalentRosterFinalized    bool   `json:"talent_roster_finalized"`
}

type ConfigurationResponse struct {
	ProjectID              string  `json:"project_id"`
	Timezone               *string `json:"timezone,omitempty"`
	RehearsalStartDate     *string `json:"rehearsal_start_date,omitempty"`
	ShowEndDate            *string `json:"show_end_date,omitempty"`
	AutoTransitionsEnabled bool    `json:"auto_transitions_enabled"`
	ArchiveMonth           int     `json:"archive_month"`
	ArchiveDay             int     `json:"archive_day"`
	PostShowTransitionHour int     `json:"post_show_transition_hour"`
	UpdatedAt              string  `json:"updated_at,omitempty" format:"date-time"`
}

type ScheduledTransitionResponse struct {
	ProjectID    string `json:"project_id"`
	ProjectName  string `json:"project_name"`
	CurrentPhase string `json:"current_phase"`
	TargetPhase  string `json:"target_phase"`
	ScheduledAt  string `json:"scheduled_at" format:"date-time"`
}

type AuditEntryResponse struct {
	ID          int64          `json:"id"`
	ActionType  string         `json:"action_type"`
	ProjectID   string         `json:"project_id,omitempty"`
	Details     map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
	Timestamp   string         `json:"timestamp" format:"date-time"`
	TriggeredBy string         `json:"triggered_by"`
}

func projectResponse(p domain.Project) ProjectResponse {
	return ProjectResponse{
		ID:                     p.ID,
		OrgID:                  p.OrgID,
		Name:                   p.Name,
		Description:            p.Description,
		Phase:                  p.Phase,
		PhaseUpdatedAt:         p.PhaseUpdatedAt,
		Timezone:               p.Timezone,
		RehearsalStartDate:     p.RehearsalStartDate,
		ShowEndDate:            p.ShowEndDate,
		AutoTransitionsEnabled: p.AutoTransitionsEnabled,
		ArchiveMonth:           p.ArchiveMonth,
		ArchiveDay:             p.ArchiveDay,
		PostShowTransitionHour: p.PostShowTransitionHour,
		CreatedAt:              p.CreatedAt,
		UpdatedAt:              p.UpdatedAt,
	}
}

func mapProjects(items []domain.Project) []ProjectResponse {
	out := make([]ProjectResponse, 0, len(items))
	for _, p := range items {
		out = append(out, projectResponse(p))
	}
	return out
}

func evaluationResponse(ev domain.TransitionEvaluation) EvaluationResponse {
	resp := EvaluationResponse{
		ProjectID:     ev.ProjectID,
		CurrentPhase:  string(ev.CurrentPhase),
		CanTransition: ev.CanTransition,
		Blockers:      ev.Blockers,
		Reason:        ev.Reason,
	}
	if ev.TargetPhase != nil {
		t := string(*ev.TargetPhase)
		resp.TargetPhase = &t
	}
	if ev.ScheduledAt != nil {
		s := ev.ScheduledAt.UTC().Format(time.RFC3339)
		resp.ScheduledAt = &s
	}
	return resp
}

func checklistResponse(c domain.SetupChecklist) ChecklistResponse {
	return ChecklistResponse{
		ProjectID:                c.ProjectID,
		RolesFinalized:           c.RolesFinalized,
		LocationsFinalized:       c.LocationsFinalized,
		TeamAssignmentsFinalized: c.TeamAssignmentsFinalized,
		TalentRosterFinalized:    c.TalentRosterFinalized,
	}
}

func configurationResponse(cfg domain.PhaseConfiguration) ConfigurationResponse {
	return ConfigurationResponse{
		ProjectID:              cfg.ProjectID,
		Timezone:               cfg.Timezone,
		RehearsalStartDate:     cfg.RehearsalStartDate,
		ShowEndDate:            cfg.ShowEndDate,
		AutoTransitionsEnabled: cfg.AutoTransitionsEnabled,
		ArchiveMonth:           cfg.ArchiveMonth,
		ArchiveDay:             cfg.ArchiveDay,
		PostShowTransitionHour: cfg.PostShowTransitionHour,
		UpdatedAt:              cfg.UpdatedAt,
	}
}

func mapScheduled(items []sweep.ScheduledTransition) []ScheduledTransitionResponse {
	out := make([]ScheduledTransitionResponse, 0, len(items))
	for _, st := range items {
		out = append(out, ScheduledTransitionResponse{
			ProjectID:    st.ProjectID,
			ProjectName:  st.ProjectName,
			CurrentPhase: string(st.CurrentPhase),
			TargetPhase:  string(st.TargetPhase),
			ScheduledAt:  st.ScheduledAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}

func mapAuditEntries(items []domain.AuditLogEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, 0, len(items))
	for _, e := range items {
		var details map[string]any
		if e.Details != "" {
			// Tolerate legacy or malformed payloads by omitting details.
			_ = json.Unmarshal([]byte(e.Details), &details)
		}
		out = append(out, AuditEntryResponse{
			ID:          e.ID,
			ActionType:  e.ActionType,
			ProjectID:   e.ProjectID,
			Details:     details,
			Timestamp:   e.Timestamp,
			TriggeredBy: e.TriggeredBy,
		})
	}
	return out
}
