package domain

import (
	"time"

	"callsheet/internal/phase"
)

type Organization struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Timezone  string `json:"timezone,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Project struct {
	ID                     string  `json:"id"`
	OrgID                  string  `json:"org_id"`
	Name                   string  `json:"name"`
	Description            string  `json:"description,omitempty"`
	Phase                  string  `json:"phase" enum:"prep,staffing,pre_show,active,post_show,complete,archived"`
	PhaseUpdatedAt         string  `json:"phase_updated_at" format:"date-time"`
	Timezone               *string `json:"timezone,omitempty"`
	RehearsalStartDate     *string `json:"rehearsal_start_date,omitempty" format:"date"`
	ShowEndDate            *string `json:"show_end_date,omitempty" format:"date"`
	AutoTransitionsEnabled bool    `json:"auto_transitions_enabled"`
	ArchiveMonth           int     `json:"archive_month"`
	ArchiveDay             int     `json:"archive_day"`
	PostShowTransitionHour int     `json:"post_show_transition_hour"`
	CreatedAt              string  `json:"created_at" format:"date-time"`
	UpdatedAt              string  `json:"updated_at" format:"date-time"`
}

// PhaseConfiguration is the merged scheduling configuration for a project:
// project columns overlaid with the mirrored settings record, defaults where
// neither has a value.
type PhaseConfiguration struct {
	ProjectID              string  `json:"project_id"`
	Timezone               *string `json:"timezone,omitempty"`
	RehearsalStartDate     *string `json:"rehearsal_start_date,omitempty" format:"date"`
	ShowEndDate            *string `json:"show_end_date,omitempty" format:"date"`
	AutoTransitionsEnabled bool    `json:"auto_transitions_enabled"`
	ArchiveMonth           int     `json:"archive_month"`
	ArchiveDay             int     `json:"archive_day"`
	PostShowTransitionHour int     `json:"post_show_transition_hour"`
	UpdatedAt              string  `json:"updated_at,omitempty" format:"date-time"`
}

// SetupChecklist holds the finalization flags that gate the early phases.
type SetupChecklist struct {
	ProjectID                string `json:"project_id"`
	RolesFinalized           bool   `json:"roles_finalized"`
	LocationsFinalized       bool   `json:"locations_finalized"`
	TeamAssignmentsFinalized bool   `json:"team_assignments_finalized"`
	TalentRosterFinalized    bool   `json:"talent_roster_finalized"`
	UpdatedAt                string `json:"updated_at" format:"date-time"`
}

type Location struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type RoleTemplate struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type TeamAssignment struct {
	ID         string `json:"id"`
	ProjectID  string `json:"project_id"`
	MemberName string `json:"member_name"`
	Role       string `json:"role"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

type TalentAssignment struct {
	ID         string  `json:"id"`
	ProjectID  string  `json:"project_id"`
	TalentName string  `json:"talent_name"`
	EscortName *string `json:"escort_name,omitempty"`
	CreatedAt  string  `json:"created_at" format:"date-time"`
}

type Timecard struct {
	ID               string `json:"id"`
	ProjectID        string `json:"project_id"`
	TeamAssignmentID string `json:"team_assignment_id"`
	WorkDate         string `json:"work_date" format:"date"`
	Status           string `json:"status" enum:"draft,submitted,approved,paid,rejected"`
	CreatedAt        string `json:"created_at" format:"date-time"`
	UpdatedAt        string `json:"updated_at" format:"date-time"`
}

// TransitionEvaluation is computed fresh on every call and never persisted;
// only its outcome reaches storage through the phase update and audit log.
type TransitionEvaluation struct {
	ProjectID     string       `json:"project_id"`
	CurrentPhase  phase.Phase  `json:"current_phase"`
	CanTransition bool         `json:"can_transition"`
	TargetPhase   *phase.Phase `json:"target_phase,omitempty"`
	Blockers      []string     `json:"blockers,omitempty"`
	Reason        string       `json:"reason"`
	ScheduledAt   *time.Time   `json:"scheduled_at,omitempty"`
}

// ValidationResult classifies completion-criteria state for one phase gate.
type ValidationResult struct {
	IsComplete     bool     `json:"is_complete"`
	CompletedItems []string `json:"completed_items,omitempty"`
	PendingItems   []string `json:"pending_items,omitempty"`
	Blockers       []string `json:"blockers,omitempty"`
}

// ActionItem is derived from live state on every call and never independently
// mutated.
type ActionItem struct {
	ID                    string `json:"id"`
	Title                 string `json:"title"`
	Description           string `json:"description,omitempty"`
	Category              string `json:"category"`
	Priority              string `json:"priority" enum:"high,medium,low"`
	Completed             bool   `json:"completed"`
	RequiredForTransition bool   `json:"required_for_transition"`
}

type AuditLogEntry struct {
	ID          int64  `json:"id"`
	ActionType  string `json:"action_type"`
	ProjectID   string `json:"project_id,omitempty"`
	Details     string `json:"details_json"`
	Timestamp   string `json:"timestamp" format:"date-time"`
	TriggeredBy string `json:"triggered_by"`
}
