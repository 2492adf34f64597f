package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"callsheet/internal/audit"
	"callsheet/internal/config"
	"callsheet/internal/criteria"
	"callsheet/internal/domain"
	"callsheet/internal/phase"
	"callsheet/internal/repo"
	"callsheet/internal/timezone"
)

// Engine is the project lifecycle state machine: it evaluates whether a
// project may advance to its next phase and commits the advance with an
// audit record.
type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Audit    audit.Writer
	Criteria criteria.Validator
	TZ       timezone.Service
	Config   *config.Config
	Logger   *slog.Logger
	Now      func() time.Time
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) Engine {
	r := repo.Repo{DB: db}
	return Engine{
		DB:       db,
		Repo:     r,
		Audit:    audit.Writer{DB: db},
		Criteria: criteria.Validator{Repo: r},
		TZ:       timezone.Service{Logger: logger},
		Config:   cfg,
		Logger:   logger,
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// TransitionNotAllowedError reports that a requested transition disagreed
// with a fresh evaluation at commit time.
type TransitionNotAllowedError struct {
	ProjectID string
	Current   phase.Phase
	Requested phase.Phase
	Blockers  []string
}

func (e *TransitionNotAllowedError) Error() string {
	if len(e.Blockers) > 0 {
		return fmt.Sprintf("transition %s -> %s not allowed for %s: %s",
			e.Current, e.Requested, e.ProjectID, strings.Join(e.Blockers, "; "))
	}
	return fmt.Sprintf("transition %s -> %s not allowed for %s", e.Current, e.Requested, e.ProjectID)
}

// GetCurrentPhase reads the project's phase.
func (e Engine) GetCurrentPhase(ctx context.Context, projectID string) (phase.Phase, error) {
	p, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return "", err
	}
	return phase.Parse(p.Phase)
}

// EvaluateTransition determines the single fixed successor phase and applies
// the phase-specific gate. It never mutates state.
func (e Engine) EvaluateTransition(ctx context.Context, projectID string) (domain.TransitionEvaluation, error) {
	p, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return domain.TransitionEvaluation{}, err
	}
	return e.evaluateProject(ctx, p)
}

func (e Engine) evaluateProject(ctx context.Context, p domain.Project) (domain.TransitionEvaluation, error) {
	current, err := phase.Parse(p.Phase)
	if err != nil {
		return domain.TransitionEvaluation{}, err
	}
	ev := domain.TransitionEvaluation{ProjectID: p.ID, CurrentPhase: current}
	next, ok := phase.Successor(current)
	if !ok {
		ev.Reason = "Project is archived; no further transitions"
		return ev, nil
	}
	ev.TargetPhase = &next

	switch current {
	case phase.Prep:
		checklist, err := e.checklist(ctx, p.ID)
		if err != nil {
			return ev, err
		}
		gateFlag(&ev, checklist.RolesFinalized, "Role templates not finalized")
		gateFlag(&ev, checklist.LocationsFinalized, "Locations not finalized")
	case phase.Staffing:
		checklist, err := e.checklist(ctx, p.ID)
		if err != nil {
			return ev, err
		}
		gateFlag(&ev, checklist.TeamAssignmentsFinalized, "Team assignments not finalized")
		gateFlag(&ev, checklist.TalentRosterFinalized, "Talent roster not finalized")
	case phase.PreShow:
		e.timeGate(&ev, p, p.RehearsalStartDate, "00:00", "Rehearsal start")
	case phase.Active:
		e.timeGate(&ev, p, p.ShowEndDate, clockHour(p.PostShowTransitionHour), "Show end")
	case phase.PostShow:
		unfinalized, err := e.Repo.CountUnfinalizedTimecards(ctx, p.ID)
		if err != nil {
			return ev, fmt.Errorf("count timecards: %w", err)
		}
		if unfinalized > 0 {
			ev.Blockers = append(ev.Blockers, fmt.Sprintf("%d timecards not yet approved or paid", unfinalized))
		}
	case phase.Complete:
		e.archiveGate(&ev, p)
	}

	ev.CanTransition = len(ev.Blockers) == 0
	if ev.CanTransition {
		ev.Reason = fmt.Sprintf("Ready to advance to %s", next)
	} else {
		ev.Reason = fmt.Sprintf("Blocked from advancing to %s", next)
	}
	return ev, nil
}

func gateFlag(ev *domain.TransitionEvaluation, ok bool, blocker string) {
	if !ok {
		ev.Blockers = append(ev.Blockers, blocker)
	}
}

// timeGate resolves the gate date at the given wall-clock hour in the
// project's zone and blocks until that instant passes. ScheduledAt is set
// whenever the instant is computable, due or not.
func (e Engine) timeGate(ev *domain.TransitionEvaluation, p domain.Project, dateStr *string, hhmm, what string) {
	if dateStr == nil || *dateStr == "" {
		ev.Blockers = append(ev.Blockers, fmt.Sprintf("%s date not set", what))
		return
	}
	date, err := time.Parse("2006-01-02", *dateStr)
	if err != nil {
		ev.Blockers = append(ev.Blockers, fmt.Sprintf("%s date %q is not a valid date", what, *dateStr))
		return
	}
	tz := e.TZ.ProjectTimezone(p.Timezone, e.orgTimezone())
	at := e.TZ.TransitionTime(date, hhmm, tz)
	ev.ScheduledAt = &at
	if !e.due(at) {
		ev.Blockers = append(ev.Blockers,
			fmt.Sprintf("%s scheduled for %s", what, at.Format(time.RFC3339)))
	}
}

// archiveGate computes the next archive_month/archive_day occurrence at the
// post-show hour strictly after the project's completion instant.
func (e Engine) archiveGate(ev *domain.TransitionEvaluation, p domain.Project) {
	completed, err := time.Parse(time.RFC3339, p.PhaseUpdatedAt)
	if err != nil {
		ev.Blockers = append(ev.Blockers, fmt.Sprintf("completion timestamp %q is not parseable", p.PhaseUpdatedAt))
		return
	}
	tz := e.TZ.ProjectTimezone(p.Timezone, e.orgTimezone())
	hhmm := clockHour(p.PostShowTransitionHour)
	// A Feb 29 archive date only exists in leap years; scan forward until the
	// date is real and past the completion instant. Eight years covers the
	// longest gap between leap years.
	var at time.Time
	for year := completed.Year(); year <= completed.Year()+8; year++ {
		instant, ok := e.archiveInstant(year, p, hhmm, tz)
		if !ok || !instant.After(completed) {
			continue
		}
		at = instant
		break
	}
	if at.IsZero() {
		ev.Blockers = append(ev.Blockers,
			fmt.Sprintf("Archive date %02d-%02d has no upcoming occurrence", p.ArchiveMonth, p.ArchiveDay))
		return
	}
	ev.ScheduledAt = &at
	if !e.due(at) {
		ev.Blockers = append(ev.Blockers, fmt.Sprintf("Archive scheduled for %s", at.Format(time.RFC3339)))
	}
}

func (e Engine) archiveInstant(year int, p domain.Project, hhmm, tz string) (time.Time, bool) {
	date := time.Date(year, time.Month(p.ArchiveMonth), p.ArchiveDay, 0, 0, 0, 0, time.UTC)
	if int(date.Month()) != p.ArchiveMonth {
		// time.Date normalized the day out of the month (Feb 29 off-leap-year).
		return time.Time{}, false
	}
	return e.TZ.TransitionTime(date, hhmm, tz), true
}

func (e Engine) due(at time.Time) bool {
	return !at.After(e.now())
}

func (e Engine) orgTimezone() string {
	if e.Config == nil {
		return ""
	}
	return e.Config.Org.Timezone
}

func (e Engine) checklist(ctx context.Context, projectID string) (domain.SetupChecklist, error) {
	c, err := e.Repo.GetSetupChecklist(ctx, projectID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.SetupChecklist{ProjectID: projectID}, nil
	}
	if err != nil {
		return c, fmt.Errorf("fetch setup checklist: %w", err)
	}
	return c, nil
}

func clockHour(hour int) string {
	return fmt.Sprintf("%02d:00", hour)
}

// ExecuteTransition re-runs the evaluation at commit time; disagreement with
// the requested target fails with TransitionNotAllowedError, which also
// covers a lost race against a concurrent transition. On agreement it
// persists the new phase and an audit entry in one transaction.
func (e Engine) ExecuteTransition(ctx context.Context, projectID string, target phase.Phase, trigger phase.Trigger, actorID string) (domain.Project, error) {
	ev, err := e.EvaluateTransition(ctx, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	if !ev.CanTransition || ev.TargetPhase == nil || *ev.TargetPhase != target {
		return domain.Project{}, &TransitionNotAllowedError{
			ProjectID: projectID,
			Current:   ev.CurrentPhase,
			Requested: target,
			Blockers:  ev.Blockers,
		}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	ts := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateProjectPhase(ctx, tx, projectID, string(ev.CurrentPhase), string(target), ts); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// Another writer advanced the project between evaluation and
			// commit; report it as a blocked attempt, not a storage error.
			return domain.Project{}, &TransitionNotAllowedError{
				ProjectID: projectID,
				Current:   ev.CurrentPhase,
				Requested: target,
				Blockers:  []string{"Phase changed concurrently"},
			}
		}
		return domain.Project{}, fmt.Errorf("update phase: %w", err)
	}
	if err := e.Audit.Append(ctx, tx, "phase_transition", projectID, triggeredBy(trigger, actorID), audit.Details{
		"from":    ev.CurrentPhase,
		"to":      target,
		"trigger": trigger,
		"reason":  ev.Reason,
	}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return e.Repo.GetProject(ctx, projectID)
}

func triggeredBy(trigger phase.Trigger, actorID string) string {
	if actorID != "" {
		return actorID
	}
	if trigger == phase.TriggerManual {
		return "unknown"
	}
	return "system"
}
