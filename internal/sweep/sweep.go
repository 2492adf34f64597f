// Package sweep batch-evaluates auto-transition projects and advances the
// ones whose gates are satisfied. A failure on one project never stops the
// rest of the pass.
package sweep

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"callsheet/internal/audit"
	"callsheet/internal/config"
	"callsheet/internal/domain"
	"callsheet/internal/engine"
	"callsheet/internal/phase"
	"callsheet/internal/repo"
)

type Evaluator struct {
	Engine engine.Engine
	Repo   repo.Repo
	Audit  audit.Writer
	Config *config.Config
	Logger *slog.Logger
	Now    func() time.Time
}

// SweepError records a single project's failure inside an otherwise
// successful pass.
type SweepError struct {
	ProjectID string `json:"projectId"`
	Message   string `json:"message"`
}

type SweepResult struct {
	StartedAt             time.Time    `json:"startedAt"`
	DryRun                bool         `json:"dryRun"`
	TotalProjects         int          `json:"totalProjects"`
	EvaluatedProjects     int          `json:"evaluatedProjects"`
	SuccessfulTransitions int          `json:"successfulTransitions"`
	FailedTransitions     int          `json:"failedTransitions"`
	Errors                []SweepError `json:"errors,omitempty"`
}

// ScheduledTransition is an upcoming time-gated transition within a lookahead
// window.
type ScheduledTransition struct {
	ProjectID    string      `json:"projectId"`
	ProjectName  string      `json:"projectName"`
	CurrentPhase phase.Phase `json:"currentPhase"`
	TargetPhase  phase.Phase `json:"targetPhase"`
	ScheduledAt  time.Time   `json:"scheduledAt"`
}

func (s Evaluator) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s Evaluator) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// EvaluateProject applies the phase gate plus the sweep's own phase filter.
// Phases outside the configured sweep set come back blocked so the result
// explains itself, with ScheduledAt still populated for visibility.
func (s Evaluator) EvaluateProject(ctx context.Context, projectID string) (domain.TransitionEvaluation, error) {
	ev, err := s.Engine.EvaluateTransition(ctx, projectID)
	if err != nil {
		return ev, err
	}
	if ev.TargetPhase == nil {
		return ev, nil
	}
	if enabled := s.Config.SweepPhases(); !enabled[ev.CurrentPhase] {
		ev.CanTransition = false
		ev.Blockers = append(ev.Blockers, "Phase not enabled for automatic transitions")
	}
	return ev, nil
}

// EvaluateAllProjects runs one sweep pass over every project with automatic
// transitions enabled. Every attempt is recorded in the audit log: successes,
// blocked gates, and evaluation errors alike, so the log explains why a
// project did not move. In dry-run mode nothing is advanced but attempts are
// still recorded as such.
func (s Evaluator) EvaluateAllProjects(ctx context.Context, dryRun bool) (SweepResult, error) {
	result := SweepResult{StartedAt: s.now().UTC(), DryRun: dryRun}
	projects, err := s.Repo.ListAutoTransitionProjects(ctx)
	if err != nil {
		return result, err
	}
	result.TotalProjects = len(projects)

	for _, p := range projects {
		ev, err := s.EvaluateProject(ctx, p.ID)
		if err != nil {
			result.Errors = append(result.Errors, SweepError{ProjectID: p.ID, Message: err.Error()})
			s.recordAttempt(ctx, p.ID, ev.CurrentPhase, "", false, err.Error(), dryRun)
			s.logger().Error("sweep evaluation failed", "project", p.ID, "error", err)
			continue
		}
		result.EvaluatedProjects++
		if ev.TargetPhase == nil {
			// terminal phase, nothing to attempt
			continue
		}
		target := *ev.TargetPhase
		if !ev.CanTransition {
			s.recordAttempt(ctx, p.ID, ev.CurrentPhase, target, false, strings.Join(ev.Blockers, "; "), dryRun)
			continue
		}

		if dryRun {
			s.recordAttempt(ctx, p.ID, ev.CurrentPhase, target, true, "dry run, no changes applied", true)
			result.SuccessfulTransitions++
			continue
		}

		if _, err := s.Engine.ExecuteTransition(ctx, p.ID, target, phase.TriggerAutomatic, ""); err != nil {
			var tna *engine.TransitionNotAllowedError
			if errors.As(err, &tna) {
				// gate closed between evaluation and commit; a blocked
				// attempt, not a batch failure
				s.recordAttempt(ctx, p.ID, ev.CurrentPhase, target, false, err.Error(), false)
				s.logger().Info("transition no longer allowed at commit", "project", p.ID, "target", target)
				continue
			}
			result.FailedTransitions++
			result.Errors = append(result.Errors, SweepError{ProjectID: p.ID, Message: err.Error()})
			s.recordAttempt(ctx, p.ID, ev.CurrentPhase, target, false, err.Error(), false)
			s.logger().Error("automatic transition failed", "project", p.ID, "target", target, "error", err)
			continue
		}
		result.SuccessfulTransitions++
		s.recordAttempt(ctx, p.ID, ev.CurrentPhase, target, true, ev.Reason, false)
		s.logger().Info("automatic transition applied", "project", p.ID, "from", ev.CurrentPhase, "to", target)
	}
	return result, nil
}

// recordAttempt writes the attempt record outside the transition transaction
// so failed attempts survive too. A failure to record is logged, never fatal.
func (s Evaluator) recordAttempt(ctx context.Context, projectID string, from, to phase.Phase, success bool, reason string, dryRun bool) {
	details := audit.Details{
		"success": success,
		"reason":  reason,
	}
	if from != "" {
		details["from"] = from
	}
	if to != "" {
		details["to"] = to
	}
	if dryRun {
		details["dry_run"] = true
	}
	if err := s.Audit.Record(ctx, "automatic_transition_attempt", projectID, "system", details); err != nil {
		s.logger().Warn("failed to record transition attempt", "project", projectID, "error", err)
	}
}

// ScheduledTransitions lists time-gated transitions whose instant falls in
// [now, now+window), across all auto-transition projects.
func (s Evaluator) ScheduledTransitions(ctx context.Context, window time.Duration) ([]ScheduledTransition, error) {
	projects, err := s.Repo.ListAutoTransitionProjects(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	horizon := now.Add(window)
	var out []ScheduledTransition
	for _, proj := range projects {
		ev, err := s.EvaluateProject(ctx, proj.ID)
		if err != nil {
			s.logger().Warn("skipping project in schedule listing", "project", proj.ID, "error", err)
			continue
		}
		if ev.ScheduledAt == nil || ev.TargetPhase == nil {
			continue
		}
		at := *ev.ScheduledAt
		if at.Before(now) || !at.Before(horizon) {
			continue
		}
		out = append(out, ScheduledTransition{
			ProjectID:    proj.ID,
			ProjectName:  proj.Name,
			CurrentPhase: ev.CurrentPhase,
			TargetPhase:  *ev.TargetPhase,
			ScheduledAt:  at,
		})
	}
	return out, nil
}
