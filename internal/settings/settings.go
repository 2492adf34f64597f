// Package settings reads, validates and writes per-project scheduling
// configuration, keeping the project row and the mirrored settings record in
// step.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"callsheet/internal/audit"
	"callsheet/internal/config"
	"callsheet/internal/domain"
	"callsheet/internal/repo"
	"callsheet/internal/timezone"
)

type Service struct {
	DB       *sql.DB
	Repo     repo.Repo
	Audit    audit.Writer
	TZ       timezone.Service
	Defaults config.SchedulingDefaults
	Now      func() time.Time
}

// ValidationError rejects malformed configuration input before any write.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// DefaultConfiguration returns the static defaults applied to new projects
// and to projects whose settings record is missing.
func (s Service) DefaultConfiguration() domain.PhaseConfiguration {
	return domain.PhaseConfiguration{
		AutoTransitionsEnabled: s.Defaults.AutoTransitionsEnabled,
		ArchiveMonth:           s.Defaults.ArchiveMonth,
		ArchiveDay:             s.Defaults.ArchiveDay,
		PostShowTransitionHour: s.Defaults.PostShowTransitionHour,
	}
}

// Get merges project fields with the settings record. A missing settings
// record falls back to defaults; any other read error propagates.
func (s Service) Get(ctx context.Context, projectID string) (domain.PhaseConfiguration, error) {
	p, err := s.Repo.GetProject(ctx, projectID)
	if err != nil {
		return domain.PhaseConfiguration{}, err
	}
	cfg := s.DefaultConfiguration()
	stored, err := s.Repo.GetSettings(ctx, projectID)
	switch {
	case err == nil:
		cfg = stored
	case errors.Is(err, repo.ErrNotFound):
		cfg.UpdatedAt = p.UpdatedAt
	default:
		return domain.PhaseConfiguration{}, err
	}
	cfg.ProjectID = projectID
	cfg.Timezone = p.Timezone
	cfg.RehearsalStartDate = p.RehearsalStartDate
	cfg.ShowEndDate = p.ShowEndDate
	return cfg, nil
}

// ConfigurationUpdate carries optional field changes; nil leaves a field
// untouched. An explicit empty string clears a nullable field.
type ConfigurationUpdate struct {
	Timezone               *string
	RehearsalStartDate     *string
	ShowEndDate            *string
	AutoTransitionsEnabled *bool
	ArchiveMonth           *int
	ArchiveDay             *int
	PostShowTransitionHour *int
}

// Update validates every field before any write, then persists the project
// columns, the mirrored settings record and an audit entry as one
// transaction, and returns the canonical re-read configuration.
func (s Service) Update(ctx context.Context, projectID string, upd ConfigurationUpdate, actorID string) (domain.PhaseConfiguration, error) {
	cfg, err := s.Get(ctx, projectID)
	if err != nil {
		return domain.PhaseConfiguration{}, err
	}
	if err := s.apply(&cfg, upd); err != nil {
		return domain.PhaseConfiguration{}, err
	}
	if err := validateArchiveDate(cfg.ArchiveMonth, cfg.ArchiveDay); err != nil {
		return domain.PhaseConfiguration{}, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.PhaseConfiguration{}, err
	}
	defer tx.Rollback()
	ts := s.now().UTC().Format(time.RFC3339)
	if err := s.Repo.UpdateProjectConfiguration(ctx, tx, cfg, ts); err != nil {
		return domain.PhaseConfiguration{}, err
	}
	if err := s.Repo.UpsertSettings(ctx, tx, cfg, ts); err != nil {
		return domain.PhaseConfiguration{}, err
	}
	if err := s.Audit.Append(ctx, tx, "configuration_updated", projectID, actor(actorID), audit.Details{
		"archive_month":             cfg.ArchiveMonth,
		"archive_day":               cfg.ArchiveDay,
		"post_show_transition_hour": cfg.PostShowTransitionHour,
		"auto_transitions_enabled":  cfg.AutoTransitionsEnabled,
	}); err != nil {
		return domain.PhaseConfiguration{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.PhaseConfiguration{}, err
	}
	return s.Get(ctx, projectID)
}

func (s Service) apply(cfg *domain.PhaseConfiguration, upd ConfigurationUpdate) error {
	if upd.Timezone != nil {
		if *upd.Timezone == "" {
			cfg.Timezone = nil
		} else {
			if !s.TZ.ValidateTimezone(*upd.Timezone) {
				return &ValidationError{Field: "timezone", Message: fmt.Sprintf("%q is not a valid IANA identifier", *upd.Timezone)}
			}
			cfg.Timezone = upd.Timezone
		}
	}
	if err := applyDate(&cfg.RehearsalStartDate, upd.RehearsalStartDate, "rehearsal_start_date"); err != nil {
		return err
	}
	if err := applyDate(&cfg.ShowEndDate, upd.ShowEndDate, "show_end_date"); err != nil {
		return err
	}
	if upd.AutoTransitionsEnabled != nil {
		cfg.AutoTransitionsEnabled = *upd.AutoTransitionsEnabled
	}
	if upd.ArchiveMonth != nil {
		if *upd.ArchiveMonth < 1 || *upd.ArchiveMonth > 12 {
			return &ValidationError{Field: "archive_month", Message: fmt.Sprintf("%d is out of range 1-12", *upd.ArchiveMonth)}
		}
		cfg.ArchiveMonth = *upd.ArchiveMonth
	}
	if upd.ArchiveDay != nil {
		if *upd.ArchiveDay < 1 || *upd.ArchiveDay > 31 {
			return &ValidationError{Field: "archive_day", Message: fmt.Sprintf("%d is out of range 1-31", *upd.ArchiveDay)}
		}
		cfg.ArchiveDay = *upd.ArchiveDay
	}
	if upd.PostShowTransitionHour != nil {
		if *upd.PostShowTransitionHour < 0 || *upd.PostShowTransitionHour > 23 {
			return &ValidationError{Field: "post_show_transition_hour", Message: fmt.Sprintf("%d is out of range 0-23", *upd.PostShowTransitionHour)}
		}
		cfg.PostShowTransitionHour = *upd.PostShowTransitionHour
	}
	return nil
}

func applyDate(dst **string, src *string, field string) error {
	if src == nil {
		return nil
	}
	if *src == "" {
		*dst = nil
		return nil
	}
	if _, err := time.Parse("2006-01-02", *src); err != nil {
		return &ValidationError{Field: field, Message: fmt.Sprintf("%q is not a valid date", *src)}
	}
	*dst = src
	return nil
}

// validateArchiveDate rejects day/month combinations that never occur.
// February 29 is allowed because the archive date recurs annually and lands
// on leap years.
func validateArchiveDate(month, day int) error {
	maxDays := [13]int{0, 31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
	if month < 1 || month > 12 {
		return &ValidationError{Field: "archive_month", Message: fmt.Sprintf("%d is out of range 1-12", month)}
	}
	if day < 1 || day > maxDays[month] {
		return &ValidationError{Field: "archive_day", Message: fmt.Sprintf("month %d has no day %d", month, day)}
	}
	return nil
}

func actor(actorID string) string {
	if actorID == "" {
		return "system"
	}
	return actorID
}
