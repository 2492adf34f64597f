package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"callsheet/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const projectColumns = `id,org_id,name,COALESCE(description,'') AS description,phase,phase_updated_at,timezone,rehearsal_start_date,show_end_date,auto_transitions_enabled,archive_month,archive_day,post_show_transition_hour,created_at,updated_at`

func scanProject(scan func(dest ...any) error) (domain.Project, error) {
	var p domain.Project
	var tz, rehearsal, showEnd sql.NullString
	var auto int
	err := scan(&p.ID, &p.OrgID, &p.Name, &p.Description, &p.Phase, &p.PhaseUpdatedAt,
		&tz, &rehearsal, &showEnd, &auto, &p.ArchiveMonth, &p.ArchiveDay, &p.PostShowTransitionHour,
		&p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.AutoTransitionsEnabled = auto != 0
	if tz.Valid {
		p.Timezone = &tz.String
	}
	if rehearsal.Valid {
		p.RehearsalStartDate = &rehearsal.String
	}
	if showEnd.Valid {
		p.ShowEndDate = &showEnd.String
	}
	return p, nil
}

func (r Repo) InsertOrganization(ctx context.Context, tx *sql.Tx, o domain.Organization) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO organizations(id,name,timezone,created_at) VALUES (?,?,?,?)
ON CONFLICT(id) DO NOTHING`, o.ID, o.Name, nullable(o.Timezone), o.CreatedAt)
	return err
}

func (r Repo) GetOrganization(ctx context.Context, id string) (domain.Organization, error) {
	var o domain.Organization
	var tz sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,timezone,created_at FROM organizations WHERE id=?`, id).
		Scan(&o.ID, &o.Name, &tz, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	if tz.Valid {
		o.Timezone = tz.String
	}
	return o, err
}

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO projects(id,org_id,name,description,phase,phase_updated_at,timezone,rehearsal_start_date,show_end_date,auto_transitions_enabled,archive_month,archive_day,post_show_transition_hour,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.OrgID, p.Name, nullable(p.Description), p.Phase, p.PhaseUpdatedAt,
		nullableStringPtr(p.Timezone), nullableStringPtr(p.RehearsalStartDate), nullableStringPtr(p.ShowEndDate),
		boolInt(p.AutoTransitionsEnabled), p.ArchiveMonth, p.ArchiveDay, p.PostShowTransitionHour,
		p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=?`, id)
	return scanProject(row.Scan)
}

func (r Repo) GetProjectTx(ctx context.Context, tx *sql.Tx, id string) (domain.Project, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=?`, id)
	return scanProject(row.Scan)
}

func (r Repo) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return r.listProjects(ctx, ``)
}

// ListAutoTransitionProjects returns every project eligible for the
// automatic sweep.
func (r Repo) ListAutoTransitionProjects(ctx context.Context) ([]domain.Project, error) {
	return r.listProjects(ctx, `WHERE auto_transitions_enabled=1`)
}

// SingleProject returns the workspace's only project, or ErrNotFound when
// there are zero or several.
func (r Repo) SingleProject(ctx context.Context) (domain.Project, error) {
	items, err := r.ListProjects(ctx)
	if err != nil {
		return domain.Project{}, err
	}
	if len(items) != 1 {
		return domain.Project{}, ErrNotFound
	}
	return items[0], nil
}

func (r Repo) listProjects(ctx context.Context, where string) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects `+where+` ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// UpdateProjectPhase advances a project's phase with a conditional write
// keyed by the phase observed at evaluation time. Zero affected rows means
// the project moved (or vanished) since then.
func (r Repo) UpdateProjectPhase(ctx context.Context, tx *sql.Tx, id, fromPhase, toPhase, ts string) error {
	res, err := tx.ExecContext(ctx, `UPDATE projects SET phase=?, phase_updated_at=?, updated_at=? WHERE id=? AND phase=?`,
		toPhase, ts, ts, id, fromPhase)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProjectConfiguration writes the scheduling configuration columns on
// the project row.
func (r Repo) UpdateProjectConfiguration(ctx context.Context, tx *sql.Tx, cfg domain.PhaseConfiguration, ts string) error {
	res, err := tx.ExecContext(ctx, `UPDATE projects SET timezone=?, rehearsal_start_date=?, show_end_date=?, auto_transitions_enabled=?, archive_month=?, archive_day=?, post_show_transition_hour=?, updated_at=? WHERE id=?`,
		nullableStringPtr(cfg.Timezone), nullableStringPtr(cfg.RehearsalStartDate), nullableStringPtr(cfg.ShowEndDate),
		boolInt(cfg.AutoTransitionsEnabled), cfg.ArchiveMonth, cfg.ArchiveDay, cfg.PostShowTransitionHour, ts, cfg.ProjectID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertSettings mirrors the configuration into the project_settings record
// as one JSON payload, feeding the read-after-write merge.
func (r Repo) UpsertSettings(ctx context.Context, tx *sql.Tx, cfg domain.PhaseConfiguration, ts string) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO project_settings(project_id,settings_json,created_at,updated_at) VALUES (?,?,?,?)
ON CONFLICT(project_id) DO UPDATE SET settings_json=excluded.settings_json, updated_at=excluded.updated_at`,
		cfg.ProjectID, string(payload), ts, ts)
	return err
}

func (r Repo) GetSettings(ctx context.Context, projectID string) (domain.PhaseConfiguration, error) {
	var payload, updatedAt string
	err := r.DB.QueryRowContext(ctx, `SELECT settings_json, updated_at FROM project_settings WHERE project_id=?`, projectID).
		Scan(&payload, &updatedAt)
	if err == sql.ErrNoRows {
		return domain.PhaseConfiguration{}, ErrNotFound
	}
	if err != nil {
		return domain.PhaseConfiguration{}, err
	}
	var cfg domain.PhaseConfiguration
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return domain.PhaseConfiguration{}, fmt.Errorf("decode settings for %s: %w", projectID, err)
	}
	cfg.ProjectID = projectID
	cfg.UpdatedAt = updatedAt
	return cfg, nil
}

type AuditFilters struct {
	ProjectID  string
	ActionType string
	Limit      int
	Cursor     int64
}

// LatestAuditEntries lists audit log entries, newest first.
func (r Repo) LatestAuditEntries(ctx context.Context, f AuditFilters) ([]domain.AuditLogEntry, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.ActionType != "" {
		clauses = append(clauses, "action_type=?")
		args = append(args, f.ActionType)
	}
	if f.Cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, f.Cursor)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,action_type,project_id,details_json,triggered_by FROM audit_log %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AuditLogEntry
	for rows.Next() {
		var e domain.AuditLogEntry
		var projectID sql.NullString
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.ActionType, &projectID, &e.Details, &e.TriggeredBy); err != nil {
			return nil, err
		}
		if projectID.Valid {
			e.ProjectID = projectID.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
