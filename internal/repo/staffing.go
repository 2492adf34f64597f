package repo

import (
	"context"
	"database/sql"

	"callsheet/internal/domain"
)

func (r Repo) GetSetupChecklist(ctx context.Context, projectID string) (domain.SetupChecklist, error) {
	var c domain.SetupChecklist
	var roles, locations, team, talent int
	err := r.DB.QueryRowContext(ctx, `SELECT project_id,roles_finalized,locations_finalized,team_assignments_finalized,talent_roster_finalized,updated_at FROM setup_checklists WHERE project_id=?`, projectID).
		Scan(&c.ProjectID, &roles, &locations, &team, &talent, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	c.RolesFinalized = roles != 0
	c.LocationsFinalized = locations != 0
	c.TeamAssignmentsFinalized = team != 0
	c.TalentRosterFinalized = talent != 0
	return c, nil
}

func (r Repo) UpsertSetupChecklist(ctx context.Context, tx *sql.Tx, c domain.SetupChecklist) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO setup_checklists(project_id,roles_finalized,locations_finalized,team_assignments_finalized,talent_roster_finalized,updated_at)
VALUES (?,?,?,?,?,?)
ON CONFLICT(project_id) DO UPDATE SET
  roles_finalized=excluded.roles_finalized,
  locations_finalized=excluded.locations_finalized,
  team_assignments_finalized=excluded.team_assignments_finalized,
  talent_roster_finalized=excluded.talent_roster_finalized,
  updated_at=excluded.updated_at`,
		c.ProjectID, boolInt(c.RolesFinalized), boolInt(c.LocationsFinalized),
		boolInt(c.TeamAssignmentsFinalized), boolInt(c.TalentRosterFinalized), c.UpdatedAt)
	return err
}

func (r Repo) InsertLocation(ctx context.Context, l domain.Location) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO locations(id,project_id,name,created_at) VALUES (?,?,?,?)`,
		l.ID, l.ProjectID, l.Name, l.CreatedAt)
	return err
}

func (r Repo) CountLocations(ctx context.Context, projectID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM locations WHERE project_id=?`, projectID).Scan(&n)
	return n, err
}

func (r Repo) InsertRoleTemplate(ctx context.Context, t domain.RoleTemplate) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO role_templates(id,project_id,role,created_at) VALUES (?,?,?,?)`,
		t.ID, t.ProjectID, t.Role, t.CreatedAt)
	return err
}

func (r Repo) CountRoleTemplates(ctx context.Context, projectID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM role_templates WHERE project_id=?`, projectID).Scan(&n)
	return n, err
}

func (r Repo) InsertTeamAssignment(ctx context.Context, a domain.TeamAssignment) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO team_assignments(id,project_id,member_name,role,created_at) VALUES (?,?,?,?,?)`,
		a.ID, a.ProjectID, a.MemberName, a.Role, a.CreatedAt)
	return err
}

func (r Repo) ListTeamAssignments(ctx context.Context, projectID string) ([]domain.TeamAssignment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,project_id,member_name,role,created_at FROM team_assignments WHERE project_id=? ORDER BY created_at ASC, id ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TeamAssignment
	for rows.Next() {
		var a domain.TeamAssignment
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.MemberName, &a.Role, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) InsertTalentAssignment(ctx context.Context, a domain.TalentAssignment) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO talent_assignments(id,project_id,talent_name,escort_name,created_at) VALUES (?,?,?,?,?)`,
		a.ID, a.ProjectID, a.TalentName, nullableStringPtr(a.EscortName), a.CreatedAt)
	return err
}

func (r Repo) ListTalentAssignments(ctx context.Context, projectID string) ([]domain.TalentAssignment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,project_id,talent_name,escort_name,created_at FROM talent_assignments WHERE project_id=? ORDER BY created_at ASC, id ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TalentAssignment
	for rows.Next() {
		var a domain.TalentAssignment
		var escort sql.NullString
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.TalentName, &escort, &a.CreatedAt); err != nil {
			return nil, err
		}
		if escort.Valid {
			a.EscortName = &escort.String
		}
		res = append(res, a)
	}
	return res, rows.Err()
}
