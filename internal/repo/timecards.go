package repo

import (
	"context"

	"callsheet/internal/domain"
)

// Timecard statuses that count as finalized for the post-show gate.
const timecardFinalStatuses = `('approved','paid')`

func (r Repo) InsertTimecard(ctx context.Context, t domain.Timecard) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO timecards(id,project_id,team_assignment_id,work_date,status,created_at,updated_at) VALUES (?,?,?,?,?,?,?)`,
		t.ID, t.ProjectID, t.TeamAssignmentID, t.WorkDate, t.Status, t.CreatedAt, t.UpdatedAt)
	return err
}

func (r Repo) UpdateTimecardStatus(ctx context.Context, id, status, ts string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE timecards SET status=?, updated_at=? WHERE id=?`, status, ts, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListTimecards(ctx context.Context, projectID string) ([]domain.Timecard, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,project_id,team_assignment_id,work_date,status,created_at,updated_at FROM timecards WHERE project_id=? ORDER BY work_date ASC, id ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Timecard
	for rows.Next() {
		var t domain.Timecard
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.TeamAssignmentID, &t.WorkDate, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// CountUnfinalizedTimecards counts timecards not yet approved or paid.
func (r Repo) CountUnfinalizedTimecards(ctx context.Context, projectID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM timecards WHERE project_id=? AND status NOT IN `+timecardFinalStatuses, projectID).Scan(&n)
	return n, err
}

// MembersWithoutTimecards returns the names of team members with zero
// timecard submissions on the project, in assignment order.
func (r Repo) MembersWithoutTimecards(ctx context.Context, projectID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT member_name FROM team_assignments a
WHERE a.project_id=? AND NOT EXISTS (SELECT 1 FROM timecards t WHERE t.team_assignment_id=a.id)
ORDER BY a.created_at ASC, a.id ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
