package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/theirongolddev/esusu/internal/model"
)

const planColumns = `id, member_id, member_name, daily_amount, status, classification, schedule, start_date, created_at`

// CreatePlan inserts a plan and sets its ID.
func (s *Store) CreatePlan(ctx context.Context, p *model.Plan) error {
	if p.Status == "" {
		p.Status = model.PlanActive
	}
	if p.Classification == "" {
		p.Classification = model.ClassRegular
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO plans
		(member_id, member_name, daily_amount, status, classification, schedule, start_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.MemberID, p.MemberName, p.DailyAmount, string(p.Status), string(p.Classification),
		formatSchedule(p.Schedule), formatDate(p.StartDate), nowString(),
	)
	if err != nil {
		return mapErr(err)
	}
	p.ID, err = res.LastInsertId()
	return err
}

// GetPlan returns the plan with the given id or model.ErrNotFound.
func (s *Store) GetPlan(ctx context.Context, id int64) (model.Plan, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+planColumns+" FROM plans WHERE id = ?", id)
	p, err := scanPlan(row)
	if err != nil {
		return model.Plan{}, mapErr(err)
	}
	return p, nil
}

// ListActivePlans returns every active plan ordered by id.
func (s *Store) ListActivePlans(ctx context.Context) ([]model.Plan, error) {
	return s.listPlans(ctx, "SELECT "+planColumns+" FROM plans WHERE status = ? ORDER BY id", string(model.PlanActive))
}

// ListPlans returns every plan ordered by id.
func (s *Store) ListPlans(ctx context.Context) ([]model.Plan, error) {
	return s.listPlans(ctx, "SELECT "+planColumns+" FROM plans ORDER BY id")
}

// SetPlanStatus changes a plan's lifecycle status.
func (s *Store) SetPlanStatus(ctx context.Context, id int64, status model.PlanStatus) error {
	res, err := s.db.ExecContext(ctx, "UPDATE plans SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *Store) listPlans(ctx context.Context, query string, args ...any) ([]model.Plan, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var plans []model.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(r rowScanner) (model.Plan, error) {
	var (
		p                    model.Plan
		status, class, sched string
		startDate, createdAt string
		memberName           sql.NullString
	)
	err := r.Scan(&p.ID, &p.MemberID, &memberName, &p.DailyAmount, &status, &class, &sched, &startDate, &createdAt)
	if err != nil {
		return model.Plan{}, err
	}
	p.MemberName = memberName.String
	p.Status = model.PlanStatus(status)
	p.Classification = model.Classification(class)
	p.Schedule, err = ParseSchedule(sched)
	if err != nil {
		return model.Plan{}, fmt.Errorf("plan %d: %w", p.ID, err)
	}
	p.StartDate = parseDate(startDate)
	p.CreatedAt = parseTime(createdAt)
	return p, nil
}

func formatSchedule(days []int) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}

// ParseSchedule parses a comma-separated list of day numbers. Empty means every day.
func ParseSchedule(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var days []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 1 || n > 7 {
			return nil, fmt.Errorf("invalid schedule day %q", part)
		}
		days = append(days, n)
	}
	return days, nil
}
