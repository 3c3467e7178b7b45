package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/admissions-crm/internal/models"
)

const leadSelect = `SELECT l.id, l.name, l.email, l.phone, l.alternate_phone, l.course_interested, l.source, l.status, l.assigned_to, l.city, l.state, l.parent_name, l.parent_phone, l.last_follow_up, l.next_follow_up, l.created_at, l.updated_at, u.name AS assignee_name, u.email AS assignee_email FROM leads l LEFT JOIN users u ON u.id = l.assigned_to`

var leadOrderings = map[string]string{
	"":                   "l.created_at DESC",
	"created_at_desc":    "l.created_at DESC",
	"next_follow_up_asc": "l.next_follow_up ASC",
	"updated_at_desc":    "l.updated_at DESC",
}

type leadRow struct {
	models.Lead
	AssigneeName  sql.NullString `db:"assignee_name"`
	AssigneeEmail sql.NullString `db:"assignee_email"`
}

func (r leadRow) toModel() models.Lead {
	lead := r.Lead
	if lead.AssignedTo != nil && r.AssigneeName.Valid {
		lead.Assignee = &models.UserSummary{ID: *lead.AssignedTo, Name: r.AssigneeName.String, Email: r.AssigneeEmail.String}
	}
	return lead
}

// LeadRepository provides database access for leads.
type LeadRepository struct {
	db *sqlx.DB
}

// NewLeadRepository creates a new instance of LeadRepository.
func NewLeadRepository(db *sqlx.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

// Create inserts a new lead.
func (r *LeadRepository) Create(ctx context.Context, lead *models.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.UpdatedAt = now

	const query = `INSERT INTO leads (id, name, email, phone, alternate_phone, course_interested, source, status, assigned_to, city, state, parent_name, parent_phone, last_follow_up, next_follow_up, created_at, updated_at) VALUES (:id, :name, :email, :phone, :alternate_phone, :course_interested, :source, :status, :assigned_to, :city, :state, :parent_name, :parent_phone, :last_follow_up, :next_follow_up, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, lead); err != nil {
		return fmt.Errorf("create lead: %w", err)
	}
	return nil
}

// FindByID returns a lead with its assignee populated.
func (r *LeadRepository) FindByID(ctx context.Context, id string) (*models.Lead, error) {
	var row leadRow
	if err := r.db.GetContext(ctx, &row, leadSelect+` WHERE l.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find lead by id: %w", err)
	}
	lead := row.toModel()
	return &lead, nil
}

// List returns leads matching filter with assignees populated.
func (r *LeadRepository) List(ctx context.Context, filter models.LeadFilter) ([]models.Lead, error) {
	var conditions []string
	var args []interface{}

	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		conditions = append(conditions, fmt.Sprintf("l.assigned_to = $%d", len(args)))
	}
	if filter.Unassigned {
		conditions = append(conditions, "l.assigned_to IS NULL")
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("l.status = $%d", len(args)))
	}
	if filter.Course != "" {
		args = append(args, "%"+escapeLike(filter.Course)+"%")
		conditions = append(conditions, fmt.Sprintf("l.course_interested ILIKE $%d", len(args)))
	}
	if filter.NextFollowUpFrom != nil {
		args = append(args, *filter.NextFollowUpFrom)
		conditions = append(conditions, fmt.Sprintf("l.next_follow_up >= $%d", len(args)))
	}
	if filter.NextFollowUpTo != nil {
		args = append(args, *filter.NextFollowUpTo)
		conditions = append(conditions, fmt.Sprintf("l.next_follow_up <= $%d", len(args)))
	}

	query := leadSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	order, ok := leadOrderings[filter.OrderBy]
	if !ok {
		order = leadOrderings[""]
	}
	query += " ORDER BY " + order
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	var rows []leadRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	leads := make([]models.Lead, 0, len(rows))
	for _, row := range rows {
		leads = append(leads, row.toModel())
	}
	return leads, nil
}

// Update persists every mutable field of lead.
func (r *LeadRepository) Update(ctx context.Context, lead *models.Lead) error {
	lead.UpdatedAt = time.Now().UTC()
	const query = `UPDATE leads SET name = :name, email = :email, phone = :phone, alternate_phone = :alternate_phone, course_interested = :course_interested, source = :source, status = :status, assigned_to = :assigned_to, city = :city, state = :state, parent_name = :parent_name, parent_phone = :parent_phone, last_follow_up = :last_follow_up, next_follow_up = :next_follow_up, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, lead)
	if err != nil {
		return fmt.Errorf("update lead: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete hard deletes a lead. Its interactions cascade.
func (r *LeadRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete lead: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Assign sets or clears the assignee of one lead.
func (r *LeadRepository) Assign(ctx context.Context, leadID string, userID *string, at time.Time) error {
	const query = `UPDATE leads SET assigned_to = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, leadID, userID, at)
	if err != nil {
		return fmt.Errorf("assign lead: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AssignMany assigns every listed lead to userID in a single statement. IDs that do not exist are
// ignored; the number of updated rows is returned.
func (r *LeadRepository) AssignMany(ctx context.Context, leadIDs []string, userID string, at time.Time) (int, error) {
	if len(leadIDs) == 0 {
		return 0, nil
	}
	const query = `UPDATE leads SET assigned_to = $1, updated_at = $2 WHERE id = ANY($3::uuid[])`
	res, err := r.db.ExecContext(ctx, query, userID, at, pq.Array(leadIDs))
	if err != nil {
		return 0, fmt.Errorf("bulk assign leads: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bulk assign rows affected: %w", err)
	}
	return int(affected), nil
}

// Stats counts leads per status, optionally scoped to one assignee.
func (r *LeadRepository) Stats(ctx context.Context, assignedTo *string) (models.LeadStats, error) {
	query := `SELECT
		COUNT(*) AS total_leads,
		COUNT(*) FILTER (WHERE status = 'new') AS new_leads,
		COUNT(*) FILTER (WHERE status = 'interested') AS interested,
		COUNT(*) FILTER (WHERE status = 'follow_up') AS follow_ups,
		COUNT(*) FILTER (WHERE status = 'admitted') AS converted,
		COUNT(*) FILTER (WHERE status = 'not_interested') AS not_interested
	FROM leads`
	var args []interface{}
	if assignedTo != nil {
		query += ` WHERE assigned_to = $1`
		args = append(args, *assignedTo)
	}
	var stats models.LeadStats
	if err := r.db.GetContext(ctx, &stats, query, args...); err != nil {
		return models.LeadStats{}, fmt.Errorf("lead stats: %w", err)
	}
	return stats, nil
}

func escapeLike(raw string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(raw)
}
