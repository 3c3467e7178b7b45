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

	"github.com/noah-isme/admissions-crm/internal/models"
)

const interactionSelect = `SELECT i.id, i.lead_id, i.agent_id, i.type, i.remarks, i.status_before, i.status_after, i.duration, i.follow_up_date, i.date, u.name AS agent_name, u.email AS agent_email, l.name AS lead_name, l.email AS lead_email, l.phone AS lead_phone, l.status AS lead_status FROM interactions i LEFT JOIN users u ON u.id = i.agent_id LEFT JOIN leads l ON l.id = i.lead_id`

type interactionRow struct {
	models.Interaction
	AgentName  sql.NullString `db:"agent_name"`
	AgentEmail sql.NullString `db:"agent_email"`
	LeadName   sql.NullString `db:"lead_name"`
	LeadEmail  sql.NullString `db:"lead_email"`
	LeadPhone  sql.NullString `db:"lead_phone"`
	LeadStatus sql.NullString `db:"lead_status"`
}

func (r interactionRow) toModel() models.Interaction {
	item := r.Interaction
	if item.AgentID != nil && r.AgentName.Valid {
		item.AgentInfo = &models.UserSummary{ID: *item.AgentID, Name: r.AgentName.String, Email: r.AgentEmail.String}
	}
	if r.LeadName.Valid {
		item.LeadInfo = &models.LeadSummary{
			ID:     item.LeadID,
			Name:   r.LeadName.String,
			Email:  r.LeadEmail.String,
			Phone:  r.LeadPhone.String,
			Status: models.LeadStatus(r.LeadStatus.String),
		}
	}
	return item
}

// InteractionRepository provides database access for the interaction log.
type InteractionRepository struct {
	db *sqlx.DB
}

// NewInteractionRepository creates a new instance of InteractionRepository.
func NewInteractionRepository(db *sqlx.DB) *InteractionRepository {
	return &InteractionRepository{db: db}
}

// Create inserts the interaction and, when change is set, advances the lead in the same
// transaction.
func (r *InteractionRepository) Create(ctx context.Context, interaction *models.Interaction, change *models.LeadChange) (err error) {
	if interaction.ID == "" {
		interaction.ID = uuid.NewString()
	}
	if interaction.Date.IsZero() {
		interaction.Date = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin interaction create: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insert = `INSERT INTO interactions (id, lead_id, agent_id, type, remarks, status_before, status_after, duration, follow_up_date, date) VALUES (:id, :lead_id, :agent_id, :type, :remarks, :status_before, :status_after, :duration, :follow_up_date, :date)`
	if _, err = tx.NamedExecContext(ctx, insert, interaction); err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	if err = applyLeadChange(ctx, tx, change); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit interaction create: %w", err)
	}
	return nil
}

// Update persists the mutable interaction fields and, when change is set, advances the lead in
// the same transaction.
func (r *InteractionRepository) Update(ctx context.Context, interaction *models.Interaction, change *models.LeadChange) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin interaction update: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const update = `UPDATE interactions SET remarks = :remarks, status_after = :status_after, duration = :duration, follow_up_date = :follow_up_date WHERE id = :id`
	res, err := tx.NamedExecContext(ctx, update, interaction)
	if err != nil {
		return fmt.Errorf("update interaction: %w", err)
	}
	if affected, rerr := res.RowsAffected(); rerr == nil && affected == 0 {
		err = sql.ErrNoRows
		return err
	}
	if err = applyLeadChange(ctx, tx, change); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit interaction update: %w", err)
	}
	return nil
}

// applyLeadChange sets the lead status and follow-up markers. A nil NextFollowUp keeps the stored
// value, so re-applying the same change is harmless.
func applyLeadChange(ctx context.Context, tx *sqlx.Tx, change *models.LeadChange) error {
	if change == nil {
		return nil
	}
	const query = `UPDATE leads SET status = $2, next_follow_up = COALESCE($3, next_follow_up), last_follow_up = $4, updated_at = $4 WHERE id = $1`
	res, err := tx.ExecContext(ctx, query, change.LeadID, change.Status, change.NextFollowUp, change.At)
	if err != nil {
		return fmt.Errorf("apply lead change: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindByID returns an interaction with agent and lead populated.
func (r *InteractionRepository) FindByID(ctx context.Context, id string) (*models.Interaction, error) {
	var row interactionRow
	if err := r.db.GetContext(ctx, &row, interactionSelect+` WHERE i.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find interaction by id: %w", err)
	}
	item := row.toModel()
	return &item, nil
}

// List returns interactions newest first.
func (r *InteractionRepository) List(ctx context.Context, filter models.InteractionFilter) ([]models.Interaction, error) {
	var conditions []string
	var args []interface{}
	if filter.AgentID != nil {
		args = append(args, *filter.AgentID)
		conditions = append(conditions, fmt.Sprintf("i.agent_id = $%d", len(args)))
	}
	if filter.LeadID != nil {
		args = append(args, *filter.LeadID)
		conditions = append(conditions, fmt.Sprintf("i.lead_id = $%d", len(args)))
	}

	query := interactionSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY i.date DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	var rows []interactionRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	items := make([]models.Interaction, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toModel())
	}
	return items, nil
}

// Delete removes an interaction. Lead fields it changed are left as they are.
func (r *InteractionRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM interactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete interaction: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

type interactionStatsRow struct {
	Total int `db:"total"`
	models.InteractionTypeCounts
	models.InteractionConversions
}

// Stats counts interactions per channel and resulting status, optionally for one agent.
func (r *InteractionRepository) Stats(ctx context.Context, agentID *string) (models.InteractionStats, error) {
	query := `SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE type = 'call') AS "call",
		COUNT(*) FILTER (WHERE type = 'sms') AS "sms",
		COUNT(*) FILTER (WHERE type = 'whatsapp') AS "whatsapp",
		COUNT(*) FILTER (WHERE type = 'email') AS "email",
		COUNT(*) FILTER (WHERE status_after = 'interested') AS interested,
		COUNT(*) FILTER (WHERE status_after = 'not_interested') AS not_interested,
		COUNT(*) FILTER (WHERE status_after = 'follow_up') AS follow_up
	FROM interactions`
	var args []interface{}
	if agentID != nil {
		query += ` WHERE agent_id = $1`
		args = append(args, *agentID)
	}
	var row interactionStatsRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return models.InteractionStats{}, fmt.Errorf("interaction stats: %w", err)
	}
	return models.InteractionStats{
		TotalInteractions: row.Total,
		ByType:            row.InteractionTypeCounts,
		Conversions:       row.InteractionConversions,
	}, nil
}
