package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admissions-crm/internal/models"
)

var interactionRowColumns = []string{"id", "lead_id", "agent_id", "type", "remarks", "status_before", "status_after", "duration", "follow_up_date", "date", "agent_name", "agent_email", "lead_name", "lead_email", "lead_phone", "lead_status"}

const leadChangeSQL = "UPDATE leads SET status = $2, next_follow_up = COALESCE($3, next_follow_up), last_follow_up = $4, updated_at = $4 WHERE id = $1"

func strPtr(v string) *string { return &v }

func TestInteractionCreateWithLeadChangeCommits(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewInteractionRepository(db)

	now := time.Now().UTC()
	next := now.Add(48 * time.Hour)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO interactions").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(leadChangeSQL)).
		WithArgs("l1", models.LeadStatusAdmitted, &next, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	item := &models.Interaction{LeadID: "l1", AgentID: strPtr("a1"), Type: models.InteractionCall, Remarks: "joined", StatusBefore: models.LeadStatusNew, StatusAfter: models.LeadStatusAdmitted}
	err := repo.Create(context.Background(), item, &models.LeadChange{LeadID: "l1", Status: models.LeadStatusAdmitted, NextFollowUp: &next, At: now})
	require.NoError(t, err)
	assert.NotEmpty(t, item.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInteractionCreateWithoutChangeSkipsLeadUpdate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewInteractionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO interactions").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	item := &models.Interaction{LeadID: "l1", Type: models.InteractionSMS, Remarks: "sent brochure", StatusBefore: models.LeadStatusNew, StatusAfter: models.LeadStatusNew}
	require.NoError(t, repo.Create(context.Background(), item, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInteractionCreateRollsBackWhenLeadUpdateFails(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewInteractionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO interactions").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(leadChangeSQL)).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	item := &models.Interaction{LeadID: "l1", Type: models.InteractionCall, Remarks: "x", StatusBefore: models.LeadStatusNew, StatusAfter: models.LeadStatusInterested}
	err := repo.Create(context.Background(), item, &models.LeadChange{LeadID: "l1", Status: models.LeadStatusInterested, At: time.Now()})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInteractionUpdateMissingRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewInteractionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE interactions SET remarks").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Update(context.Background(), &models.Interaction{ID: "missing"}, nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInteractionListForLead(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewInteractionRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(interactionRowColumns).
		AddRow("i1", "l1", "a1", "call", "picked up", "new", "interested", 120, nil, now, "Priya", "p@x.com", "Rahul", "r@x.com", "999", "interested").
		AddRow("i2", "l1", nil, "email", "bounced", "new", "new", nil, nil, now.Add(-time.Hour), nil, nil, "Rahul", "r@x.com", "999", "interested")
	mock.ExpectQuery(regexp.QuoteMeta(interactionSelect + " WHERE i.lead_id = $1 ORDER BY i.date DESC")).
		WithArgs("l1").
		WillReturnRows(rows)

	items, err := repo.List(context.Background(), models.InteractionFilter{LeadID: strPtr("l1")})
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.NotNil(t, items[0].AgentInfo)
	assert.Equal(t, "Priya", items[0].AgentInfo.Name)
	assert.Equal(t, 120, *items[0].Duration)
	assert.Nil(t, items[1].AgentInfo)
	assert.Equal(t, models.LeadStatusInterested, items[1].LeadInfo.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInteractionStatsForAgent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewInteractionRepository(db)

	mock.ExpectQuery(`FROM interactions WHERE agent_id = \$1`).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"total", "call", "sms", "whatsapp", "email", "interested", "not_interested", "follow_up"}).
			AddRow(7, 3, 1, 2, 1, 2, 1, 3))

	stats, err := repo.Stats(context.Background(), strPtr("a1"))
	require.NoError(t, err)
	assert.Equal(t, 7, stats.TotalInteractions)
	assert.Equal(t, 2, stats.ByType.WhatsApp)
	assert.Equal(t, 3, stats.Conversions.FollowUp)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInteractionDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewInteractionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM interactions WHERE id = $1")).WithArgs("i1").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "i1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
