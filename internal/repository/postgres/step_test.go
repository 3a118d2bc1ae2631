package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/service/campaign"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var stepCols = []string{
	"id", "organization_id", "lead_id", "id_in_workflow", "step_index",
	"workflow_type", "step_type", "status", "retries", "execute_after",
	"last_try_at", "raw_response", "created_at", "updated_at",
}

func stepRow(rows *sqlmock.Rows, id string, stepType domain.StepType, executeAfter int64, raw string) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(
		id, "org-1", "lead-1", "node-1", 0,
		domain.WorkflowTypeCampaign, stepType, domain.StepPending, 0, executeAfter,
		nil, []byte(raw), now, now,
	)
}

func TestStepGet(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStepRepo(db)

	rows := stepRow(sqlmock.NewRows(stepCols), "step-1", domain.StepProfileVisit, 100, `{"providerId":"pid-1"}`)
	mock.ExpectQuery("SELECT (.+) FROM workflow_steps WHERE id").
		WithArgs("step-1").
		WillReturnRows(rows)

	s, err := repo.Get(context.Background(), "step-1")
	require.NoError(t, err)
	assert.Equal(t, "step-1", s.ID)
	assert.Equal(t, "pid-1", s.RawResponse["providerId"])
	assert.Nil(t, s.LastTryAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStepGetNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStepRepo(db)

	mock.ExpectQuery("SELECT (.+) FROM workflow_steps WHERE id").
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, campaign.ErrNotFound)
}

func TestStepCreateDefaults(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStepRepo(db)

	mock.ExpectExec("INSERT INTO workflow_steps").
		WithArgs(sqlmock.AnyArg(), "org-1", "lead-1", "node-1", 0,
			string(domain.WorkflowTypeCampaign), string(domain.StepProfileVisit),
			string(domain.StepPending), 0, int64(100), []byte(`{"k":"v"}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := &domain.WorkflowStep{
		OrganizationID: "org-1",
		LeadID:         "lead-1",
		IDInWorkflow:   "node-1",
		StepType:       domain.StepProfileVisit,
		Status:         domain.StepPending,
		ExecuteAfter:   100,
		RawResponse:    map[string]interface{}{"k": "v"},
	}
	require.NoError(t, repo.Create(context.Background(), s))
	assert.NotEmpty(t, s.ID, "missing id gets a generated uuid")
	assert.Equal(t, domain.WorkflowTypeCampaign, s.WorkflowType)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStepListDue(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStepRepo(db)
	now := time.Unix(1_700_000_000, 0)

	rows := sqlmock.NewRows(stepCols)
	stepRow(rows, "step-1", domain.StepProfileVisit, now.Unix()-60, `{}`)
	stepRow(rows, "step-2", domain.StepSendConnectionRequest, now.Unix(), `{}`)
	mock.ExpectQuery("SELECT (.+) FROM workflow_steps WHERE status").
		WithArgs(string(domain.StepPending), now.Unix()).
		WillReturnRows(rows)

	due, err := repo.ListDue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "step-1", due[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStepListByLeadsEmpty(t *testing.T) {
	db, _ := newMock(t)
	repo := NewStepRepo(db)

	steps, err := repo.ListByLeads(context.Background(), nil, string(domain.WorkflowTypeCampaign))
	require.NoError(t, err)
	assert.Empty(t, steps)
}

func TestStepListFailedByLeads(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStepRepo(db)

	rows := stepRow(sqlmock.NewRows(stepCols), "step-9", domain.StepSendFollowup, 50, `{"error":"boom"}`)
	mock.ExpectQuery("SELECT (.+) FROM workflow_steps WHERE lead_id").
		WithArgs(pq.Array([]string{"lead-1", "lead-2"}), string(domain.WorkflowTypeCampaign), string(domain.StepFailed)).
		WillReturnRows(rows)

	steps, err := repo.ListFailedByLeads(context.Background(), []string{"lead-1", "lead-2"}, string(domain.WorkflowTypeCampaign))
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "boom", steps[0].RawResponse["error"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStepMarkComplete(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStepRepo(db)

	mock.ExpectExec("UPDATE workflow_steps").
		WithArgs("step-1", string(domain.StepComplete), []byte(`{"providerId":"pid-1"}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkComplete(context.Background(), "step-1", map[string]interface{}{"providerId": "pid-1"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStepMarkCompleteNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStepRepo(db)

	mock.ExpectExec("UPDATE workflow_steps").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkComplete(context.Background(), "gone", nil)
	assert.ErrorIs(t, err, campaign.ErrNotFound)
}

func TestStepMarkFailed(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStepRepo(db)

	mock.ExpectExec("UPDATE workflow_steps").
		WithArgs("step-1", string(domain.StepFailed), []byte(`{"error":"provider timeout"}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkFailed(context.Background(), "step-1", "provider timeout"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStepRearmOnlyFailed(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStepRepo(db)

	mock.ExpectExec("UPDATE workflow_steps").
		WithArgs("step-1", string(domain.StepPending), int64(200), string(domain.StepFailed)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Rearm(context.Background(), "step-1", 200)
	assert.ErrorIs(t, err, campaign.ErrNotFound, "a step that is not FAILED is not re-armed")
}

func TestStepDefer(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStepRepo(db)

	mock.ExpectExec("UPDATE workflow_steps").
		WithArgs("step-1", int64(500), string(domain.StepPending)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Defer(context.Background(), "step-1", 500))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStepReschedule(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStepRepo(db)

	mock.ExpectExec("UPDATE workflow_steps").
		WithArgs("step-1", int64(4200), string(domain.StepPending)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Reschedule(context.Background(), "step-1", 4200))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStepRescheduleOnlyPending(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStepRepo(db)

	mock.ExpectExec("UPDATE workflow_steps").
		WithArgs("step-1", int64(4200), string(domain.StepPending)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Reschedule(context.Background(), "step-1", 4200)
	assert.ErrorIs(t, err, campaign.ErrNotFound, "a finished step is not rescheduled")
}

func TestDeferPendingConnectionRequests(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStepRepo(db)

	mock.ExpectExec("UPDATE workflow_steps ws").
		WithArgs("acc-1", int64(9000), string(domain.StepPending), string(domain.StepSendConnectionRequest)).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeferPendingConnectionRequests(context.Background(), "acc-1", 9000)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkReplied(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStepRepo(db)

	mock.ExpectExec("UPDATE workflow_steps ws").
		WithArgs(pq.Array([]string{"pid-1", "pid-2"}), string(domain.StepPending), string(domain.StepCheckMessageReply)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.MarkReplied(context.Background(), []string{"pid-1", "pid-2"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRepliedNoIDs(t *testing.T) {
	db, _ := newMock(t)
	repo := NewStepRepo(db)

	n, err := repo.MarkReplied(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
