package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/service/campaign"
	"github.com/lib/pq"
)

// StepRepo implements engine.StepStore: the workflow-step ledger.
type StepRepo struct{ db *sql.DB }

// NewStepRepo creates a Postgres-backed workflow-step repository.
func NewStepRepo(db *sql.DB) *StepRepo { return &StepRepo{db: db} }

const stepColumns = `id, organization_id, lead_id, id_in_workflow, step_index,
	workflow_type, step_type, status, retries, execute_after, last_try_at,
	COALESCE(raw_response, '{}'::jsonb), created_at, updated_at`

func scanStep(row interface{ Scan(...interface{}) error }) (*domain.WorkflowStep, error) {
	s := &domain.WorkflowStep{}
	var lastTry sql.NullTime
	var rawJSON []byte
	err := row.Scan(
		&s.ID, &s.OrganizationID, &s.LeadID, &s.IDInWorkflow, &s.StepIndex,
		&s.WorkflowType, &s.StepType, &s.Status, &s.Retries, &s.ExecuteAfter, &lastTry,
		&rawJSON, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastTry.Valid {
		t := lastTry.Time
		s.LastTryAt = &t
	}
	if err := json.Unmarshal(rawJSON, &s.RawResponse); err != nil {
		return nil, fmt.Errorf("parse raw_response: %w", err)
	}
	return s, nil
}

func (r *StepRepo) Get(ctx context.Context, id string) (*domain.WorkflowStep, error) {
	s, err := scanStep(r.db.QueryRowContext(ctx,
		`SELECT `+stepColumns+` FROM workflow_steps WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get step: %w", err)
	}
	return s, nil
}

func (r *StepRepo) Create(ctx context.Context, s *domain.WorkflowStep) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.WorkflowType == "" {
		s.WorkflowType = domain.WorkflowTypeCampaign
	}
	rawJSON, err := json.Marshal(s.RawResponse)
	if err != nil {
		return fmt.Errorf("encode raw_response: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workflow_steps
			(id, organization_id, lead_id, id_in_workflow, step_index,
			 workflow_type, step_type, status, retries, execute_after,
			 raw_response, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
	`, s.ID, s.OrganizationID, s.LeadID, s.IDInWorkflow, s.StepIndex,
		s.WorkflowType, s.StepType, s.Status, s.Retries, s.ExecuteAfter, rawJSON)
	if err != nil {
		return fmt.Errorf("create step: %w", err)
	}
	return nil
}

func (r *StepRepo) listSteps(ctx context.Context, where, order string, args ...interface{}) ([]domain.WorkflowStep, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+stepColumns+` FROM workflow_steps WHERE `+where+` ORDER BY `+order,
		args...)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var out []domain.WorkflowStep
	for rows.Next() {
		s, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// ListDue returns PENDING steps with execute_after <= now, oldest due first.
func (r *StepRepo) ListDue(ctx context.Context, now time.Time) ([]domain.WorkflowStep, error) {
	return r.listSteps(ctx,
		`status = $1 AND execute_after <= $2`,
		`execute_after, created_at`,
		domain.StepPending, now.Unix())
}

func (r *StepRepo) ListByLeads(ctx context.Context, leadIDs []string, workflowType string) ([]domain.WorkflowStep, error) {
	if len(leadIDs) == 0 {
		return nil, nil
	}
	return r.listSteps(ctx,
		`lead_id = ANY($1) AND workflow_type = $2`,
		`lead_id, step_index, created_at`,
		pq.Array(leadIDs), workflowType)
}

func (r *StepRepo) ListFailedByLeads(ctx context.Context, leadIDs []string, workflowType string) ([]domain.WorkflowStep, error) {
	if len(leadIDs) == 0 {
		return nil, nil
	}
	return r.listSteps(ctx,
		`lead_id = ANY($1) AND workflow_type = $2 AND status = $3`,
		`lead_id, step_index, created_at`,
		pq.Array(leadIDs), workflowType, domain.StepFailed)
}

func (r *StepRepo) MarkComplete(ctx context.Context, id string, rawResponse map[string]interface{}) error {
	rawJSON, err := json.Marshal(rawResponse)
	if err != nil {
		return fmt.Errorf("encode raw_response: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE workflow_steps
		SET status = $2, raw_response = $3, updated_at = NOW()
		WHERE id = $1
	`, id, domain.StepComplete, rawJSON)
	if err != nil {
		return fmt.Errorf("mark step complete: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *StepRepo) MarkFailed(ctx context.Context, id string, message string) error {
	rawJSON, _ := json.Marshal(map[string]interface{}{domain.RawError: message})
	res, err := r.db.ExecContext(ctx, `
		UPDATE workflow_steps
		SET status = $2, retries = retries + 1, last_try_at = NOW(),
		    raw_response = $3, updated_at = NOW()
		WHERE id = $1
	`, id, domain.StepFailed, rawJSON)
	if err != nil {
		return fmt.Errorf("mark step failed: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

// Rearm transitions a FAILED step back to PENDING with a new due time.
func (r *StepRepo) Rearm(ctx context.Context, id string, executeAfter int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE workflow_steps
		SET status = $2, execute_after = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`, id, domain.StepPending, executeAfter, domain.StepFailed)
	if err != nil {
		return fmt.Errorf("rearm step: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

// Defer pushes a PENDING step's due time forward; the step stays PENDING.
func (r *StepRepo) Defer(ctx context.Context, id string, executeAfter int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE workflow_steps
		SET execute_after = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`, id, executeAfter, domain.StepPending)
	if err != nil {
		return fmt.Errorf("defer step: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

// Reschedule pushes a PENDING step's due time forward and counts the
// attempt. Polling steps go through here so the same row keeps cycling.
func (r *StepRepo) Reschedule(ctx context.Context, id string, executeAfter int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE workflow_steps
		SET execute_after = $2, retries = retries + 1, last_try_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $3
	`, id, executeAfter, domain.StepPending)
	if err != nil {
		return fmt.Errorf("reschedule step: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

// DeferPendingConnectionRequests pushes every due-before-the-deadline
// PENDING send_connection_request step of every campaign sending through
// the given account. Re-running with the same deadline changes nothing.
func (r *StepRepo) DeferPendingConnectionRequests(ctx context.Context, accountID string, executeAfter int64) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE workflow_steps ws
		SET execute_after = $2, updated_at = NOW()
		FROM leads l
		JOIN campaigns c ON c.id = l.campaign_id
		WHERE ws.lead_id = l.id
		  AND c.connected_account_id = $1
		  AND ws.status = $3
		  AND ws.step_type = $4
		  AND ws.execute_after < $2
	`, accountID, executeAfter, domain.StepPending, domain.StepSendConnectionRequest)
	if err != nil {
		return 0, fmt.Errorf("defer connection requests: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// MarkReplied flags hasReplied on every PENDING check_message_reply step of
// leads whose provider id matches.
func (r *StepRepo) MarkReplied(ctx context.Context, providerIDs []string) (int, error) {
	if len(providerIDs) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE workflow_steps ws
		SET raw_response = jsonb_set(COALESCE(ws.raw_response, '{}'::jsonb), '{hasReplied}', 'true'::jsonb, true),
		    updated_at = NOW()
		FROM leads l
		WHERE ws.lead_id = l.id
		  AND l.linkedin_id = ANY($1)
		  AND ws.status = $2
		  AND ws.step_type = $3
	`, pq.Array(providerIDs), domain.StepPending, domain.StepCheckMessageReply)
	if err != nil {
		return 0, fmt.Errorf("mark replied: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
