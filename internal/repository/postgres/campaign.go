// Package postgres implements the engine's store interfaces against
// PostgreSQL using plain database/sql.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/ratelimit"
	"github.com/ignite/outreach-engine/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository and engine.CampaignStore.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

const campaignColumns = `id, organization_id, connected_account_id, prospect_list_key,
	workflow_key, status, start_date, leads_per_day,
	requests_sent_this_day, requests_sent_this_week,
	last_daily_requests_reset, last_weekly_requests_reset,
	is_deleted, created_at, updated_at`

func scanCampaign(row interface{ Scan(...interface{}) error }) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	var accountID, listKey, wfKey sql.NullString
	var startDate, dailyReset, weeklyReset sql.NullTime
	err := row.Scan(
		&c.ID, &c.OrganizationID, &accountID, &listKey,
		&wfKey, &c.Status, &startDate, &c.LeadsPerDay,
		&c.RequestsSentThisDay, &c.RequestsSentThisWeek,
		&dailyReset, &weeklyReset,
		&c.IsDeleted, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.ConnectedAccountID = accountID.String
	c.ProspectListKey = listKey.String
	c.WorkflowKey = wfKey.String
	if startDate.Valid {
		t := startDate.Time
		c.StartDate = &t
	}
	if dailyReset.Valid {
		t := dailyReset.Time
		c.LastDailyRequestsReset = &t
	}
	if weeklyReset.Valid {
		t := weeklyReset.Time
		c.LastWeeklyRequestsReset = &t
	}
	return c, nil
}

func (r *CampaignRepo) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) list(ctx context.Context, where string, args ...interface{}) ([]domain.Campaign, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE is_deleted = FALSE AND `+where+` ORDER BY created_at`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// ListScheduledDue returns non-deleted SCHEDULED/DRAFT campaigns whose
// start_date has arrived.
func (r *CampaignRepo) ListScheduledDue(ctx context.Context, now time.Time) ([]domain.Campaign, error) {
	return r.list(ctx,
		`status IN ($1, $2) AND start_date IS NOT NULL AND start_date <= $3`,
		domain.CampaignScheduled, domain.CampaignDraft, now)
}

// ListInProgress returns non-deleted IN_PROGRESS campaigns.
func (r *CampaignRepo) ListInProgress(ctx context.Context) ([]domain.Campaign, error) {
	return r.list(ctx, `status = $1`, domain.CampaignInProgress)
}

func (r *CampaignRepo) UpdateStatus(ctx context.Context, id string, status domain.CampaignStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE campaigns SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	if err != nil {
		return fmt.Errorf("update campaign status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

// ApplyCounterPatch writes the non-nil counter fields in a single UPDATE so
// boundary resets and increments can never race each other apart.
func (r *CampaignRepo) ApplyCounterPatch(ctx context.Context, id string, patch ratelimit.CounterPatch) error {
	if patch.Empty() {
		return nil
	}

	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}
	idx := 1
	add := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}

	if patch.RequestsSentThisDay != nil {
		add("requests_sent_this_day", *patch.RequestsSentThisDay)
	}
	if patch.RequestsSentThisWeek != nil {
		add("requests_sent_this_week", *patch.RequestsSentThisWeek)
	}
	if patch.LastDailyRequestsReset != nil {
		add("last_daily_requests_reset", *patch.LastDailyRequestsReset)
	}
	if patch.LastWeeklyRequestsReset != nil {
		add("last_weekly_requests_reset", *patch.LastWeeklyRequestsReset)
	}

	q := fmt.Sprintf("UPDATE campaigns SET %s WHERE id = $%d", strings.Join(sets, ", "), idx)
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("apply counter patch: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}
