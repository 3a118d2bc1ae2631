package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/service/campaign"
)

// AccountRepo implements campaign.AccountRepository and engine.AccountStore.
type AccountRepo struct{ db *sql.DB }

// NewAccountRepo creates a Postgres-backed connected-account repository.
func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{db: db} }

func (r *AccountRepo) Get(ctx context.Context, id string) (*domain.ConnectedAccount, error) {
	a := &domain.ConnectedAccount{}
	var metadataJSON []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, provider, provider_account_id, status,
		       COALESCE(metadata, '{}'::jsonb), created_at, updated_at
		FROM connected_accounts WHERE id = $1
	`, id).Scan(
		&a.ID, &a.OrganizationID, &a.Provider, &a.ProviderAccountID, &a.Status,
		&metadataJSON, &a.CreatedAt, &a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if err := json.Unmarshal(metadataJSON, &a.Metadata); err != nil {
		return nil, fmt.Errorf("parse account metadata: %w", err)
	}
	return a, nil
}

// SetBlockedUntil records the connection-request cooldown deadline in the
// account metadata, preserving the other metadata keys.
func (r *AccountRepo) SetBlockedUntil(ctx context.Context, id string, until time.Time) error {
	value, _ := json.Marshal(until.UTC().Format(time.RFC3339))
	res, err := r.db.ExecContext(ctx, `
		UPDATE connected_accounts
		SET metadata = jsonb_set(COALESCE(metadata, '{}'::jsonb), $2, $3::jsonb, true),
		    updated_at = NOW()
		WHERE id = $1
	`, id, fmt.Sprintf("{%s}", domain.MetaBlockedUntil), value)
	if err != nil {
		return fmt.Errorf("set account cooldown: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}
