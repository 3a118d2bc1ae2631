package campaign

import (
	"context"

	"github.com/ignite/outreach-engine/internal/domain"
)

// Repository defines the campaign data access the service needs.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single campaign, including deleted ones (the service
	// decides how deletion affects each operation). Returns ErrNotFound if
	// it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Campaign, error)

	// UpdateStatus transitions a campaign's status.
	UpdateStatus(ctx context.Context, id string, status domain.CampaignStatus) error
}

// LeadRepository defines the lead access needed for campaign start.
type LeadRepository interface {
	// Create inserts a lead, skipping silently when one already exists for
	// the campaign (restarts re-run ingestion).
	Create(ctx context.Context, lead *domain.Lead) error
}

// AccountRepository resolves connected sender accounts.
type AccountRepository interface {
	// Get returns the account or ErrNotFound.
	Get(ctx context.Context, id string) (*domain.ConnectedAccount, error)
}
