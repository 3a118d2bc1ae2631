package engine

import (
	"context"
	"time"

	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/ratelimit"
)

// CampaignStore is the campaign access the engine needs. Implementations
// must exclude deleted campaigns from the List* queries.
type CampaignStore interface {
	Get(ctx context.Context, id string) (*domain.Campaign, error)

	// ListScheduledDue returns SCHEDULED and DRAFT campaigns whose
	// start_date is set and has passed.
	ListScheduledDue(ctx context.Context, now time.Time) ([]domain.Campaign, error)

	// ListInProgress returns campaigns in IN_PROGRESS status.
	ListInProgress(ctx context.Context) ([]domain.Campaign, error)

	UpdateStatus(ctx context.Context, id string, status domain.CampaignStatus) error

	// ApplyCounterPatch writes the non-nil counter fields in one UPDATE.
	ApplyCounterPatch(ctx context.Context, id string, patch ratelimit.CounterPatch) error
}

// LeadStore is the lead access the engine needs.
type LeadStore interface {
	Get(ctx context.Context, id string) (*domain.Lead, error)
	ListByCampaign(ctx context.Context, campaignID string) ([]domain.Lead, error)

	// Enrich updates the non-empty enrichment fields of a lead.
	Enrich(ctx context.Context, id string, e domain.Enrichment) error
}

// AccountStore is the connected-account access the engine needs.
type AccountStore interface {
	Get(ctx context.Context, id string) (*domain.ConnectedAccount, error)

	// SetBlockedUntil records the sender cooldown deadline in the account
	// metadata.
	SetBlockedUntil(ctx context.Context, id string, until time.Time) error
}

// StepStore is the workflow-step ledger.
type StepStore interface {
	Get(ctx context.Context, id string) (*domain.WorkflowStep, error)
	Create(ctx context.Context, step *domain.WorkflowStep) error

	// ListDue returns PENDING steps with execute_after <= now in store
	// order (execute_after, then creation order).
	ListDue(ctx context.Context, now time.Time) ([]domain.WorkflowStep, error)

	// ListByLeads returns all steps of the given leads under a workflow
	// type.
	ListByLeads(ctx context.Context, leadIDs []string, workflowType string) ([]domain.WorkflowStep, error)

	// ListFailedByLeads returns FAILED steps of the given leads.
	ListFailedByLeads(ctx context.Context, leadIDs []string, workflowType string) ([]domain.WorkflowStep, error)

	// MarkComplete transitions a step to COMPLETE with its execution result.
	MarkComplete(ctx context.Context, id string, rawResponse map[string]interface{}) error

	// MarkFailed transitions a step to FAILED, incrementing retries and
	// recording the error message in raw_response.
	MarkFailed(ctx context.Context, id string, message string) error

	// Rearm transitions a FAILED step back to PENDING with a new due time.
	Rearm(ctx context.Context, id string, executeAfter int64) error

	// Defer pushes a PENDING step's due time forward without changing its
	// status.
	Defer(ctx context.Context, id string, executeAfter int64) error

	// Reschedule pushes a PENDING step's due time forward and increments
	// retries. Used to re-run the same polling step.
	Reschedule(ctx context.Context, id string, executeAfter int64) error

	// DeferPendingConnectionRequests pushes every PENDING
	// send_connection_request step of every lead whose campaign sends
	// through the given account to at least executeAfter. Idempotent.
	DeferPendingConnectionRequests(ctx context.Context, accountID string, executeAfter int64) (int, error)

	// MarkReplied sets hasReplied=true on every PENDING check_message_reply
	// step of leads matching the given provider ids. Returns the number of
	// steps updated.
	MarkReplied(ctx context.Context, providerIDs []string) (int, error)
}

// Starter starts campaigns; implemented by the campaign service.
type Starter interface {
	Start(ctx context.Context, campaignID string) error
}
