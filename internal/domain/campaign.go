package domain

import "time"

// CampaignStatus is the lifecycle state of an outreach campaign.
type CampaignStatus string

const (
	CampaignDraft      CampaignStatus = "DRAFT"
	CampaignScheduled  CampaignStatus = "SCHEDULED"
	CampaignInProgress CampaignStatus = "IN_PROGRESS"
	CampaignPaused     CampaignStatus = "PAUSED"
	CampaignCompleted  CampaignStatus = "COMPLETED"
	CampaignFailed     CampaignStatus = "FAILED"
)

// Campaign is an outreach campaign: a sender account, a prospect list, an
// immutable workflow document, and the rate-limit counters the engine
// maintains while connection requests go out.
type Campaign struct {
	ID                 string
	OrganizationID     string
	ConnectedAccountID string
	ProspectListKey    string
	WorkflowKey        string
	Status             CampaignStatus
	StartDate          *time.Time
	LeadsPerDay        int

	// Connection-request counters. The reset timestamps advance in the same
	// write that zeroes the counter; see ratelimit.Check.
	RequestsSentThisDay     int
	RequestsSentThisWeek    int
	LastDailyRequestsReset  *time.Time
	LastWeeklyRequestsReset *time.Time

	IsDeleted bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsRunning reports whether the campaign is actively progressing leads.
func (c *Campaign) IsRunning() bool { return c.Status == CampaignInProgress }

// IsPaused reports whether the campaign is paused.
func (c *Campaign) IsPaused() bool { return c.Status == CampaignPaused }

// DefaultLeadsPerDay is used when a campaign has no explicit admission cap.
const DefaultLeadsPerDay = 10

// AdmissionCap returns the number of leads admitted per daily tick.
func (c *Campaign) AdmissionCap() int {
	if c.LeadsPerDay <= 0 {
		return DefaultLeadsPerDay
	}
	return c.LeadsPerDay
}
