package domain

import "time"

// Lead is a single prospect imported into a campaign. Enrichment fields are
// filled in as profile visits return data from the provider.
type Lead struct {
	ID               string
	OrganizationID   string
	CampaignID       string
	LinkedInURL      string
	PublicIdentifier string

	FirstName  string
	LastName   string
	Title      string
	Company    string
	Email      string
	Phone      string
	Location   string
	LinkedInID string // provider-internal id, resolved on first profile visit

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Enrichment is the set of lead attributes a profile visit may update.
// Empty fields are left untouched by the repository.
type Enrichment struct {
	FirstName  string
	LastName   string
	Title      string
	Company    string
	Email      string
	Phone      string
	Location   string
	LinkedInID string
}
