package provider

import "time"

// Profile is the provider's view of a LinkedIn member.
type Profile struct {
	ProviderID       string   `json:"provider_id"`
	PublicIdentifier string   `json:"public_identifier"`
	FirstName        string   `json:"first_name"`
	LastName         string   `json:"last_name"`
	Headline         string   `json:"headline"`
	Location         string   `json:"location"`
	CurrentCompany   string   `json:"current_company"`
	Emails           []string `json:"emails"`
	PhoneNumbers     []string `json:"phone_numbers"`
	IsConnection     bool     `json:"is_connection"`
}

// Post is a member activity post.
type Post struct {
	ID              string    `json:"id"`
	AuthorFirstName string    `json:"author_first_name"`
	Text            string    `json:"text"`
	PostedAt        time.Time `json:"posted_at"`
}

// Invitation is a pending connection request sent by the account.
type Invitation struct {
	ID                string `json:"id"`
	InviteeProviderID string `json:"invitee_provider_id"`
	Message           string `json:"message"`
}

// Reaction types accepted by ReactToPost.
const (
	ReactionLike       = "like"
	ReactionCelebrate  = "celebrate"
	ReactionSupport    = "support"
	ReactionLove       = "love"
	ReactionInsightful = "insightful"
	ReactionFunny      = "funny"
)

// ValidReaction reports whether r is a known reaction type.
func ValidReaction(r string) bool {
	switch r {
	case ReactionLike, ReactionCelebrate, ReactionSupport, ReactionLove, ReactionInsightful, ReactionFunny:
		return true
	}
	return false
}
