package domain

import "time"

// MetaBlockedUntil is the connected-account metadata key holding the
// RFC-3339 timestamp until which connection requests are blocked.
const MetaBlockedUntil = "connection_request_blocked_until"

// ConnectedAccount is a provider sender account owned by an organization.
type ConnectedAccount struct {
	ID                string
	OrganizationID    string
	Provider          string
	ProviderAccountID string
	Status            string
	Metadata          map[string]interface{}
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// BlockedUntil returns the sender cooldown deadline, if one is recorded.
func (a *ConnectedAccount) BlockedUntil() (time.Time, bool) {
	if a.Metadata == nil {
		return time.Time{}, false
	}
	raw, ok := a.Metadata[MetaBlockedUntil].(string)
	if !ok || raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SetBlockedUntil records a sender cooldown deadline in the metadata map.
func (a *ConnectedAccount) SetBlockedUntil(t time.Time) {
	if a.Metadata == nil {
		a.Metadata = make(map[string]interface{})
	}
	a.Metadata[MetaBlockedUntil] = t.UTC().Format(time.RFC3339)
}
