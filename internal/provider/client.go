// Package provider wraps the third-party LinkedIn API the engine sends
// outreach actions through. The engine depends only on the Client interface;
// the HTTP implementation lives in httpclient.go and returns typed *Error
// values so callers can branch on provider codes.
package provider

import "context"

// Client is the engine-facing provider contract. accountID is the provider
// id of the connected sender account every action is performed as.
type Client interface {
	// VisitProfile resolves a member by public identifier, optionally
	// notifying them of the visit, and returns the enriched profile.
	VisitProfile(ctx context.Context, accountID, identifier string, notify bool) (*Profile, error)

	// SendInvitation sends a connection request with an optional message.
	SendInvitation(ctx context.Context, accountID, providerID, message string) error

	// StartOrContinueChat sends a message to the given members, creating the
	// conversation if needed.
	StartOrContinueChat(ctx context.Context, accountID string, providerIDs []string, text string) error

	// ReactToPost adds a reaction to a post.
	ReactToPost(ctx context.Context, accountID, postID, reactionType string) error

	// CommentPost comments on a post.
	CommentPost(ctx context.Context, accountID, postID, text string) error

	// ListRecentPosts returns up to limit posts by the member from the last
	// lastDays days.
	ListRecentPosts(ctx context.Context, accountID, identifier string, lastDays, limit int) ([]Post, error)

	// ListInvitationsSent returns the account's pending sent invitations.
	ListInvitationsSent(ctx context.Context, accountID string) ([]Invitation, error)

	// CancelInvitation withdraws a pending invitation.
	CancelInvitation(ctx context.Context, accountID, invitationID string) error

	// IsConnected reports whether the member is a first-degree connection.
	IsConnected(ctx context.Context, accountID, identifier string) (bool, error)
}
