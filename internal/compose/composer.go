package compose

import "context"

// Kind selects the flavor of copy to generate.
type Kind string

const (
	KindConnectionMessage Kind = "connection_message"
	KindFollowupMessage   Kind = "followup_message"
	KindComment           Kind = "comment"
)

// Request describes the lead context for AI generation.
type Request struct {
	Kind      Kind
	FirstName string
	LastName  string
	Title     string
	Company   string
	PostText  string // for comments: the post being commented on
}

// Composer generates message copy. Implementations must be safe for
// concurrent use.
type Composer interface {
	Compose(ctx context.Context, req Request) (string, error)
}

// Static is a Composer that always returns the default text for the kind.
// Used when AI generation is disabled or unconfigured.
type Static struct{}

func (Static) Compose(_ context.Context, req Request) (string, error) {
	switch req.Kind {
	case KindFollowupMessage:
		return DefaultFollowupMessage, nil
	case KindComment:
		return DefaultComment, nil
	default:
		return DefaultConnectionMessage, nil
	}
}
