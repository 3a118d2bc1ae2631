package domain

import "time"

// StepStatus is the execution state of a workflow step.
type StepStatus string

const (
	StepPending  StepStatus = "PENDING"
	StepComplete StepStatus = "COMPLETE"
	StepFailed   StepStatus = "FAILED"
)

// StepType identifies the action a workflow step performs. The first block
// mirrors the workflow node kinds; the check_* kinds are internal polling
// steps the planner creates to observe asynchronous outcomes.
type StepType string

const (
	StepProfileVisit          StepType = "profile_visit"
	StepSendConnectionRequest StepType = "send_connection_request"
	StepSendFollowup          StepType = "send_followup"
	StepLikePost              StepType = "like_post"
	StepCommentPost           StepType = "comment_post"
	StepWithdrawRequest       StepType = "withdraw_request"
	StepWebhook               StepType = "webhook"
	StepSendInmail            StepType = "send_inmail"

	StepCheckConnectionStatus StepType = "check_connection_status"
	StepCheckMessageReply     StepType = "check_message_reply"
)

// IsPolling reports whether the step kind observes an asynchronous outcome
// rather than performing a provider action.
func (t StepType) IsPolling() bool {
	return t == StepCheckConnectionStatus || t == StepCheckMessageReply
}

// WorkflowTypeCampaign tags steps that belong to the campaign workflow
// ledger, as opposed to future workflow families sharing the table.
const WorkflowTypeCampaign = "CAMPAIGN_WORKFLOW"

// Keys used inside WorkflowStep.RawResponse. The camelCase spelling is part
// of the persisted format.
const (
	RawProviderID            = "providerId"
	RawPollingStartedAt      = "pollingStartedAt"
	RawNextSteps             = "nextSteps"
	RawIsConnected           = "isConnected"
	RawHasReplied            = "hasReplied"
	RawShouldContinuePolling = "shouldContinuePolling"
	RawHasTimedOut           = "hasTimedOut"
	RawError                 = "error"
)

// WorkflowStep is one scheduled unit of work for one lead at one node of the
// campaign graph. It is the scheduler's ledger: a step in PENDING state is
// eligible for execution once ExecuteAfter (Unix seconds) has passed.
type WorkflowStep struct {
	ID             string
	OrganizationID string
	LeadID         string
	IDInWorkflow   string // node id within the workflow document
	StepIndex      int    // monotonic along a lead's realized path
	WorkflowType   string
	StepType       StepType
	Status         StepStatus
	Retries        int
	ExecuteAfter   int64 // Unix seconds
	LastTryAt      *time.Time
	RawResponse    map[string]interface{}
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Due reports whether a pending step is eligible to run at the given time.
func (s *WorkflowStep) Due(now time.Time) bool {
	return s.Status == StepPending && s.ExecuteAfter <= now.Unix()
}

// RawString returns a string field from RawResponse.
func (s *WorkflowStep) RawString(key string) string {
	if s.RawResponse == nil {
		return ""
	}
	v, _ := s.RawResponse[key].(string)
	return v
}

// RawBool returns a bool field from RawResponse.
func (s *WorkflowStep) RawBool(key string) bool {
	if s.RawResponse == nil {
		return false
	}
	v, _ := s.RawResponse[key].(bool)
	return v
}

// RawInt64 returns an integer field from RawResponse, tolerating the
// float64 representation JSON round-trips produce.
func (s *WorkflowStep) RawInt64(key string) int64 {
	if s.RawResponse == nil {
		return 0
	}
	switch v := s.RawResponse[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}
