package engine

import (
	"context"
	"encoding/json"
	"log"

	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/workflow"
)

// planSuccessors schedules what follows a completed action step.
//
// A step whose outcome is asynchronous (connection accepted, message
// replied) gets a polling step instead of direct successors: the poll
// carries the resolved outgoing edges in its raw response so evaluation
// never re-reads the graph. Everything else fans out directly, one pending
// step per outgoing edge, due after the edge's delay.
func (e *Engine) planSuccessors(ctx context.Context, sc *stepCtx, raw map[string]interface{}) error {
	nexts := sc.wf.Outgoing(sc.step.IDInWorkflow)
	if len(nexts) == 0 {
		return nil
	}

	if pollType, ok := pollTypeFor(sc.step.StepType); ok {
		return e.armPolling(ctx, sc, pollType, nexts, raw)
	}

	now := e.now()
	for _, next := range nexts {
		node := sc.wf.FindNode(next.NodeID)
		if node == nil {
			log.Printf("[Engine] edge %s targets unknown node %s, skipping", next.EdgeID, next.NodeID)
			continue
		}
		step := &domain.WorkflowStep{
			OrganizationID: sc.lead.OrganizationID,
			LeadID:         sc.lead.ID,
			IDInWorkflow:   node.ID,
			StepIndex:      sc.step.StepIndex + 1,
			StepType:       domain.StepType(node.Data.Type),
			Status:         domain.StepPending,
			ExecuteAfter:   (now.UnixMilli() + next.DelayMs) / 1000,
		}
		if err := e.steps.Create(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

// armPolling creates the polling step that observes an asynchronous outcome.
// The first check runs one poll interval out; the raw response denormalizes
// the outgoing edges plus the polling start time in milliseconds.
func (e *Engine) armPolling(ctx context.Context, sc *stepCtx, pollType domain.StepType, nexts []workflow.NextStep, raw map[string]interface{}) error {
	now := e.now()
	pollRaw := map[string]interface{}{
		domain.RawPollingStartedAt: now.UnixMilli(),
		domain.RawNextSteps:        nexts,
	}
	if raw != nil {
		if id, ok := raw[domain.RawProviderID]; ok {
			pollRaw[domain.RawProviderID] = id
		}
	}
	return e.steps.Create(ctx, &domain.WorkflowStep{
		OrganizationID: sc.lead.OrganizationID,
		LeadID:         sc.lead.ID,
		IDInWorkflow:   sc.step.IDInWorkflow,
		StepIndex:      sc.step.StepIndex + 1,
		StepType:       pollType,
		Status:         domain.StepPending,
		ExecuteAfter:   now.Add(pollInterval).Unix(),
		RawResponse:    pollRaw,
	})
}

// scheduleBranch creates the step for the branch matching the polling
// outcome. The branch delay was consumed by the polling window, so the new
// step is due immediately. No matching branch terminates the lead's path.
func (e *Engine) scheduleBranch(ctx context.Context, sc *stepCtx, nexts []workflow.NextStep, outcome string) error {
	branch := workflow.PickBranch(nexts, outcome)
	if branch == nil {
		return nil
	}
	node := sc.wf.FindNode(branch.NodeID)
	if node == nil {
		log.Printf("[Engine] branch %s targets unknown node %s, terminating path", outcome, branch.NodeID)
		return nil
	}
	return e.steps.Create(ctx, &domain.WorkflowStep{
		OrganizationID: sc.lead.OrganizationID,
		LeadID:         sc.lead.ID,
		IDInWorkflow:   node.ID,
		StepIndex:      sc.step.StepIndex + 1,
		StepType:       domain.StepType(node.Data.Type),
		Status:         domain.StepPending,
		ExecuteAfter:   e.now().Unix(),
	})
}

// pollTypeFor maps an action kind to the polling kind that observes its
// outcome.
func pollTypeFor(t domain.StepType) (domain.StepType, bool) {
	switch t {
	case domain.StepSendConnectionRequest:
		return domain.StepCheckConnectionStatus, true
	case domain.StepSendFollowup:
		return domain.StepCheckMessageReply, true
	}
	return "", false
}

// decodeNextSteps reads the denormalized outgoing edges back out of a
// polling step's raw response.
func decodeNextSteps(step *domain.WorkflowStep) []workflow.NextStep {
	rawVal, ok := step.RawResponse[domain.RawNextSteps]
	if !ok {
		return nil
	}
	data, err := json.Marshal(rawVal)
	if err != nil {
		return nil
	}
	var out []workflow.NextStep
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
