package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/workflow"
)

// runPolling evaluates a polling step. Three outcomes:
//
//   - the awaited event happened: the poll completes and the matching branch
//     is scheduled (a reply terminates the path instead);
//   - the accepted-branch delay has elapsed without the event: the poll
//     completes as timed out and the not_accepted branch is scheduled;
//   - neither yet: the same step is rescheduled one poll interval out.
func (e *Engine) runPolling(ctx context.Context, sc *stepCtx) error {
	step := sc.step
	nexts := decodeNextSteps(step)
	startedMs := step.RawInt64(domain.RawPollingStartedAt)
	timeoutMs := workflow.AcceptedTimeout(nexts)
	timedOut := e.now().UnixMilli()-startedMs > timeoutMs

	switch step.StepType {
	case domain.StepCheckConnectionStatus:
		connected, err := e.provider.IsConnected(ctx, sc.account.ProviderAccountID, sc.lead.PublicIdentifier)
		if err != nil {
			return e.steps.MarkFailed(ctx, step.ID, fmt.Sprintf("check connection: %v", err))
		}
		if connected {
			if err := e.completePoll(ctx, sc, map[string]interface{}{
				domain.RawIsConnected:           true,
				domain.RawShouldContinuePolling: false,
			}); err != nil {
				return err
			}
			return e.scheduleBranch(ctx, sc, nexts, workflow.OutcomeAccepted)
		}
		if timedOut {
			return e.timeoutPoll(ctx, sc, nexts)
		}
		return e.repoll(ctx, sc)

	case domain.StepCheckMessageReply:
		if step.RawBool(domain.RawHasReplied) {
			// A reply ends the automated path for this lead.
			log.Printf("[Engine] lead %s replied, ending workflow path", sc.lead.ID)
			return e.completePoll(ctx, sc, map[string]interface{}{
				domain.RawHasReplied:            true,
				domain.RawShouldContinuePolling: false,
			})
		}
		if timedOut {
			return e.timeoutPoll(ctx, sc, nexts)
		}
		return e.repoll(ctx, sc)
	}

	return e.steps.MarkFailed(ctx, step.ID, fmt.Sprintf("unknown polling type %q", step.StepType))
}

// completePoll finishes a polling step, merging the outcome fields over the
// carried raw response.
func (e *Engine) completePoll(ctx context.Context, sc *stepCtx, outcome map[string]interface{}) error {
	raw := make(map[string]interface{}, len(sc.step.RawResponse)+len(outcome))
	for k, v := range sc.step.RawResponse {
		raw[k] = v
	}
	for k, v := range outcome {
		raw[k] = v
	}
	return e.steps.MarkComplete(ctx, sc.step.ID, raw)
}

func (e *Engine) timeoutPoll(ctx context.Context, sc *stepCtx, nexts []workflow.NextStep) error {
	if err := e.completePoll(ctx, sc, map[string]interface{}{
		domain.RawHasTimedOut:           true,
		domain.RawShouldContinuePolling: false,
	}); err != nil {
		return err
	}
	return e.scheduleBranch(ctx, sc, nexts, workflow.OutcomeNotAccepted)
}

// repoll reschedules the same poll row one interval out, counting the
// attempt. The raw response stays on the row untouched, so the polling
// window keeps its original anchor and the denormalized edges.
func (e *Engine) repoll(ctx context.Context, sc *stepCtx) error {
	return e.steps.Reschedule(ctx, sc.step.ID, e.now().Add(pollInterval).Unix())
}
