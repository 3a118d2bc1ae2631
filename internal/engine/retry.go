package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/ignite/outreach-engine/internal/domain"
)

// RetryFailedSteps re-arms failed steps of running campaigns and executes
// them immediately. A retry that fails again is logged and left for the
// next pass. Returns the number of steps re-armed.
func (e *Engine) RetryFailedSteps(ctx context.Context) (int, error) {
	running, err := e.campaigns.ListInProgress(ctx)
	if err != nil {
		return 0, fmt.Errorf("list running campaigns: %w", err)
	}

	now := e.now()
	total := 0
	for _, c := range running {
		leads, err := e.leads.ListByCampaign(ctx, c.ID)
		if err != nil {
			log.Printf("[Engine] list leads for campaign %s: %v", c.ID, err)
			continue
		}
		if len(leads) == 0 {
			continue
		}
		leadIDs := make([]string, len(leads))
		for i := range leads {
			leadIDs[i] = leads[i].ID
		}

		failed, err := e.steps.ListFailedByLeads(ctx, leadIDs, domain.WorkflowTypeCampaign)
		if err != nil {
			log.Printf("[Engine] list failed steps for campaign %s: %v", c.ID, err)
			continue
		}
		for i := range failed {
			if err := e.steps.Rearm(ctx, failed[i].ID, now.Unix()); err != nil {
				log.Printf("[Engine] rearm step %s: %v", failed[i].ID, err)
				continue
			}
			total++

			retried := failed[i]
			retried.Status = domain.StepPending
			retried.ExecuteAfter = now.Unix()
			if err := e.ExecuteStep(ctx, &retried); err != nil {
				log.Printf("[Engine] retry step %s: %v", retried.ID, err)
			}
		}
	}
	if total > 0 {
		log.Printf("[Engine] re-armed %d failed step(s)", total)
	}
	return total, nil
}
