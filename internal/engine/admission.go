package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/ignite/outreach-engine/internal/domain"
)

// CheckScheduledCampaigns starts every SCHEDULED (or DRAFT) campaign whose
// start date has arrived. Failures are per-campaign; one bad campaign never
// blocks the rest. Returns the number of campaigns started.
func (e *Engine) CheckScheduledCampaigns(ctx context.Context) (int, error) {
	due, err := e.campaigns.ListScheduledDue(ctx, e.now())
	if err != nil {
		return 0, fmt.Errorf("list scheduled campaigns: %w", err)
	}

	started := 0
	for _, c := range due {
		if err := e.starter.Start(ctx, c.ID); err != nil {
			log.Printf("[Engine] start campaign %s: %v", c.ID, err)
			continue
		}
		log.Printf("[Engine] campaign %s started (start date reached)", c.ID)
		started++
	}
	return started, nil
}

// StartDailyLeads admits new leads into every running campaign: up to the
// campaign's daily cap of not-yet-started leads each get their first
// workflow step, chosen at random so list order carries no bias. A campaign
// with no unstarted leads left is marked COMPLETED; its in-flight steps
// still run to the end of their paths.
// Returns the total number of leads admitted.
func (e *Engine) StartDailyLeads(ctx context.Context) (int, error) {
	running, err := e.campaigns.ListInProgress(ctx)
	if err != nil {
		return 0, fmt.Errorf("list running campaigns: %w", err)
	}

	total := 0
	for _, c := range running {
		n, err := e.admitLeads(ctx, &c)
		if err != nil {
			log.Printf("[Engine] admit leads for campaign %s: %v", c.ID, err)
			continue
		}
		total += n
	}
	return total, nil
}

func (e *Engine) admitLeads(ctx context.Context, c *domain.Campaign) (int, error) {
	leads, err := e.leads.ListByCampaign(ctx, c.ID)
	if err != nil {
		return 0, err
	}
	if len(leads) == 0 {
		log.Printf("[Engine] campaign %s has no leads, marking COMPLETED", c.ID)
		return 0, e.campaigns.UpdateStatus(ctx, c.ID, domain.CampaignCompleted)
	}

	leadIDs := make([]string, len(leads))
	for i := range leads {
		leadIDs[i] = leads[i].ID
	}
	steps, err := e.steps.ListByLeads(ctx, leadIDs, domain.WorkflowTypeCampaign)
	if err != nil {
		return 0, err
	}

	started := make(map[string]bool, len(steps))
	for i := range steps {
		started[steps[i].LeadID] = true
	}

	var unstarted []domain.Lead
	for i := range leads {
		if !started[leads[i].ID] {
			unstarted = append(unstarted, leads[i])
		}
	}

	if len(unstarted) == 0 {
		log.Printf("[Engine] campaign %s has no unstarted leads, marking COMPLETED", c.ID)
		return 0, e.campaigns.UpdateStatus(ctx, c.ID, domain.CampaignCompleted)
	}

	wf, err := e.loadWorkflow(ctx, c.WorkflowKey)
	if err != nil {
		return 0, err
	}
	entry := wf.EntryNode()
	if entry == nil {
		return 0, fmt.Errorf("workflow %s has no executable nodes", c.WorkflowKey)
	}

	e.shuffle(len(unstarted), func(i, j int) {
		unstarted[i], unstarted[j] = unstarted[j], unstarted[i]
	})
	if limit := c.AdmissionCap(); len(unstarted) > limit {
		unstarted = unstarted[:limit]
	}

	now := e.now()
	admitted := 0
	for i := range unstarted {
		step := &domain.WorkflowStep{
			OrganizationID: unstarted[i].OrganizationID,
			LeadID:         unstarted[i].ID,
			IDInWorkflow:   entry.ID,
			StepIndex:      0,
			StepType:       domain.StepType(entry.Data.Type),
			Status:         domain.StepPending,
			ExecuteAfter:   now.Unix(),
		}
		if err := e.steps.Create(ctx, step); err != nil {
			log.Printf("[Engine] create entry step for lead %s: %v", unstarted[i].ID, err)
			continue
		}
		admitted++
	}
	log.Printf("[Engine] campaign %s admitted %d lead(s)", c.ID, admitted)
	return admitted, nil
}
