package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addLead(f *fixture, i int) *domain.Lead {
	l := &domain.Lead{
		ID:               fmt.Sprintf("lead-x%d", i),
		OrganizationID:   "org-1",
		CampaignID:       "camp-1",
		PublicIdentifier: fmt.Sprintf("prospect-%d", i),
	}
	f.leads.rows[l.ID] = l
	f.steps.accountOf[l.ID] = "acc-1"
	return l
}

func TestStartDailyLeadsAdmitsUpToCap(t *testing.T) {
	f := newFixture(outreachDoc)
	f.campaigns.rows["camp-1"].LeadsPerDay = 3
	for i := 0; i < 5; i++ {
		addLead(f, i)
	}

	n, err := f.engine.StartDailyLeads(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	entries := f.steps.pendingOfType(domain.StepProfileVisit)
	require.Len(t, entries, 3)
	for _, s := range entries {
		assert.Equal(t, "visit", s.IDInWorkflow, "entry node is the zero-incoming-edge node")
		assert.Zero(t, s.StepIndex)
		assert.Equal(t, f.now.Unix(), s.ExecuteAfter)
	}
}

func TestStartDailyLeadsSkipsStartedLeads(t *testing.T) {
	f := newFixture(outreachDoc)
	started := addLead(f, 0)
	fresh := addLead(f, 1)

	s := &domain.WorkflowStep{
		LeadID: started.ID, IDInWorkflow: "visit",
		StepType: domain.StepProfileVisit, Status: domain.StepComplete,
	}
	require.NoError(t, f.steps.Create(context.Background(), s))

	n, err := f.engine.StartDailyLeads(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n, "lead-1 and the fresh lead admitted, started lead skipped")

	for _, p := range f.steps.pendingOfType(domain.StepProfileVisit) {
		assert.NotEqual(t, started.ID, p.LeadID)
	}
	_ = fresh
}

func TestStartDailyLeadsCompletesExhaustedCampaign(t *testing.T) {
	f := newFixture(outreachDoc)
	s := &domain.WorkflowStep{
		LeadID: "lead-1", IDInWorkflow: "visit",
		StepType: domain.StepProfileVisit, Status: domain.StepComplete,
	}
	require.NoError(t, f.steps.Create(context.Background(), s))

	n, err := f.engine.StartDailyLeads(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	c, _ := f.campaigns.Get(context.Background(), "camp-1")
	assert.Equal(t, domain.CampaignCompleted, c.Status)
}

func TestStartDailyLeadsCompletesWhenAllLeadsStarted(t *testing.T) {
	f := newFixture(outreachDoc)
	f.addPendingStep("cr", domain.StepSendConnectionRequest, 1)

	n, err := f.engine.StartDailyLeads(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	c, _ := f.campaigns.Get(context.Background(), "camp-1")
	assert.Equal(t, domain.CampaignCompleted, c.Status,
		"admission is done; in-flight steps run the paths out")
	require.Len(t, f.steps.pendingOfType(domain.StepSendConnectionRequest), 1,
		"the in-flight step stays scheduled")
}

func TestStartDailyLeadsCompletesCampaignWithoutLeads(t *testing.T) {
	f := newFixture(outreachDoc)
	f.campaigns.rows["camp-empty"] = &domain.Campaign{
		ID:             "camp-empty",
		OrganizationID: "org-1",
		WorkflowKey:    "wf-1",
		Status:         domain.CampaignInProgress,
		LeadsPerDay:    10,
	}

	n, err := f.engine.StartDailyLeads(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only camp-1's lead admitted")

	c, _ := f.campaigns.Get(context.Background(), "camp-empty")
	assert.Equal(t, domain.CampaignCompleted, c.Status)
}

func TestCheckScheduledCampaigns(t *testing.T) {
	f := newFixture(outreachDoc)
	startDate := f.now.Add(-time.Hour)
	future := f.now.Add(48 * time.Hour)
	f.campaigns.rows["camp-due"] = &domain.Campaign{
		ID: "camp-due", Status: domain.CampaignScheduled, StartDate: &startDate,
	}
	f.campaigns.rows["camp-later"] = &domain.Campaign{
		ID: "camp-later", Status: domain.CampaignScheduled, StartDate: &future,
	}

	n, err := f.engine.CheckScheduledCampaigns(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"camp-due"}, f.starter.started)
}

func TestRetryFailedStepsExecutesImmediately(t *testing.T) {
	f := newFixture(outreachDoc)
	step := f.addPendingStep("visit", domain.StepProfileVisit, 0)
	require.NoError(t, f.steps.MarkFailed(context.Background(), step.ID, "transient"))

	n, err := f.engine.RetryFailedSteps(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.True(t, f.provider.called("VisitProfile"), "re-armed step runs in the same pass")
	assert.Equal(t, domain.StepComplete, f.steps.byID(step.ID).Status)
}

func TestRetryFailedStepsNeverAbandons(t *testing.T) {
	f := newFixture(outreachDoc)
	step := f.addPendingStep("visit", domain.StepProfileVisit, 0)
	require.NoError(t, f.steps.MarkFailed(context.Background(), step.ID, "hard"))

	f.provider.visitFn = func(accountID, identifier string, notify bool) (*provider.Profile, error) {
		return nil, fmt.Errorf("still down")
	}

	for pass := 0; pass < 2; pass++ {
		n, err := f.engine.RetryFailedSteps(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, n, "a failing step is picked up every pass")
	}

	got := f.steps.byID(step.ID)
	assert.Equal(t, domain.StepFailed, got.Status)
	assert.Equal(t, 3, got.Retries, "every attempt is counted")
}
