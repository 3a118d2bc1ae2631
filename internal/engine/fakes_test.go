package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/provider"
	"github.com/ignite/outreach-engine/internal/ratelimit"
	"github.com/ignite/outreach-engine/internal/service/campaign"
	"github.com/ignite/outreach-engine/internal/workflow"
)

// In-memory stores backing the engine tests. They honor the same contracts
// the Postgres repositories implement.

type memCampaigns struct {
	mu   sync.Mutex
	rows map[string]*domain.Campaign
}

func (m *memCampaigns) Get(_ context.Context, id string) (*domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCampaigns) ListScheduledDue(_ context.Context, now time.Time) ([]domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Campaign
	for _, c := range m.rows {
		if c.IsDeleted || c.StartDate == nil || c.StartDate.After(now) {
			continue
		}
		if c.Status == domain.CampaignScheduled || c.Status == domain.CampaignDraft {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memCampaigns) ListInProgress(_ context.Context) ([]domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Campaign
	for _, c := range m.rows {
		if !c.IsDeleted && c.Status == domain.CampaignInProgress {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memCampaigns) UpdateStatus(_ context.Context, id string, status domain.CampaignStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok {
		return campaign.ErrNotFound
	}
	c.Status = status
	return nil
}

func (m *memCampaigns) ApplyCounterPatch(_ context.Context, id string, patch ratelimit.CounterPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok {
		return campaign.ErrNotFound
	}
	if patch.RequestsSentThisDay != nil {
		c.RequestsSentThisDay = *patch.RequestsSentThisDay
	}
	if patch.RequestsSentThisWeek != nil {
		c.RequestsSentThisWeek = *patch.RequestsSentThisWeek
	}
	if patch.LastDailyRequestsReset != nil {
		t := *patch.LastDailyRequestsReset
		c.LastDailyRequestsReset = &t
	}
	if patch.LastWeeklyRequestsReset != nil {
		t := *patch.LastWeeklyRequestsReset
		c.LastWeeklyRequestsReset = &t
	}
	return nil
}

type memLeads struct {
	mu   sync.Mutex
	rows map[string]*domain.Lead
}

func (m *memLeads) Get(_ context.Context, id string) (*domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.rows[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *memLeads) ListByCampaign(_ context.Context, campaignID string) ([]domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Lead
	for _, l := range m.rows {
		if l.CampaignID == campaignID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memLeads) Enrich(_ context.Context, id string, e domain.Enrichment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.rows[id]
	if !ok {
		return campaign.ErrNotFound
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&l.FirstName, e.FirstName)
	set(&l.LastName, e.LastName)
	set(&l.Title, e.Title)
	set(&l.Company, e.Company)
	set(&l.Email, e.Email)
	set(&l.Phone, e.Phone)
	set(&l.Location, e.Location)
	set(&l.LinkedInID, e.LinkedInID)
	return nil
}

type memAccounts struct {
	mu   sync.Mutex
	rows map[string]*domain.ConnectedAccount
}

func (m *memAccounts) Get(_ context.Context, id string) (*domain.ConnectedAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	cp := *a
	cp.Metadata = make(map[string]interface{}, len(a.Metadata))
	for k, v := range a.Metadata {
		cp.Metadata[k] = v
	}
	return &cp, nil
}

func (m *memAccounts) SetBlockedUntil(_ context.Context, id string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return campaign.ErrNotFound
	}
	a.SetBlockedUntil(until)
	return nil
}

type memSteps struct {
	mu   sync.Mutex
	seq  int
	rows []*domain.WorkflowStep

	// accountOf maps a lead to the sender account of its campaign, for
	// DeferPendingConnectionRequests.
	accountOf map[string]string
	// providerOf maps a lead's provider id to the lead, for MarkReplied.
	providerOf map[string]string
}

func (m *memSteps) Get(_ context.Context, id string) (*domain.WorkflowStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.rows {
		if s.ID == id {
			cp := *s
			return &cp, nil
		}
	}
	return nil, campaign.ErrNotFound
}

func (m *memSteps) Create(_ context.Context, s *domain.WorkflowStep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if s.ID == "" {
		s.ID = fmt.Sprintf("step-%d", m.seq)
	}
	if s.WorkflowType == "" {
		s.WorkflowType = domain.WorkflowTypeCampaign
	}
	s.CreatedAt = time.Unix(int64(m.seq), 0)
	cp := *s
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memSteps) ListDue(_ context.Context, now time.Time) ([]domain.WorkflowStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.WorkflowStep
	for _, s := range m.rows {
		if s.Status == domain.StepPending && s.ExecuteAfter <= now.Unix() {
			out = append(out, *s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExecuteAfter < out[j].ExecuteAfter })
	return out, nil
}

func (m *memSteps) ListByLeads(_ context.Context, leadIDs []string, workflowType string) ([]domain.WorkflowStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[string]bool, len(leadIDs))
	for _, id := range leadIDs {
		want[id] = true
	}
	var out []domain.WorkflowStep
	for _, s := range m.rows {
		if want[s.LeadID] && s.WorkflowType == workflowType {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memSteps) ListFailedByLeads(ctx context.Context, leadIDs []string, workflowType string) ([]domain.WorkflowStep, error) {
	all, _ := m.ListByLeads(ctx, leadIDs, workflowType)
	var out []domain.WorkflowStep
	for _, s := range all {
		if s.Status == domain.StepFailed {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSteps) MarkComplete(_ context.Context, id string, rawResponse map[string]interface{}) error {
	return m.update(id, func(s *domain.WorkflowStep) {
		s.Status = domain.StepComplete
		s.RawResponse = rawResponse
	})
}

func (m *memSteps) MarkFailed(_ context.Context, id string, message string) error {
	return m.update(id, func(s *domain.WorkflowStep) {
		s.Status = domain.StepFailed
		s.Retries++
		s.RawResponse = map[string]interface{}{domain.RawError: message}
	})
}

func (m *memSteps) Rearm(_ context.Context, id string, executeAfter int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.rows {
		if s.ID == id && s.Status == domain.StepFailed {
			s.Status = domain.StepPending
			s.ExecuteAfter = executeAfter
			return nil
		}
	}
	return campaign.ErrNotFound
}

func (m *memSteps) Defer(_ context.Context, id string, executeAfter int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.rows {
		if s.ID == id && s.Status == domain.StepPending {
			s.ExecuteAfter = executeAfter
			return nil
		}
	}
	return campaign.ErrNotFound
}

func (m *memSteps) Reschedule(_ context.Context, id string, executeAfter int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.rows {
		if s.ID == id && s.Status == domain.StepPending {
			s.ExecuteAfter = executeAfter
			s.Retries++
			return nil
		}
	}
	return campaign.ErrNotFound
}

func (m *memSteps) DeferPendingConnectionRequests(_ context.Context, accountID string, executeAfter int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.rows {
		if s.Status != domain.StepPending || s.StepType != domain.StepSendConnectionRequest {
			continue
		}
		if m.accountOf[s.LeadID] != accountID || s.ExecuteAfter >= executeAfter {
			continue
		}
		s.ExecuteAfter = executeAfter
		n++
	}
	return n, nil
}

func (m *memSteps) MarkReplied(_ context.Context, providerIDs []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	leads := make(map[string]bool, len(providerIDs))
	for _, pid := range providerIDs {
		if leadID, ok := m.providerOf[pid]; ok {
			leads[leadID] = true
		}
	}
	n := 0
	for _, s := range m.rows {
		if s.Status == domain.StepPending && s.StepType == domain.StepCheckMessageReply && leads[s.LeadID] {
			if s.RawResponse == nil {
				s.RawResponse = map[string]interface{}{}
			}
			s.RawResponse[domain.RawHasReplied] = true
			n++
		}
	}
	return n, nil
}

func (m *memSteps) update(id string, fn func(*domain.WorkflowStep)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.rows {
		if s.ID == id {
			fn(s)
			return nil
		}
	}
	return campaign.ErrNotFound
}

// byID returns the stored step, failing loudly when absent.
func (m *memSteps) byID(id string) *domain.WorkflowStep {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.rows {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// pendingOfType returns pending steps of one kind in creation order.
func (m *memSteps) pendingOfType(t domain.StepType) []*domain.WorkflowStep {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.WorkflowStep
	for _, s := range m.rows {
		if s.Status == domain.StepPending && s.StepType == t {
			out = append(out, s)
		}
	}
	return out
}

type memWorkflows struct {
	docs map[string]*workflow.Workflow
}

func (m *memWorkflows) LoadWorkflow(_ context.Context, key string) (*workflow.Workflow, error) {
	wf, ok := m.docs[key]
	if !ok {
		return nil, fmt.Errorf("workflow %s not found", key)
	}
	return wf, nil
}

// fakeProvider records calls and answers from configurable funcs. Nil funcs
// succeed with zero values.
type fakeProvider struct {
	mu    sync.Mutex
	calls []string

	visitFn       func(accountID, identifier string, notify bool) (*provider.Profile, error)
	inviteFn      func(accountID, providerID, message string) error
	chatFn        func(accountID string, providerIDs []string, text string) error
	commentFn     func(accountID, postID, text string) error
	postsFn       func(identifier string) ([]provider.Post, error)
	connectedFn   func(identifier string) (bool, error)
	invitationsFn func(accountID string) ([]provider.Invitation, error)
}

func (f *fakeProvider) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeProvider) called(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == name {
			return true
		}
	}
	return false
}

func (f *fakeProvider) VisitProfile(_ context.Context, accountID, identifier string, notify bool) (*provider.Profile, error) {
	f.record("VisitProfile")
	if f.visitFn != nil {
		return f.visitFn(accountID, identifier, notify)
	}
	return &provider.Profile{ProviderID: "pid-" + identifier, PublicIdentifier: identifier}, nil
}

func (f *fakeProvider) SendInvitation(_ context.Context, accountID, providerID, message string) error {
	f.record("SendInvitation")
	if f.inviteFn != nil {
		return f.inviteFn(accountID, providerID, message)
	}
	return nil
}

func (f *fakeProvider) StartOrContinueChat(_ context.Context, accountID string, providerIDs []string, text string) error {
	f.record("StartOrContinueChat")
	if f.chatFn != nil {
		return f.chatFn(accountID, providerIDs, text)
	}
	return nil
}

func (f *fakeProvider) ReactToPost(_ context.Context, accountID, postID, reactionType string) error {
	f.record("ReactToPost")
	return nil
}

func (f *fakeProvider) CommentPost(_ context.Context, accountID, postID, text string) error {
	f.record("CommentPost")
	if f.commentFn != nil {
		return f.commentFn(accountID, postID, text)
	}
	return nil
}

func (f *fakeProvider) ListRecentPosts(_ context.Context, accountID, identifier string, lastDays, limit int) ([]provider.Post, error) {
	f.record("ListRecentPosts")
	if f.postsFn != nil {
		return f.postsFn(identifier)
	}
	return nil, nil
}

func (f *fakeProvider) ListInvitationsSent(_ context.Context, accountID string) ([]provider.Invitation, error) {
	f.record("ListInvitationsSent")
	if f.invitationsFn != nil {
		return f.invitationsFn(accountID)
	}
	return nil, nil
}

func (f *fakeProvider) CancelInvitation(_ context.Context, accountID, invitationID string) error {
	f.record("CancelInvitation")
	return nil
}

func (f *fakeProvider) IsConnected(_ context.Context, accountID, identifier string) (bool, error) {
	f.record("IsConnected")
	if f.connectedFn != nil {
		return f.connectedFn(identifier)
	}
	return false, nil
}

type fakeStarter struct {
	mu      sync.Mutex
	started []string
	err     error
}

func (f *fakeStarter) Start(_ context.Context, campaignID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.started = append(f.started, campaignID)
	return nil
}

// fixture assembles a one-campaign world: account acc-1, campaign camp-1 in
// IN_PROGRESS, lead lead-1, and the given workflow document under key wf-1.
type fixture struct {
	campaigns *memCampaigns
	leads     *memLeads
	accounts  *memAccounts
	steps     *memSteps
	provider  *fakeProvider
	starter   *fakeStarter
	engine    *Engine
	now       time.Time
}

func newFixture(wfJSON string) *fixture {
	wf, err := workflow.Parse([]byte(wfJSON))
	if err != nil {
		panic(err)
	}

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)
	f := &fixture{
		campaigns: &memCampaigns{rows: map[string]*domain.Campaign{
			"camp-1": {
				ID:                 "camp-1",
				OrganizationID:     "org-1",
				ConnectedAccountID: "acc-1",
				WorkflowKey:        "wf-1",
				Status:             domain.CampaignInProgress,
				LeadsPerDay:        10,
			},
		}},
		leads: &memLeads{rows: map[string]*domain.Lead{
			"lead-1": {
				ID:               "lead-1",
				OrganizationID:   "org-1",
				CampaignID:       "camp-1",
				LinkedInURL:      "https://www.linkedin.com/in/jane-doe/",
				PublicIdentifier: "jane-doe",
				FirstName:        "Jane",
				Company:          "Acme",
			},
		}},
		accounts: &memAccounts{rows: map[string]*domain.ConnectedAccount{
			"acc-1": {
				ID:                "acc-1",
				OrganizationID:    "org-1",
				Provider:          "linkedin",
				ProviderAccountID: "prov-acc-1",
				Metadata:          map[string]interface{}{},
			},
		}},
		steps: &memSteps{
			accountOf:  map[string]string{"lead-1": "acc-1"},
			providerOf: map[string]string{},
		},
		provider: &fakeProvider{},
		starter:  &fakeStarter{},
		now:      now,
	}

	f.engine = New(Deps{
		Campaigns: f.campaigns,
		Leads:     f.leads,
		Accounts:  f.accounts,
		Steps:     f.steps,
		Workflows: &memWorkflows{docs: map[string]*workflow.Workflow{"wf-1": wf}},
		Provider:  f.provider,
		Starter:   f.starter,
		Limits:    ratelimit.Limits{Daily: 3, Weekly: 5},
	})
	f.engine.now = func() time.Time { return f.now }
	f.engine.shuffle = func(n int, swap func(i, j int)) {}
	f.engine.pick = func(n int) int { return 0 }
	return f
}

// addPendingStep seeds a due pending step for lead-1 and returns it.
func (f *fixture) addPendingStep(nodeID string, stepType domain.StepType, index int) *domain.WorkflowStep {
	s := &domain.WorkflowStep{
		OrganizationID: "org-1",
		LeadID:         "lead-1",
		IDInWorkflow:   nodeID,
		StepIndex:      index,
		StepType:       stepType,
		Status:         domain.StepPending,
		ExecuteAfter:   f.now.Unix(),
	}
	if err := f.steps.Create(context.Background(), s); err != nil {
		panic(err)
	}
	return s
}
