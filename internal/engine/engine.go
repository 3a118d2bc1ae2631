package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ignite/outreach-engine/internal/compose"
	"github.com/ignite/outreach-engine/internal/provider"
	"github.com/ignite/outreach-engine/internal/ratelimit"
	"github.com/ignite/outreach-engine/internal/storage"
	"github.com/ignite/outreach-engine/internal/workflow"
)

const (
	// pollInterval is how long a polling step waits before checking again.
	pollInterval = time.Hour

	// senderCooldown is how long an account is blocked from sending
	// connection requests after the provider rejects with cannot_resend_yet.
	senderCooldown = 24 * time.Hour
)

// Deps wires the engine's collaborators.
type Deps struct {
	Campaigns CampaignStore
	Leads     LeadStore
	Accounts  AccountStore
	Steps     StepStore
	Workflows storage.WorkflowStore
	Provider  provider.Client
	Composer  compose.Composer
	Starter   Starter
	Limits    ratelimit.Limits
}

// Engine executes workflow steps and advances leads through campaign graphs.
// All methods are safe for concurrent use.
type Engine struct {
	campaigns CampaignStore
	leads     LeadStore
	accounts  AccountStore
	steps     StepStore
	workflows storage.WorkflowStore
	provider  provider.Client
	composer  compose.Composer
	starter   Starter
	limits    ratelimit.Limits

	// Overridable in tests.
	now     func() time.Time
	shuffle func(n int, swap func(i, j int))
	pick    func(n int) int

	mu      sync.Mutex
	wfCache map[string]*workflow.Workflow
}

// New creates an engine. A nil Composer falls back to static message
// defaults; zero Limits fall back to the built-in defaults.
func New(deps Deps) *Engine {
	composer := deps.Composer
	if composer == nil {
		composer = compose.Static{}
	}
	limits := deps.Limits
	if limits.Daily <= 0 {
		limits.Daily = ratelimit.DefaultDailyLimit
	}
	if limits.Weekly <= 0 {
		limits.Weekly = ratelimit.DefaultWeeklyLimit
	}
	return &Engine{
		campaigns: deps.Campaigns,
		leads:     deps.Leads,
		accounts:  deps.Accounts,
		steps:     deps.Steps,
		workflows: deps.Workflows,
		provider:  deps.Provider,
		composer:  composer,
		starter:   deps.Starter,
		limits:    limits,
		now:       time.Now,
		shuffle:   rand.Shuffle,
		pick:      rand.Intn,
		wfCache:   make(map[string]*workflow.Workflow),
	}
}

// loadWorkflow fetches and caches a workflow document. Workflow documents
// are immutable once a campaign starts, so the cache never invalidates.
func (e *Engine) loadWorkflow(ctx context.Context, key string) (*workflow.Workflow, error) {
	if key == "" {
		return nil, fmt.Errorf("campaign has no workflow document")
	}

	e.mu.Lock()
	wf, ok := e.wfCache[key]
	e.mu.Unlock()
	if ok {
		return wf, nil
	}

	wf, err := e.workflows.LoadWorkflow(ctx, key)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.wfCache[key] = wf
	e.mu.Unlock()
	return wf, nil
}
