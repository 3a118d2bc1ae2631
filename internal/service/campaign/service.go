package campaign

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/storage"
)

// ingestChunkSize bounds how many lead inserts run concurrently during
// campaign start. Chunks run sequentially; rows within a chunk in parallel.
const ingestChunkSize = 5

// Service implements campaign lifecycle business logic.
type Service struct {
	repo     Repository
	leads    LeadRepository
	accounts AccountRepository
	lists    storage.ProspectListStore
}

// NewService creates a campaign service.
func NewService(repo Repository, leads LeadRepository, accounts AccountRepository, lists storage.ProspectListStore) *Service {
	return &Service{repo: repo, leads: leads, accounts: accounts, lists: lists}
}

// Status is the caller-facing view of a campaign's lifecycle state.
type Status struct {
	Status    domain.CampaignStatus `json:"status"`
	IsRunning bool                  `json:"is_running"`
	IsPaused  bool                  `json:"is_paused"`
}

// Start transitions a campaign to IN_PROGRESS and ingests its prospect list
// as lead rows. Restarting a PAUSED or FAILED campaign is allowed; ingestion
// skips leads that already exist.
func (s *Service) Start(ctx context.Context, campaignID string) error {
	c, err := s.repo.Get(ctx, campaignID)
	if err != nil {
		return err
	}
	if c.IsDeleted {
		return ErrDeleted
	}
	switch c.Status {
	case domain.CampaignInProgress:
		return ErrAlreadyInProgress
	case domain.CampaignCompleted:
		return ErrCompleted
	}
	if c.ConnectedAccountID == "" {
		return ErrMissingSender
	}
	if _, err := s.accounts.Get(ctx, c.ConnectedAccountID); err != nil {
		if err == ErrNotFound {
			return ErrMissingSender
		}
		return fmt.Errorf("resolve sender account: %w", err)
	}
	if c.ProspectListKey == "" {
		return ErrMissingProspects
	}

	prospects, err := s.lists.LoadProspectList(ctx, c.ProspectListKey)
	if err != nil {
		return fmt.Errorf("load prospect list: %w", err)
	}

	created, err := s.ingestLeads(ctx, c, prospects)
	if err != nil {
		return err
	}
	log.Printf("[campaign.Service] Campaign %s: ingested %d leads (%d prospects)", campaignID, created, len(prospects))

	if err := s.repo.UpdateStatus(ctx, campaignID, domain.CampaignInProgress); err != nil {
		return fmt.Errorf("transition to in_progress: %w", err)
	}
	return nil
}

// ingestLeads creates lead rows in chunks: chunk-parallel, batch-sequential.
func (s *Service) ingestLeads(ctx context.Context, c *domain.Campaign, prospects []storage.Prospect) (int, error) {
	var created int
	for start := 0; start < len(prospects); start += ingestChunkSize {
		end := start + ingestChunkSize
		if end > len(prospects) {
			end = len(prospects)
		}
		chunk := prospects[start:end]

		var wg sync.WaitGroup
		errs := make([]error, len(chunk))
		for i, p := range chunk {
			wg.Add(1)
			go func(i int, p storage.Prospect) {
				defer wg.Done()
				lead := &domain.Lead{
					ID:               uuid.New().String(),
					OrganizationID:   c.OrganizationID,
					CampaignID:       c.ID,
					LinkedInURL:      p.LinkedInURL,
					PublicIdentifier: PublicIdentifier(p.LinkedInURL),
					FirstName:        p.FirstName,
					LastName:         p.LastName,
					Title:            p.Title,
					Company:          p.Company,
					Email:            p.Email,
					Location:         p.Location,
				}
				errs[i] = s.leads.Create(ctx, lead)
			}(i, p)
		}
		wg.Wait()

		for i, err := range errs {
			if err != nil {
				return created, fmt.Errorf("create lead for %s: %w", chunk[i].LinkedInURL, err)
			}
			created++
		}
	}
	return created, nil
}

// Pause moves an IN_PROGRESS campaign to PAUSED. Pausing an already paused
// campaign is a no-op.
func (s *Service) Pause(ctx context.Context, campaignID string) error {
	c, err := s.repo.Get(ctx, campaignID)
	if err != nil {
		return err
	}
	if c.Status == domain.CampaignPaused {
		return nil
	}
	if c.Status != domain.CampaignInProgress {
		return ErrNotRunning
	}
	return s.repo.UpdateStatus(ctx, campaignID, domain.CampaignPaused)
}

// Resume moves a PAUSED campaign back to IN_PROGRESS.
func (s *Service) Resume(ctx context.Context, campaignID string) error {
	c, err := s.repo.Get(ctx, campaignID)
	if err != nil {
		return err
	}
	if c.Status != domain.CampaignPaused {
		return ErrNotPaused
	}
	return s.repo.UpdateStatus(ctx, campaignID, domain.CampaignInProgress)
}

// GetStatus returns the campaign's lifecycle state.
func (s *Service) GetStatus(ctx context.Context, campaignID string) (*Status, error) {
	c, err := s.repo.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	return &Status{
		Status:    c.Status,
		IsRunning: c.IsRunning(),
		IsPaused:  c.IsPaused(),
	}, nil
}

// PublicIdentifier extracts the member slug from a LinkedIn profile URL,
// e.g. "https://www.linkedin.com/in/jane-doe/" -> "jane-doe". Falls back to
// the last non-empty path segment for non-standard URLs.
func PublicIdentifier(linkedinURL string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(linkedinURL), "/")
	if trimmed == "" {
		return ""
	}
	if i := strings.Index(trimmed, "/in/"); i >= 0 {
		rest := trimmed[i+len("/in/"):]
		if j := strings.IndexAny(rest, "/?#"); j >= 0 {
			rest = rest[:j]
		}
		return rest
	}
	parts := strings.Split(trimmed, "/")
	return parts[len(parts)-1]
}
