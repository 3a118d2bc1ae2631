package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/service/campaign"
)

// LeadRepo implements campaign.LeadRepository and engine.LeadStore.
type LeadRepo struct{ db *sql.DB }

// NewLeadRepo creates a Postgres-backed lead repository.
func NewLeadRepo(db *sql.DB) *LeadRepo { return &LeadRepo{db: db} }

const leadColumns = `id, organization_id, campaign_id, linkedin_url, public_identifier,
	COALESCE(first_name,''), COALESCE(last_name,''), COALESCE(title,''),
	COALESCE(company,''), COALESCE(email,''), COALESCE(phone,''),
	COALESCE(location,''), COALESCE(linkedin_id,''), created_at, updated_at`

func scanLead(row interface{ Scan(...interface{}) error }) (*domain.Lead, error) {
	l := &domain.Lead{}
	err := row.Scan(
		&l.ID, &l.OrganizationID, &l.CampaignID, &l.LinkedInURL, &l.PublicIdentifier,
		&l.FirstName, &l.LastName, &l.Title,
		&l.Company, &l.Email, &l.Phone,
		&l.Location, &l.LinkedInID, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (r *LeadRepo) Get(ctx context.Context, id string) (*domain.Lead, error) {
	l, err := scanLead(r.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lead: %w", err)
	}
	return l, nil
}

func (r *LeadRepo) ListByCampaign(ctx context.Context, campaignID string) ([]domain.Lead, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE campaign_id = $1 ORDER BY created_at`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	var out []domain.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// Create inserts a lead. A lead with the same public identifier in the same
// campaign is skipped silently so campaign restarts can re-run ingestion.
func (r *LeadRepo) Create(ctx context.Context, l *domain.Lead) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO leads
			(id, organization_id, campaign_id, linkedin_url, public_identifier,
			 first_name, last_name, title, company, email, location, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		ON CONFLICT (campaign_id, public_identifier) DO NOTHING
	`, l.ID, l.OrganizationID, l.CampaignID, l.LinkedInURL, l.PublicIdentifier,
		l.FirstName, l.LastName, l.Title, l.Company, l.Email, l.Location)
	if err != nil {
		return fmt.Errorf("create lead: %w", err)
	}
	return nil
}

// Enrich updates the non-empty enrichment fields of a lead.
func (r *LeadRepo) Enrich(ctx context.Context, id string, e domain.Enrichment) error {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}
	idx := 1
	add := func(col, val string) {
		if val == "" {
			return
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}

	add("first_name", e.FirstName)
	add("last_name", e.LastName)
	add("title", e.Title)
	add("company", e.Company)
	add("email", e.Email)
	add("phone", e.Phone)
	add("location", e.Location)
	add("linkedin_id", e.LinkedInID)

	if len(sets) == 1 {
		return nil
	}

	q := fmt.Sprintf("UPDATE leads SET %s WHERE id = $%d", strings.Join(sets, ", "), idx)
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("enrich lead: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}
