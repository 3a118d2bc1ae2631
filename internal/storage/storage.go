// Package storage loads the campaign input documents kept in object
// storage: prospect lists and workflow definitions. Both are written once
// when a campaign is created and read-only afterwards.
package storage

import (
	"context"

	"github.com/ignite/outreach-engine/internal/workflow"
)

// Prospect is one entry of a prospect list document.
type Prospect struct {
	LinkedInURL string `json:"linkedin_url"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Title       string `json:"title,omitempty"`
	Company     string `json:"company,omitempty"`
	Email       string `json:"email,omitempty"`
	Location    string `json:"location,omitempty"`
}

// ProspectListStore loads prospect list documents by object key.
type ProspectListStore interface {
	LoadProspectList(ctx context.Context, key string) ([]Prospect, error)
}

// WorkflowStore loads workflow documents by object key.
type WorkflowStore interface {
	LoadWorkflow(ctx context.Context, key string) (*workflow.Workflow, error)
}
