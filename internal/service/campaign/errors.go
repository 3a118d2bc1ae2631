package campaign

import "errors"

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound           = errors.New("campaign not found")
	ErrDeleted            = errors.New("campaign is deleted")
	ErrMissingSender      = errors.New("campaign has no connected sender account")
	ErrMissingProspects   = errors.New("campaign has no prospect list")
	ErrAlreadyInProgress  = errors.New("campaign is already in progress")
	ErrCompleted          = errors.New("campaign is completed")
	ErrNotRunning         = errors.New("campaign is not in progress")
	ErrNotPaused          = errors.New("campaign is not paused")
)
