// Package campaign implements campaign lifecycle management.
//
// The service layer owns the start/pause/resume transitions and bulk lead
// ingestion at campaign start. It depends on repository interfaces defined
// in this package; implementations live in repository/postgres.
package campaign
