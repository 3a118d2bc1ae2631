// Package domain contains the persistent entities shared across the engine:
// campaigns, leads, connected sender accounts, and workflow steps.
//
// Types here are plain data carriers. Business rules live in the service and
// engine layers; persistence lives in repository/postgres.
package domain
