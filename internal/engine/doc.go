// Package engine drives campaign workflows: it admits leads into running
// campaigns, executes due workflow steps against the provider, plans each
// step's successors from the campaign graph, and enforces the
// connection-request rate limits and sender cooldowns.
//
// The engine is tick-driven. TickDriver fires four recurring tasks: a
// per-minute pass over due steps, a daily lead admission at local midnight,
// an hourly scan for scheduled campaigns whose start date arrived, and an
// hourly retry of failed steps. Each task is guarded by a distributed lock
// so multiple workers can run side by side.
package engine
