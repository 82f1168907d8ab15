// Package ingest brings inbound channel traffic into the system: webhook
// deliveries are deduplicated, persisted as messages, and fanned out to
// open panels.
package ingest
