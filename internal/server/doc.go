// Package server assembles crm-core: storage, realtime fan-out, the
// conversation and ingestion services, the HTTP API and webhooks, and the
// web admin, with one lifecycle for startup and graceful shutdown.
package server
