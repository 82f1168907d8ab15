// Package store provides persistence for the CRM core: conversations,
// messages, leads, pipeline columns, agents and businesses.
//
// The canonical implementation is SQLiteStore. MockStore offers the same
// interface in memory for tests. Timestamps are stored as RFC 3339 strings
// in UTC; message rows are append-only.
package store
