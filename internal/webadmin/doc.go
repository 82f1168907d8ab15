// Package webadmin serves the read-only back office pages: the conversation
// inbox, full transcripts with decoded payloads, and the sales board. It also
// exposes the same data as JSON for tooling.
package webadmin
