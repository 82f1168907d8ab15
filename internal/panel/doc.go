// Package panel composes the per-conversation working surface: permission
// resolution, the merged live transcript, the lead card, and the action set.
// Actions the actor cannot take are disabled locally with a reason; a gated
// action never reaches the server.
package panel
