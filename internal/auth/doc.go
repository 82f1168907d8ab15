// Package auth resolves who the current actor is and what they may do to a
// conversation. Actor identity arrives as an externally issued JWT; the
// resolver turns (actor, conversation, business) into a capability set.
// Token issuance and login flows live outside this module.
package auth
