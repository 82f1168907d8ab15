// Package dedupe suppresses redelivered inbound channel messages within a
// time window, keyed by the channel-native message ID.
package dedupe
