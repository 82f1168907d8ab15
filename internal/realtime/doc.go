// Package realtime provides the in-process pub/sub channel carrying
// conversation change notifications: new messages and conversation row
// updates, each on its own per-conversation topic.
package realtime
