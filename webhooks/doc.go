// Package webhooks authenticates marketplace push notifications and turns
// them into queued events.
package webhooks
