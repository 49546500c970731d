package policies

import "context"

// Publisher delivers an event to every live subscriber of a channel. Delivery
// is at-most-once with no backlog; a failed publish never fails the operation
// that triggered it.
type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload any) error
}
