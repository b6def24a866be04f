package events

import "context"

// NoopPublisher discards events. Used by short-lived CLI invocations
// where nothing is listening.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, topic string, event any) error { return nil }
func (NoopPublisher) Close() error                                               { return nil }
