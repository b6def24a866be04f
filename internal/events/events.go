package events

import (
	"context"

	"leadline/internal/domain"
)

// Event topic constants
const (
	TopicLeadCreated           = "leadline.lead.created"
	TopicLeadStatusChanged     = "leadline.lead.status_changed"
	TopicLeadIdeationCompleted = "leadline.lead.ideation_completed"

	// TopicAllLeads matches every lead topic on subscribers that
	// support wildcards.
	TopicAllLeads = "leadline.lead.*"
)

// Event types

type LeadCreated struct {
	Lead *domain.Lead `json:"lead"`
}

type LeadStatusChanged struct {
	Lead     *domain.Lead  `json:"lead"`
	Previous domain.Status `json:"previous"`
}

type LeadIdeationCompleted struct {
	Lead *domain.Lead `json:"lead"`
}

// Publisher is the interface for emitting events to the bus.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// Subscriber delivers raw event payloads for a topic. The returned
// cancel function releases the subscription; leaving it open leaks a
// live listener.
type Subscriber interface {
	Subscribe(topic string) (<-chan []byte, func(), error)
	Close() error
}
