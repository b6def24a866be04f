package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Bus is an in-process Publisher/Subscriber used when no NATS URL is
// configured. Slow subscribers drop events rather than block the
// publisher.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*busSub]struct{}
	closed bool
}

type busSub struct {
	topic string
	ch    chan []byte
}

func NewBus() *Bus {
	return &Bus{subs: make(map[*busSub]struct{})}
}

func (b *Bus) Publish(ctx context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("bus closed")
	}
	for s := range b.subs {
		if !matchTopic(s.topic, topic) {
			continue
		}
		select {
		case s.ch <- data:
		default:
			// Drop if the subscriber is full to avoid blocking the publisher.
		}
	}
	return nil
}

// Subscribe returns a channel receiving payloads for topics matching the
// pattern ("leadline.lead.*" style globs supported). Call cancel to
// release the subscription and close the channel.
func (b *Bus) Subscribe(topic string) (<-chan []byte, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, nil, fmt.Errorf("bus closed")
	}
	s := &busSub{topic: topic, ch: make(chan []byte, 64)}
	b.subs[s] = struct{}{}
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, s)
			b.mu.Unlock()
			close(s.ch)
		})
	}
	return s.ch, cancel, nil
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for s := range b.subs {
		delete(b.subs, s)
		close(s.ch)
	}
	return nil
}

// matchTopic checks a dotted pattern against a topic. "*" matches one
// segment, ">" matches the remainder.
func matchTopic(pattern, topic string) bool {
	if pattern == "" || pattern == topic {
		return pattern == topic
	}
	pp := strings.Split(pattern, ".")
	tp := strings.Split(topic, ".")
	for i, seg := range pp {
		if seg == ">" {
			return true
		}
		if i >= len(tp) {
			return false
		}
		if seg != "*" && seg != tp[i] {
			return false
		}
	}
	return len(pp) == len(tp)
}
