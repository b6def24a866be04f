// Package feed maintains a live, owner-scoped view of the lead list.
// It seeds itself with one store query, then applies lead events from
// the bus one document at a time, delivering the entire current list on
// every change so consumers can replace what they render wholesale.
package feed

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"leadline/internal/domain"
	"leadline/internal/events"
	"leadline/internal/repo"
)

// Snapshot is the full current lead list, newest first.
type Snapshot []domain.Lead

// Feed produces snapshot subscriptions. OrgID is only consulted when
// org scoping is enabled in configuration.
type Feed struct {
	Repo       repo.Repo
	Subscriber events.Subscriber
	OwnerID    string
	OrgID      string
	Logger     *log.Logger
}

func (f *Feed) logger() *log.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return log.Default()
}

// Subscribe returns a channel of snapshots and a cancel function. The
// first delivery is the current list; each subsequent delivery follows a
// lead event. The channel holds only the latest snapshot: if the
// consumer lags, intermediate snapshots are replaced, never queued.
// Cancel (or ctx done) releases the underlying event subscription; the
// channel closes once the feed shuts down.
func (f *Feed) Subscribe(ctx context.Context) (<-chan Snapshot, func(), error) {
	raw, release, err := f.Subscriber.Subscribe(events.TopicAllLeads)
	if err != nil {
		return nil, nil, err
	}
	initial, err := f.Repo.ListLeads(ctx, repo.LeadFilters{OwnerID: f.OwnerID, OrgID: f.OrgID})
	if err != nil {
		release()
		return nil, nil, err
	}

	view := newOrderedView(initial)
	out := make(chan Snapshot, 1)

	feedCtx, cancelCtx := context.WithCancel(ctx)
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			release()
			cancelCtx()
		})
	}

	go func() {
		defer close(out)
		deliver(out, view.snapshot())
		for {
			select {
			case <-feedCtx.Done():
				return
			case data, ok := <-raw:
				if !ok {
					return
				}
				lead, ok := f.decode(data)
				if !ok {
					continue
				}
				view.upsert(lead)
				deliver(out, view.snapshot())
			}
		}
	}()
	return out, cancel, nil
}

// decode extracts the lead from an event payload and applies the
// owner/org scope filter.
func (f *Feed) decode(data []byte) (domain.Lead, bool) {
	var envelope struct {
		Lead *domain.Lead `json:"lead"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Lead == nil {
		f.logger().Printf("feed: dropping undecodable event: %v", err)
		return domain.Lead{}, false
	}
	l := *envelope.Lead
	if l.OwnerID != f.OwnerID {
		return domain.Lead{}, false
	}
	if f.OrgID != "" && l.OrgID != f.OrgID {
		return domain.Lead{}, false
	}
	return l, true
}

// deliver replaces any undelivered snapshot with the latest one.
func deliver(out chan Snapshot, s Snapshot) {
	for {
		select {
		case out <- s:
			return
		default:
			select {
			case <-out:
			default:
			}
		}
	}
}
