package feed

import (
	"sort"
	"sync"

	"leadline/internal/domain"
)

// orderedView is an index over the lead list kept sorted by
// (created_at DESC, id DESC). Updates touch one document at a time; the
// list is never re-sorted from scratch after seeding.
type orderedView struct {
	mu    sync.Mutex
	order []string // lead ids, newest first
	byID  map[string]domain.Lead
}

func newOrderedView(initial []domain.Lead) *orderedView {
	v := &orderedView{byID: make(map[string]domain.Lead, len(initial))}
	for _, l := range initial {
		v.byID[l.ID] = l
		v.order = append(v.order, l.ID)
	}
	sort.SliceStable(v.order, func(i, j int) bool {
		return v.less(v.byID[v.order[i]], v.byID[v.order[j]])
	})
	return v
}

// less orders a before b when a is newer.
func (v *orderedView) less(a, b domain.Lead) bool {
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt > b.CreatedAt
	}
	return a.ID > b.ID
}

// upsert inserts a new lead at its sorted position or replaces an
// existing one in place. created_at never changes after creation, so a
// replacement cannot move.
func (v *orderedView) upsert(l domain.Lead) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.byID[l.ID]; ok {
		v.byID[l.ID] = l
		return
	}
	v.byID[l.ID] = l
	pos := sort.Search(len(v.order), func(i int) bool {
		return v.less(l, v.byID[v.order[i]])
	})
	v.order = append(v.order, "")
	copy(v.order[pos+1:], v.order[pos:])
	v.order[pos] = l.ID
}

// snapshot copies the current list, newest first.
func (v *orderedView) snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := make(Snapshot, 0, len(v.order))
	for _, id := range v.order {
		s = append(s, v.byID[id])
	}
	return s
}
