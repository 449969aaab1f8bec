package chatclient

import (
	"sort"
	"sync"

	"campus_chat_service/pkg/wire"
)

// Timeline an ordered, deduplicated view of one room's messages. Live
// arrivals keep their arrival order; merged history is sorted into place
// by server timestamp.
type Timeline struct {
	mu   sync.Mutex
	ids  map[string]struct{}
	msgs []wire.Message
}

func NewTimeline() *Timeline {
	return &Timeline{ids: make(map[string]struct{})}
}

// Append adds a live message at the end. A message id seen before is
// ignored.
func (t *Timeline) Append(msg wire.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, dup := t.ids[msg.ID]; dup {
		return false
	}
	t.ids[msg.ID] = struct{}{}
	t.msgs = append(t.msgs, msg)
	return true
}

// MergeHistory folds fetched history into the timeline and re-sorts the
// whole view by timestamp, id as tiebreaker. Duplicates against live
// arrivals collapse by id.
func (t *Timeline) MergeHistory(history []wire.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, msg := range history {
		if _, dup := t.ids[msg.ID]; dup {
			continue
		}
		t.ids[msg.ID] = struct{}{}
		t.msgs = append(t.msgs, msg)
	}
	sort.SliceStable(t.msgs, func(i, j int) bool {
		if t.msgs[i].CreatedAt != t.msgs[j].CreatedAt {
			return t.msgs[i].CreatedAt < t.msgs[j].CreatedAt
		}
		return t.msgs[i].ID < t.msgs[j].ID
	})
}

// Messages a copy of the current view.
func (t *Timeline) Messages() []wire.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]wire.Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// Len number of messages held.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.msgs)
}
