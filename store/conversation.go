package store

import (
	"sort"
	"time"
)

// LatestPerGroup reduces msgs to one representative per conversation group.
// Step one finds max(created_at) per group; step two joins back to the rows
// carrying that time, picking the greatest ID on a tie. Messages without a
// group are ignored. The result is ordered by group ascending.
func LatestPerGroup(msgs []*Message) []*Message {
	latest := make(map[string]time.Time)
	for _, m := range msgs {
		if m.ConversationGroup == "" {
			continue
		}
		if t, ok := latest[m.ConversationGroup]; !ok || m.CreatedAt.After(t) {
			latest[m.ConversationGroup] = m.CreatedAt
		}
	}

	picked := make(map[string]*Message, len(latest))
	for _, m := range msgs {
		t, ok := latest[m.ConversationGroup]
		if !ok || !m.CreatedAt.Equal(t) {
			continue
		}
		if cur, ok := picked[m.ConversationGroup]; !ok || m.ID > cur.ID {
			picked[m.ConversationGroup] = m
		}
	}

	out := make([]*Message, 0, len(picked))
	for _, m := range picked {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ConversationGroup < out[j].ConversationGroup
	})
	return out
}

// Paginate applies opts to a slice already in result order.
func Paginate[T any](items []T, opts ListOptions) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Bounded() && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}
