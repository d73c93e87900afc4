// Package offline implements the persistent delivery queue and the
// reconnect-driven sync drain. Items survive process restarts when a
// relational backend is configured and degrade to memory otherwise.
package offline

import (
	"context"
	"encoding/json"
	"sort"
)

// Priority orders queued items. Higher weight drains first.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Weight returns the drain ordering weight; unknown priorities sort last.
func (p Priority) Weight() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// DefaultMaxBytes caps total store size; oldest items in the lowest
// non-empty priority band are evicted first once exceeded.
const DefaultMaxBytes = 10 << 20

// Item is one queued payload. It is created on capture, mutated only via a
// retry-count bump and destroyed on successful submission or eviction.
type Item struct {
	ID         string          `json:"id" gorm:"primaryKey;column:id"`
	Kind       string          `json:"kind" gorm:"column:kind;index"`
	Priority   Priority        `json:"priority" gorm:"column:priority;index"`
	CreatedAt  int64           `json:"created_at" gorm:"column:created_at;index"`
	RetryCount int             `json:"retry_count" gorm:"column:retry_count"`
	SizeBytes  int64           `json:"size_bytes" gorm:"column:size_bytes"`
	Payload    json.RawMessage `json:"payload" gorm:"column:payload_blob;type:bytea"`
}

// TableName keeps the single-table schema name stable.
func (Item) TableName() string { return "stored_items" }

// Store is the persistent key-value queue, keyed by item id and partitioned
// by kind.
type Store interface {
	// Put inserts an item, computing SizeBytes from the payload when unset
	// and evicting per the priority/size policy if the cap is exceeded.
	Put(ctx context.Context, item *Item) error

	// Remove deletes items after successful submission.
	Remove(ctx context.Context, ids ...string) error

	// BumpRetry increments the retry counter of each id.
	BumpRetry(ctx context.Context, ids ...string) error

	// ByKind returns all items of one kind in priority-then-timestamp order.
	ByKind(ctx context.Context, kind string) ([]*Item, error)

	// ByPriority returns all items of one priority band in creation order.
	ByPriority(ctx context.Context, p Priority) ([]*Item, error)

	// All returns every item in priority-then-timestamp order.
	All(ctx context.Context) ([]*Item, error)

	// Since returns items created strictly after ts, in
	// priority-then-timestamp order.
	Since(ctx context.Context, ts int64) ([]*Item, error)

	// TotalBytes reports the current store footprint.
	TotalBytes(ctx context.Context) (int64, error)

	// Degraded reports whether the persistent backend is unavailable and
	// the store is running from memory.
	Degraded() bool

	Close() error
}

// sortItems orders by priority weight descending, then timestamp ascending.
func sortItems(items []*Item) {
	sort.SliceStable(items, func(i, j int) bool {
		wi, wj := items[i].Priority.Weight(), items[j].Priority.Weight()
		if wi != wj {
			return wi > wj
		}
		return items[i].CreatedAt < items[j].CreatedAt
	})
}

func fillSize(item *Item) {
	if item.SizeBytes == 0 {
		item.SizeBytes = int64(len(item.Payload))
	}
}
