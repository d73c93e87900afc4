package offline

import (
	"context"
	"sync"
	"sync/atomic"

	"revi/agent-core/internal/infrastructure/logger"
	"revi/agent-core/internal/infrastructure/storage"
	"revi/agent-core/internal/pkg/agenterror"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// gormStore persists the queue in the single stored_items table. Any backend
// failure flips the store into a degraded in-memory mode; the switch is
// logged once.
type gormStore struct {
	db       storage.Database
	log      logger.Logger
	maxBytes int64

	degraded atomic.Bool
	fallback *memoryStore
	warnOnce sync.Once
}

var _ Store = (*gormStore)(nil)

// NewGormStore wraps a relational backend. The stored_items table is
// migrated when the store is constructed.
func NewGormStore(db storage.Database, maxBytes int64, log logger.Logger) Store {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	s := &gormStore{
		db:       db,
		log:      log.WithField("component", "offline_store"),
		maxBytes: maxBytes,
		fallback: newDegradedStore(maxBytes),
	}

	if err := db.GetDB().AutoMigrate(&Item{}); err != nil {
		s.degrade(err)
	}
	return s
}

func (s *gormStore) degrade(err error) {
	s.degraded.Store(true)
	s.warnOnce.Do(func() {
		s.log.WithFields(map[string]any{
			"error_detail": err.Error(),
		}).Warn("Persistent store unavailable, falling back to in-memory queue")
	})
}

func (s *gormStore) Put(ctx context.Context, item *Item) error {
	fillSize(item)
	if s.degraded.Load() {
		return s.fallback.Put(ctx, item)
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(item).Error
	if err != nil {
		if mapped := storage.MapDBError(err); agenterror.KindOf(mapped) == agenterror.KindStorage {
			s.degrade(err)
			return s.fallback.Put(ctx, item)
		}
		return storage.MapDBError(err)
	}

	return s.evict(ctx)
}

// evict deletes the oldest rows of the lowest non-empty priority band until
// the footprint fits under the cap again.
func (s *gormStore) evict(ctx context.Context) error {
	for {
		total, err := s.TotalBytes(ctx)
		if err != nil || total <= s.maxBytes {
			return err
		}

		victim, err := s.oldestInLowestBand(ctx)
		if err != nil || victim == nil {
			return err
		}
		if err := s.Remove(ctx, victim.ID); err != nil {
			return err
		}
		s.log.WithFields(map[string]any{
			"item_id":  victim.ID,
			"priority": string(victim.Priority),
		}).Debug("Evicted offline item over size cap")
	}
}

func (s *gormStore) oldestInLowestBand(ctx context.Context) (*Item, error) {
	for _, p := range []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical} {
		var item Item
		err := s.db.WithContext(ctx).
			Where("priority = ?", p).
			Order("created_at asc").
			First(&item).Error
		if err == gorm.ErrRecordNotFound {
			continue
		}
		if err != nil {
			return nil, storage.MapDBError(err)
		}
		return &item, nil
	}
	return nil, nil
}

func (s *gormStore) Remove(ctx context.Context, ids ...string) error {
	if s.degraded.Load() {
		return s.fallback.Remove(ctx, ids...)
	}
	if len(ids) == 0 {
		return nil
	}
	return storage.MapDBError(
		s.db.WithContext(ctx).Delete(&Item{}, "id IN ?", ids).Error,
	)
}

func (s *gormStore) BumpRetry(ctx context.Context, ids ...string) error {
	if s.degraded.Load() {
		return s.fallback.BumpRetry(ctx, ids...)
	}
	if len(ids) == 0 {
		return nil
	}
	return storage.MapDBError(
		s.db.WithContext(ctx).Model(&Item{}).
			Where("id IN ?", ids).
			UpdateColumn("retry_count", gorm.Expr("retry_count + 1")).Error,
	)
}

func (s *gormStore) ByKind(ctx context.Context, kind string) ([]*Item, error) {
	if s.degraded.Load() {
		return s.fallback.ByKind(ctx, kind)
	}
	return s.query(ctx, "kind = ?", kind)
}

func (s *gormStore) ByPriority(ctx context.Context, p Priority) ([]*Item, error) {
	if s.degraded.Load() {
		return s.fallback.ByPriority(ctx, p)
	}
	return s.query(ctx, "priority = ?", p)
}

func (s *gormStore) All(ctx context.Context) ([]*Item, error) {
	if s.degraded.Load() {
		return s.fallback.All(ctx)
	}
	return s.query(ctx, "")
}

func (s *gormStore) Since(ctx context.Context, ts int64) ([]*Item, error) {
	if s.degraded.Load() {
		return s.fallback.Since(ctx, ts)
	}
	return s.query(ctx, "created_at > ?", ts)
}

func (s *gormStore) TotalBytes(ctx context.Context) (int64, error) {
	if s.degraded.Load() {
		return s.fallback.TotalBytes(ctx)
	}

	var total int64
	err := s.db.WithContext(ctx).Model(&Item{}).
		Select("COALESCE(SUM(size_bytes), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, storage.MapDBError(err)
	}
	return total, nil
}

func (s *gormStore) Degraded() bool { return s.degraded.Load() }

func (s *gormStore) Close() error {
	return s.db.Close()
}

func (s *gormStore) query(ctx context.Context, cond string, args ...any) ([]*Item, error) {
	var items []*Item
	q := s.db.WithContext(ctx).Model(&Item{})
	if cond != "" {
		q = q.Where(cond, args...)
	}
	if err := q.Find(&items).Error; err != nil {
		if mapped := storage.MapDBError(err); agenterror.KindOf(mapped) == agenterror.KindStorage {
			s.degrade(err)
			return s.fallback.All(ctx)
		}
		return nil, storage.MapDBError(err)
	}
	sortItems(items)
	return items, nil
}
