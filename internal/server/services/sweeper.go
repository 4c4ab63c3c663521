package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/texbridge/internal/dbx"
	"github.com/dmitrijs2005/texbridge/internal/logging"
	"github.com/dmitrijs2005/texbridge/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/texbridge/internal/server/storage"
)

// OrphanSweeper deletes stored attachments that no committed donation
// references. Blobs younger than the grace period are left alone because
// their submission may still be in flight.
type OrphanSweeper struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	store       storage.Store
	grace       time.Duration
	interval    time.Duration
	log         logging.Logger
	rec         Recorder
	now         func() time.Time
}

func NewOrphanSweeper(db dbx.DBTX, m repomanager.RepositoryManager, store storage.Store,
	grace, interval time.Duration, log logging.Logger, rec Recorder) *OrphanSweeper {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &OrphanSweeper{
		db:          db,
		repomanager: m,
		store:       store,
		grace:       grace,
		interval:    interval,
		log:         log.With("module", "sweeper"),
		rec:         rec,
		now:         time.Now,
	}
}

// SweepOnce runs one reconciliation pass and returns how many blobs it
// removed. The store is listed before references are read, so a blob
// committed in between is seen as referenced.
func (s *OrphanSweeper) SweepOnce(ctx context.Context) (int, error) {
	objects, err := s.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list attachments: %w", err)
	}
	refs, err := s.repomanager.Donations(s.db).ReferencedPhotos(ctx)
	if err != nil {
		return 0, fmt.Errorf("read references: %w", err)
	}

	cutoff := s.now().Add(-s.grace)
	removed := 0
	for _, obj := range objects {
		if _, ok := refs[obj.Name]; ok {
			continue
		}
		created, ok := storage.NameTime(obj.Name)
		if !ok || obj.ModTime.After(created) {
			created = obj.ModTime
		}
		if !created.Before(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, obj.Name); err != nil {
			s.log.Warn(ctx, "could not remove orphaned attachment", "name", obj.Name, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		s.rec.OrphansRemoved(removed)
		s.log.Info(ctx, "orphaned attachments removed", "count", removed)
	}
	return removed, nil
}

// Run sweeps every interval until ctx is done.
func (s *OrphanSweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.log.Error(ctx, "orphan sweep failed", "error", err)
			}
		}
	}
}
