package channel

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/mono-ai/aiproxy/internal/models"
	log "github.com/sirupsen/logrus"
)

const defaultRefreshInterval = 10 * time.Second

// Lister loads the enabled channels.
type Lister interface {
	ListEnabledChannels(ctx context.Context) ([]models.Channel, error)
}

// Snapshot is an immutable set of channels loaded at one point in time.
type Snapshot struct {
	Channels []models.Channel
	LoadedAt time.Time
}

// SnapshotStore holds the latest channel snapshot; selection reads never block a refresh.
type SnapshotStore struct {
	lister   Lister
	interval time.Duration
	current  atomic.Pointer[Snapshot]
}

// NewSnapshotStore creates an empty store; interval <= 0 uses the default.
func NewSnapshotStore(lister Lister, interval time.Duration) *SnapshotStore {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	s := &SnapshotStore{lister: lister, interval: interval}
	s.current.Store(&Snapshot{})
	return s
}

// Refresh loads channels and publishes them as the new snapshot.
// On error the previous snapshot stays in place.
func (s *SnapshotStore) Refresh(ctx context.Context) error {
	channels, err := s.lister.ListEnabledChannels(ctx)
	if err != nil {
		return err
	}
	s.current.Store(&Snapshot{Channels: channels, LoadedAt: time.Now().UTC()})
	return nil
}

// Snapshot returns the current snapshot.
func (s *SnapshotStore) Snapshot() *Snapshot {
	return s.current.Load()
}

// Candidates selects from the current snapshot.
func (s *SnapshotStore) Candidates(model string, group *models.Group) []*models.Channel {
	return SelectCandidates(s.Snapshot().Channels, model, group)
}

// VisibleModels lists the models group can reach in the current snapshot.
func (s *SnapshotStore) VisibleModels(group *models.Group) []string {
	return VisibleModels(s.Snapshot().Channels, group)
}

// Start launches the refresh loop in a background goroutine.
func (s *SnapshotStore) Start(ctx context.Context) {
	if s == nil {
		return
	}
	go s.run(ctx)
	log.Infof("channel snapshot refresher started (interval=%s)", s.interval)
}

func (s *SnapshotStore) run(ctx context.Context) {
	for {
		timer := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}
		if errRefresh := s.Refresh(ctx); errRefresh != nil {
			log.WithError(errRefresh).Warn("channel: refresh snapshot failed")
		}
	}
}
