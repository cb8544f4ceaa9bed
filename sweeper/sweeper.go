// Package sweeper runs the campaign lifecycle passes: expiring campaigns
// whose deadline has passed, and pruning records that are safely disposable
// under the retention rules. It is owned by the host process and started or
// stopped explicitly; passes can also be ticked manually, which keeps tests
// deterministic.
package sweeper

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	models "github.com/phillip/crowdfund-backend/models"
	store "github.com/phillip/crowdfund-backend/store"
)

type Config struct {
	// ExpirationInterval is how often ended ACTIVE campaigns are moved to
	// EXPIRED.
	ExpirationInterval time.Duration
	// RetentionInterval is how often disposable records are pruned.
	RetentionInterval time.Duration
	// RetentionWindow is how long an expired, fundless campaign is kept
	// after its end date.
	RetentionWindow time.Duration
	// AbandonmentWindow is how long an untouched draft is kept.
	AbandonmentWindow time.Duration
}

// DefaultConfig fills in the standard schedule for any zero field.
func (c Config) withDefaults() Config {
	if c.ExpirationInterval <= 0 {
		c.ExpirationInterval = 15 * time.Minute
	}
	if c.RetentionInterval <= 0 {
		c.RetentionInterval = time.Hour
	}
	if c.RetentionWindow <= 0 {
		c.RetentionWindow = 30 * 24 * time.Hour
	}
	if c.AbandonmentWindow <= 0 {
		c.AbandonmentWindow = 90 * 24 * time.Hour
	}
	return c
}

// Stats is the operational snapshot exposed on the admin surface.
type Stats struct {
	Running           bool  `json:"running"`
	ActiveCampaigns   int64 `json:"active_campaigns"`
	ExpiredCampaigns  int64 `json:"expired_campaigns"`
	DraftCampaigns    int64 `json:"draft_campaigns"`
	PendingExpiration int64 `json:"pending_expiration"`
	PendingDeletion   int64 `json:"pending_deletion"`

	// Totals since the process started.
	TotalExpired              int64 `json:"total_expired"`
	TotalDeletedCampaigns     int64 `json:"total_deleted_campaigns"`
	TotalDeletedContributions int64 `json:"total_deleted_contributions"`
}

type Sweeper struct {
	cfg           Config
	campaigns     store.CampaignStore
	contributions store.ContributionStore

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	totals  Stats
	running bool
}

func New(cfg Config, campaigns store.CampaignStore, contributions store.ContributionStore) *Sweeper {
	return &Sweeper{
		cfg:           cfg.withDefaults(),
		campaigns:     campaigns,
		contributions: contributions,
	}
}

// Start launches both schedules. Starting a running sweeper is a no-op.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.run(ctx, s.done)
	log.Printf("[sweeper] started (expiration every %s, retention every %s)",
		s.cfg.ExpirationInterval, s.cfg.RetentionInterval)
}

// Stop halts both schedules and waits for the loop to exit. Stopping a
// stopped sweeper is a no-op.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	log.Println("[sweeper] stopped")
}

func (s *Sweeper) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	expiration := time.NewTicker(s.cfg.ExpirationInterval)
	defer expiration.Stop()
	retention := time.NewTicker(s.cfg.RetentionInterval)
	defer retention.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-expiration.C:
			// A failed pass is retried on its next tick; passes are
			// idempotent so partial progress plus retry is safe.
			if _, err := s.RunExpirationPass(ctx); err != nil && ctx.Err() == nil {
				log.Printf("[sweeper] expiration pass failed: %v", err)
			}
		case <-retention.C:
			if _, _, err := s.RunRetentionPass(ctx); err != nil && ctx.Err() == nil {
				log.Printf("[sweeper] retention pass failed: %v", err)
			}
		}
	}
}

// RunExpirationPass moves every ACTIVE campaign past its end date to
// EXPIRED and returns how many changed. Re-running immediately finds
// nothing left to change.
func (s *Sweeper) RunExpirationPass(ctx context.Context) (int64, error) {
	n, err := s.campaigns.ExpireEnded(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("[sweeper] expired %d campaign(s)", n)
	}

	s.mu.Lock()
	s.totals.TotalExpired += n
	s.mu.Unlock()
	return n, nil
}

// RunRetentionPass deletes (a) expired campaigns past the retention window
// that hold no funds, cascading to their contributions, and (b) drafts
// untouched past the abandonment window. Campaigns with a positive current
// amount are never deleted; the store queries exclude them.
func (s *Sweeper) RunRetentionPass(ctx context.Context) (campaignsDeleted, contributionsDeleted int64, err error) {
	now := time.Now()

	expired, err := s.campaigns.FindExpiredBefore(ctx, now.Add(-s.cfg.RetentionWindow))
	if err != nil {
		return 0, 0, err
	}
	drafts, err := s.campaigns.FindAbandonedDrafts(ctx, now.Add(-s.cfg.AbandonmentWindow))
	if err != nil {
		return 0, 0, err
	}

	for _, c := range append(expired, drafts...) {
		nc, err := s.contributions.DeleteByCampaign(ctx, c.ID)
		if err != nil {
			return campaignsDeleted, contributionsDeleted, err
		}
		contributionsDeleted += nc

		switch err := s.campaigns.Delete(ctx, c.ID); {
		case err == nil:
			campaignsDeleted++
		case errors.Is(err, store.ErrNotFound):
			// Lost a race with a concurrent delete; nothing was removed.
		default:
			return campaignsDeleted, contributionsDeleted, err
		}
	}

	if campaignsDeleted > 0 {
		log.Printf("[sweeper] pruned %d campaign(s), %d contribution(s)",
			campaignsDeleted, contributionsDeleted)
	}

	s.mu.Lock()
	s.totals.TotalDeletedCampaigns += campaignsDeleted
	s.totals.TotalDeletedContributions += contributionsDeleted
	s.mu.Unlock()
	return campaignsDeleted, contributionsDeleted, nil
}

// Stats reports current lifecycle counts for operational visibility.
func (s *Sweeper) Stats(ctx context.Context) (Stats, error) {
	now := time.Now()

	s.mu.Lock()
	out := s.totals
	out.Running = s.running
	s.mu.Unlock()

	var err error
	if out.ActiveCampaigns, err = s.campaigns.CountByStatus(ctx, models.CampaignActive); err != nil {
		return out, err
	}
	if out.ExpiredCampaigns, err = s.campaigns.CountByStatus(ctx, models.CampaignExpired); err != nil {
		return out, err
	}
	if out.DraftCampaigns, err = s.campaigns.CountByStatus(ctx, models.CampaignDraft); err != nil {
		return out, err
	}
	if out.PendingExpiration, err = s.campaigns.CountPendingExpiration(ctx, now); err != nil {
		return out, err
	}
	out.PendingDeletion, err = s.campaigns.CountPendingDeletion(ctx,
		now.Add(-s.cfg.RetentionWindow), now.Add(-s.cfg.AbandonmentWindow))
	return out, err
}
