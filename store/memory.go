package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/phillip/crowdfund-backend/models"
)

var (
	_ ContributionStore = (*MemoryContributionStore)(nil)
	_ CampaignStore     = (*MemoryCampaignStore)(nil)
)

// MemoryContributionStore is a mutex-guarded in-memory ContributionStore.
// Used by tests and local runs without a database.
type MemoryContributionStore struct {
	mu   sync.RWMutex
	recs map[primitive.ObjectID]models.Contribution
}

func NewMemoryContributionStore() *MemoryContributionStore {
	return &MemoryContributionStore{recs: make(map[primitive.ObjectID]models.Contribution)}
}

func (s *MemoryContributionStore) Create(_ context.Context, c *models.Contribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	s.recs[c.ID] = *c
	return nil
}

func (s *MemoryContributionStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.recs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (s *MemoryContributionStore) FindByCorrelation(_ context.Context, correlationID string) (*models.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.recs {
		if correlationID != "" &&
			(c.CheckoutSessionID == correlationID || c.PaymentIntentID == correlationID) {
			rec := c
			return &rec, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryContributionStore) FindByCampaign(_ context.Context, campaignID primitive.ObjectID, status string) ([]models.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Contribution
	for _, c := range s.recs {
		if c.CampaignID != campaignID {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *MemoryContributionStore) Update(_ context.Context, c *models.Contribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.recs[c.ID]; !ok {
		return ErrNotFound
	}
	s.recs[c.ID] = *c
	return nil
}

func (s *MemoryContributionStore) DeleteByCampaign(_ context.Context, campaignID primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, c := range s.recs {
		if c.CampaignID == campaignID {
			delete(s.recs, id)
			n++
		}
	}
	return n, nil
}

// MemoryCampaignStore is a mutex-guarded in-memory CampaignStore.
type MemoryCampaignStore struct {
	mu   sync.RWMutex
	recs map[primitive.ObjectID]models.Campaign
}

func NewMemoryCampaignStore() *MemoryCampaignStore {
	return &MemoryCampaignStore{recs: make(map[primitive.ObjectID]models.Campaign)}
}

func (s *MemoryCampaignStore) Create(_ context.Context, c *models.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	s.recs[c.ID] = *c
	return nil
}

func (s *MemoryCampaignStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.recs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (s *MemoryCampaignStore) FindBySlug(_ context.Context, slug string) (*models.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.recs {
		if c.Slug == slug {
			rec := c
			return &rec, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryCampaignStore) Find(_ context.Context, f CampaignFilter) ([]models.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Campaign
	for _, c := range s.recs {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if !f.CreatorID.IsZero() && c.CreatorID != f.CreatorID {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(c.Title), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *MemoryCampaignStore) Update(_ context.Context, c *models.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.recs[c.ID]; !ok {
		return ErrNotFound
	}
	s.recs[c.ID] = *c
	return nil
}

func (s *MemoryCampaignStore) SetAggregates(_ context.Context, id primitive.ObjectID, current float64, contributors int, average float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.recs[id]
	if !ok {
		return ErrNotFound
	}
	c.CurrentAmount = current
	c.Stats.ContributorsCount = contributors
	c.Stats.AverageContribution = average
	c.UpdatedAt = time.Now()
	s.recs[id] = c
	return nil
}

func (s *MemoryCampaignStore) IncrementViews(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.recs[id]
	if !ok {
		return ErrNotFound
	}
	c.Stats.Views++
	s.recs[id] = c
	return nil
}

func (s *MemoryCampaignStore) IncrementShares(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.recs[id]
	if !ok {
		return ErrNotFound
	}
	c.Stats.Shares++
	s.recs[id] = c
	return nil
}

func (s *MemoryCampaignStore) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.recs[id]; !ok {
		return ErrNotFound
	}
	delete(s.recs, id)
	return nil
}

func (s *MemoryCampaignStore) ExpireEnded(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, c := range s.recs {
		if c.Status == models.CampaignActive && c.EndDate.Before(now) {
			c.Status = models.CampaignExpired
			c.UpdatedAt = now
			s.recs[id] = c
			n++
		}
	}
	return n, nil
}

func (s *MemoryCampaignStore) FindExpiredBefore(_ context.Context, cutoff time.Time) ([]models.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Campaign
	for _, c := range s.recs {
		if isExpiredDisposable(c, cutoff) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *MemoryCampaignStore) FindAbandonedDrafts(_ context.Context, cutoff time.Time) ([]models.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Campaign
	for _, c := range s.recs {
		if isAbandonedDraft(c, cutoff) {
			out = append(out, c)
		}
	}
	return out, nil
}

func isExpiredDisposable(c models.Campaign, cutoff time.Time) bool {
	return c.Status == models.CampaignExpired && c.EndDate.Before(cutoff) && c.CurrentAmount <= 0
}

func isAbandonedDraft(c models.Campaign, cutoff time.Time) bool {
	return c.Status == models.CampaignDraft && c.UpdatedAt.Before(cutoff)
}

func (s *MemoryCampaignStore) CountByStatus(_ context.Context, status string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, c := range s.recs {
		if c.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *MemoryCampaignStore) CountPendingExpiration(_ context.Context, now time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, c := range s.recs {
		if c.Status == models.CampaignActive && c.EndDate.Before(now) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryCampaignStore) CountPendingDeletion(_ context.Context, expiredCutoff, draftCutoff time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, c := range s.recs {
		if isExpiredDisposable(c, expiredCutoff) || isAbandonedDraft(c, draftCutoff) {
			n++
		}
	}
	return n, nil
}
