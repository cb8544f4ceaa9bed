package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/phillip/crowdfund-backend/models"
	store "github.com/phillip/crowdfund-backend/store"
)

func newTestSweeper(t *testing.T) (*Sweeper, *store.MemoryCampaignStore, *store.MemoryContributionStore) {
	t.Helper()
	campaigns := store.NewMemoryCampaignStore()
	contributions := store.NewMemoryContributionStore()
	sw := New(Config{}, campaigns, contributions)
	return sw, campaigns, contributions
}

func addCampaign(t *testing.T, campaigns *store.MemoryCampaignStore, status string, endedAgo time.Duration, current float64) *models.Campaign {
	t.Helper()
	now := time.Now()
	c := &models.Campaign{
		ID:            primitive.NewObjectID(),
		CreatorID:     primitive.NewObjectID(),
		Title:         "Campaign",
		GoalAmount:    1000,
		CurrentAmount: current,
		StartDate:     now.Add(-endedAgo - 30*24*time.Hour),
		EndDate:       now.Add(-endedAgo),
		Status:        status,
		CreatedAt:     now.Add(-endedAgo - 30*24*time.Hour),
		UpdatedAt:     now.Add(-endedAgo),
	}
	require.NoError(t, campaigns.Create(context.Background(), c))
	return c
}

func TestExpirationPass(t *testing.T) {
	sw, campaigns, _ := newTestSweeper(t)
	ctx := context.Background()

	ended := addCampaign(t, campaigns, models.CampaignActive, time.Hour, 0)
	running := addCampaign(t, campaigns, models.CampaignActive, -14*24*time.Hour, 0)
	alreadyExpired := addCampaign(t, campaigns, models.CampaignExpired, 48*time.Hour, 0)

	n, err := sw.RunExpirationPass(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	got, err := campaigns.FindByID(ctx, ended.ID)
	require.NoError(t, err)
	require.Equal(t, models.CampaignExpired, got.Status)

	got, err = campaigns.FindByID(ctx, running.ID)
	require.NoError(t, err)
	require.Equal(t, models.CampaignActive, got.Status, "campaign still running must stay active")

	got, err = campaigns.FindByID(ctx, alreadyExpired.ID)
	require.NoError(t, err)
	require.Equal(t, models.CampaignExpired, got.Status)

	// Second pass with no time change finds nothing.
	n, err = sw.RunExpirationPass(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestRetentionPassNeverDeletesFundedCampaigns(t *testing.T) {
	sw, campaigns, contributions := newTestSweeper(t)
	ctx := context.Background()

	disposable := addCampaign(t, campaigns, models.CampaignExpired, 31*24*time.Hour, 0)
	funded := addCampaign(t, campaigns, models.CampaignExpired, 365*24*time.Hour, 50)
	fresh := addCampaign(t, campaigns, models.CampaignExpired, 24*time.Hour, 0)

	require.NoError(t, contributions.Create(ctx, &models.Contribution{
		CampaignID: disposable.ID,
		Amount:     10,
		Status:     models.ContributionFailed,
	}))

	nCampaigns, nContributions, err := sw.RunRetentionPass(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, nCampaigns)
	require.EqualValues(t, 1, nContributions, "deletion cascades to contributions")

	_, err = campaigns.FindByID(ctx, disposable.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	// A funded campaign is retained regardless of age.
	_, err = campaigns.FindByID(ctx, funded.ID)
	require.NoError(t, err)

	// An expired campaign inside the retention window is retained.
	_, err = campaigns.FindByID(ctx, fresh.ID)
	require.NoError(t, err)
}

func TestRetentionPassPrunesAbandonedDrafts(t *testing.T) {
	sw, campaigns, _ := newTestSweeper(t)
	ctx := context.Background()

	stale := addCampaign(t, campaigns, models.CampaignDraft, 91*24*time.Hour, 0)
	recent := addCampaign(t, campaigns, models.CampaignDraft, 24*time.Hour, 0)

	nCampaigns, _, err := sw.RunRetentionPass(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, nCampaigns)

	_, err = campaigns.FindByID(ctx, stale.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = campaigns.FindByID(ctx, recent.ID)
	require.NoError(t, err)
}

// racingCampaignStore reports one campaign as already gone, as if a
// concurrent pass deleted it between the find and the delete.
type racingCampaignStore struct {
	*store.MemoryCampaignStore
	gone primitive.ObjectID
}

func (s *racingCampaignStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	if id == s.gone {
		return store.ErrNotFound
	}
	return s.MemoryCampaignStore.Delete(ctx, id)
}

func TestRetentionPassCountsOnlyActualDeletes(t *testing.T) {
	campaigns := &racingCampaignStore{MemoryCampaignStore: store.NewMemoryCampaignStore()}
	contributions := store.NewMemoryContributionStore()
	sw := New(Config{}, campaigns, contributions)
	ctx := context.Background()

	kept := addCampaign(t, campaigns.MemoryCampaignStore, models.CampaignExpired, 31*24*time.Hour, 0)
	lost := addCampaign(t, campaigns.MemoryCampaignStore, models.CampaignExpired, 31*24*time.Hour, 0)
	campaigns.gone = lost.ID

	nCampaigns, _, err := sw.RunRetentionPass(ctx)
	require.NoError(t, err, "a lost delete race is not a pass failure")
	require.EqualValues(t, 1, nCampaigns, "only records actually removed are counted")

	_, err = campaigns.FindByID(ctx, kept.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestStartStopIdempotent(t *testing.T) {
	sw, _, _ := newTestSweeper(t)

	sw.Start()
	sw.Start() // no-op
	sw.Stop()
	sw.Stop() // no-op

	// A stopped sweeper can be started again.
	sw.Start()
	sw.Stop()
}

func TestStats(t *testing.T) {
	sw, campaigns, _ := newTestSweeper(t)
	ctx := context.Background()

	addCampaign(t, campaigns, models.CampaignActive, -14*24*time.Hour, 0)
	addCampaign(t, campaigns, models.CampaignActive, time.Hour, 0) // pending expiration
	addCampaign(t, campaigns, models.CampaignExpired, 31*24*time.Hour, 0)
	addCampaign(t, campaigns, models.CampaignDraft, 91*24*time.Hour, 0)

	stats, err := sw.Stats(ctx)
	require.NoError(t, err)
	require.False(t, stats.Running)
	require.EqualValues(t, 2, stats.ActiveCampaigns)
	require.EqualValues(t, 1, stats.ExpiredCampaigns)
	require.EqualValues(t, 1, stats.DraftCampaigns)
	require.EqualValues(t, 1, stats.PendingExpiration)
	require.EqualValues(t, 2, stats.PendingDeletion)

	_, err = sw.RunExpirationPass(ctx)
	require.NoError(t, err)

	stats, err = sw.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.ActiveCampaigns)
	require.EqualValues(t, 2, stats.ExpiredCampaigns)
	require.Zero(t, stats.PendingExpiration)
	require.EqualValues(t, 1, stats.TotalExpired)
}