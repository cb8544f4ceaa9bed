package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/phillip/crowdfund-backend/models"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("record not found")

// CampaignFilter narrows campaign listings. Zero values mean "any".
type CampaignFilter struct {
	Status    string
	CreatorID primitive.ObjectID
	Search    string // case-insensitive title match
}

// ContributionStore persists contribution records. Contributions are looked
// up by id, by owning campaign, or by either gateway correlation id.
type ContributionStore interface {
	Create(ctx context.Context, c *models.Contribution) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Contribution, error)
	// FindByCorrelation matches either the checkout-session id or the
	// payment-intent id.
	FindByCorrelation(ctx context.Context, correlationID string) (*models.Contribution, error)
	// FindByCampaign lists a campaign's contributions, optionally filtered
	// by status ("" means all).
	FindByCampaign(ctx context.Context, campaignID primitive.ObjectID, status string) ([]models.Contribution, error)
	Update(ctx context.Context, c *models.Contribution) error
	// DeleteByCampaign removes all contributions of a campaign and returns
	// the number deleted. Used only as a cascade of campaign deletion.
	DeleteByCampaign(ctx context.Context, campaignID primitive.ObjectID) (int64, error)
}

// CampaignStore persists campaign records and exposes the bulk operations
// the lifecycle sweeper runs on a timer.
type CampaignStore interface {
	Create(ctx context.Context, c *models.Campaign) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error)
	FindBySlug(ctx context.Context, slug string) (*models.Campaign, error)
	Find(ctx context.Context, f CampaignFilter) ([]models.Campaign, error)
	Update(ctx context.Context, c *models.Campaign) error
	// SetAggregates writes only the derived fields (current amount,
	// contributor count, average contribution). Last write wins.
	SetAggregates(ctx context.Context, id primitive.ObjectID, current float64, contributors int, average float64) error
	IncrementViews(ctx context.Context, id primitive.ObjectID) error
	IncrementShares(ctx context.Context, id primitive.ObjectID) error
	Delete(ctx context.Context, id primitive.ObjectID) error

	// ExpireEnded transitions every ACTIVE campaign whose end date is
	// before now to EXPIRED and returns how many changed.
	ExpireEnded(ctx context.Context, now time.Time) (int64, error)
	// FindExpiredBefore lists EXPIRED campaigns that ended before cutoff
	// and hold no funds. Campaigns with a positive current amount are
	// never returned.
	FindExpiredBefore(ctx context.Context, cutoff time.Time) ([]models.Campaign, error)
	// FindAbandonedDrafts lists DRAFT campaigns untouched since cutoff.
	FindAbandonedDrafts(ctx context.Context, cutoff time.Time) ([]models.Campaign, error)

	CountByStatus(ctx context.Context, status string) (int64, error)
	// CountPendingExpiration counts ACTIVE campaigns already past their
	// end date.
	CountPendingExpiration(ctx context.Context, now time.Time) (int64, error)
	// CountPendingDeletion counts campaigns the next retention pass would
	// remove.
	CountPendingDeletion(ctx context.Context, expiredCutoff, draftCutoff time.Time) (int64, error)
}
