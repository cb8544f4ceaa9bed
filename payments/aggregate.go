package payments

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/phillip/crowdfund-backend/models"
)

// CampaignAggregates are the derived fields cached on a campaign record.
type CampaignAggregates struct {
	CurrentAmount       float64
	ContributorsCount   int
	AverageContribution float64
}

// Recompute rebuilds a campaign's cached aggregates from its CONFIRMED
// contributions and writes them back. It is a pure function of the stored
// contribution set, not of the previous aggregate values, so concurrent
// recomputations for the same campaign are last-write-wins and any
// transient disagreement is healed by the next call.
func (e *Engine) Recompute(ctx context.Context, campaignID primitive.ObjectID) (CampaignAggregates, error) {
	confirmed, err := e.contributions.FindByCampaign(ctx, campaignID, models.ContributionConfirmed)
	if err != nil {
		return CampaignAggregates{}, fmt.Errorf("read confirmed contributions: %w", err)
	}

	var agg CampaignAggregates
	contributors := make(map[primitive.ObjectID]struct{})
	for _, c := range confirmed {
		agg.CurrentAmount += c.Amount
		if !c.IsAnonymous && c.Contributor != nil && !c.Contributor.UserID.IsZero() {
			contributors[c.Contributor.UserID] = struct{}{}
		}
	}
	agg.CurrentAmount = RoundMinor(agg.CurrentAmount)
	agg.ContributorsCount = len(contributors)
	if len(confirmed) > 0 {
		agg.AverageContribution = RoundMinor(agg.CurrentAmount / float64(len(confirmed)))
	}

	err = e.campaigns.SetAggregates(ctx, campaignID, agg.CurrentAmount, agg.ContributorsCount, agg.AverageContribution)
	if err != nil {
		return CampaignAggregates{}, fmt.Errorf("write campaign aggregates: %w", err)
	}
	return agg, nil
}
