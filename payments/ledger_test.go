package payments

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/phillip/crowdfund-backend/models"
	store "github.com/phillip/crowdfund-backend/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.MemoryCampaignStore, *store.MemoryContributionStore) {
	t.Helper()
	campaigns := store.NewMemoryCampaignStore()
	contributions := store.NewMemoryContributionStore()
	return NewEngine(contributions, campaigns), campaigns, contributions
}

func seedCampaign(t *testing.T, campaigns *store.MemoryCampaignStore, status string, goal float64) *models.Campaign {
	t.Helper()
	now := time.Now()
	c := &models.Campaign{
		ID:         primitive.NewObjectID(),
		CreatorID:  primitive.NewObjectID(),
		Title:      "Community Garden",
		Slug:       "community-garden",
		GoalAmount: goal,
		Currency:   "EUR",
		StartDate:  now.Add(-24 * time.Hour),
		EndDate:    now.Add(14 * 24 * time.Hour),
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, campaigns.Create(context.Background(), c))
	return c
}

func pledge(t *testing.T, e *Engine, campaignID primitive.ObjectID, amount float64) *models.Contribution {
	t.Helper()
	c, err := e.CreatePending(context.Background(), PledgeInput{
		CampaignID:  campaignID,
		Amount:      amount,
		Method:      "CARD",
		Currency:    "EUR",
		Contributor: &models.Contributor{Name: "Ada", Email: "ada@example.com"},
	})
	require.NoError(t, err)
	return c
}

func TestCreatePendingComputesFees(t *testing.T) {
	e, campaigns, _ := newTestEngine(t)
	campaign := seedCampaign(t, campaigns, models.CampaignActive, 500)

	c := pledge(t, e, campaign.ID, 100.00)

	require.Equal(t, models.ContributionPending, c.Status)
	require.InDelta(t, 3.20, c.Payment.Fees, 1e-9)
	require.InDelta(t, 96.80, c.Payment.NetAmount, 1e-9)
	require.InDelta(t, 5.00, c.PlatformFee, 1e-9)
	require.NotEmpty(t, c.CheckoutSessionID, "correlation placeholder must be set")
}

func TestCreatePendingValidation(t *testing.T) {
	e, campaigns, _ := newTestEngine(t)
	active := seedCampaign(t, campaigns, models.CampaignActive, 500)
	expired := seedCampaign(t, campaigns, models.CampaignExpired, 500)
	draft := seedCampaign(t, campaigns, models.CampaignDraft, 500)
	ctx := context.Background()

	_, err := e.CreatePending(ctx, PledgeInput{CampaignID: active.ID, Amount: 0.50,
		Contributor: &models.Contributor{Name: "Ada", Email: "ada@example.com"}})
	require.ErrorIs(t, err, ErrAmountBelowMinimum)

	_, err = e.CreatePending(ctx, PledgeInput{CampaignID: expired.ID, Amount: 10,
		Contributor: &models.Contributor{Name: "Ada", Email: "ada@example.com"}})
	require.ErrorIs(t, err, ErrCampaignNotAcceptingFunds)

	_, err = e.CreatePending(ctx, PledgeInput{CampaignID: draft.ID, Amount: 10,
		Contributor: &models.Contributor{Name: "Ada", Email: "ada@example.com"}})
	require.ErrorIs(t, err, ErrCampaignNotAcceptingFunds)

	_, err = e.CreatePending(ctx, PledgeInput{CampaignID: active.ID, Amount: 10})
	require.ErrorIs(t, err, ErrAttributionRequired)

	_, err = e.CreatePending(ctx, PledgeInput{CampaignID: primitive.NewObjectID(), Amount: 10,
		Contributor: &models.Contributor{Name: "Ada", Email: "ada@example.com"}})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreatePendingAnonymousDropsContributor(t *testing.T) {
	e, campaigns, _ := newTestEngine(t)
	campaign := seedCampaign(t, campaigns, models.CampaignActive, 500)

	c, err := e.CreatePending(context.Background(), PledgeInput{
		CampaignID:  campaign.ID,
		Amount:      25,
		IsAnonymous: true,
		Contributor: &models.Contributor{Name: "Should", Email: "not@persist.example"},
	})
	require.NoError(t, err)
	require.True(t, c.IsAnonymous)
	require.Nil(t, c.Contributor, "anonymous pledges persist no contributor identity")
}

func TestAttachSessionRequiresToken(t *testing.T) {
	e, campaigns, contributions := newTestEngine(t)
	campaign := seedCampaign(t, campaigns, models.CampaignActive, 500)
	c := pledge(t, e, campaign.ID, 100)
	ctx := context.Background()

	// Knowing the contribution id is not enough to rebind correlation ids.
	_, err := e.AttachGatewaySession(ctx, c.ID, "", "cs_hijack", "pi_hijack")
	require.ErrorIs(t, err, ErrAttachTokenMismatch)
	_, err = e.AttachGatewaySession(ctx, c.ID, "guessed-token", "cs_hijack", "pi_hijack")
	require.ErrorIs(t, err, ErrAttachTokenMismatch)

	stored, err := contributions.FindByID(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, c.CheckoutSessionID, stored.CheckoutSessionID, "rejected attach must not touch the record")
	require.Empty(t, stored.PaymentIntentID)

	_, err = e.AttachGatewaySession(ctx, c.ID, c.AttachToken, "cs_real", "pi_real")
	require.NoError(t, err)
}

func TestConfirmIsIdempotent(t *testing.T) {
	e, campaigns, _ := newTestEngine(t)
	campaign := seedCampaign(t, campaigns, models.CampaignActive, 500)
	c := pledge(t, e, campaign.ID, 100)
	ctx := context.Background()

	_, err := e.AttachGatewaySession(ctx, c.ID, c.AttachToken, "cs_test_1", "pi_test_1")
	require.NoError(t, err)

	first, changed, err := e.Confirm(ctx, "cs_test_1", 0, "ch_1")
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, models.ContributionConfirmed, first.Status)
	require.Equal(t, "ch_1", first.Payment.TransactionID)

	// Duplicate delivery, this time by payment-intent id.
	second, changed, err := e.Confirm(ctx, "pi_test_1", 0, "ch_1")
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, first.Status, second.Status)
	require.InDelta(t, first.Amount, second.Amount, 1e-9)
}

func TestConfirmRecomputesFromSettledAmount(t *testing.T) {
	e, campaigns, _ := newTestEngine(t)
	campaign := seedCampaign(t, campaigns, models.CampaignActive, 500)
	c := pledge(t, e, campaign.ID, 100)
	ctx := context.Background()

	_, err := e.AttachGatewaySession(ctx, c.ID, c.AttachToken, "cs_test_2", "")
	require.NoError(t, err)

	// Gateway settled a different amount than pledged (e.g. currency
	// conversion); the settlement-time figures are authoritative.
	confirmed, changed, err := e.Confirm(ctx, "cs_test_2", 105.00, "")
	require.NoError(t, err)
	require.True(t, changed)
	require.InDelta(t, 105.00, confirmed.Amount, 1e-9)
	require.InDelta(t, GatewayFeeEstimate(105), confirmed.Payment.Fees, 1e-9)
	require.InDelta(t, NetAmount(105, confirmed.Payment.Fees), confirmed.Payment.NetAmount, 1e-9)
	require.InDelta(t, PlatformFee(105), confirmed.PlatformFee, 1e-9)
}

func TestFailureAfterConfirmationIsMonotonic(t *testing.T) {
	e, campaigns, contributions := newTestEngine(t)
	campaign := seedCampaign(t, campaigns, models.CampaignActive, 500)
	c := pledge(t, e, campaign.ID, 100)
	ctx := context.Background()

	_, err := e.AttachGatewaySession(ctx, c.ID, c.AttachToken, "cs_test_3", "")
	require.NoError(t, err)
	_, _, err = e.Confirm(ctx, "cs_test_3", 0, "")
	require.NoError(t, err)

	// Late failure event must not downgrade the confirmed pledge.
	got, changed, err := e.MarkFailed(ctx, "cs_test_3", "card declined")
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, models.ContributionConfirmed, got.Status)

	stored, err := contributions.FindByID(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, models.ContributionConfirmed, stored.Status)
	require.Empty(t, stored.FailureReason)
}

func TestMarkFailedFromPending(t *testing.T) {
	e, campaigns, _ := newTestEngine(t)
	campaign := seedCampaign(t, campaigns, models.CampaignActive, 500)
	c := pledge(t, e, campaign.ID, 100)
	ctx := context.Background()

	_, err := e.AttachGatewaySession(ctx, c.ID, c.AttachToken, "cs_test_4", "")
	require.NoError(t, err)

	got, changed, err := e.MarkFailed(ctx, "cs_test_4", "insufficient funds")
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, models.ContributionFailed, got.Status)
	require.Equal(t, "insufficient funds", got.FailureReason)

	// Confirming a failed contribution is an illegal transition.
	_, _, err = e.Confirm(ctx, "cs_test_4", 0, "")
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestRefundTransitions(t *testing.T) {
	e, campaigns, _ := newTestEngine(t)
	campaign := seedCampaign(t, campaigns, models.CampaignActive, 500)
	c := pledge(t, e, campaign.ID, 100)
	ctx := context.Background()

	_, err := e.AttachGatewaySession(ctx, c.ID, c.AttachToken, "cs_test_5", "pi_test_5")
	require.NoError(t, err)

	// Refund before confirmation is a data inconsistency.
	_, _, err = e.MarkRefunded(ctx, "pi_test_5")
	require.ErrorIs(t, err, ErrIllegalTransition)

	_, _, err = e.Confirm(ctx, "pi_test_5", 0, "")
	require.NoError(t, err)

	got, changed, err := e.MarkRefunded(ctx, "pi_test_5")
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, models.ContributionRefunded, got.Status)

	// Refunds are terminal; a duplicate refund is absorbed.
	_, changed, err = e.MarkRefunded(ctx, "pi_test_5")
	require.NoError(t, err)
	require.False(t, changed)

	// And nothing leaves REFUNDED.
	_, _, err = e.Confirm(ctx, "pi_test_5", 0, "")
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestCancelOnlyFromPending(t *testing.T) {
	e, campaigns, _ := newTestEngine(t)
	campaign := seedCampaign(t, campaigns, models.CampaignActive, 500)
	c := pledge(t, e, campaign.ID, 100)
	ctx := context.Background()

	got, err := e.Cancel(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, models.ContributionCancelled, got.Status)

	_, err = e.Cancel(ctx, c.ID)
	require.ErrorIs(t, err, ErrIllegalTransition)
}
