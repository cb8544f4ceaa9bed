package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/phillip/crowdfund-backend/models"
	store "github.com/phillip/crowdfund-backend/store"
)

// Engine is the funding ledger: it owns every legal contribution status
// transition and the invariant that a contribution's net amount equals its
// amount minus gateway fees.
//
// Legal transitions:
//
//	PENDING   -> CONFIRMED | FAILED | CANCELLED
//	CONFIRMED -> REFUNDED
//
// Everything else is rejected with ErrIllegalTransition. Re-applying a
// transition already applied is a no-op, which makes duplicate gateway
// deliveries harmless.
type Engine struct {
	contributions store.ContributionStore
	campaigns     store.CampaignStore
}

func NewEngine(contributions store.ContributionStore, campaigns store.CampaignStore) *Engine {
	return &Engine{contributions: contributions, campaigns: campaigns}
}

// PledgeInput describes a new pledge before the gateway is involved.
type PledgeInput struct {
	CampaignID  primitive.ObjectID
	Amount      float64
	Method      string
	Currency    string
	IsAnonymous bool
	Contributor *models.Contributor
}

// CreatePending validates a pledge and persists it in PENDING with a
// placeholder correlation id. The checkout flow overwrites the placeholder
// with the gateway's real session/intent ids via AttachGatewaySession.
func (e *Engine) CreatePending(ctx context.Context, in PledgeInput) (*models.Contribution, error) {
	if in.Amount < 1 {
		return nil, ErrAmountBelowMinimum
	}
	if !in.IsAnonymous && (in.Contributor == nil || in.Contributor.Email == "") {
		return nil, ErrAttributionRequired
	}

	campaign, err := e.campaigns.FindByID(ctx, in.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("look up campaign: %w", err)
	}
	if !campaign.AcceptsFunds() {
		return nil, ErrCampaignNotAcceptingFunds
	}

	fees := GatewayFeeEstimate(in.Amount)
	contributor := in.Contributor
	if in.IsAnonymous {
		contributor = nil
	}

	now := time.Now()
	c := &models.Contribution{
		ID:          primitive.NewObjectID(),
		CampaignID:  campaign.ID,
		Amount:      in.Amount,
		PlatformFee: PlatformFee(in.Amount),
		Payment: models.Payment{
			Method:    in.Method,
			Status:    models.ContributionPending,
			Currency:  in.Currency,
			Fees:      fees,
			NetAmount: NetAmount(in.Amount, fees),
		},
		IsAnonymous:       in.IsAnonymous,
		Contributor:       contributor,
		CheckoutSessionID: "placeholder_" + uuid.NewString(),
		AttachToken:       uuid.NewString(),
		Status:            models.ContributionPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := e.contributions.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("persist contribution: %w", err)
	}
	return c, nil
}

// AttachGatewaySession records the gateway's checkout-session and
// payment-intent ids on a pending contribution so later webhook events can
// be correlated back to it. The caller must present the attach token issued
// at creation; contribution ids alone are not proof of ownership.
func (e *Engine) AttachGatewaySession(ctx context.Context, id primitive.ObjectID, token, sessionID, intentID string) (*models.Contribution, error) {
	c, err := e.contributions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.AttachToken == "" || token != c.AttachToken {
		return nil, ErrAttachTokenMismatch
	}
	if c.Status != models.ContributionPending {
		return nil, fmt.Errorf("%w: attach session in status %s", ErrIllegalTransition, c.Status)
	}

	if sessionID != "" {
		c.CheckoutSessionID = sessionID
	}
	if intentID != "" {
		c.PaymentIntentID = intentID
	}
	c.UpdatedAt = time.Now()

	if err := e.contributions.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Confirm moves a pending contribution to CONFIRMED. A contribution that is
// already confirmed is returned unchanged with changed=false: duplicate
// success events are success, not error. When the gateway reports the
// settled amount, fees and net amount are recomputed from it and replace
// the creation-time estimate.
func (e *Engine) Confirm(ctx context.Context, correlationID string, settledAmount float64, chargeRef string) (c *models.Contribution, changed bool, err error) {
	c, err = e.contributions.FindByCorrelation(ctx, correlationID)
	if err != nil {
		return nil, false, err
	}

	switch c.Status {
	case models.ContributionConfirmed:
		return c, false, nil
	case models.ContributionPending:
		// fall through
	default:
		return nil, false, fmt.Errorf("%w: confirm from %s", ErrIllegalTransition, c.Status)
	}

	if settledAmount > 0 {
		c.Amount = settledAmount
		c.Payment.Fees = GatewayFeeEstimate(settledAmount)
		c.PlatformFee = PlatformFee(settledAmount)
	}
	c.Payment.NetAmount = NetAmount(c.Amount, c.Payment.Fees)
	if chargeRef != "" {
		c.Payment.TransactionID = chargeRef
	}
	c.Status = models.ContributionConfirmed
	c.Payment.Status = models.ContributionConfirmed
	c.FailureReason = ""
	c.UpdatedAt = time.Now()

	if err := e.contributions.Update(ctx, c); err != nil {
		return nil, false, fmt.Errorf("persist confirmation: %w", err)
	}
	return c, true, nil
}

// MarkFailed moves a pending contribution to FAILED, keeping the gateway's
// failure reason. Confirmation is monotonic: a late failure event after a
// success leaves the contribution CONFIRMED and reports no error.
func (e *Engine) MarkFailed(ctx context.Context, correlationID, reason string) (c *models.Contribution, changed bool, err error) {
	c, err = e.contributions.FindByCorrelation(ctx, correlationID)
	if err != nil {
		return nil, false, err
	}

	switch c.Status {
	case models.ContributionConfirmed, models.ContributionFailed:
		return c, false, nil
	case models.ContributionPending:
		// fall through
	default:
		return nil, false, fmt.Errorf("%w: fail from %s", ErrIllegalTransition, c.Status)
	}

	c.Status = models.ContributionFailed
	c.Payment.Status = models.ContributionFailed
	c.FailureReason = reason
	c.UpdatedAt = time.Now()

	if err := e.contributions.Update(ctx, c); err != nil {
		return nil, false, fmt.Errorf("persist failure: %w", err)
	}
	return c, true, nil
}

// MarkRefunded moves a confirmed contribution to REFUNDED. Refunding
// anything but a confirmed contribution is a data inconsistency.
func (e *Engine) MarkRefunded(ctx context.Context, correlationID string) (c *models.Contribution, changed bool, err error) {
	c, err = e.contributions.FindByCorrelation(ctx, correlationID)
	if err != nil {
		return nil, false, err
	}

	switch c.Status {
	case models.ContributionRefunded:
		return c, false, nil
	case models.ContributionConfirmed:
		// fall through
	default:
		return nil, false, fmt.Errorf("%w: refund from %s", ErrIllegalTransition, c.Status)
	}

	c.Status = models.ContributionRefunded
	c.Payment.Status = models.ContributionRefunded
	c.UpdatedAt = time.Now()

	if err := e.contributions.Update(ctx, c); err != nil {
		return nil, false, fmt.Errorf("persist refund: %w", err)
	}
	return c, true, nil
}

// Cancel moves a pending contribution to CANCELLED (e.g. the contributor
// abandoned checkout before the gateway saw a payment).
func (e *Engine) Cancel(ctx context.Context, id primitive.ObjectID) (*models.Contribution, error) {
	c, err := e.contributions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != models.ContributionPending {
		return nil, fmt.Errorf("%w: cancel from %s", ErrIllegalTransition, c.Status)
	}

	c.Status = models.ContributionCancelled
	c.Payment.Status = models.ContributionCancelled
	c.UpdatedAt = time.Now()

	if err := e.contributions.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}
