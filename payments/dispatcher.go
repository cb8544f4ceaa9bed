package payments

import (
	"context"
	"errors"
	"fmt"
	"log"

	models "github.com/phillip/crowdfund-backend/models"
	notify "github.com/phillip/crowdfund-backend/notify"
	store "github.com/phillip/crowdfund-backend/store"
)

// Dispatcher consumes verified, normalized gateway events and drives the
// funding ledger. Exactly one status transition is applied per distinct
// event; duplicates and out-of-order deliveries are absorbed by the
// ledger's no-op rules.
//
// Error contract: a returned error means the store failed and the boundary
// should ask the gateway to redeliver. Orphan events (unknown correlation
// id) and illegal transitions return nil after logging; redelivery cannot
// fix either.
type Dispatcher struct {
	engine    *Engine
	campaigns store.CampaignStore
	users     store.UserStore
	notifier  notify.Notifier

	// Sync runs notification side effects inline instead of in a
	// goroutine. Tests set it to observe notifications deterministically.
	Sync bool
}

func NewDispatcher(engine *Engine, campaigns store.CampaignStore, users store.UserStore, notifier notify.Notifier) *Dispatcher {
	return &Dispatcher{
		engine:    engine,
		campaigns: campaigns,
		users:     users,
		notifier:  notifier,
	}
}

// Dispatch routes one payment event to its ledger transition.
func (d *Dispatcher) Dispatch(ctx context.Context, ev models.PaymentEvent) error {
	switch ev.Type {
	case models.EventCheckoutCompleted, models.EventPaymentSucceeded:
		return d.handleConfirmed(ctx, ev)
	case models.EventPaymentFailed:
		return d.handleFailed(ctx, ev)
	case models.EventChargeRefunded:
		return d.handleRefunded(ctx, ev)
	default:
		log.Printf("[dispatcher] dropping unknown event type %q (correlation %s)", ev.Type, ev.CorrelationID)
		return nil
	}
}

func (d *Dispatcher) handleConfirmed(ctx context.Context, ev models.PaymentEvent) error {
	c, changed, err := d.engine.Confirm(ctx, ev.CorrelationID, ev.SettledAmount, ev.ChargeReference)
	if dropped, err := d.filterTransitionErr(ev, err); dropped || err != nil {
		return err
	}

	// Read the campaign total before recomputation so the goal-reached
	// edge can be detected exactly once.
	campaign, err := d.campaigns.FindByID(ctx, c.CampaignID)
	if err != nil {
		return fmt.Errorf("load campaign %s: %w", c.CampaignID.Hex(), err)
	}
	before := campaign.CurrentAmount

	// Recompute runs on duplicates too: if the first delivery confirmed
	// the contribution but the aggregate write failed, the gateway's
	// redelivery is what repairs the campaign total.
	agg, err := d.engine.Recompute(ctx, c.CampaignID)
	if err != nil {
		return err
	}

	if !changed {
		// Duplicate success delivery: aggregates refreshed, but the
		// notifications already went out the first time.
		log.Printf("[dispatcher] duplicate confirmation for %s absorbed", ev.CorrelationID)
		return nil
	}

	goalReached := before < campaign.GoalAmount && agg.CurrentAmount >= campaign.GoalAmount
	campaign.CurrentAmount = agg.CurrentAmount
	campaign.Stats.ContributorsCount = agg.ContributorsCount
	campaign.Stats.AverageContribution = agg.AverageContribution

	d.sideEffect(func() {
		d.notifyConfirmed(campaign, c, goalReached)
	})
	return nil
}

func (d *Dispatcher) handleFailed(ctx context.Context, ev models.PaymentEvent) error {
	c, changed, err := d.engine.MarkFailed(ctx, ev.CorrelationID, ev.FailureReason)
	if dropped, err := d.filterTransitionErr(ev, err); dropped || err != nil {
		return err
	}
	if changed {
		log.Printf("[dispatcher] contribution %s marked failed: %s", c.ID.Hex(), ev.FailureReason)
	}
	return nil
}

func (d *Dispatcher) handleRefunded(ctx context.Context, ev models.PaymentEvent) error {
	c, changed, err := d.engine.MarkRefunded(ctx, ev.CorrelationID)
	if dropped, err := d.filterTransitionErr(ev, err); dropped || err != nil {
		return err
	}

	// Exclude the refunded amount from the campaign totals. Runs on
	// duplicates too so a redelivery can repair a failed aggregate write.
	if _, err := d.engine.Recompute(ctx, c.CampaignID); err != nil {
		return err
	}
	if changed {
		log.Printf("[dispatcher] contribution %s refunded (charge %s)", c.ID.Hex(), ev.ChargeReference)
	}
	return nil
}

// filterTransitionErr classifies a ledger error. Orphans and illegal
// transitions are logged and swallowed (dropped=true); store failures pass
// through for the boundary to signal redelivery.
func (d *Dispatcher) filterTransitionErr(ev models.PaymentEvent, err error) (dropped bool, _ error) {
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, store.ErrNotFound):
		log.Printf("[dispatcher] orphan %s event: no contribution for correlation %s", ev.Type, ev.CorrelationID)
		return true, nil
	case errors.Is(err, ErrIllegalTransition):
		log.Printf("[dispatcher] inconsistent %s event for %s: %v", ev.Type, ev.CorrelationID, err)
		return true, nil
	default:
		return false, err
	}
}

// sideEffect decouples notifications from the transition: they run outside
// the event-handling path and their failure is only ever logged.
func (d *Dispatcher) sideEffect(fn func()) {
	wrapped := func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[dispatcher] notification panic recovered: %v", r)
			}
		}()
		fn()
	}
	if d.Sync {
		wrapped()
		return
	}
	go wrapped()
}

func (d *Dispatcher) notifyConfirmed(campaign *models.Campaign, c *models.Contribution, goalReached bool) {
	ctx := context.Background()

	if err := d.notifier.ContributorConfirmed(c.Contributor, campaign, c); err != nil {
		log.Printf("[dispatcher] contributor notification failed: %v", err)
	}

	creator, err := d.users.FindByID(ctx, campaign.CreatorID)
	if err != nil {
		log.Printf("[dispatcher] creator %s lookup failed: %v", campaign.CreatorID.Hex(), err)
		return
	}

	if err := d.notifier.CreatorNewPledge(creator, campaign, c); err != nil {
		log.Printf("[dispatcher] creator notification failed: %v", err)
	}
	if goalReached {
		if err := d.notifier.GoalReached(creator, campaign); err != nil {
			log.Printf("[dispatcher] goal notification failed: %v", err)
		}
	}
}
