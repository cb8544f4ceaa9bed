package payments

import "errors"

var (
	// ErrAmountBelowMinimum rejects pledges under one unit of currency.
	ErrAmountBelowMinimum = errors.New("pledge amount below minimum")
	// ErrCampaignNotAcceptingFunds rejects pledges against campaigns that
	// are not ACTIVE.
	ErrCampaignNotAcceptingFunds = errors.New("campaign is not accepting funds")
	// ErrIllegalTransition marks a contribution status change the state
	// machine forbids. Retrying cannot make it legal, so events hitting it
	// are dropped, not redelivered.
	ErrIllegalTransition = errors.New("illegal contribution status transition")
	// ErrAttributionRequired rejects non-anonymous pledges without a
	// contributor record.
	ErrAttributionRequired = errors.New("contributor details required for non-anonymous pledge")
	// ErrAttachTokenMismatch rejects a gateway-session attachment that does
	// not present the token issued when the pledge was created.
	ErrAttachTokenMismatch = errors.New("attach token mismatch")
)
