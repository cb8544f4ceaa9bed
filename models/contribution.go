package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Contribution statuses.
const (
	ContributionPending   = "PENDING"
	ContributionConfirmed = "CONFIRMED"
	ContributionFailed    = "FAILED"
	ContributionRefunded  = "REFUNDED"
	ContributionCancelled = "CANCELLED"
)

// Contributor identifies who made a pledge. UserID is set only when the
// pledge came from an authenticated account; anonymous pledges persist no
// contributor record at all.
type Contributor struct {
	UserID  primitive.ObjectID `bson:"user_id,omitempty" json:"user_id,omitempty"`
	Name    string             `bson:"name" json:"name"`
	Email   string             `bson:"email" json:"email"`
	Message string             `bson:"message,omitempty" json:"message,omitempty"`
}

// Payment carries the gateway-facing money fields of a contribution.
// NetAmount = Amount - Fees, recomputed from the gateway's settled amount
// at confirmation when one is reported.
type Payment struct {
	Method        string  `bson:"method" json:"method"` // CARD, MPESA, STRIPE
	TransactionID string  `bson:"transaction_id,omitempty" json:"transaction_id,omitempty"`
	Status        string  `bson:"status" json:"status"`
	Currency      string  `bson:"currency" json:"currency"`
	Fees          float64 `bson:"fees" json:"fees"`
	NetAmount     float64 `bson:"net_amount" json:"net_amount"`
}

type Contribution struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CampaignID  primitive.ObjectID `bson:"campaign_id" json:"campaign_id"`
	Amount      float64            `bson:"amount" json:"amount"`
	PlatformFee float64            `bson:"platform_fee" json:"platform_fee"`
	Payment     Payment            `bson:"payment" json:"payment"`
	IsAnonymous bool               `bson:"is_anonymous" json:"is_anonymous"`
	Contributor *Contributor       `bson:"contributor,omitempty" json:"contributor,omitempty"`

	// Gateway correlation; either id is usable as an idempotency key.
	CheckoutSessionID string `bson:"checkout_session_id,omitempty" json:"checkout_session_id,omitempty"`
	PaymentIntentID   string `bson:"payment_intent_id,omitempty" json:"payment_intent_id,omitempty"`

	// AttachToken authorizes binding gateway ids to this pledge. Issued
	// once in the creation response and never serialized again.
	AttachToken string `bson:"attach_token,omitempty" json:"-"`

	Status        string    `bson:"status" json:"status"`
	FailureReason string    `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at" json:"updated_at"`
}
