package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Campaign lifecycle statuses. Only ACTIVE campaigns accept new pledges.
const (
	CampaignDraft      = "DRAFT"
	CampaignPending    = "PENDING"
	CampaignActive     = "ACTIVE"
	CampaignSuccessful = "SUCCESSFUL"
	CampaignExpired    = "EXPIRED"
	CampaignCancelled  = "CANCELLED"
	CampaignSuspended  = "SUSPENDED"
)

type CampaignStats struct {
	ContributorsCount   int     `bson:"contributors_count" json:"contributors_count"`
	AverageContribution float64 `bson:"average_contribution" json:"average_contribution"`
	Views               int64   `bson:"views" json:"views"`
	Shares              int64   `bson:"shares" json:"shares"`
}

type Campaign struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatorID   primitive.ObjectID `bson:"creator_id" json:"creator_id"`
	Slug        string             `bson:"slug" json:"slug"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	GoalAmount  float64            `bson:"goal_amount" json:"goal_amount"`
	// CurrentAmount is a cached aggregate: the sum of amounts over this
	// campaign's CONFIRMED contributions. The contribution set is the
	// source of truth; see payments.Recompute.
	CurrentAmount float64       `bson:"current_amount" json:"current_amount"`
	Currency      string        `bson:"currency" json:"currency"`
	StartDate     time.Time     `bson:"start_date" json:"start_date"`
	EndDate       time.Time     `bson:"end_date" json:"end_date"`
	Status        string        `bson:"status" json:"status"`
	Stats         CampaignStats `bson:"stats" json:"stats"`
	Images        []string      `bson:"images" json:"images"`
	CreatedAt     time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `bson:"updated_at" json:"updated_at"`
}

// AcceptsFunds reports whether new pledges may be created against the campaign.
func (c *Campaign) AcceptsFunds() bool {
	return c.Status == CampaignActive
}
