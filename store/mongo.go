package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	models "github.com/phillip/crowdfund-backend/models"
)

var (
	_ ContributionStore = (*MongoContributionStore)(nil)
	_ CampaignStore     = (*MongoCampaignStore)(nil)
)

// MongoContributionStore keeps contributions in the "contributions"
// collection.
type MongoContributionStore struct {
	col *mongo.Collection
}

func NewMongoContributionStore(db *mongo.Database) *MongoContributionStore {
	return &MongoContributionStore{col: db.Collection("contributions")}
}

func (s *MongoContributionStore) Create(ctx context.Context, c *models.Contribution) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.col.InsertOne(ctx, c)
	return err
}

func (s *MongoContributionStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Contribution, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var c models.Contribution
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *MongoContributionStore) FindByCorrelation(ctx context.Context, correlationID string) (*models.Contribution, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"$or": []bson.M{
		{"checkout_session_id": correlationID},
		{"payment_intent_id": correlationID},
	}}

	var c models.Contribution
	err := s.col.FindOne(ctx, filter).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *MongoContributionStore) FindByCampaign(ctx context.Context, campaignID primitive.ObjectID, status string) ([]models.Contribution, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{"campaign_id": campaignID}
	if status != "" {
		filter["status"] = status
	}

	cursor, err := s.col.Find(ctx, filter)
	if err != nil {
		return nil, err
	}

	var contributions []models.Contribution
	if err := cursor.All(ctx, &contributions); err != nil {
		return nil, err
	}
	return contributions, nil
}

func (s *MongoContributionStore) Update(ctx context.Context, c *models.Contribution) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.col.ReplaceOne(ctx, bson.M{"_id": c.ID}, c)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoContributionStore) DeleteByCampaign(ctx context.Context, campaignID primitive.ObjectID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := s.col.DeleteMany(ctx, bson.M{"campaign_id": campaignID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// MongoCampaignStore keeps campaigns in the "campaigns" collection.
type MongoCampaignStore struct {
	col *mongo.Collection
}

func NewMongoCampaignStore(db *mongo.Database) *MongoCampaignStore {
	return &MongoCampaignStore{col: db.Collection("campaigns")}
}

func (s *MongoCampaignStore) Create(ctx context.Context, c *models.Campaign) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.col.InsertOne(ctx, c)
	return err
}

func (s *MongoCampaignStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoCampaignStore) FindBySlug(ctx context.Context, slug string) (*models.Campaign, error) {
	return s.findOne(ctx, bson.M{"slug": slug})
}

func (s *MongoCampaignStore) findOne(ctx context.Context, filter bson.M) (*models.Campaign, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var c models.Campaign
	err := s.col.FindOne(ctx, filter).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *MongoCampaignStore) Find(ctx context.Context, f CampaignFilter) ([]models.Campaign, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if !f.CreatorID.IsZero() {
		filter["creator_id"] = f.CreatorID
	}
	if f.Search != "" {
		filter["title"] = bson.M{"$regex": f.Search, "$options": "i"}
	}

	cursor, err := s.col.Find(ctx, filter)
	if err != nil {
		return nil, err
	}

	var campaigns []models.Campaign
	if err := cursor.All(ctx, &campaigns); err != nil {
		return nil, err
	}
	return campaigns, nil
}

func (s *MongoCampaignStore) Update(ctx context.Context, c *models.Campaign) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.col.ReplaceOne(ctx, bson.M{"_id": c.ID}, c)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoCampaignStore) SetAggregates(ctx context.Context, id primitive.ObjectID, current float64, contributors int, average float64) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"current_amount":             current,
		"stats.contributors_count":   contributors,
		"stats.average_contribution": average,
		"updated_at":                 time.Now(),
	}}

	res, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoCampaignStore) IncrementViews(ctx context.Context, id primitive.ObjectID) error {
	return s.increment(ctx, id, "stats.views")
}

func (s *MongoCampaignStore) IncrementShares(ctx context.Context, id primitive.ObjectID) error {
	return s.increment(ctx, id, "stats.shares")
}

func (s *MongoCampaignStore) increment(ctx context.Context, id primitive.ObjectID, field string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{field: 1}})
	return err
}

func (s *MongoCampaignStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoCampaignStore) ExpireEnded(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{
		"status":   models.CampaignActive,
		"end_date": bson.M{"$lt": now},
	}
	update := bson.M{"$set": bson.M{
		"status":     models.CampaignExpired,
		"updated_at": now,
	}}

	res, err := s.col.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// expiredDisposable matches EXPIRED campaigns that ended before cutoff and
// hold no funds. Funded campaigns are excluded here so the retention pass
// can never touch financial records.
func expiredDisposable(cutoff time.Time) bson.M {
	return bson.M{
		"status":         models.CampaignExpired,
		"end_date":       bson.M{"$lt": cutoff},
		"current_amount": bson.M{"$lte": 0},
	}
}

func abandonedDrafts(cutoff time.Time) bson.M {
	return bson.M{
		"status":     models.CampaignDraft,
		"updated_at": bson.M{"$lt": cutoff},
	}
}

func (s *MongoCampaignStore) FindExpiredBefore(ctx context.Context, cutoff time.Time) ([]models.Campaign, error) {
	return s.findMany(ctx, expiredDisposable(cutoff))
}

func (s *MongoCampaignStore) FindAbandonedDrafts(ctx context.Context, cutoff time.Time) ([]models.Campaign, error) {
	return s.findMany(ctx, abandonedDrafts(cutoff))
}

func (s *MongoCampaignStore) findMany(ctx context.Context, filter bson.M) ([]models.Campaign, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := s.col.Find(ctx, filter)
	if err != nil {
		return nil, err
	}

	var campaigns []models.Campaign
	if err := cursor.All(ctx, &campaigns); err != nil {
		return nil, err
	}
	return campaigns, nil
}

func (s *MongoCampaignStore) CountByStatus(ctx context.Context, status string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return s.col.CountDocuments(ctx, bson.M{"status": status})
}

func (s *MongoCampaignStore) CountPendingExpiration(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return s.col.CountDocuments(ctx, bson.M{
		"status":   models.CampaignActive,
		"end_date": bson.M{"$lt": now},
	})
}

func (s *MongoCampaignStore) CountPendingDeletion(ctx context.Context, expiredCutoff, draftCutoff time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return s.col.CountDocuments(ctx, bson.M{"$or": []bson.M{
		expiredDisposable(expiredCutoff),
		abandonedDrafts(draftCutoff),
	}})
}
