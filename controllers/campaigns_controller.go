package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	config "github.com/phillip/crowdfund-backend/config"
	models "github.com/phillip/crowdfund-backend/models"
	store "github.com/phillip/crowdfund-backend/store"
	utils "github.com/phillip/crowdfund-backend/utils"
)

func parseDeadline(raw string) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339, raw)
	if err == nil {
		return parsed, nil
	}
	// Try fallback formats
	layouts := []string{"2006-01-02", "2006-01-02 15:04", "2006-01-02 15:04:05"}
	for _, layout := range layouts {
		if t, e := time.Parse(layout, raw); e == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

// ---------------- CREATE ----------------
func CreateCampaign(cfg *config.Config, campaigns store.CampaignStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		// --- Authenticated user ---
		uid := c.GetString("user_id")
		creatorID, err := primitive.ObjectIDFromHex(uid)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user id"})
			return
		}

		// --- Bind form fields ---
		var input struct {
			Title       string  `form:"title" binding:"required"`
			Description string  `form:"description"`
			GoalAmount  float64 `form:"goal_amount" binding:"required"`
			Currency    string  `form:"currency"`
			StartDate   string  `form:"start_date"`
			EndDate     string  `form:"end_date" binding:"required"`
			Status      string  `form:"status"`
		}

		if err := c.ShouldBind(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if input.GoalAmount <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "goal_amount must be greater than 0"})
			return
		}

		endDate, err := parseDeadline(input.EndDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date format, use RFC3339 or YYYY-MM-DD"})
			return
		}
		if !endDate.After(time.Now()) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end_date must be in the future"})
			return
		}

		startDate := time.Now()
		if input.StartDate != "" {
			if startDate, err = parseDeadline(input.StartDate); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date format, use RFC3339 or YYYY-MM-DD"})
				return
			}
		}
		if !endDate.After(startDate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end_date must be after start_date"})
			return
		}

		// Campaigns are created as drafts unless explicitly published.
		status := models.CampaignDraft
		if input.Status == models.CampaignActive {
			status = models.CampaignActive
		}

		currency := input.Currency
		if currency == "" {
			currency = "EUR"
		}

		// --- Handle file uploads ---
		form, err := c.MultipartForm()
		if err != nil && err != http.ErrNotMultipart {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form data"})
			return
		}

		var imageURLs []string
		if form != nil {
			files := form.File["images"] // key must be "images"
			for _, fileHeader := range files {
				file, err := fileHeader.Open()
				if err != nil {
					c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open file"})
					return
				}

				url, err := utils.UploadToCloudinary(file, fileHeader)
				file.Close()
				if err != nil {
					c.JSON(http.StatusInternalServerError, gin.H{
						"error":   "image upload failed",
						"details": err.Error(),
						"file":    fileHeader.Filename,
					})
					return
				}

				imageURLs = append(imageURLs, url)
			}
		}

		// --- Save campaign ---
		now := time.Now()
		campaign := models.Campaign{
			ID:          primitive.NewObjectID(),
			CreatorID:   creatorID,
			Slug:        utils.Slugify(input.Title),
			Title:       input.Title,
			Description: input.Description,
			GoalAmount:  input.GoalAmount,
			Currency:    currency,
			StartDate:   startDate,
			EndDate:     endDate,
			Status:      status,
			Images:      imageURLs,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := campaigns.Create(c.Request.Context(), &campaign); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create campaign"})
			return
		}

		c.JSON(http.StatusCreated, campaign)
	}
}

// ---------------- LIST ----------------
func ListCampaigns(campaigns store.CampaignStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		// --- Build filter ---
		filter := store.CampaignFilter{
			Status: c.Query("status"),
			Search: c.Query("q"),
		}
		if creator := c.Query("creator_id"); creator != "" {
			if oid, err := primitive.ObjectIDFromHex(creator); err == nil {
				filter.CreatorID = oid
			}
		}

		// --- Fetch data ---
		results, err := campaigns.Find(c.Request.Context(), filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch campaigns"})
			return
		}

		if len(results) == 0 {
			c.JSON(http.StatusOK, []models.Campaign{})
			return
		}

		// --- Pick the most recently updated campaign ---
		latest := results[0]
		for _, cpn := range results {
			if cpn.UpdatedAt.After(latest.UpdatedAt) {
				latest = cpn
			}
		}

		// --- Generate ETag from latest campaign ---
		etag := utils.GenerateETag(latest.ID, latest.UpdatedAt)
		if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
			c.Status(http.StatusNotModified)
			return
		}
		c.Header("ETag", etag)
		c.Header("Last-Modified", latest.UpdatedAt.UTC().Format(http.TimeFormat))

		c.JSON(http.StatusOK, results)
	}
}

// ---------------- GET ----------------
// GetCampaign resolves by object id or, failing that, by slug. Each hit
// increments the campaign's view counter.
func GetCampaign(campaigns store.CampaignStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("id")

		var campaign *models.Campaign
		var err error
		if oid, idErr := primitive.ObjectIDFromHex(key); idErr == nil {
			campaign, err = campaigns.FindByID(c.Request.Context(), oid)
		} else {
			campaign, err = campaigns.FindBySlug(c.Request.Context(), key)
		}
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch campaign"})
			return
		}

		if err := campaigns.IncrementViews(c.Request.Context(), campaign.ID); err == nil {
			campaign.Stats.Views++
		}

		etag := utils.GenerateETag(campaign.ID, campaign.UpdatedAt)
		if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
			c.Status(http.StatusNotModified)
			return
		}
		c.Header("ETag", etag)

		c.JSON(http.StatusOK, campaign)
	}
}

// ---------------- SHARE ----------------
func ShareCampaign(campaigns store.CampaignStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid campaign id"})
			return
		}

		if err := campaigns.IncrementShares(c.Request.Context(), oid); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not record share"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "share recorded", "id": oid.Hex()})
	}
}

// ---------------- UPDATE ----------------
func UpdateCampaign(cfg *config.Config, campaigns store.CampaignStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString("role")
		requesterID := c.GetString("user_id")
		if requesterID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		oid, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid campaign id"})
			return
		}

		existing, err := campaigns.FindByID(c.Request.Context(), oid)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch campaign"})
			return
		}

		// Ownership is immutable; only the creator or a moderator may edit.
		if role != "admin" && existing.CreatorID.Hex() != requesterID {
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}

		var input struct {
			Title       string   `form:"title"`
			Description string   `form:"description"`
			GoalAmount  float64  `form:"goal_amount"`
			EndDate     string   `form:"end_date"`
			Status      string   `form:"status"`
			Images      []string `form:"images"` // existing image URLs to keep
		}

		if err := c.ShouldBind(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		changed := false
		if input.Title != "" {
			existing.Title = input.Title
			changed = true
		}
		if input.Description != "" {
			existing.Description = input.Description
			changed = true
		}
		if input.GoalAmount > 0 {
			existing.GoalAmount = input.GoalAmount
			changed = true
		}
		if input.Status != "" {
			switch input.Status {
			case models.CampaignDraft, models.CampaignPending, models.CampaignActive,
				models.CampaignSuccessful, models.CampaignExpired,
				models.CampaignCancelled, models.CampaignSuspended:
				existing.Status = input.Status
				changed = true
			default:
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
				return
			}
		}
		if input.EndDate != "" {
			endDate, err := parseDeadline(input.EndDate)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date format, use RFC3339 or YYYY-MM-DD"})
				return
			}
			existing.EndDate = endDate
			changed = true
		}

		// --- Handle new image uploads (multipart form) ---
		newImageURLs := []string{}
		form, _ := c.MultipartForm()
		if form != nil {
			files := form.File["new_images"] // key = "new_images"
			for _, fileHeader := range files {
				file, err := fileHeader.Open()
				if err != nil {
					c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open image"})
					return
				}
				url, err := utils.UploadToCloudinary(file, fileHeader)
				file.Close()
				if err != nil {
					c.JSON(http.StatusInternalServerError, gin.H{"error": "image upload failed", "details": err.Error()})
					return
				}
				newImageURLs = append(newImageURLs, url)
			}
		}

		if input.Images != nil || len(newImageURLs) > 0 {
			existing.Images = append(input.Images, newImageURLs...)
			changed = true
		}

		if !changed {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
			return
		}

		existing.UpdatedAt = time.Now()
		if err := campaigns.Update(c.Request.Context(), existing); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update campaign"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":  "campaign updated",
			"campaign": existing,
		})
	}
}

// ---------------- DELETE ----------------
func DeleteCampaign(cfg *config.Config, campaigns store.CampaignStore, contributions store.ContributionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString("role")
		requesterID := c.GetString("user_id")
		if requesterID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		oid, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid campaign id"})
			return
		}

		existing, err := campaigns.FindByID(c.Request.Context(), oid)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch campaign"})
			return
		}

		if role != "admin" && existing.CreatorID.Hex() != requesterID {
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}

		// Campaigns holding funds are financial records; they cannot be
		// deleted, only cancelled.
		if existing.CurrentAmount > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "campaign has collected funds and cannot be deleted"})
			return
		}

		if _, err := contributions.DeleteByCampaign(c.Request.Context(), oid); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete contributions"})
			return
		}
		if err := campaigns.Delete(c.Request.Context(), oid); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete campaign"})
			return
		}

		for _, img := range existing.Images {
			utils.DeleteFromCloudinary(img)
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "campaign deleted",
			"id":      oid.Hex(),
		})
	}
}
