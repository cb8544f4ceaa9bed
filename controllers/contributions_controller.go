package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/phillip/crowdfund-backend/models"
	payments "github.com/phillip/crowdfund-backend/payments"
	store "github.com/phillip/crowdfund-backend/store"
	utils "github.com/phillip/crowdfund-backend/utils"
)

// ---------------- CREATE ----------------
// CreatePledge opens a PENDING contribution before the gateway is involved.
// Runs behind OptionalAuth: an authenticated caller gets attributed by
// account, everyone else pledges by name/email or anonymously.
func CreatePledge(engine *payments.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			CampaignID  string  `json:"campaign_id" binding:"required"`
			Amount      float64 `json:"amount" binding:"required"`
			Method      string  `json:"method"`
			Currency    string  `json:"currency"`
			IsAnonymous bool    `json:"is_anonymous"`
			Name        string  `json:"name"`
			Email       string  `json:"email"`
			Message     string  `json:"message"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		campaignID, err := primitive.ObjectIDFromHex(input.CampaignID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid campaign id"})
			return
		}

		method := input.Method
		if method == "" {
			method = "CARD"
		}
		currency := input.Currency
		if currency == "" {
			currency = "EUR"
		}

		var contributor *models.Contributor
		if !input.IsAnonymous {
			contributor = &models.Contributor{
				Name:    input.Name,
				Email:   input.Email,
				Message: input.Message,
			}
			if uid := c.GetString("user_id"); uid != "" {
				if oid, err := primitive.ObjectIDFromHex(uid); err == nil {
					contributor.UserID = oid
				}
			}
		}

		contribution, err := engine.CreatePending(c.Request.Context(), payments.PledgeInput{
			CampaignID:  campaignID,
			Amount:      input.Amount,
			Method:      method,
			Currency:    currency,
			IsAnonymous: input.IsAnonymous,
			Contributor: contributor,
		})
		switch {
		case errors.Is(err, payments.ErrAmountBelowMinimum),
			errors.Is(err, payments.ErrAttributionRequired),
			errors.Is(err, payments.ErrCampaignNotAcceptingFunds):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": "campaign not found"})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create contribution"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"id":                  contribution.ID.Hex(),
			"attach_token":        contribution.AttachToken,
			"checkout_session_id": contribution.CheckoutSessionID,
			"fees":                contribution.Payment.Fees,
			"net_amount":          contribution.Payment.NetAmount,
			"platform_fee":        contribution.PlatformFee,
			"message":             "contribution created",
		})
	}
}

// ---------------- ATTACH SESSION ----------------
// AttachSession records the gateway's real checkout-session / payment-intent
// ids on a pending contribution once the checkout flow created them. The
// caller must echo the attach_token from the creation response; knowing a
// contribution id is not enough to rebind its correlation ids.
func AttachSession(engine *payments.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contribution id"})
			return
		}

		var input struct {
			AttachToken       string `json:"attach_token" binding:"required"`
			CheckoutSessionID string `json:"checkout_session_id"`
			PaymentIntentID   string `json:"payment_intent_id"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if input.CheckoutSessionID == "" && input.PaymentIntentID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no gateway ids supplied"})
			return
		}

		contribution, err := engine.AttachGatewaySession(c.Request.Context(), oid, input.AttachToken, input.CheckoutSessionID, input.PaymentIntentID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "contribution not found"})
			return
		case errors.Is(err, payments.ErrAttachTokenMismatch):
			c.JSON(http.StatusForbidden, gin.H{"error": "attach token mismatch"})
			return
		case errors.Is(err, payments.ErrIllegalTransition):
			c.JSON(http.StatusConflict, gin.H{"error": "contribution is no longer pending"})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not attach session"})
			return
		}

		c.JSON(http.StatusOK, contribution)
	}
}

// ---------------- LIST ----------------
func ListContributions(contributions store.ContributionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		campaignID, err := primitive.ObjectIDFromHex(c.Query("campaign_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "campaign_id is required"})
			return
		}

		results, err := contributions.FindByCampaign(c.Request.Context(), campaignID, c.Query("status"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch contributions"})
			return
		}

		if len(results) == 0 {
			c.JSON(http.StatusOK, []models.Contribution{})
			return
		}

		// --- Pick the most recently updated contribution ---
		latest := results[0]
		for _, ctn := range results {
			if ctn.UpdatedAt.After(latest.UpdatedAt) {
				latest = ctn
			}
		}

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
func GetContribution(contributions store.ContributionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contribution id"})
			return
		}

		contribution, err := contributions.FindByID(c.Request.Context(), oid)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "contribution not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch contribution"})
			return
		}

		etag := utils.GenerateETag(contribution.ID, contribution.UpdatedAt)
		if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
			c.Status(http.StatusNotModified)
			return
		}
		c.Header("ETag", etag)

		c.JSON(http.StatusOK, contribution)
	}
}

// ---------------- CANCEL ----------------
// CancelPledge abandons a pending contribution before payment.
func CancelPledge(engine *payments.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contribution id"})
			return
		}

		contribution, err := engine.Cancel(c.Request.Context(), oid)
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "contribution not found"})
			return
		case errors.Is(err, payments.ErrIllegalTransition):
			c.JSON(http.StatusConflict, gin.H{"error": "contribution is no longer pending"})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not cancel contribution"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "contribution cancelled", "id": contribution.ID.Hex()})
	}
}
