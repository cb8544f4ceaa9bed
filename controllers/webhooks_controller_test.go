package controllers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	config "github.com/phillip/crowdfund-backend/config"
	models "github.com/phillip/crowdfund-backend/models"
	notify "github.com/phillip/crowdfund-backend/notify"
	payments "github.com/phillip/crowdfund-backend/payments"
	store "github.com/phillip/crowdfund-backend/store"
)

const testSecret = "whsec_test"

func signBody(t *testing.T, secret string, body []byte, at time.Time) string {
	t.Helper()
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func newWebhookServer(t *testing.T) (*gin.Engine, *payments.Engine, *store.MemoryCampaignStore, *store.MemoryContributionStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	campaigns := store.NewMemoryCampaignStore()
	contributions := store.NewMemoryContributionStore()
	users := store.NewMemoryUserStore()

	engine := payments.NewEngine(contributions, campaigns)
	dispatcher := payments.NewDispatcher(engine, campaigns, users, notify.Noop{})
	dispatcher.Sync = true

	cfg := &config.Config{WebhookSecret: testSecret}

	r := gin.New()
	r.POST("/webhooks/gateway", HandleGatewayWebhook(cfg, dispatcher))
	return r, engine, campaigns, contributions
}

func seedPendingContribution(t *testing.T, engine *payments.Engine, campaigns *store.MemoryCampaignStore, sessionID, intentID string) *models.Contribution {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	campaign := &models.Campaign{
		Title:      "Test",
		GoalAmount: 1000,
		Status:     models.CampaignActive,
		StartDate:  now,
		EndDate:    now.Add(30 * 24 * time.Hour),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, campaigns.Create(ctx, campaign))

	c, err := engine.CreatePending(ctx, payments.PledgeInput{
		CampaignID:  campaign.ID,
		Amount:      100,
		Contributor: &models.Contributor{Name: "Ada", Email: "ada@example.com"},
	})
	require.NoError(t, err)
	_, err = engine.AttachGatewaySession(ctx, c.ID, c.AttachToken, sessionID, intentID)
	require.NoError(t, err)
	return c
}

func postWebhook(r *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("Gateway-Signature", signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	r, _, _, _ := newWebhookServer(t)
	body := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)

	w := postWebhook(r, body, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = postWebhook(r, body, signBody(t, "wrong-secret", body, time.Now()))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Tampered body.
	w = postWebhook(r, []byte(`{"id":"evt_1","type":"charge.refunded"}`), signBody(t, testSecret, body, time.Now()))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookRejectsStaleTimestamp(t *testing.T) {
	r, _, _, _ := newWebhookServer(t)
	body := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)

	w := postWebhook(r, body, signBody(t, testSecret, body, time.Now().Add(-time.Hour)))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookConfirmsContribution(t *testing.T) {
	r, engine, campaigns, contributions := newWebhookServer(t)
	c := seedPendingContribution(t, engine, campaigns, "cs_hook_1", "pi_hook_1")

	body := []byte(`{
		"id": "evt_1",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_hook_1", "latest_charge": "ch_1", "amount_received": 10000}}
	}`)
	w := postWebhook(r, body, signBody(t, testSecret, body, time.Now()))
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := contributions.FindByID(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, models.ContributionConfirmed, stored.Status)
	require.InDelta(t, 100.00, stored.Amount, 1e-9)
	require.Equal(t, "ch_1", stored.Payment.TransactionID)
}

func TestWebhookCheckoutCompleted(t *testing.T) {
	r, engine, campaigns, contributions := newWebhookServer(t)
	c := seedPendingContribution(t, engine, campaigns, "cs_hook_2", "")

	body := []byte(`{
		"id": "evt_2",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_hook_2", "amount_total": 10000}}
	}`)
	w := postWebhook(r, body, signBody(t, testSecret, body, time.Now()))
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := contributions.FindByID(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, models.ContributionConfirmed, stored.Status)
}

func TestWebhookOrphanAcknowledged(t *testing.T) {
	r, _, _, _ := newWebhookServer(t)

	body := []byte(`{
		"id": "evt_3",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_nobody", "amount_received": 500}}
	}`)
	w := postWebhook(r, body, signBody(t, testSecret, body, time.Now()))
	require.Equal(t, http.StatusOK, w.Code, "orphans must be acknowledged so the gateway stops redelivering")
}

func TestWebhookIgnoresUnrelatedTypes(t *testing.T) {
	r, _, _, _ := newWebhookServer(t)

	body := []byte(`{"id": "evt_4", "type": "customer.created", "data": {"object": {"id": "cus_1"}}}`)
	w := postWebhook(r, body, signBody(t, testSecret, body, time.Now()))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "ignored")
}

func TestWebhookRefundFlow(t *testing.T) {
	r, engine, campaigns, contributions := newWebhookServer(t)
	c := seedPendingContribution(t, engine, campaigns, "cs_hook_3", "pi_hook_3")

	confirm := []byte(`{
		"id": "evt_5",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_hook_3", "latest_charge": "ch_3", "amount_received": 10000}}
	}`)
	w := postWebhook(r, confirm, signBody(t, testSecret, confirm, time.Now()))
	require.Equal(t, http.StatusOK, w.Code)

	refund := []byte(`{
		"id": "evt_6",
		"type": "charge.refunded",
		"data": {"object": {"id": "ch_3", "payment_intent": "pi_hook_3"}}
	}`)
	w = postWebhook(r, refund, signBody(t, testSecret, refund, time.Now()))
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := contributions.FindByID(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, models.ContributionRefunded, stored.Status)
}
