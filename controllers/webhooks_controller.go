package controllers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	config "github.com/phillip/crowdfund-backend/config"
	models "github.com/phillip/crowdfund-backend/models"
	payments "github.com/phillip/crowdfund-backend/payments"
)

// signatureTolerance bounds how old a signed webhook timestamp may be.
const signatureTolerance = 5 * time.Minute

// gatewayEnvelope is the raw wire shape of a gateway notification. Only the
// fields the normalization needs are decoded.
type gatewayEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID            string `json:"id"`
			PaymentIntent string `json:"payment_intent"`
			LatestCharge  string `json:"latest_charge"`
			// amounts arrive in minor units
			AmountTotal      int64 `json:"amount_total"`
			AmountReceived   int64 `json:"amount_received"`
			LastPaymentError *struct {
				Message string `json:"message"`
			} `json:"last_payment_error"`
		} `json:"object"`
	} `json:"data"`
}

// HandleGatewayWebhook is the payment event boundary: it verifies the raw
// webhook signature, normalizes the gateway envelope into a PaymentEvent,
// and hands it to the dispatcher. A dispatcher error maps to 500 so the
// gateway redelivers; everything else (applied, duplicate, orphan, ignored)
// is acknowledged with 200.
func HandleGatewayWebhook(cfg *config.Config, dispatcher *payments.Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read body"})
			return
		}

		if err := verifySignature(cfg.WebhookSecret, c.GetHeader("Gateway-Signature"), body); err != nil {
			log.Printf("[webhook] signature rejected: %v", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}

		var envelope gatewayEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
			return
		}

		event, ok := normalizeEvent(envelope)
		if !ok {
			// Gateways send more event types than the ledger consumes.
			c.JSON(http.StatusOK, gin.H{"message": "event ignored"})
			return
		}

		if err := dispatcher.Dispatch(c.Request.Context(), event); err != nil {
			log.Printf("[webhook] dispatch failed for %s: %v", envelope.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "event processing failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "event processed"})
	}
}

// verifySignature checks the "t=<unix>,v1=<hex>" header: v1 is the
// HMAC-SHA256 of "<t>.<body>" under the shared webhook secret, and t must
// be within the tolerance window.
func verifySignature(secret, header string, body []byte) error {
	if secret == "" {
		return fmt.Errorf("webhook secret not configured")
	}

	var ts, sig string
	for _, part := range strings.Split(header, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sig = v
		}
	}
	if ts == "" || sig == "" {
		return fmt.Errorf("missing signature components")
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("bad timestamp: %v", err)
	}
	if age := time.Since(time.Unix(unix, 0)); age > signatureTolerance || age < -signatureTolerance {
		return fmt.Errorf("timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

// normalizeEvent maps the gateway's wire format onto the closed event set
// the dispatcher consumes. ok=false means the type is not one the funding
// ledger reacts to.
func normalizeEvent(env gatewayEnvelope) (models.PaymentEvent, bool) {
	obj := env.Data.Object

	switch env.Type {
	case "checkout.session.completed":
		return models.PaymentEvent{
			Type:          models.EventCheckoutCompleted,
			CorrelationID: obj.ID,
			SettledAmount: float64(obj.AmountTotal) / 100,
		}, true
	case "payment_intent.succeeded":
		return models.PaymentEvent{
			Type:            models.EventPaymentSucceeded,
			CorrelationID:   obj.ID,
			ChargeReference: obj.LatestCharge,
			SettledAmount:   float64(obj.AmountReceived) / 100,
		}, true
	case "payment_intent.payment_failed":
		reason := "payment failed"
		if obj.LastPaymentError != nil && obj.LastPaymentError.Message != "" {
			reason = obj.LastPaymentError.Message
		}
		return models.PaymentEvent{
			Type:          models.EventPaymentFailed,
			CorrelationID: obj.ID,
			FailureReason: reason,
		}, true
	case "charge.refunded":
		return models.PaymentEvent{
			Type:            models.EventChargeRefunded,
			CorrelationID:   obj.PaymentIntent,
			ChargeReference: obj.ID,
		}, true
	default:
		return models.PaymentEvent{}, false
	}
}
