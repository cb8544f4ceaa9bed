package models

// Normalized payment gateway event types. The webhook boundary maps the
// gateway's wire format onto this closed set; everything past the boundary
// switches over these four values only.
const (
	EventCheckoutCompleted = "checkout_completed"
	EventPaymentSucceeded  = "payment_succeeded"
	EventPaymentFailed     = "payment_failed"
	EventChargeRefunded    = "charge_refunded"
)

// PaymentEvent is a verified, normalized gateway notification. It is
// transient: consumed by the dispatcher, never persisted.
type PaymentEvent struct {
	Type            string  `json:"type"`
	CorrelationID   string  `json:"correlation_id"` // checkout-session or payment-intent id
	ChargeReference string  `json:"charge_reference,omitempty"`
	SettledAmount   float64 `json:"settled_amount,omitempty"` // currency major units
	FailureReason   string  `json:"failure_reason,omitempty"`
}
