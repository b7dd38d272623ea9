package payment

import (
	"strings"
	"testing"

	stripeapi "github.com/stripe/stripe-go/v84"

	"github.com/verdantshop/verdant/internal/models"
)

func TestReconcileMapping(t *testing.T) {
	t.Parallel()

	shippingReady := models.StatusShippingReady
	cancelled := models.StatusCancelled

	tests := []struct {
		name              string
		transactionStatus string
		fraudStatus       string
		wantOK            bool
		wantPayment       models.PaymentStatus
		wantStatus        *models.OrderStatus
	}{
		{"capture accepted", "capture", "accept", true, models.PaymentPaid, &shippingReady},
		{"settlement", "settlement", "", true, models.PaymentPaid, &shippingReady},
		{"settlement ignores fraud", "settlement", "challenge", true, models.PaymentPaid, &shippingReady},
		{"capture challenged", "capture", "challenge", true, models.PaymentChallenge, nil},
		{"cancel", "cancel", "", true, models.PaymentFailed, &cancelled},
		{"deny", "deny", "", true, models.PaymentFailed, &cancelled},
		{"expire", "expire", "", true, models.PaymentFailed, &cancelled},
		{"pending", "pending", "", true, models.PaymentPending, nil},
		{"case insensitive", " Settlement ", "", true, models.PaymentPaid, &shippingReady},
		{"capture without fraud verdict", "capture", "", false, "", nil},
		{"refund ignored", "refund", "", false, "", nil},
		{"unknown ignored", "authorize", "accept", false, "", nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			outcome, ok := Reconcile(tt.transactionStatus, tt.fraudStatus)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if !ok {
				return
			}
			if outcome.PaymentStatus != tt.wantPayment {
				t.Fatalf("expected payment status %s, got %s", tt.wantPayment, outcome.PaymentStatus)
			}
			switch {
			case tt.wantStatus == nil && outcome.Status != nil:
				t.Fatalf("expected status unchanged, got %s", *outcome.Status)
			case tt.wantStatus != nil && (outcome.Status == nil || *outcome.Status != *tt.wantStatus):
				t.Fatalf("expected status %s, got %v", *tt.wantStatus, outcome.Status)
			}
		})
	}
}

func TestVerifySignature(t *testing.T) {
	t.Parallel()

	const serverKey = "SB-Mid-server-abc"
	n := Notification{
		OrderID:           "0b9f3a5e-3c1d-4a3e-9a57-6f1d1f0e2b11",
		StatusCode:        "200",
		GrossAmount:       "150000.00",
		TransactionStatus: "settlement",
	}
	n.SignatureKey = Signature(n.OrderID, n.StatusCode, n.GrossAmount, serverKey)

	if len(n.SignatureKey) != 128 {
		t.Fatalf("expected 128 hex chars, got %d", len(n.SignatureKey))
	}
	if !VerifySignature(n, serverKey) {
		t.Fatalf("expected signature to verify")
	}

	upper := n
	upper.SignatureKey = strings.ToUpper(n.SignatureKey)
	if !VerifySignature(upper, serverKey) {
		t.Fatalf("expected upper-case hex to verify")
	}

	tampered := n
	tampered.GrossAmount = "1.00"
	if VerifySignature(tampered, serverKey) {
		t.Fatalf("expected tampered amount to fail verification")
	}
	if VerifySignature(n, "other-key") {
		t.Fatalf("expected wrong key to fail verification")
	}
}

func TestNotificationValidate(t *testing.T) {
	t.Parallel()

	if err := (Notification{TransactionStatus: "settlement"}).Validate(); err == nil {
		t.Fatalf("expected missing order_id error")
	}
	if err := (Notification{OrderID: "x"}).Validate(); err == nil {
		t.Fatalf("expected missing transaction_status error")
	}
	if err := (Notification{OrderID: "x", TransactionStatus: "pending"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNotificationFromStripe(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"id":"cs_1","metadata":{"order_id":"order-1"}}`)

	tests := []struct {
		eventType  stripeapi.EventType
		wantStatus string
		handled    bool
	}{
		{"checkout.session.completed", TransactionSettlement, true},
		{"checkout.session.expired", TransactionExpire, true},
		{"payment_intent.payment_failed", TransactionDeny, true},
		{"customer.created", "", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.eventType), func(t *testing.T) {
			t.Parallel()

			event := &stripeapi.Event{ID: "evt_1", Type: tt.eventType, Data: &stripeapi.EventData{Raw: raw}}
			n, handled, err := NotificationFromStripe(event)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if handled != tt.handled {
				t.Fatalf("expected handled=%v, got %v", tt.handled, handled)
			}
			if !handled {
				return
			}
			if n.OrderID != "order-1" || n.TransactionStatus != tt.wantStatus {
				t.Fatalf("unexpected notification: %+v", n)
			}
		})
	}
}
