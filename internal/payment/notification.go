package payment

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/verdantshop/verdant/internal/models"
)

// Notification is the asynchronous status callback posted by the gateway.
type Notification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	TransactionID     string `json:"transaction_id,omitempty"`
	PaymentType       string `json:"payment_type,omitempty"`
}

func (n Notification) Validate() error {
	if strings.TrimSpace(n.OrderID) == "" {
		return fmt.Errorf("order_id is required")
	}
	if strings.TrimSpace(n.TransactionStatus) == "" {
		return fmt.Errorf("transaction_status is required")
	}
	return nil
}

// Signature computes hex(SHA-512(order_id + status_code + gross_amount + server_key)).
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// VerifySignature reports whether the notification was signed with serverKey.
func VerifySignature(n Notification, serverKey string) bool {
	expected := Signature(n.OrderID, n.StatusCode, n.GrossAmount, serverKey)
	provided := strings.ToLower(strings.TrimSpace(n.SignatureKey))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}

const (
	TransactionCapture    = "capture"
	TransactionSettlement = "settlement"
	TransactionPending    = "pending"
	TransactionCancel     = "cancel"
	TransactionDeny       = "deny"
	TransactionExpire     = "expire"

	FraudAccept    = "accept"
	FraudChallenge = "challenge"
)

// Outcome is the local effect of a gateway status.
type Outcome struct {
	PaymentStatus models.PaymentStatus
	// Status is nil when the fulfillment status must be left as is.
	Status *models.OrderStatus
}

// Reconcile maps a gateway transaction status onto local statuses.
// ok is false for statuses that carry no local effect.
func Reconcile(transactionStatus, fraudStatus string) (Outcome, bool) {
	transactionStatus = strings.ToLower(strings.TrimSpace(transactionStatus))
	fraudStatus = strings.ToLower(strings.TrimSpace(fraudStatus))

	switch transactionStatus {
	case TransactionCapture:
		switch fraudStatus {
		case FraudAccept:
			return paidOutcome(), true
		case FraudChallenge:
			return Outcome{PaymentStatus: models.PaymentChallenge}, true
		default:
			return Outcome{}, false
		}
	case TransactionSettlement:
		return paidOutcome(), true
	case TransactionCancel, TransactionDeny, TransactionExpire:
		cancelled := models.StatusCancelled
		return Outcome{PaymentStatus: models.PaymentFailed, Status: &cancelled}, true
	case TransactionPending:
		return Outcome{PaymentStatus: models.PaymentPending}, true
	default:
		return Outcome{}, false
	}
}

func paidOutcome() Outcome {
	ready := models.StatusShippingReady
	return Outcome{PaymentStatus: models.PaymentPaid, Status: &ready}
}
