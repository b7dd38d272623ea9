package payment

import (
	"fmt"

	stripeapi "github.com/stripe/stripe-go/v84"

	"github.com/verdantshop/verdant/internal/stripe"
)

var stripeEventStatus = map[stripeapi.EventType]string{
	"checkout.session.completed":    TransactionSettlement,
	"checkout.session.expired":      TransactionExpire,
	"payment_intent.payment_failed": TransactionDeny,
}

// NotificationFromStripe translates a verified Stripe event into the gateway
// notification vocabulary. ok is false for event types that are not handled.
func NotificationFromStripe(event *stripeapi.Event) (Notification, bool, error) {
	if event == nil {
		return Notification{}, false, fmt.Errorf("event is required")
	}

	status, handled := stripeEventStatus[event.Type]
	if !handled {
		return Notification{}, false, nil
	}

	orderID, err := stripe.EventOrderID(event)
	if err != nil {
		return Notification{}, true, err
	}

	return Notification{
		OrderID:           orderID,
		TransactionStatus: status,
		TransactionID:     event.ID,
		PaymentType:       ProviderStripe,
	}, true, nil
}
