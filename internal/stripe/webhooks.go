package stripe

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	stripeapi "github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

var (
	ErrNotConfigured    = errors.New("stripe webhook secret not configured")
	ErrMissingSignature = errors.New("missing stripe signature header")
	ErrInvalidSignature = errors.New("invalid stripe signature")
	ErrNoOrderReference = errors.New("stripe event carries no order id")
)

// Verifier checks the Stripe-Signature header of webhook deliveries.
type Verifier struct {
	secret    string
	tolerance time.Duration
}

// NewVerifier returns a verifier for the endpoint secret. A zero tolerance
// uses the library default of five minutes.
func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &Verifier{secret: secret, tolerance: tolerance}
}

// Verify authenticates payload and decodes the event. Events pinned to an
// older API version are accepted since only the object ids are read.
// Without an endpoint secret every delivery is refused.
func (v *Verifier) Verify(payload []byte, signature string) (*stripeapi.Event, error) {
	if v == nil || strings.TrimSpace(v.secret) == "" {
		return nil, ErrNotConfigured
	}
	if signature == "" {
		return nil, ErrMissingSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if event.ID == "" {
		return nil, fmt.Errorf("%w: event has no id", ErrInvalidSignature)
	}
	return &event, nil
}

// EventOrderID extracts the storefront order id carried by a checkout session
// or payment intent event. Metadata wins over client_reference_id.
func EventOrderID(event *stripeapi.Event) (string, error) {
	if event == nil || event.Data == nil {
		return "", fmt.Errorf("event has no data")
	}

	var object struct {
		ClientReferenceID string            `json:"client_reference_id"`
		Metadata          map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(event.Data.Raw, &object); err != nil {
		return "", fmt.Errorf("failed to decode event object: %w", err)
	}

	if id := object.Metadata["order_id"]; id != "" {
		return id, nil
	}
	if object.ClientReferenceID != "" {
		return object.ClientReferenceID, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoOrderReference, event.ID)
}
