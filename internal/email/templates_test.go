package email

import (
	"context"
	"strings"
	"testing"
)

type recordingProvider struct {
	sent []*Email
}

func (p *recordingProvider) SendEmail(_ context.Context, email *Email) error {
	p.sent = append(p.sent, email)
	return nil
}

func (p *recordingProvider) ValidateAPIKey(context.Context) error { return nil }

func TestRenderOrderReceived(t *testing.T) {
	t.Parallel()

	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	msg, err := renderer.Render(context.Background(), TemplateOrderReceived, &OrderInfo{
		OrderNumber:   "A1B2C3D4",
		CustomerName:  "Ana <script>",
		CustomerEmail: "ana@example.com",
		SiteName:      "Verdant",
		Items: []OrderItem{
			{Name: "Monstera Albo", Quantity: 1, TotalPrice: "$120.00"},
			{Name: "Philodendron Pink Princess", Quantity: 2, TotalPrice: "$90.00"},
		},
		Total:      "$210.00",
		LocalTotal: "IDR 3,360,000",
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	if msg.To != "ana@example.com" {
		t.Fatalf("unexpected recipient %q", msg.To)
	}
	if msg.Subject != "We received your order A1B2C3D4 - Verdant" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	if !strings.Contains(msg.Text, "Monstera Albo x1 - $120.00") || !strings.Contains(msg.Text, "(IDR 3,360,000)") {
		t.Fatalf("text body missing order lines:\n%s", msg.Text)
	}
	if strings.Contains(msg.HTML, "<script>") {
		t.Fatalf("HTML body must escape customer input")
	}
	if msg.OrderID != "A1B2C3D4" || msg.Tags["category"] != TemplateOrderReceived {
		t.Fatalf("unexpected message metadata: order=%q tags=%v", msg.OrderID, msg.Tags)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	t.Parallel()

	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	if _, err := renderer.Render(context.Background(), "order_delivered", &OrderInfo{}); err == nil {
		t.Fatalf("expected error for unknown template")
	}
}

func TestSendOrderShipped(t *testing.T) {
	t.Parallel()

	provider := &recordingProvider{}
	err := Send(context.Background(), provider, TemplateOrderShipped, &OrderInfo{
		OrderNumber:      "A1B2C3D4",
		CustomerEmail:    "ana@example.com",
		Courier:          "DHL",
		TrackingNumber:   "1234567890",
		PhytoCertificate: "PC-2024-001",
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(provider.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(provider.sent))
	}
	if !strings.Contains(provider.sent[0].Text, "Tracking Number: 1234567890") {
		t.Fatalf("shipped email missing tracking number:\n%s", provider.sent[0].Text)
	}
}

func TestNewProviderFromSettings(t *testing.T) {
	t.Parallel()

	if _, ok := NewProvider(Config{}).(NoopProvider); !ok {
		t.Fatalf("expected noop provider without an API key")
	}

	p := NewProviderFromSettings("re_stored", "", Config{From: "shop@example.com"})
	resend, ok := p.(*ResendProvider)
	if !ok {
		t.Fatalf("expected resend provider, got %T", p)
	}
	if resend.apiKey != "re_stored" || resend.from != "shop@example.com" {
		t.Fatalf("unexpected resend config: key=%q from=%q", resend.apiKey, resend.from)
	}
}

func TestResendTagsAreSortedByName(t *testing.T) {
	t.Parallel()

	tags := resendTags(map[string]string{"order": "A1", "category": "order_shipped"})
	if len(tags) != 2 || tags[0].Name != "category" || tags[1].Value != "A1" {
		t.Fatalf("unexpected tags: %+v", tags)
	}
	if resendTags(nil) != nil {
		t.Fatalf("expected nil tags for empty map")
	}
}
