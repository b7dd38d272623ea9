package email

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"text/template"
)

const (
	TemplateOrderReceived = "order_received"
	TemplateOrderShipped  = "order_shipped"
)

// OrderInfo contains all the information needed for order email templates
type OrderInfo struct {
	OrderNumber      string
	CustomerName     string
	CustomerEmail    string
	SiteName         string
	SiteURL          string
	TrackURL         string
	ShippingAddress  string
	Country          string
	OrderDate        string
	Items            []OrderItem
	Total            string
	LocalTotal       string
	Courier          string
	TrackingNumber   string
	TrackingURL      string
	PhytoCertificate string
}

// OrderItem represents a single item in an order
type OrderItem struct {
	Name       string
	Quantity   int
	UnitPrice  string
	TotalPrice string
}

type emailTemplate struct {
	Subject string
	HTML    string
	Text    string
}

var builtinTemplates = map[string]emailTemplate{
	TemplateOrderReceived: {
		Subject: "We received your order {{.OrderNumber}} - {{.SiteName}}",
		HTML:    orderReceivedHTML,
		Text:    orderReceivedText,
	},
	TemplateOrderShipped: {
		Subject: "Your plants are on their way - {{.OrderNumber}}",
		HTML:    orderShippedHTML,
		Text:    orderShippedText,
	},
}

// Renderer provides methods to render email templates
type Renderer struct {
	subjects *template.Template
	text     *template.Template
	html     *htmltemplate.Template
}

// NewRenderer parses the built-in templates.
func NewRenderer() (*Renderer, error) {
	subjects := template.New("subjects")
	text := template.New("text")
	html := htmltemplate.New("html")

	for name, t := range builtinTemplates {
		if _, err := subjects.New(name).Parse(t.Subject); err != nil {
			return nil, fmt.Errorf("failed to parse subject template %s: %w", name, err)
		}
		if _, err := text.New(name).Parse(t.Text); err != nil {
			return nil, fmt.Errorf("failed to parse text template %s: %w", name, err)
		}
		if _, err := html.New(name).Parse(t.HTML); err != nil {
			return nil, fmt.Errorf("failed to parse HTML template %s: %w", name, err)
		}
	}

	return &Renderer{subjects: subjects, text: text, html: html}, nil
}

// Render renders an email template with the given data
func (r *Renderer) Render(_ context.Context, templateName string, data *OrderInfo) (*Email, error) {
	if data == nil {
		return nil, fmt.Errorf("order info is required")
	}
	if _, ok := builtinTemplates[templateName]; !ok {
		return nil, fmt.Errorf("unknown email template %q", templateName)
	}

	var subjectBuf, textBuf, htmlBuf bytes.Buffer
	if err := r.subjects.ExecuteTemplate(&subjectBuf, templateName, data); err != nil {
		return nil, fmt.Errorf("failed to render subject: %w", err)
	}
	if err := r.text.ExecuteTemplate(&textBuf, templateName, data); err != nil {
		return nil, fmt.Errorf("failed to render text template: %w", err)
	}
	if err := r.html.ExecuteTemplate(&htmlBuf, templateName, data); err != nil {
		return nil, fmt.Errorf("failed to render HTML template: %w", err)
	}

	return &Email{
		To:      data.CustomerEmail,
		Subject: subjectBuf.String(),
		Text:    textBuf.String(),
		HTML:    htmlBuf.String(),
		OrderID: data.OrderNumber,
		Tags:    map[string]string{"category": templateName},
	}, nil
}

// Send renders templateName and hands the result to p. A nil provider is a no-op.
func Send(ctx context.Context, p Provider, templateName string, orderInfo *OrderInfo) error {
	if p == nil {
		return nil
	}

	renderer, err := NewRenderer()
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}

	email, err := renderer.Render(ctx, templateName, orderInfo)
	if err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	return p.SendEmail(ctx, email)
}

const orderReceivedText = `Hi {{.CustomerName}},

Thank you for your order! We have received it and will prepare your plants once payment is confirmed.

Order Number: {{.OrderNumber}}
Order Date: {{.OrderDate}}

Items:
{{range .Items}}- {{.Name}} x{{.Quantity}} - {{.TotalPrice}}
{{end}}
Total: {{.Total}}{{if .LocalTotal}} ({{.LocalTotal}}){{end}}

Shipping to:
{{.ShippingAddress}}
{{.Country}}

{{if .TrackURL}}Follow your order: {{.TrackURL}}{{end}}

{{.SiteName}}
{{.SiteURL}}
`

const orderReceivedHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Order Received</title>
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #1f2937; max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background: #166534; color: white; padding: 20px; text-align: center; border-radius: 8px 8px 0 0; }
    .content { background: #f7fee7; padding: 20px; border: 1px solid #d9f99d; }
    .items-table { width: 100%; border-collapse: collapse; margin: 15px 0; }
    .items-table th { text-align: left; padding: 10px; background: #ecfccb; }
    .items-table td { padding: 10px; border-bottom: 1px solid #d9f99d; }
    .total { font-size: 18px; font-weight: bold; text-align: right; padding: 15px 0; }
    .footer { text-align: center; padding: 20px; color: #6b7280; font-size: 14px; }
  </style>
</head>
<body>
  <div class="header">
    <h1>Order received</h1>
    <p>Thank you, {{.CustomerName}}</p>
  </div>
  <div class="content">
    <p><strong>Order Number:</strong> {{.OrderNumber}}<br>
    <strong>Order Date:</strong> {{.OrderDate}}</p>
    <table class="items-table">
      <thead><tr><th>Plant</th><th>Qty</th><th>Price</th></tr></thead>
      <tbody>
        {{range .Items}}<tr><td>{{.Name}}</td><td>{{.Quantity}}</td><td>{{.TotalPrice}}</td></tr>
        {{end}}
      </tbody>
    </table>
    <div class="total">Total: {{.Total}}{{if .LocalTotal}} <small>({{.LocalTotal}})</small>{{end}}</div>
    <h3>Shipping to</h3>
    <p>{{.ShippingAddress}}<br>{{.Country}}</p>
    {{if .TrackURL}}<p><a href="{{.TrackURL}}">Follow your order</a></p>{{end}}
  </div>
  <div class="footer">
    <p><a href="{{.SiteURL}}">{{.SiteName}}</a></p>
  </div>
</body>
</html>
`

const orderShippedText = `Hi {{.CustomerName}},

Your order {{.OrderNumber}} has shipped.
{{if .Courier}}
Courier: {{.Courier}}{{end}}{{if .TrackingNumber}}
Tracking Number: {{.TrackingNumber}}{{end}}{{if .TrackingURL}}
Track your parcel: {{.TrackingURL}}{{end}}{{if .PhytoCertificate}}
Phytosanitary Certificate: {{.PhytoCertificate}}{{end}}

Shipping to:
{{.ShippingAddress}}
{{.Country}}

{{.SiteName}}
{{.SiteURL}}
`

const orderShippedHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Order Shipped</title>
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #1f2937; max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background: #059669; color: white; padding: 20px; text-align: center; border-radius: 8px 8px 0 0; }
    .content { background: #f9fafb; padding: 20px; border: 1px solid #e5e7eb; }
    .tracking { background: white; padding: 20px; border-radius: 6px; margin: 15px 0; border-left: 4px solid #059669; }
    .tracking-number { font-size: 24px; font-weight: bold; color: #059669; }
    .footer { text-align: center; padding: 20px; color: #6b7280; font-size: 14px; }
  </style>
</head>
<body>
  <div class="header">
    <h1>Your plants are on their way</h1>
    <p>Order {{.OrderNumber}}</p>
  </div>
  <div class="content">
    {{if .TrackingNumber}}
    <div class="tracking">
      {{if .Courier}}<p><strong>Courier:</strong> {{.Courier}}</p>{{end}}
      <p class="tracking-number">{{.TrackingNumber}}</p>
      {{if .TrackingURL}}<p><a href="{{.TrackingURL}}">Track your parcel</a></p>{{end}}
    </div>
    {{end}}
    {{if .PhytoCertificate}}<p><strong>Phytosanitary Certificate:</strong> {{.PhytoCertificate}}</p>{{end}}
    <h3>Shipping to</h3>
    <p>{{.ShippingAddress}}<br>{{.Country}}</p>
  </div>
  <div class="footer">
    <p><a href="{{.SiteURL}}">{{.SiteName}}</a></p>
  </div>
</body>
</html>
`
