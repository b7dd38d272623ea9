package observability

import (
	"net/http"
	"time"

	sentryhttpclient "github.com/getsentry/sentry-go/httpclient"
)

const userAgent = "verdant-shop/1.0"

// Outbound calls to these hosts carry sentry trace headers.
var tracePropagationTargets = []string{
	"api.resend.com",
	"oauth2.googleapis.com",
	"www.googleapis.com",
}

type userAgentTransport struct {
	base http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", userAgent)
	return t.base.RoundTrip(clone)
}

// NewHTTPClient returns a client for third-party APIs whose calls become
// sentry spans and identify the shop in the User-Agent header.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := sentryhttpclient.NewSentryRoundTripper(
		userAgentTransport{base: http.DefaultTransport},
		sentryhttpclient.WithTracePropagationTargets(tracePropagationTargets),
	)
	client := &http.Client{Transport: transport}
	if timeout > 0 {
		client.Timeout = timeout
	}
	return client
}
