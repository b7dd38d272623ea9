package services

import (
	"net/url"
	"strings"
)

const (
	CourierDHL   = "DHL"
	CourierFedEx = "FedEx"
	CourierUPS   = "UPS"
	CourierEMS   = "EMS"
)

// NormalizeCourier returns the canonical name for known couriers and keeps
// custom names untouched.
func NormalizeCourier(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if canonical := canonicalCourier(trimmed); canonical != "" {
		return canonical
	}
	return trimmed
}

func canonicalCourier(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.NewReplacer(" ", "", "-", "", "_", "", ".", "").Replace(normalized)

	switch normalized {
	case "dhl", "dhlexpress":
		return CourierDHL
	case "fedex", "federalexpress":
		return CourierFedEx
	case "ups", "unitedparcelservice":
		return CourierUPS
	case "ems", "expressmailservice", "posindonesiaems":
		return CourierEMS
	default:
		return ""
	}
}

// BuildTrackingURL returns a courier-specific tracking URL. Unknown couriers return empty.
func BuildTrackingURL(courier, trackingNumber string) string {
	number := strings.TrimSpace(trackingNumber)
	if number == "" {
		return ""
	}

	escaped := url.QueryEscape(number)
	switch canonicalCourier(courier) {
	case CourierDHL:
		return "https://www.dhl.com/global-en/home/tracking/tracking-express.html?submit=1&tracking-id=" + escaped
	case CourierFedEx:
		return "https://www.fedex.com/fedextrack/?trknbr=" + escaped
	case CourierUPS:
		return "https://www.ups.com/track?tracknum=" + escaped
	case CourierEMS:
		return "https://www.17track.net/en/track?nums=" + escaped
	default:
		return ""
	}
}
