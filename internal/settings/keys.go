// Package settings manages the site-wide key/value settings edited from the back office.
package settings

type Key string

const (
	KeySiteName        Key = "site_name"
	KeyCurrencyRate    Key = "currency_rate"
	KeyLocalCurrency   Key = "local_currency"
	KeyPhytoCostCents  Key = "phyto_cost_cents"
	KeyContactEmail    Key = "contact_email"
	KeyContactPhone    Key = "contact_phone"
	KeyContactWhatsApp Key = "contact_whatsapp"
	KeyContactAddress  Key = "contact_address"
	KeyEmailAPIKey     Key = "email_api_key"
	KeyEmailFrom       Key = "email_from"
)

var knownKeys = map[Key]struct {
	public bool
	secret bool
}{
	KeySiteName:        {public: true},
	KeyCurrencyRate:    {public: true},
	KeyLocalCurrency:   {public: true},
	KeyPhytoCostCents:  {public: true},
	KeyContactEmail:    {public: true},
	KeyContactPhone:    {public: true},
	KeyContactWhatsApp: {public: true},
	KeyContactAddress:  {public: true},
	KeyEmailAPIKey:     {secret: true},
	KeyEmailFrom:       {},
}

func (k Key) Known() bool {
	_, ok := knownKeys[k]
	return ok
}

// Public reports whether the storefront may read the key without authentication.
func (k Key) Public() bool {
	return knownKeys[k].public
}

// Secret reports whether the value is stored sealed and never returned to clients.
func (k Key) Secret() bool {
	return knownKeys[k].secret
}
